package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/platformbuilds/dashboard-core/internal/bootstrap"
	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/internal/controller"
	"github.com/platformbuilds/dashboard-core/internal/filter"
	"github.com/platformbuilds/dashboard-core/internal/layout"
	"github.com/platformbuilds/dashboard-core/internal/preview"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/internal/transform"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
	"github.com/platformbuilds/dashboard-core/pkg/store"
)

// env is what one command invocation works against.
type env struct {
	store     store.RecordStore
	repo      repo.DashboardRepo
	templates *catalog.Catalog
	logger    logger.Logger
}

func (e *env) controller() *controller.Controller {
	return controller.New(e.repo, e.templates, controller.WithLogger(e.logger))
}

// opener builds the env for the global flags.
type opener func(flags globalFlags) (*env, error)

type globalFlags struct {
	backend  string
	boltPath string
	catalog  string
	logLevel string
}

type app struct {
	out   io.Writer
	open  opener
	flags globalFlags

	pretty  bool
	timeout time.Duration
}

func openFromConfig(flags globalFlags) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	if flags.backend != "" {
		cfg.Store.Backend = flags.backend
	}
	if flags.boltPath != "" {
		cfg.Store.BoltPath = flags.boltPath
	}
	if flags.catalog != "" {
		cfg.Catalog.Path = flags.catalog
	}
	level := cfg.LogLevel
	if flags.logLevel != "" {
		level = flags.logLevel
	}

	log := logger.New(level)
	if cfg.Store.Backend == config.BackendMemory {
		log.Warn("Using the in-memory store; changes are lost when dashctl exits")
	}

	s, err := bootstrap.OpenStore(context.Background(), cfg.Store, log)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	templates, err := catalog.Load(cfg.Catalog.Path, log)
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("load chart templates: %w", err)
	}
	return &env{
		store:     s,
		repo:      repo.NewDefaultDashboardRepo(s, log, repo.WithLockTTL(cfg.Store.LockTTL)),
		templates: templates,
		logger:    log,
	}, nil
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "dashctl",
		Short: "Manage DASHBOARD-CORE dashboards",
		Long: `dashctl reads and edits dashboards in the record store configured for
dashboard-core (config.yaml, CONFIG_PATH or DASHBOARD_* variables).`,
		SilenceUsage: true,
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.flags.backend, "backend", "", "Record store backend: memory, bolt, valkey (default: from config)")
	pf.StringVar(&a.flags.boltPath, "bolt-path", "", "bbolt file for the bolt backend")
	pf.StringVar(&a.flags.catalog, "catalog", "", "Chart template override file")
	pf.StringVar(&a.flags.logLevel, "log-level", "error", "Log level")
	pf.BoolVar(&a.pretty, "pretty", false, "Pretty-print JSON output")
	pf.DurationVar(&a.timeout, "timeout", 30*time.Second, "Timeout for store operations")

	rootCmd.AddCommand(
		a.templatesCmd(),
		a.listCmd(),
		a.createCmd(),
		a.showCmd(),
		a.renameCmd(),
		a.deleteCmd(),
		a.addChartCmd(),
		a.removeChartCmd(),
		a.filterCmd(),
		a.previewCmd(),
		a.seedCmd(),
	)
	return rootCmd
}

// run opens the env for one command and closes it afterwards.
func (a *app) run(fn func(ctx context.Context, e *env) error) error {
	e, err := a.open(a.flags)
	if err != nil {
		return err
	}
	defer e.store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()
	return fn(ctx, e)
}

func (a *app) writeJSON(v interface{}) error {
	var (
		b   []byte
		err error
	)
	if a.pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("serialization failed: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

func (a *app) templatesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "templates",
		Short: "List chart templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(_ context.Context, e *env) error {
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tTYPE\tPOINTS")
				for _, t := range e.templates.List() {
					fmt.Fprintf(tw, "%s\t%s\t%s\t%d\n", t.ID, t.Name, t.Kind, len(t.Dataset.Labels))
				}
				return tw.Flush()
			})
		},
	}
}

func (a *app) listCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List dashboards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(ctx context.Context, e *env) error {
				records, err := e.repo.List(ctx)
				if err != nil {
					return err
				}
				summaries := make([]preview.Summary, 0, len(records))
				for _, r := range records {
					summaries = append(summaries, preview.Summarize(r))
				}
				if asJSON {
					return a.writeJSON(summaries)
				}
				tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "ID\tNAME\tCHARTS\tLAST MODIFIED")
				for _, s := range summaries {
					fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.Name, s.ChartCount, s.LastModified.Format(time.RFC3339))
				}
				return tw.Flush()
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print summaries as JSON")
	return cmd
}

func (a *app) createCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an empty dashboard and print its id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(ctx context.Context, e *env) error {
				ctrl := e.controller()
				rec, err := ctrl.Create(ctx)
				if err != nil {
					return err
				}
				if name != "" {
					if err := ctrl.Rename(name); err != nil {
						return err
					}
					if err := ctrl.Save(ctx); err != nil {
						return err
					}
				}
				_, err = fmt.Fprintln(a.out, rec.ID)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Dashboard name")
	return cmd
}

func (a *app) showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <dashboard-id>",
		Short: "Print a dashboard's render state as JSON",
		Long:  "Prints the dashboard as it would open in view mode. An unknown id is created with the default record.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(ctx context.Context, e *env) error {
				ctrl := e.controller()
				if err := ctrl.Open(ctx, args[0]); err != nil {
					return err
				}
				return a.writeJSON(ctrl.View())
			})
		},
	}
}

// mutate opens id, applies fn, and saves.
func (a *app) mutate(id string, fn func(ctrl *controller.Controller) error) error {
	return a.run(func(ctx context.Context, e *env) error {
		ctrl := e.controller()
		if err := ctrl.Open(ctx, id); err != nil {
			return err
		}
		if err := fn(ctrl); err != nil {
			return err
		}
		return ctrl.Save(ctx)
	})
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <dashboard-id> <name>",
		Short: "Rename a dashboard",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(args[0], func(ctrl *controller.Controller) error {
				return ctrl.Rename(strings.TrimSpace(args[1]))
			})
		},
	}
}

func (a *app) deleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <dashboard-id>",
		Short: "Delete a dashboard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete %s without --yes", args[0])
			}
			return a.run(func(ctx context.Context, e *env) error {
				res, err := e.repo.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				if !res.Found {
					_, err = fmt.Fprintf(a.out, "dashboard %s not found; nothing deleted\n", res.ID)
					return err
				}
				_, err = fmt.Fprintf(a.out, "deleted %s\n", res.ID)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the deletion")
	return cmd
}

func (a *app) addChartCmd() *cobra.Command {
	var x, y, w, h int
	cmd := &cobra.Command{
		Use:   "add-chart <dashboard-id> <template-id>",
		Short: "Add a chart widget from a template and print its id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var hint *layout.Placement
			if cmd.Flags().Changed("w") || cmd.Flags().Changed("h") ||
				cmd.Flags().Changed("x") || cmd.Flags().Changed("y") {
				hint = &layout.Placement{X: x, Y: y, W: w, H: h}
			}
			var widgetID string
			err := a.mutate(args[0], func(ctrl *controller.Controller) error {
				widget, _, err := ctrl.AddChartWidgetAt(args[1], hint)
				widgetID = widget.ID
				return err
			})
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.out, widgetID)
			return err
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "Column of the new cell")
	cmd.Flags().IntVar(&y, "y", 0, "Row of the new cell")
	cmd.Flags().IntVar(&w, "w", layout.DefaultW, "Width in columns")
	cmd.Flags().IntVar(&h, "h", layout.DefaultH, "Height in rows")
	return cmd
}

func (a *app) removeChartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove-chart <dashboard-id> <widget-id>",
		Short: "Remove a chart widget",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(args[0], func(ctrl *controller.Controller) error {
				return ctrl.DeleteChartWidget(args[1])
			})
		},
	}
}

func (a *app) filterCmd() *cobra.Command {
	var (
		search string
		labels []string
		sortBy string
		topN   int
	)
	cmd := &cobra.Command{
		Use:   "filter <dashboard-id> <widget-id>",
		Short: "Print a widget's dataset after applying a filter",
		Long:  "Runs search, label selection, sort and top-N over the widget's dataset. Nothing is saved.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			order, err := transform.ParseSortOrder(sortBy)
			if err != nil {
				return err
			}
			if topN < 0 {
				return fmt.Errorf("--top must not be negative")
			}
			spec := filter.Spec{SearchText: search, SelectedLabels: labels, SortOrder: order, TopN: topN}

			return a.run(func(ctx context.Context, e *env) error {
				ctrl := e.controller()
				if err := ctrl.Open(ctx, args[0]); err != nil {
					return err
				}
				res, err := ctrl.ApplyFilter(args[1], spec)
				if err != nil {
					return err
				}
				if res.FellBack() {
					fmt.Fprintf(cmd.ErrOrStderr(), "filter failed at %s; showing the unfiltered dataset\n", res.Diagnostic.Step)
				}
				return a.writeJSON(res.Dataset)
			})
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "Keep labels containing this text (case-insensitive)")
	cmd.Flags().StringSliceVar(&labels, "labels", nil, "Keep only these labels, in this order")
	cmd.Flags().StringVar(&sortBy, "sort", "none", "Sort by the first series: asc, desc, none")
	cmd.Flags().IntVar(&topN, "top", 0, "Keep the N highest points")
	return cmd
}

func (a *app) previewCmd() *cobra.Command {
	var outputPath string
	cmd := &cobra.Command{
		Use:   "preview <dashboard-id>",
		Short: "Render a dashboard's layout thumbnail as SVG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(func(ctx context.Context, e *env) error {
				rec, err := e.repo.Get(ctx, args[0])
				if err != nil {
					return err
				}
				svg := preview.SVG(preview.Build(rec.Layout))
				if outputPath != "" {
					if err := os.WriteFile(outputPath, []byte(svg), 0644); err != nil {
						return fmt.Errorf("failed to write output: %w", err)
					}
					return nil
				}
				_, err = fmt.Fprintln(a.out, svg)
				return err
			})
		},
	}
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output file path (default: stdout)")
	return cmd
}

func (a *app) seedCmd() *cobra.Command {
	var name string
	cmd := &cobra.Command{
		Use:   "seed [dashboard-id]",
		Short: "Store a demo dashboard with one chart per template",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := "demo"
			if len(args) == 1 {
				id = args[0]
			}
			return a.run(func(ctx context.Context, e *env) error {
				res, err := bootstrap.SeedDemoDashboard(ctx, e.repo, e.templates, id, name, e.logger)
				if err != nil {
					return err
				}
				if res.Created {
					_, err = fmt.Fprintf(a.out, "seeded %s with %d charts\n", res.ID, res.Charts)
				} else {
					_, err = fmt.Fprintf(a.out, "%s already exists\n", res.ID)
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "Demo Dashboard", "Name of the seeded dashboard")
	return cmd
}
