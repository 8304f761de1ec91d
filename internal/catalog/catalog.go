// Package catalog holds the chart templates a dashboard can add widgets
// from. Templates are immutable: every lookup hands out a deep copy.
package catalog

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

//go:embed templates.yaml
var builtinTemplates []byte

// Template is one entry of the chart picker.
type Template struct {
	ID      string                `json:"id" yaml:"id"`
	Name    string                `json:"name" yaml:"name"`
	Kind    models.ChartKind      `json:"type" yaml:"type"`
	DataKey string                `json:"dataKey,omitempty" yaml:"dataKey"`
	Options models.DisplayOptions `json:"options" yaml:"options"`
	Dataset models.Dataset        `json:"data" yaml:"data"`
}

func (t Template) Clone() Template {
	t.Dataset = t.Dataset.Clone()
	return t
}

// NewWidget instantiates the template as a widget with its own copy of
// the dataset.
func (t Template) NewWidget(id string) models.Widget {
	return models.Widget{ID: id, Kind: t.Kind, Options: t.Options, Dataset: t.Dataset.Clone()}
}

// templateFile is the YAML layout of both the embedded catalog and
// override files.
type templateFile struct {
	Templates []templateEntry `yaml:"templates"`
}

type templateEntry struct {
	ID      string                 `yaml:"id"`
	Name    string                 `yaml:"name"`
	Kind    models.ChartKind       `yaml:"type"`
	DataKey string                 `yaml:"dataKey"`
	Options *models.DisplayOptions `yaml:"options"`
	Data    *models.Dataset        `yaml:"data"`
	Source  *WorkbookSource        `yaml:"source"`
}

// Catalog is safe for concurrent use; Reload swaps the whole template set.
type Catalog struct {
	mu        sync.RWMutex
	templates []Template
	path      string
	logger    logger.Logger
}

// New returns the built-in catalog.
func New(log logger.Logger) (*Catalog, error) {
	return Load("", log)
}

// Load returns the built-in catalog with the templates of the file at
// path layered on top. An empty path means built-ins only.
func Load(path string, log logger.Logger) (*Catalog, error) {
	if log == nil {
		log = logger.NewNop()
	}
	c := &Catalog{path: path, logger: log}
	templates, err := c.build()
	if err != nil {
		return nil, err
	}
	c.templates = templates
	return c, nil
}

// Reload re-reads the override file. On failure the current templates
// stay in place.
func (c *Catalog) Reload() error {
	templates, err := c.build()
	monitoring.RecordCatalogReload(err == nil)
	if err != nil {
		c.logger.Error("Chart template reload failed; keeping previous catalog", "path", c.path, "error", err)
		return err
	}
	c.mu.Lock()
	c.templates = templates
	c.mu.Unlock()
	c.logger.Info("Chart templates reloaded", "path", c.path, "count", len(templates))
	return nil
}

// Watch reloads the catalog whenever the override file changes. It blocks
// until ctx is done; without an override file it returns at once.
func (c *Catalog) Watch(ctx context.Context) error {
	if c.path == "" {
		return nil
	}
	w := config.NewFileWatcher(c.path, c.logger)
	w.OnChange(func(string) { _ = c.Reload() })
	return w.Start(ctx)
}

// Lookup returns a copy of the template with id.
func (c *Catalog) Lookup(id string) (Template, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.templates {
		if t.ID == id {
			return t.Clone(), nil
		}
	}
	return Template{}, fmt.Errorf("%w: %s", models.ErrUnknownTemplate, id)
}

// List returns copies of every template in declared order.
func (c *Catalog) List() []Template {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Template, len(c.templates))
	for i, t := range c.templates {
		out[i] = t.Clone()
	}
	return out
}

func (c *Catalog) build() ([]Template, error) {
	templates, err := parse(builtinTemplates, "")
	if err != nil {
		return nil, fmt.Errorf("built-in templates: %w", err)
	}
	if c.path == "" {
		return templates, nil
	}

	b, err := os.ReadFile(c.path)
	if err != nil {
		return nil, fmt.Errorf("read template file: %w", err)
	}
	overrides, err := parse(b, filepath.Dir(c.path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.path, err)
	}
	return merge(templates, overrides), nil
}

// parse decodes and validates a template file. Relative workbook paths
// resolve against baseDir.
func parse(b []byte, baseDir string) ([]Template, error) {
	var f templateFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode templates: %w", err)
	}

	seen := make(map[string]struct{}, len(f.Templates))
	out := make([]Template, 0, len(f.Templates))
	for i, e := range f.Templates {
		t, err := e.resolve(baseDir)
		if err != nil {
			return nil, fmt.Errorf("template %d (%s): %w", i, e.ID, err)
		}
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("template %s declared twice", t.ID)
		}
		seen[t.ID] = struct{}{}
		out = append(out, t)
	}
	return out, nil
}

func (e templateEntry) resolve(baseDir string) (Template, error) {
	if e.ID == "" {
		return Template{}, models.ErrEmptyID
	}
	if !e.Kind.Valid() {
		return Template{}, models.ErrUnknownChartKind
	}

	t := Template{ID: e.ID, Name: e.Name, Kind: e.Kind, DataKey: e.DataKey}
	if t.Name == "" {
		t.Name = e.ID
	}
	if e.Options != nil {
		t.Options = *e.Options
	} else {
		t.Options = models.DefaultDisplayOptions(t.Name)
	}
	if err := t.Options.Validate(); err != nil {
		return Template{}, err
	}

	switch {
	case e.Data != nil && e.Source != nil:
		return Template{}, fmt.Errorf("data and source are mutually exclusive")
	case e.Data != nil:
		t.Dataset = *e.Data
	case e.Source != nil:
		src := *e.Source
		if src.Workbook != "" && !filepath.IsAbs(src.Workbook) && baseDir != "" {
			src.Workbook = filepath.Join(baseDir, src.Workbook)
		}
		d, err := src.Read()
		if err != nil {
			return Template{}, err
		}
		t.Dataset = d
	default:
		return Template{}, fmt.Errorf("template needs data or a workbook source")
	}

	if err := t.Dataset.Validate(); err != nil {
		return Template{}, err
	}
	return t, nil
}

// merge replaces base templates by id and appends new ones.
func merge(base, overrides []Template) []Template {
	out := append([]Template(nil), base...)
	for _, o := range overrides {
		replaced := false
		for i := range out {
			if out[i].ID == o.ID {
				out[i] = o
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, o)
		}
	}
	return out
}
