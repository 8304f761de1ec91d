package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platformbuilds/dashboard-core/internal/api"
	"github.com/platformbuilds/dashboard-core/internal/bootstrap"
	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/internal/tracing"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("Starting DASHBOARD-CORE", "version", monitoring.Version, "environment", cfg.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := tracing.NewTracerProvider(cfg.Tracing.ServiceName, monitoring.Version, cfg.Tracing.OTLPEndpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracing", "error", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tp.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Tracer shutdown failed", "error", err)
			}
		}()
		logger.Info("Tracing enabled", "endpoint", cfg.Tracing.OTLPEndpoint)
	}

	recordStore, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		logger.Fatal("Failed to initialize record store", "backend", cfg.Store.Backend, "error", err)
	}
	defer recordStore.Close()
	logger.Info("Record store initialized", "backend", recordStore.Backend())

	dashboards := repo.NewDefaultDashboardRepo(recordStore, logger, repo.WithLockTTL(cfg.Store.LockTTL))

	templates, err := catalog.Load(cfg.Catalog.Path, logger)
	if err != nil {
		logger.Fatal("Failed to load chart templates", "path", cfg.Catalog.Path, "error", err)
	}
	logger.Info("Chart templates loaded", "count", len(templates.List()))

	apiServer := api.NewServer(cfg, logger, recordStore, dashboards, templates)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return apiServer.Start(ctx) })

	if cfg.Catalog.Watch && cfg.Catalog.Path != "" {
		g.Go(func() error { return templates.Watch(ctx) })
	}

	if path := config.ConfigFileUsed(); path != "" {
		watcher := config.NewConfigWatcher(path, cfg, logger)
		watcher.RegisterWatcher(func(next *config.Config) {
			for _, field := range restartRequired(cfg, next) {
				logger.Warn("Configuration change takes effect after restart", "field", field)
			}
		})
		g.Go(func() error { return watcher.Start(ctx) })
	}

	if err := g.Wait(); err != nil {
		logger.Error("DASHBOARD-CORE stopped with error", "error", err)
		os.Exit(1)
	}

	logger.Info("DASHBOARD-CORE shutdown complete")
}

// restartRequired lists the settings that differ between cur and next
// and are only read at startup.
func restartRequired(cur, next *config.Config) []string {
	var fields []string
	if cur.Port != next.Port {
		fields = append(fields, "port")
	}
	if cur.LogLevel != next.LogLevel {
		fields = append(fields, "log_level")
	}
	if cur.Store.Backend != next.Store.Backend || cur.Store.BoltPath != next.Store.BoltPath ||
		cur.Store.Valkey.Addr != next.Store.Valkey.Addr || len(cur.Store.Valkey.Nodes) != len(next.Store.Valkey.Nodes) {
		fields = append(fields, "store")
	}
	if cur.Catalog != next.Catalog {
		fields = append(fields, "catalog")
	}
	if cur.Tracing != next.Tracing {
		fields = append(fields, "tracing")
	}
	return fields
}
