package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/platformbuilds/dashboard-core/internal/bootstrap"
	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/config"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// main seeds the demo dashboard into the configured record store
func main() {
	id := flag.String("id", "demo", "id of the dashboard to seed")
	name := flag.String("name", "Demo Dashboard", "name of the seeded dashboard")
	timeout := flag.Duration("timeout", 30*time.Second, "overall timeout")
	flag.Parse()

	log.Println("🚀 Starting DASHBOARD-CORE demo bootstrap")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)
	logger.Info("Demo bootstrap initializing", "environment", cfg.Environment, "backend", cfg.Store.Backend)

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	recordStore, err := bootstrap.OpenStore(ctx, cfg.Store, logger)
	if err != nil {
		log.Fatalf("Failed to open record store: %v", err)
	}
	defer recordStore.Close()

	if err := recordStore.HealthCheck(ctx); err != nil {
		log.Fatalf("Record store not ready: %v", err)
	}
	logger.Info("Record store ready", "backend", recordStore.Backend())

	templates, err := catalog.Load(cfg.Catalog.Path, logger)
	if err != nil {
		log.Fatalf("Failed to load chart templates: %v", err)
	}

	dashboards := repo.NewDefaultDashboardRepo(recordStore, logger, repo.WithLockTTL(cfg.Store.LockTTL))

	res, err := bootstrap.SeedDemoDashboard(ctx, dashboards, templates, *id, *name, logger)
	if err != nil {
		log.Fatalf("❌ Bootstrap failed: %v", err)
	}

	if res.Created {
		log.Printf("✅ Seeded dashboard %q with %d charts", res.ID, res.Charts)
	} else {
		log.Printf("ℹ️  Dashboard %q already exists (%d charts); nothing to do", res.ID, res.Charts)
	}
}
