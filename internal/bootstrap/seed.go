package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/controller"
	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// TemplateCatalog lists and resolves chart templates.
type TemplateCatalog interface {
	controller.TemplateSource
	List() []catalog.Template
}

// SeedResult reports what SeedDemoDashboard did.
type SeedResult struct {
	ID      string
	Created bool
	Charts  int
}

// SeedDemoDashboard stores dashboard id with one widget per catalog
// template, named name. It is idempotent: an existing dashboard with id
// is left untouched, whatever it contains.
func SeedDemoDashboard(ctx context.Context, r repo.DashboardRepo, templates TemplateCatalog, id, name string, log logger.Logger) (SeedResult, error) {
	if log == nil {
		log = logger.NewNop()
	}
	res := SeedResult{ID: id}

	existing, err := r.Get(ctx, id)
	if err == nil {
		res.Charts = len(existing.Charts)
		log.Info("Demo dashboard already present; skipping seed", "id", id, "charts", res.Charts)
		return res, nil
	}
	if !errors.Is(err, models.ErrNotFound) {
		return res, err
	}

	ctrl := controller.New(r, templates, controller.WithLogger(log))
	if err := ctrl.Open(ctx, id); err != nil {
		return res, err
	}
	if name != "" {
		if err := ctrl.Rename(name); err != nil {
			return res, err
		}
	}
	for _, t := range templates.List() {
		if _, _, err := ctrl.AddChartWidget(t.ID); err != nil {
			return res, fmt.Errorf("seed template %s: %w", t.ID, err)
		}
		res.Charts++
	}
	if err := ctrl.Save(ctx); err != nil {
		log.Error("failed to save demo dashboard", "id", id, "error", err)
		return res, err
	}

	res.Created = true
	log.Info("Demo dashboard seeded", "id", id, "charts", res.Charts)
	return res, nil
}
