package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/dashboard-core/internal/api/middleware"
	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/controller"
	"github.com/platformbuilds/dashboard-core/internal/filter"
	"github.com/platformbuilds/dashboard-core/internal/layout"
	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/preview"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/internal/transform"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// Templates is the catalog surface the API needs.
type Templates interface {
	controller.TemplateSource
	List() []catalog.Template
}

// DashboardHandler serves the dashboard list, view and edit operations.
// Every request loads the stored record into a fresh controller, so no
// working copy outlives a request; mutating requests save before they
// answer.
type DashboardHandler struct {
	repo      repo.DashboardRepo
	templates Templates
	locks     *DashboardLocks
	logger    logger.Logger
}

func NewDashboardHandler(r repo.DashboardRepo, t Templates, locks *DashboardLocks, l logger.Logger) *DashboardHandler {
	return &DashboardHandler{repo: r, templates: t, locks: locks, logger: l}
}

type RenameRequest struct {
	Name string `json:"name"`
}

type AddWidgetRequest struct {
	TemplateID string            `json:"templateId" binding:"required"`
	Placement  *layout.Placement `json:"placement,omitempty"`
}

type LayoutRequest struct {
	Layout []models.LayoutCell `json:"layout" binding:"required"`
}

type AddWidgetResponse struct {
	Widget    models.Widget     `json:"widget"`
	Cell      models.LayoutCell `json:"cell"`
	Dashboard controller.View   `json:"dashboard"`
}

type FilterResponse struct {
	WidgetID   string         `json:"widgetId"`
	Data       models.Dataset `json:"data"`
	FellBack   bool           `json:"fellBack"`
	Diagnostic string         `json:"diagnostic,omitempty"`
}

func (h *DashboardHandler) newController() *controller.Controller {
	return controller.New(h.repo, h.templates, controller.WithLogger(h.logger))
}

// withDashboard opens :id under the dashboard lock and runs fn. Missing
// ids are synthesized with the default record, as opening one would.
func (h *DashboardHandler) withDashboard(c *gin.Context, fn func(ctx context.Context, ctrl *controller.Controller) error) bool {
	id := c.Param("id")
	c.Set("dashboard_id", id)

	unlock := h.locks.Lock(id)
	defer unlock()

	ctx := c.Request.Context()
	ctrl := h.newController()
	if err := ctrl.Open(ctx, id); err != nil {
		_ = c.Error(err)
		return false
	}
	if err := fn(ctx, ctrl); err != nil {
		_ = c.Error(err)
		return false
	}
	return true
}

// GET /api/v1/templates
func (h *DashboardHandler) ListTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"templates": h.templates.List()})
}

// GET /api/v1/dashboards - list summaries with previews
func (h *DashboardHandler) ListDashboards(c *gin.Context) {
	records, err := h.repo.List(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	summaries := make([]preview.Summary, 0, len(records))
	for _, r := range records {
		summaries = append(summaries, preview.Summarize(r))
	}
	c.JSON(http.StatusOK, gin.H{"dashboards": summaries, "total": len(summaries)})
}

// POST /api/v1/dashboards - create a default dashboard under a new id
func (h *DashboardHandler) CreateDashboard(c *gin.Context) {
	ctrl := h.newController()
	rec, err := ctrl.Create(c.Request.Context())
	if err != nil {
		_ = c.Error(err)
		return
	}
	h.logger.Info("Dashboard created", "id", rec.ID)
	c.JSON(http.StatusCreated, ctrl.View())
}

// GET /api/v1/dashboards/:id - open in view mode
func (h *DashboardHandler) GetDashboard(c *gin.Context) {
	var view controller.View
	if !h.withDashboard(c, func(_ context.Context, ctrl *controller.Controller) error {
		view = ctrl.View()
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, view)
}

// GET /api/v1/dashboards/:id/preview.svg - list thumbnail. Unlike opening,
// a missing id is not synthesized.
func (h *DashboardHandler) GetPreview(c *gin.Context) {
	rec, err := h.repo.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Header("Cache-Control", "no-cache")
	c.Data(http.StatusOK, "image/svg+xml", []byte(preview.SVG(preview.Build(rec.Layout))))
}

// PUT /api/v1/dashboards/:id/name
func (h *DashboardHandler) RenameDashboard(c *gin.Context) {
	var req RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.BadRequest(err))
		return
	}
	h.mutate(c, func(ctrl *controller.Controller) error {
		return ctrl.Rename(strings.TrimSpace(req.Name))
	})
}

// DELETE /api/v1/dashboards/:id?confirm=1 - the list view asks before
// deleting; requests without the confirmation are refused.
func (h *DashboardHandler) DeleteDashboard(c *gin.Context) {
	if c.Query("confirm") != "1" && c.Query("confirm") != "true" {
		_ = c.Error(middleware.ErrConfirmationRequired)
		return
	}
	id := c.Param("id")
	c.Set("dashboard_id", id)

	unlock := h.locks.Lock(id)
	defer unlock()

	res, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if res.Deleted {
		h.logger.Info("Dashboard deleted", "id", id)
	}
	c.JSON(http.StatusOK, res)
}

// POST /api/v1/dashboards/:id/widgets - add a chart from a template
func (h *DashboardHandler) AddWidget(c *gin.Context) {
	var req AddWidgetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.BadRequest(err))
		return
	}

	var resp AddWidgetResponse
	if !h.withDashboard(c, func(ctx context.Context, ctrl *controller.Controller) error {
		w, cell, err := ctrl.AddChartWidgetAt(req.TemplateID, req.Placement)
		if err != nil {
			return err
		}
		if err := ctrl.Save(ctx); err != nil {
			return err
		}
		resp = AddWidgetResponse{Widget: w, Cell: cell, Dashboard: ctrl.View()}
		return nil
	}) {
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// DELETE /api/v1/dashboards/:id/widgets/:widgetId
func (h *DashboardHandler) RemoveWidget(c *gin.Context) {
	widgetID := c.Param("widgetId")
	h.mutate(c, func(ctrl *controller.Controller) error {
		return ctrl.DeleteChartWidget(widgetID)
	})
}

// PUT /api/v1/dashboards/:id/layout - replace the whole layout
func (h *DashboardHandler) UpdateLayout(c *gin.Context) {
	var req LayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(middleware.BadRequest(err))
		return
	}
	h.mutate(c, func(ctrl *controller.Controller) error {
		return ctrl.ApplyLayoutChange(req.Layout)
	})
}

// POST /api/v1/dashboards/:id/widgets/:widgetId/filter - the filtered
// dataset is returned, never persisted.
func (h *DashboardHandler) ApplyFilter(c *gin.Context) {
	var spec filter.Spec
	if err := c.ShouldBindJSON(&spec); err != nil {
		_ = c.Error(middleware.BadRequest(err))
		return
	}
	order, err := transform.ParseSortOrder(string(spec.SortOrder))
	if err != nil {
		_ = c.Error(middleware.BadRequest(err))
		return
	}
	spec.SortOrder = order

	widgetID := c.Param("widgetId")
	var res filter.Result
	if !h.withDashboard(c, func(_ context.Context, ctrl *controller.Controller) error {
		res, err = ctrl.ApplyFilter(widgetID, spec)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, filterResponse(widgetID, res))
}

// DELETE /api/v1/dashboards/:id/widgets/:widgetId/filter
func (h *DashboardHandler) ResetFilter(c *gin.Context) {
	widgetID := c.Param("widgetId")
	var res filter.Result
	if !h.withDashboard(c, func(_ context.Context, ctrl *controller.Controller) (err error) {
		res, err = ctrl.ResetFilter(widgetID)
		return err
	}) {
		return
	}
	c.JSON(http.StatusOK, filterResponse(widgetID, res))
}

// mutate applies fn, saves and answers with the saved view.
func (h *DashboardHandler) mutate(c *gin.Context, fn func(ctrl *controller.Controller) error) {
	var view controller.View
	if !h.withDashboard(c, func(ctx context.Context, ctrl *controller.Controller) error {
		if err := fn(ctrl); err != nil {
			return err
		}
		if err := ctrl.Save(ctx); err != nil {
			return err
		}
		view = ctrl.View()
		return nil
	}) {
		return
	}
	c.JSON(http.StatusOK, view)
}

func filterResponse(widgetID string, res filter.Result) FilterResponse {
	out := FilterResponse{WidgetID: widgetID, Data: res.Dataset, FellBack: res.FellBack()}
	if res.Diagnostic != nil {
		out.Diagnostic = res.Diagnostic.Error()
	}
	return out
}
