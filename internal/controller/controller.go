// Package controller drives the list / view / edit lifecycle of one
// dashboard: it loads the record, owns the working copy, routes widget
// and filter actions to the grid and the filter pipeline, and commits the
// result back through the repository on Save.
package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/filter"
	"github.com/platformbuilds/dashboard-core/internal/layout"
	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/render"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/internal/tracing"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// ErrNoDashboard is returned by operations called before Open or Create.
var ErrNoDashboard = errors.New("no dashboard open")

// TemplateSource is the chart template catalog as seen by the controller.
type TemplateSource interface {
	Lookup(id string) (catalog.Template, error)
}

// widgetFilter is the filter panel state of one widget. The source
// dataset stays in the grid; only displayed changes.
type widgetFilter struct {
	spec      filter.Spec
	applied   bool // displayed is set
	displayed models.Dataset
	diag      *filter.Diagnostic
	panelOpen bool
}

// Controller is not safe for concurrent use. Callers sharing one across
// goroutines must serialize access.
type Controller struct {
	repo     repo.DashboardRepo
	catalog  TemplateSource
	pipeline *filter.Pipeline
	logger   logger.Logger
	tracer   *tracing.DashboardTracer
	now      func() time.Time
	newID    func() string
	notify   Notifier

	open         bool
	id           string
	name         string
	createdAt    time.Time
	lastModified time.Time
	grid         *layout.Grid
	editing      bool
	filters      map[string]*widgetFilter
}

type Option func(*Controller)

func WithLogger(l logger.Logger) Option { return func(c *Controller) { c.logger = l } }

func WithClock(now func() time.Time) Option { return func(c *Controller) { c.now = now } }

func WithNotifier(n Notifier) Option { return func(c *Controller) { c.notify = n } }

func WithPipeline(p *filter.Pipeline) Option { return func(c *Controller) { c.pipeline = p } }

// WithIDGenerator sets how Create names new dashboards.
func WithIDGenerator(f func() string) Option { return func(c *Controller) { c.newID = f } }

func New(r repo.DashboardRepo, templates TemplateSource, opts ...Option) *Controller {
	c := &Controller{
		repo:    r,
		catalog: templates,
		now:     time.Now,
		newID:   uuid.NewString,
		notify:  func(Event) {},
		tracer:  tracing.NewDashboardTracer("dashboard-core"),
	}
	for _, o := range opts {
		o(c)
	}
	if c.logger == nil {
		c.logger = logger.NewNop()
	}
	if c.pipeline == nil {
		c.pipeline = filter.New(c.logger)
	}
	return c
}

// Open loads dashboard id in view mode. An id with no stored record gets
// a default record, which is saved right away.
func (c *Controller) Open(ctx context.Context, id string) error {
	ctx, span := c.tracer.StartControllerSpan(ctx, "open", id)
	defer span.End()

	rec, err := c.repo.Get(ctx, id)
	if errors.Is(err, models.ErrNotFound) {
		c.logger.Info("Dashboard not found; creating default", "id", id)
		rec, err = c.repo.Save(ctx, models.NewDefaultRecord(id))
	}
	if err != nil {
		c.tracer.RecordError(span, err)
		return err
	}
	if err := c.load(rec); err != nil {
		c.tracer.RecordError(span, err)
		return err
	}
	c.emit(Event{Kind: EventOpened})
	return nil
}

// Create saves a new default dashboard under a fresh id and opens it.
func (c *Controller) Create(ctx context.Context) (models.Record, error) {
	rec, err := c.repo.Save(ctx, models.NewDefaultRecord(c.newID()))
	if err != nil {
		return models.Record{}, err
	}
	if err := c.load(rec); err != nil {
		return models.Record{}, err
	}
	c.emit(Event{Kind: EventCreated})
	return rec, nil
}

func (c *Controller) load(rec models.Record) error {
	d := rec.ToDashboard()
	g, err := layout.FromDashboard(d.Widgets, d.Layout)
	if err != nil {
		return fmt.Errorf("dashboard %s: %w", rec.ID, err)
	}
	c.open = true
	c.id = d.ID
	c.name = d.Name
	c.createdAt = d.CreatedAt
	c.lastModified = d.LastModified
	c.grid = g
	c.editing = false
	c.filters = make(map[string]*widgetFilter)
	return nil
}

// ID of the open dashboard.
func (c *Controller) ID() string { return c.id }

func (c *Controller) EditMode() bool { return c.editing }

// ToggleEditMode flips between view and edit mode and returns the new mode.
func (c *Controller) ToggleEditMode() (bool, error) {
	if !c.open {
		return false, ErrNoDashboard
	}
	c.editing = !c.editing
	c.emit(Event{Kind: EventEditMode})
	return c.editing, nil
}

func (c *Controller) Rename(name string) error {
	if !c.open {
		return ErrNoDashboard
	}
	c.name = name
	c.emit(Event{Kind: EventRenamed})
	return nil
}

// AddChartWidget adds a widget built from template templateID at the
// default placement.
func (c *Controller) AddChartWidget(templateID string) (models.Widget, models.LayoutCell, error) {
	return c.AddChartWidgetAt(templateID, nil)
}

// AddChartWidgetAt is AddChartWidget with an explicit placement.
func (c *Controller) AddChartWidgetAt(templateID string, hint *layout.Placement) (models.Widget, models.LayoutCell, error) {
	if !c.open {
		return models.Widget{}, models.LayoutCell{}, ErrNoDashboard
	}
	tpl, err := c.catalog.Lookup(templateID)
	if err != nil {
		return models.Widget{}, models.LayoutCell{}, err
	}

	w := tpl.NewWidget(c.widgetID(templateID))
	cell, err := c.grid.AddWidget(w, hint)
	if err != nil {
		return models.Widget{}, models.LayoutCell{}, err
	}
	c.emit(Event{Kind: EventWidgetAdded, WidgetID: w.ID})
	return w.Clone(), cell, nil
}

// widgetID is templateID-unixMillis, bumped until no widget has it.
func (c *Controller) widgetID(templateID string) string {
	ms := c.now().UnixMilli()
	for {
		id := fmt.Sprintf("%s-%d", templateID, ms)
		if _, taken := c.grid.Cell(id); !taken {
			return id
		}
		ms++
	}
}

func (c *Controller) DeleteChartWidget(id string) error {
	if !c.open {
		return ErrNoDashboard
	}
	if err := c.grid.RemoveWidget(id); err != nil {
		return err
	}
	delete(c.filters, id)
	c.emit(Event{Kind: EventWidgetRemoved, WidgetID: id})
	return nil
}

// ApplyLayoutChange replaces the layout with the arrangement reported by
// the drag/resize surface.
func (c *Controller) ApplyLayoutChange(cells []models.LayoutCell) error {
	if !c.open {
		return ErrNoDashboard
	}
	if err := c.grid.ApplyLayoutChange(cells); err != nil {
		return err
	}
	c.emit(Event{Kind: EventLayoutChanged})
	return nil
}

// ApplyFilter runs spec over the widget's source dataset and makes the
// result the displayed dataset. The source is never modified.
func (c *Controller) ApplyFilter(widgetID string, spec filter.Spec) (filter.Result, error) {
	if !c.open {
		return filter.Result{}, ErrNoDashboard
	}
	w, err := c.grid.Widget(widgetID)
	if err != nil {
		return filter.Result{}, err
	}

	res := c.pipeline.Apply(w.Dataset, spec)
	f := c.filterState(widgetID)
	f.spec = spec.Clone()
	f.applied = true
	f.displayed = res.Dataset
	f.diag = res.Diagnostic
	c.emit(Event{Kind: EventFilterApplied, WidgetID: widgetID})
	return res, nil
}

// ResetFilter restores the identity filter for one widget.
func (c *Controller) ResetFilter(widgetID string) (filter.Result, error) {
	if !c.open {
		return filter.Result{}, ErrNoDashboard
	}
	w, err := c.grid.Widget(widgetID)
	if err != nil {
		return filter.Result{}, err
	}

	res := c.pipeline.Reset(w.Dataset)
	f := c.filterState(widgetID)
	f.spec = filter.Spec{}
	f.applied = true
	f.displayed = res.Dataset
	f.diag = res.Diagnostic
	c.emit(Event{Kind: EventFilterReset, WidgetID: widgetID})
	return res, nil
}

// ToggleFilterPanel shows or hides a widget's filter panel and returns
// whether it is now open.
func (c *Controller) ToggleFilterPanel(widgetID string) (bool, error) {
	if !c.open {
		return false, ErrNoDashboard
	}
	if _, err := c.grid.Widget(widgetID); err != nil {
		return false, err
	}
	f := c.filterState(widgetID)
	f.panelOpen = !f.panelOpen
	c.emit(Event{Kind: EventFilterPanel, WidgetID: widgetID})
	return f.panelOpen, nil
}

// FilterOptions lists what the widget's filter panel can offer.
func (c *Controller) FilterOptions(widgetID string) (filter.PanelOptions, error) {
	if !c.open {
		return filter.PanelOptions{}, ErrNoDashboard
	}
	w, err := c.grid.Widget(widgetID)
	if err != nil {
		return filter.PanelOptions{}, err
	}
	return c.pipeline.Options(w.Dataset), nil
}

func (c *Controller) filterState(widgetID string) *widgetFilter {
	f, ok := c.filters[widgetID]
	if !ok {
		f = &widgetFilter{}
		c.filters[widgetID] = f
	}
	return f
}

// Dashboard returns a copy of the working dashboard.
func (c *Controller) Dashboard() models.Dashboard {
	if !c.open {
		return models.Dashboard{}
	}
	return models.Dashboard{
		ID:           c.id,
		Name:         c.name,
		Widgets:      c.grid.Widgets(),
		Layout:       c.grid.Layout(),
		CreatedAt:    c.createdAt,
		LastModified: c.lastModified,
	}
}

// Save commits name, widgets and layout through the repository and
// leaves edit mode. On failure nothing in the working copy changes and
// the repository error is returned.
func (c *Controller) Save(ctx context.Context) error {
	return c.commit(ctx, "save", true)
}

// Persist is Save without leaving edit mode, for background writes such
// as a coalesced layout change.
func (c *Controller) Persist(ctx context.Context) error {
	return c.commit(ctx, "persist", false)
}

func (c *Controller) commit(ctx context.Context, action string, leaveEdit bool) error {
	if !c.open {
		return ErrNoDashboard
	}
	ctx, span := c.tracer.StartControllerSpan(ctx, action, c.id)
	defer span.End()

	saved, err := c.repo.Save(ctx, c.Dashboard().ToRecord())
	if err != nil {
		c.tracer.RecordError(span, err)
		c.logger.Error("Failed to save dashboard", "id", c.id, "action", action, "error", err)
		c.emit(Event{Kind: EventSaveFailed, Err: err})
		return err
	}

	c.createdAt = saved.CreatedAt
	c.lastModified = saved.LastModified
	if leaveEdit {
		c.editing = false
	}
	c.emit(Event{Kind: EventSaved})
	return nil
}

func (c *Controller) emit(e Event) {
	e.DashboardID = c.id
	c.notify(e)
}

// WidgetView is one widget as the dashboard should currently show it.
type WidgetView struct {
	ID         string                `json:"id"`
	Kind       models.ChartKind      `json:"type"`
	Cell       models.LayoutCell     `json:"cell"`
	Options    models.DisplayOptions `json:"options"`
	Displayed  models.Dataset        `json:"data"`
	Filter     filter.Spec           `json:"filter"`
	PanelOpen  bool                  `json:"filterPanelOpen"`
	Diagnostic string                `json:"filterDiagnostic,omitempty"`
	Chart      *render.Payload       `json:"chart,omitempty"`
	RenderErr  string                `json:"renderError,omitempty"`
}

// View is the full render state of the open dashboard.
type View struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Editing      bool                `json:"editing"`
	CreatedAt    time.Time           `json:"createdAt"`
	LastModified time.Time           `json:"lastModified"`
	Layout       []models.LayoutCell `json:"layout"`
	Widgets      []WidgetView        `json:"widgets"`
}

// View builds the render state, widgets in layout order.
func (c *Controller) View() View {
	if !c.open {
		return View{}
	}
	v := View{
		ID:           c.id,
		Name:         c.name,
		Editing:      c.editing,
		CreatedAt:    c.createdAt,
		LastModified: c.lastModified,
		Layout:       c.grid.Layout(),
		Widgets:      make([]WidgetView, 0, c.grid.Len()),
	}
	for _, cell := range v.Layout {
		w, err := c.grid.Widget(cell.WidgetID)
		if err != nil {
			continue
		}
		wv := WidgetView{ID: w.ID, Kind: w.Kind, Cell: cell, Options: w.Options, Displayed: w.Dataset}
		if f, ok := c.filters[w.ID]; ok {
			wv.PanelOpen = f.panelOpen
			wv.Filter = f.spec.Clone()
			if f.applied {
				wv.Displayed = f.displayed.Clone()
			}
			if f.diag != nil {
				wv.Diagnostic = f.diag.Error()
			}
		}
		if p, err := render.Widget(w, wv.Displayed); err != nil {
			wv.RenderErr = err.Error()
		} else {
			wv.Chart = &p
		}
		v.Widgets = append(v.Widgets, wv)
	}
	return v
}
