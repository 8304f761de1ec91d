package controller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashboard-core/internal/catalog"
	"github.com/platformbuilds/dashboard-core/internal/filter"
	"github.com/platformbuilds/dashboard-core/internal/layout"
	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/repo"
	"github.com/platformbuilds/dashboard-core/internal/transform"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
	"github.com/platformbuilds/dashboard-core/pkg/store"
)

// failingRepo lets Save fail on demand and otherwise uses a real repo.
type failingRepo struct {
	repo.DashboardRepo
	failSave error
}

func (f *failingRepo) Save(ctx context.Context, r models.Record) (models.Record, error) {
	if f.failSave != nil {
		return models.Record{}, f.failSave
	}
	return f.DashboardRepo.Save(ctx, r)
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) notify(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

func (r *recorder) kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

type env struct {
	repo  *failingRepo
	ctrl  *Controller
	clock *time.Time
	rec   *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &now
	nowFn := func() time.Time { return *clock }

	base := repo.NewDefaultDashboardRepo(store.NewMemoryStore(nil), logger.NewNop(), repo.WithClock(nowFn))
	fr := &failingRepo{DashboardRepo: base}
	cat, err := catalog.New(nil)
	require.NoError(t, err)

	rec := &recorder{}
	n := 0
	ctrl := New(fr, cat,
		WithClock(nowFn),
		WithNotifier(rec.notify),
		WithLogger(logger.NewNop()),
		WithIDGenerator(func() string { n++; return "dash-" + string(rune('0'+n)) }),
	)
	return &env{repo: fr, ctrl: ctrl, clock: clock, rec: rec}
}

func TestOpen_SynthesizesDefault(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	require.NoError(t, e.ctrl.Open(ctx, "d1"))
	d := e.ctrl.Dashboard()
	assert.Equal(t, "d1", d.ID)
	assert.Equal(t, models.DefaultDashboardName, d.Name)
	assert.Empty(t, d.Widgets)
	assert.Empty(t, d.Layout)
	assert.False(t, e.ctrl.EditMode())

	stored, err := e.repo.Get(ctx, "d1")
	require.NoError(t, err, "default record is saved on first open")
	assert.Equal(t, stored.CreatedAt, stored.LastModified)
}

func TestCreate(t *testing.T) {
	e := newEnv(t)
	rec, err := e.ctrl.Create(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "dash-1", rec.ID)
	assert.Equal(t, "dash-1", e.ctrl.ID())
	assert.Equal(t, []EventKind{EventCreated}, e.rec.kinds())
}

func TestOperationsBeforeOpen(t *testing.T) {
	e := newEnv(t)
	_, err := e.ctrl.ToggleEditMode()
	assert.ErrorIs(t, err, ErrNoDashboard)
	_, _, err = e.ctrl.AddChartWidget("monthly-sales")
	assert.ErrorIs(t, err, ErrNoDashboard)
	assert.ErrorIs(t, e.ctrl.Save(context.Background()), ErrNoDashboard)
}

// Scenario C: save a new dashboard, read it back, save again with a new
// name.
func TestSaveRoundTripPreservesCreatedAt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.ctrl.Open(ctx, "sales"))

	_, _, err := e.ctrl.AddChartWidget("monthly-sales")
	require.NoError(t, err)
	require.NoError(t, e.ctrl.Rename("Sales Overview"))
	require.NoError(t, e.ctrl.Save(ctx))

	first, err := e.repo.Get(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, "Sales Overview", first.Name)
	assert.Equal(t, first.CreatedAt, first.LastModified)
	want := e.ctrl.Dashboard().ToRecord()
	assert.Equal(t, want.Layout, first.Layout)
	assert.Equal(t, want.Charts, first.Charts)

	*e.clock = e.clock.Add(time.Minute)
	require.NoError(t, e.ctrl.Rename("Sales 2025"))
	require.NoError(t, e.ctrl.Save(ctx))

	second, err := e.repo.Get(ctx, "sales")
	require.NoError(t, err)
	assert.Equal(t, "Sales 2025", second.Name)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.LastModified.After(first.LastModified))
	assert.Equal(t, second.LastModified, e.ctrl.Dashboard().LastModified)

	// reopening yields the saved working copy
	other := New(e.repo, mustCatalog(t))
	require.NoError(t, other.Open(ctx, "sales"))
	assert.Equal(t, "Sales 2025", other.Dashboard().Name)
	assert.Len(t, other.Dashboard().Widgets, 1)
}

func mustCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New(nil)
	require.NoError(t, err)
	return c
}

func TestSaveLeavesEditMode(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.ctrl.Open(ctx, "d"))

	on, err := e.ctrl.ToggleEditMode()
	require.NoError(t, err)
	require.True(t, on)
	require.NoError(t, e.ctrl.Save(ctx))
	assert.False(t, e.ctrl.EditMode())
}

func TestSaveFailureLeavesStateIntact(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.ctrl.Open(ctx, "d"))
	_, err := e.ctrl.ToggleEditMode()
	require.NoError(t, err)
	_, _, err = e.ctrl.AddChartWidget("product-performance")
	require.NoError(t, err)
	before := e.ctrl.Dashboard()

	e.repo.failSave = &models.PersistenceError{Op: "save", Err: errors.New("store down")}
	err = e.ctrl.Save(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrPersistence))

	assert.Equal(t, before, e.ctrl.Dashboard())
	assert.True(t, e.ctrl.EditMode(), "failed save stays in edit mode")
	kinds := e.rec.kinds()
	assert.Equal(t, EventSaveFailed, kinds[len(kinds)-1])

	stored, err := e.repo.Get(ctx, "d")
	require.NoError(t, err)
	assert.Empty(t, stored.Charts)
}

func TestAddChartWidget(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.Open(context.Background(), "d"))

	w, cell, err := e.ctrl.AddChartWidget("revenue-distribution")
	require.NoError(t, err)
	assert.Equal(t, "revenue-distribution-1740823200000", w.ID)
	assert.Equal(t, models.ChartPie, w.Kind)
	assert.Equal(t, "Revenue distribution", w.Options.Plugins.Title.Text)
	assert.Equal(t, w.ID, cell.WidgetID)
	assert.Equal(t, 0, cell.X)
	assert.Equal(t, layout.DefaultW, cell.W)

	// same millisecond: the id is bumped
	w2, cell2, err := e.ctrl.AddChartWidget("revenue-distribution")
	require.NoError(t, err)
	assert.Equal(t, "revenue-distribution-1740823200001", w2.ID)
	assert.Equal(t, 2, cell2.X)
	assert.Equal(t, 3, cell2.Y)

	// widgets own their data
	w.Dataset.Labels[0] = "changed"
	got := e.ctrl.Dashboard().Widgets[w.ID]
	assert.Equal(t, "E-commerce", got.Dataset.Labels[0])

	_, _, err = e.ctrl.AddChartWidget("nope")
	assert.ErrorIs(t, err, models.ErrUnknownTemplate)

	_, _, err = e.ctrl.AddChartWidgetAt("monthly-sales", &layout.Placement{X: 11, Y: 0, W: 6, H: 3})
	assert.ErrorIs(t, err, models.ErrInvalidGridDimensions)
	assert.Len(t, e.ctrl.Dashboard().Widgets, 2)
}

// Scenario D: removing an unknown widget fails and changes nothing.
func TestDeleteChartWidget(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.Open(context.Background(), "d"))
	w, _, err := e.ctrl.AddChartWidget("monthly-sales")
	require.NoError(t, err)
	before := e.ctrl.Dashboard()

	err = e.ctrl.DeleteChartWidget("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
	assert.Equal(t, before, e.ctrl.Dashboard())

	_, err = e.ctrl.ApplyFilter(w.ID, filter.Spec{TopN: 3})
	require.NoError(t, err)
	require.NoError(t, e.ctrl.DeleteChartWidget(w.ID))
	assert.Empty(t, e.ctrl.Dashboard().Widgets)
	assert.Empty(t, e.ctrl.Dashboard().Layout)
	assert.Empty(t, e.ctrl.View().Widgets)
}

func TestApplyFilter_ReplacesDisplayedOnly(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.Open(context.Background(), "d"))
	w, _, err := e.ctrl.AddChartWidget("product-performance")
	require.NoError(t, err)

	res, err := e.ctrl.ApplyFilter(w.ID, filter.Spec{SearchText: "smart", SortOrder: transform.SortDescending})
	require.NoError(t, err)
	require.False(t, res.FellBack())
	assert.Equal(t, []string{"Smartphone X", "Smart TV", "Smart Speaker", "Smart Watch"}, res.Dataset.Labels)

	source := e.ctrl.Dashboard().Widgets[w.ID]
	assert.Len(t, source.Dataset.Labels, 15, "source dataset is never filtered")

	v := e.ctrl.View()
	require.Len(t, v.Widgets, 1)
	assert.Equal(t, res.Dataset.Labels, v.Widgets[0].Displayed.Labels)
	assert.Equal(t, "smart", v.Widgets[0].Filter.SearchText)
	require.NotNil(t, v.Widgets[0].Chart)
	assert.Equal(t, "bar", v.Widgets[0].Chart.Type)

	reset, err := e.ctrl.ResetFilter(w.ID)
	require.NoError(t, err)
	assert.True(t, reset.Dataset.Equal(source.Dataset))
	assert.Len(t, e.ctrl.View().Widgets[0].Displayed.Labels, 15)

	_, err = e.ctrl.ApplyFilter("missing", filter.Spec{})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestApplyFilter_EmptyMatchIsDisplayed(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.Open(context.Background(), "d"))
	w, _, err := e.ctrl.AddChartWidget("market-share")
	require.NoError(t, err)

	_, err = e.ctrl.ApplyFilter(w.ID, filter.Spec{SearchText: "zzz"})
	require.NoError(t, err)
	assert.Empty(t, e.ctrl.View().Widgets[0].Displayed.Labels)
}

func TestToggleFilterPanel(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.Open(context.Background(), "d"))
	w, _, err := e.ctrl.AddChartWidget("market-share")
	require.NoError(t, err)

	open, err := e.ctrl.ToggleFilterPanel(w.ID)
	require.NoError(t, err)
	assert.True(t, open)
	assert.True(t, e.ctrl.View().Widgets[0].PanelOpen)

	open, err = e.ctrl.ToggleFilterPanel(w.ID)
	require.NoError(t, err)
	assert.False(t, open)

	_, err = e.ctrl.ToggleFilterPanel("missing")
	assert.ErrorIs(t, err, models.ErrNotFound)

	opts, err := e.ctrl.FilterOptions(w.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, opts.MaxTopN)
}

func TestApplyLayoutChange(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.ctrl.Open(context.Background(), "d"))
	w, _, err := e.ctrl.AddChartWidget("market-share")
	require.NoError(t, err)

	cells := []models.LayoutCell{{WidgetID: w.ID, X: 6, Y: 0, W: 6, H: 4}}
	require.NoError(t, e.ctrl.ApplyLayoutChange(cells))
	assert.Equal(t, 6, e.ctrl.Dashboard().Layout[0].X)

	err = e.ctrl.ApplyLayoutChange([]models.LayoutCell{{WidgetID: "ghost", X: 0, Y: 0, W: 6, H: 3}})
	assert.ErrorIs(t, err, models.ErrLayoutMismatch)
	assert.Equal(t, 6, e.ctrl.Dashboard().Layout[0].X)
}

func TestNotifierSeesEveryMutation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	require.NoError(t, e.ctrl.Open(ctx, "d"))
	_, err := e.ctrl.ToggleEditMode()
	require.NoError(t, err)
	w, _, err := e.ctrl.AddChartWidget("market-share")
	require.NoError(t, err)
	_, err = e.ctrl.ApplyFilter(w.ID, filter.Spec{TopN: 2})
	require.NoError(t, err)
	require.NoError(t, e.ctrl.Rename("x"))
	require.NoError(t, e.ctrl.Save(ctx))

	assert.Equal(t, []EventKind{
		EventOpened, EventEditMode, EventWidgetAdded, EventFilterApplied, EventRenamed, EventSaved,
	}, e.rec.kinds())
	for _, ev := range e.rec.events {
		assert.Equal(t, "d", ev.DashboardID)
	}
}

func TestOpen_CorruptRecordFails(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore(nil)
	require.NoError(t, s.Set(ctx, repo.DashboardsKey,
		`[{"id":"bad","name":"x","layout":[{"i":"ghost","x":0,"y":0,"w":6,"h":3}],"charts":{}}]`, 0))
	c := New(repo.NewDefaultDashboardRepo(s, nil), mustCatalog(t))
	err := c.Open(ctx, "bad")
	assert.ErrorIs(t, err, models.ErrLayoutMismatch)
}
