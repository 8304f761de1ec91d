// Package layout owns the widget set of a dashboard and its placement on
// the 12-column grid.
//
// The grid keeps the widget ids and the layout cell ids identical at all
// times: every mutation either commits both sides or neither. Placement
// beyond that (no overlap, 12 columns) is enforced by the drag/resize
// surface that reports layouts back; the model never compacts rows.
package layout

import (
	"fmt"

	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/monitoring"
)

// Defaults for cells created without an explicit placement.
const (
	DefaultW    = 6
	DefaultH    = 3
	DefaultMinW = 4
	DefaultMaxW = models.GridColumns
	DefaultMinH = 3
	columnStep  = 2
)

// Placement overrides the default position and size of a new cell.
type Placement struct {
	X, Y, W, H int
}

// Grid is the (widgets, layout) state of one dashboard. It is not safe
// for concurrent use; the owning controller serializes access.
type Grid struct {
	widgets map[string]models.Widget
	cells   []models.LayoutCell
}

func New() *Grid {
	return &Grid{widgets: make(map[string]models.Widget)}
}

// FromDashboard builds a grid from persisted state, rejecting state
// whose cells and widgets disagree.
func FromDashboard(widgets map[string]models.Widget, cells []models.LayoutCell) (*Grid, error) {
	ids := make(map[string]struct{}, len(widgets))
	for id := range widgets {
		ids[id] = struct{}{}
	}
	if err := models.MatchLayout(ids, cells); err != nil {
		return nil, err
	}

	g := New()
	for id, w := range widgets {
		w.ID = id
		g.widgets[id] = w.Clone()
	}
	g.cells = models.CloneLayout(cells)
	return g, nil
}

// Len is the number of widgets on the grid.
func (g *Grid) Len() int { return len(g.widgets) }

// BottomY is the first row below every existing cell.
func (g *Grid) BottomY() int {
	bottom := 0
	for _, c := range g.cells {
		if b := c.Bottom(); b > bottom {
			bottom = b
		}
	}
	return bottom
}

// DefaultCell computes the cell AddWidget would create for id with no hint.
// The staggered column is pulled left when the cell would overhang the
// last column, as the drag surface does.
func (g *Grid) DefaultCell(id string) models.LayoutCell {
	return models.LayoutCell{
		WidgetID:  id,
		X:         min((len(g.cells)*columnStep)%models.GridColumns, models.GridColumns-DefaultW),
		Y:         g.BottomY(),
		W:         DefaultW,
		H:         DefaultH,
		MinW:      models.IntPtr(DefaultMinW),
		MaxW:      models.IntPtr(DefaultMaxW),
		MinH:      models.IntPtr(DefaultMinH),
		Draggable: models.BoolPtr(true),
		Resizable: models.BoolPtr(true),
	}
}

// AddWidget adds w with its cell. Without a hint the cell gets the
// default column stagger and is appended below all existing cells.
func (g *Grid) AddWidget(w models.Widget, hint *Placement) (models.LayoutCell, error) {
	if w.ID == "" {
		return models.LayoutCell{}, models.ErrEmptyID
	}
	if _, exists := g.widgets[w.ID]; exists {
		return models.LayoutCell{}, fmt.Errorf("%w: %s", models.ErrDuplicateWidget, w.ID)
	}
	if !w.Kind.Valid() {
		return models.LayoutCell{}, models.ErrUnknownChartKind
	}

	cell := g.DefaultCell(w.ID)
	if hint != nil {
		cell.X, cell.Y, cell.W, cell.H = hint.X, hint.Y, hint.W, hint.H
		if err := cell.Validate(); err != nil {
			return models.LayoutCell{}, err
		}
	}

	g.widgets[w.ID] = w.Clone()
	g.cells = append(g.cells, cell)
	return cell.Clone(), nil
}

// RemoveWidget drops the widget and its cell. Cells below it keep their
// positions.
func (g *Grid) RemoveWidget(id string) error {
	if _, ok := g.widgets[id]; !ok {
		return &models.NotFoundError{Kind: "widget", ID: id}
	}

	cells := make([]models.LayoutCell, 0, len(g.cells))
	for _, c := range g.cells {
		if c.WidgetID != id {
			cells = append(cells, c)
		}
	}
	delete(g.widgets, id)
	g.cells = cells
	return nil
}

// ApplyLayoutChange replaces the whole layout with the one reported by
// the drag/resize surface. The layout must cover exactly the current
// widgets; otherwise it is rejected and the current layout is kept.
func (g *Grid) ApplyLayoutChange(cells []models.LayoutCell) error {
	ids := make(map[string]struct{}, len(g.widgets))
	for id := range g.widgets {
		ids[id] = struct{}{}
	}
	if err := models.MatchLayout(ids, cells); err != nil {
		monitoring.RecordLayoutRejection("mismatch")
		return err
	}
	for i := range cells {
		if err := cells[i].Validate(); err != nil {
			monitoring.RecordLayoutRejection("invalid_cell")
			return fmt.Errorf("layout cell %s: %w", cells[i].WidgetID, err)
		}
	}

	g.cells = models.CloneLayout(cells)
	return nil
}

// Widget returns a copy of one widget.
func (g *Grid) Widget(id string) (models.Widget, error) {
	w, ok := g.widgets[id]
	if !ok {
		return models.Widget{}, &models.NotFoundError{Kind: "widget", ID: id}
	}
	return w.Clone(), nil
}

// Widgets returns copies of all widgets keyed by id.
func (g *Grid) Widgets() map[string]models.Widget {
	out := make(map[string]models.Widget, len(g.widgets))
	for id, w := range g.widgets {
		out[id] = w.Clone()
	}
	return out
}

// Layout returns a copy of the cells in layout order.
func (g *Grid) Layout() []models.LayoutCell {
	return models.CloneLayout(g.cells)
}

// Cell returns the cell of one widget.
func (g *Grid) Cell(id string) (models.LayoutCell, bool) {
	for _, c := range g.cells {
		if c.WidgetID == id {
			return c.Clone(), true
		}
	}
	return models.LayoutCell{}, false
}
