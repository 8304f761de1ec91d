package models

import "strings"

// GridColumns is the fixed column count of the dashboard grid.
const GridColumns = 12

// LayoutCell places one widget on the grid, in grid units.
type LayoutCell struct {
	WidgetID  string `json:"i"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	W         int    `json:"w"`
	H         int    `json:"h"`
	MinW      *int   `json:"minW,omitempty"`
	MaxW      *int   `json:"maxW,omitempty"`
	MinH      *int   `json:"minH,omitempty"`
	MaxH      *int   `json:"maxH,omitempty"`
	Draggable *bool  `json:"isDraggable,omitempty"`
	Resizable *bool  `json:"isResizable,omitempty"`
}

// IntPtr and BoolPtr help build optional LayoutCell constraints.
func IntPtr(v int) *int    { return &v }
func BoolPtr(v bool) *bool { return &v }

// Validate checks grid coordinates, the 12-column bound and any
// min/max constraints present on the cell.
func (c *LayoutCell) Validate() error {
	if strings.TrimSpace(c.WidgetID) == "" {
		return ErrEmptyID
	}

	if c.X < 0 || c.Y < 0 {
		return ErrInvalidGridCoordinates
	}

	if c.W <= 0 || c.H <= 0 {
		return ErrInvalidGridDimensions
	}

	if c.W > GridColumns || c.X+c.W > GridColumns {
		return ErrInvalidGridDimensions
	}

	if c.MinW != nil && c.W < *c.MinW {
		return ErrInvalidGridConstraints
	}
	if c.MaxW != nil && c.W > *c.MaxW {
		return ErrInvalidGridConstraints
	}
	if c.MinH != nil && c.H < *c.MinH {
		return ErrInvalidGridConstraints
	}
	if c.MaxH != nil && c.H > *c.MaxH {
		return ErrInvalidGridConstraints
	}

	return nil
}

// Bottom is the first free row below the cell.
func (c LayoutCell) Bottom() int { return c.Y + c.H }

// Overlaps reports whether two cells share at least one grid unit.
func (c LayoutCell) Overlaps(o LayoutCell) bool {
	return c.X < o.X+o.W && o.X < c.X+c.W && c.Y < o.Y+o.H && o.Y < c.Y+c.H
}

// Clone copies the optional constraint pointers.
func (c LayoutCell) Clone() LayoutCell {
	out := c
	out.MinW = clonePtr(c.MinW)
	out.MaxW = clonePtr(c.MaxW)
	out.MinH = clonePtr(c.MinH)
	out.MaxH = clonePtr(c.MaxH)
	out.Draggable = clonePtr(c.Draggable)
	out.Resizable = clonePtr(c.Resizable)
	return out
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// CloneLayout copies a layout slice cell by cell.
func CloneLayout(cells []LayoutCell) []LayoutCell {
	out := make([]LayoutCell, len(cells))
	for i, c := range cells {
		out[i] = c.Clone()
	}
	return out
}
