package models

import (
	"errors"
	"testing"
)

func TestLayoutCell_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cell    LayoutCell
		wantErr error
	}{
		{
			name: "valid default cell",
			cell: LayoutCell{WidgetID: "w1", X: 0, Y: 0, W: 6, H: 3, MinW: IntPtr(4), MaxW: IntPtr(12), MinH: IntPtr(3)},
		},
		{
			name: "valid full width",
			cell: LayoutCell{WidgetID: "w1", X: 0, Y: 9, W: 12, H: 4},
		},
		{
			name:    "empty id",
			cell:    LayoutCell{X: 0, Y: 0, W: 6, H: 3},
			wantErr: ErrEmptyID,
		},
		{
			name:    "negative coordinates",
			cell:    LayoutCell{WidgetID: "w1", X: -1, Y: 0, W: 6, H: 3},
			wantErr: ErrInvalidGridCoordinates,
		},
		{
			name:    "zero height",
			cell:    LayoutCell{WidgetID: "w1", X: 0, Y: 0, W: 6, H: 0},
			wantErr: ErrInvalidGridDimensions,
		},
		{
			name:    "overflows 12 columns",
			cell:    LayoutCell{WidgetID: "w1", X: 8, Y: 0, W: 6, H: 3},
			wantErr: ErrInvalidGridDimensions,
		},
		{
			name:    "narrower than minW",
			cell:    LayoutCell{WidgetID: "w1", X: 0, Y: 0, W: 2, H: 3, MinW: IntPtr(4)},
			wantErr: ErrInvalidGridConstraints,
		},
		{
			name:    "taller than maxH",
			cell:    LayoutCell{WidgetID: "w1", X: 0, Y: 0, W: 4, H: 9, MaxH: IntPtr(6)},
			wantErr: ErrInvalidGridConstraints,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cell.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("LayoutCell.Validate() unexpected error = %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LayoutCell.Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLayoutCell_Overlaps(t *testing.T) {
	a := LayoutCell{WidgetID: "a", X: 0, Y: 0, W: 6, H: 3}
	b := LayoutCell{WidgetID: "b", X: 6, Y: 0, W: 6, H: 3}
	c := LayoutCell{WidgetID: "c", X: 4, Y: 2, W: 4, H: 3}

	if a.Overlaps(b) {
		t.Errorf("adjacent cells must not overlap")
	}
	if !a.Overlaps(c) || !b.Overlaps(c) {
		t.Errorf("expected c to overlap both a and b")
	}
}

func TestDisplayOptions_Validate(t *testing.T) {
	if err := DefaultDisplayOptions("x").Validate(); err != nil {
		t.Fatalf("default options invalid: %v", err)
	}
	bad := DefaultDisplayOptions("x")
	bad.Plugins.Legend.Position = "middle"
	if err := bad.Validate(); !errors.Is(err, ErrInvalidLegendPosition) {
		t.Fatalf("expected ErrInvalidLegendPosition, got %v", err)
	}
}
