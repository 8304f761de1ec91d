// Package preview draws the thumbnail shown for a dashboard in the list
// view: every layout cell scaled into a fixed 120x80 box.
package preview

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/platformbuilds/dashboard-core/internal/models"
)

// Preview box geometry.
const (
	Width   = 120.0
	Height  = 80.0
	Columns = models.GridColumns
	Rows    = 6 // rows that fit the box; taller layouts are clipped
	Padding = 2.0
)

// UntitledName is shown for dashboards without a name.
const UntitledName = "Untitled"

// Rect is a cell scaled into the preview box.
type Rect struct {
	WidgetID string  `json:"i"`
	Left     float64 `json:"left"`
	Top      float64 `json:"top"`
	Width    float64 `json:"width"`
	Height   float64 `json:"height"`
}

type Preview struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Rects  []Rect  `json:"rects"`
}

// Build scales cells into the preview box.
func Build(cells []models.LayoutCell) Preview {
	p := Preview{Width: Width, Height: Height, Rects: make([]Rect, 0, len(cells))}
	for _, c := range cells {
		p.Rects = append(p.Rects, Rect{
			WidgetID: c.WidgetID,
			Left:     float64(c.X)*Width/Columns + Padding,
			Top:      float64(c.Y)*Height/Rows + Padding,
			Width:    math.Max(float64(c.W)*Width/Columns-2*Padding, 0),
			Height:   math.Max(float64(c.H)*Height/Rows-2*Padding, 0),
		})
	}
	return p
}

// Summary is one row of the dashboard list.
type Summary struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ChartCount   int       `json:"chartCount"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	Preview      Preview   `json:"preview"`
}

func Summarize(r models.Record) Summary {
	name := r.Name
	if strings.TrimSpace(name) == "" {
		name = UntitledName
	}
	return Summary{
		ID:           r.ID,
		Name:         name,
		ChartCount:   len(r.Charts),
		CreatedAt:    r.CreatedAt,
		LastModified: r.LastModified,
		Preview:      Build(r.Layout),
	}
}

// SVG renders the preview as a standalone SVG image.
func SVG(p Preview) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%s" height="%s" viewBox="0 0 %s %s">`,
		num(p.Width), num(p.Height), num(p.Width), num(p.Height))
	fmt.Fprintf(&b, `<rect width="%s" height="%s" rx="4" fill="#f3f4f6"/>`, num(p.Width), num(p.Height))
	// the box clips anything outside it
	fmt.Fprintf(&b, `<clipPath id="box"><rect width="%s" height="%s"/></clipPath><g clip-path="url(#box)">`,
		num(p.Width), num(p.Height))
	for _, r := range p.Rects {
		fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" rx="2" fill="#ffffff" stroke="#e5e7eb"/>`,
			num(r.Left), num(r.Top), num(r.Width), num(r.Height))
		fmt.Fprintf(&b, `<rect x="%s" y="%s" width="%s" height="%s" fill="#3b82f6"/>`,
			num(r.Left), num(r.Top), num(r.Width), num(math.Min(1.5, r.Height)))
	}
	b.WriteString(`</g></svg>`)
	return b.String()
}

func num(f float64) string {
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}
