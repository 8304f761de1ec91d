package preview

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platformbuilds/dashboard-core/internal/models"
)

func TestBuild_Geometry(t *testing.T) {
	p := Build([]models.LayoutCell{
		{WidgetID: "a", X: 0, Y: 0, W: 6, H: 3},
		{WidgetID: "b", X: 6, Y: 3, W: 6, H: 3},
		{WidgetID: "tiny", X: 0, Y: 6, W: 0, H: 0},
	})
	require.Len(t, p.Rects, 3)

	a := p.Rects[0]
	assert.Equal(t, 2.0, a.Left)
	assert.Equal(t, 2.0, a.Top)
	assert.Equal(t, 56.0, a.Width)
	assert.Equal(t, 36.0, a.Height)

	b := p.Rects[1]
	assert.Equal(t, 62.0, b.Left)
	assert.Equal(t, 42.0, b.Top)

	assert.Equal(t, 0.0, p.Rects[2].Width, "sizes never go negative")
	assert.Equal(t, 0.0, p.Rects[2].Height)
}

func TestSummarize(t *testing.T) {
	r := models.NewDefaultRecord("d1")
	r.Name = "  "
	r.CreatedAt = time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	r.Charts["w"] = models.ChartConfig{Type: models.ChartBar}
	r.Layout = []models.LayoutCell{{WidgetID: "w", X: 0, Y: 0, W: 12, H: 6}}

	s := Summarize(r)
	assert.Equal(t, UntitledName, s.Name)
	assert.Equal(t, 1, s.ChartCount)
	assert.Equal(t, r.CreatedAt, s.CreatedAt)
	require.Len(t, s.Preview.Rects, 1)
	assert.Equal(t, 116.0, s.Preview.Rects[0].Width)
	assert.Equal(t, 76.0, s.Preview.Rects[0].Height)

	r.Name = "Sales Overview"
	assert.Equal(t, "Sales Overview", Summarize(r).Name)
}

func TestSVG(t *testing.T) {
	svg := SVG(Build([]models.LayoutCell{{WidgetID: "a", X: 0, Y: 0, W: 6, H: 3}}))
	assert.True(t, strings.HasPrefix(svg, `<svg xmlns="http://www.w3.org/2000/svg" width="120" height="80"`))
	assert.Contains(t, svg, `<rect x="2" y="2" width="56" height="36"`)
	assert.True(t, strings.HasSuffix(svg, "</svg>"))
}
