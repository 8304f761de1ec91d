package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

func TestBuiltinCatalog(t *testing.T) {
	c, err := New(logger.NewNop())
	require.NoError(t, err)

	var ids []string
	for _, tpl := range c.List() {
		ids = append(ids, tpl.ID)
		assert.NoError(t, tpl.Dataset.Validate(), tpl.ID)
	}
	assert.Equal(t, []string{"monthly-sales", "product-performance", "revenue-distribution", "market-share"}, ids)

	sales, err := c.Lookup("monthly-sales")
	require.NoError(t, err)
	assert.Equal(t, models.ChartBar, sales.Kind)
	assert.Equal(t, "Monthly Sales & Profit", sales.Name)
	assert.Len(t, sales.Dataset.Labels, 18)
	require.Len(t, sales.Dataset.Series, 2)
	assert.Equal(t, "rgba(54, 162, 235, 0.2)", sales.Dataset.Series[0].FillColor.Value())
	assert.True(t, sales.Options.Plugins.Title.Display)
	assert.Equal(t, models.LegendTop, sales.Options.Plugins.Legend.Position)

	products, err := c.Lookup("product-performance")
	require.NoError(t, err)
	assert.Len(t, products.Dataset.Labels, 15)
	assert.Len(t, products.Dataset.Series, 3)
	assert.Equal(t, 87.5, products.Dataset.Series[1].Values[3])

	revenue, err := c.Lookup("revenue-distribution")
	require.NoError(t, err)
	assert.Equal(t, models.ChartPie, revenue.Kind)
	assert.Equal(t, "Revenue distribution", revenue.Options.Plugins.Title.Text)
	assert.True(t, revenue.Dataset.Series[0].FillColor.IsPerPoint())
	assert.Equal(t, 8, revenue.Dataset.Series[0].FillColor.Len())
}

func TestLookup_ReturnsCopies(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)

	a, err := c.Lookup("market-share")
	require.NoError(t, err)
	a.Dataset.Labels[0] = "Changed"
	a.Dataset.Series[0].Values[0] = -1

	b, err := c.Lookup("market-share")
	require.NoError(t, err)
	assert.Equal(t, "Apple", b.Dataset.Labels[0])
	assert.Equal(t, 25.5, b.Dataset.Series[0].Values[0])

	w := b.NewWidget("market-share-1")
	w.Dataset.Labels[1] = "x"
	again, _ := c.Lookup("market-share")
	assert.Equal(t, "Samsung", again.Dataset.Labels[1])
}

func TestLookup_Unknown(t *testing.T) {
	c, err := New(nil)
	require.NoError(t, err)
	_, err = c.Lookup("nope")
	assert.True(t, errors.Is(err, models.ErrUnknownTemplate))
}

const overrideYAML = `
templates:
  - id: market-share
    name: Vendor Share
    type: pie
    data:
      labels: [A, B]
      datasets:
        - data: [60, 40]
          backgroundColor: [red, blue]
  - id: regional
    name: Regional Sales
    type: bar
    data:
      labels: [North, South]
      datasets:
        - label: Sales
          data: [10, 20]
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_OverrideFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "templates.yaml", overrideYAML)
	c, err := Load(path, nil)
	require.NoError(t, err)

	list := c.List()
	require.Len(t, list, 5)
	assert.Equal(t, "market-share", list[3].ID, "replaced in place")
	assert.Equal(t, "Vendor Share", list[3].Name)
	assert.Equal(t, "regional", list[4].ID)
	assert.Equal(t, "Regional Sales", list[4].Options.Plugins.Title.Text, "options default to the template name")
}

func TestLoad_RejectsBadTemplates(t *testing.T) {
	tests := map[string]string{
		"malformed dataset": `
templates:
  - id: bad
    type: bar
    data:
      labels: [A, B]
      datasets:
        - data: [1]
`,
		"unknown kind": `
templates:
  - id: bad
    type: line
    data: {labels: [A], datasets: [{data: [1]}]}
`,
		"no data": `
templates:
  - id: bad
    type: bar
`,
		"duplicate id": `
templates:
  - id: x
    type: bar
    data: {labels: [A], datasets: [{data: [1]}]}
  - id: x
    type: bar
    data: {labels: [A], datasets: [{data: [1]}]}
`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "templates.yaml", content)
			_, err := Load(path, nil)
			assert.Error(t, err)
		})
	}
}

func TestReload_KeepsPreviousOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "templates.yaml", overrideYAML)
	c, err := Load(path, nil)
	require.NoError(t, err)

	writeFile(t, dir, "templates.yaml", "templates: [{id: broken}]")
	require.Error(t, c.Reload())
	_, err = c.Lookup("regional")
	assert.NoError(t, err)
}

func writeWorkbook(t *testing.T, path string) {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	rows := [][]interface{}{
		{"Quarter", "Sales", "Profit"},
		{"Q1", 120, 30.5},
		{"Q2", 150, 41},
		{"Q3", 90, 12},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
}

func TestWorkbookSource(t *testing.T) {
	dir := t.TempDir()
	writeWorkbook(t, filepath.Join(dir, "quarterly.xlsx"))

	path := writeFile(t, dir, "templates.yaml", `
templates:
  - id: quarterly
    name: Quarterly Results
    type: bar
    source:
      workbook: quarterly.xlsx
      backgroundColor: rgba(54, 162, 235, 0.2)
`)
	c, err := Load(path, nil)
	require.NoError(t, err)

	tpl, err := c.Lookup("quarterly")
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1", "Q2", "Q3"}, tpl.Dataset.Labels)
	require.Len(t, tpl.Dataset.Series, 2)
	assert.Equal(t, "Sales", tpl.Dataset.Series[0].Name)
	assert.Equal(t, []float64{120, 150, 90}, tpl.Dataset.Series[0].Values)
	assert.Equal(t, []float64{30.5, 41, 12}, tpl.Dataset.Series[1].Values)
	assert.Equal(t, "rgba(54, 162, 235, 0.2)", tpl.Dataset.Series[0].FillColor.Value())
}

func TestWorkbookSource_RowErrors(t *testing.T) {
	s := WorkbookSource{}
	_, err := s.datasetFromRows([][]string{{"Label"}})
	assert.Error(t, err)

	_, err = s.datasetFromRows([][]string{{"Label", "Sales"}, {"Q1", "abc"}})
	assert.Error(t, err)

	_, err = s.datasetFromRows([][]string{{"Label", "Sales", "Profit"}, {"Q1", "1"}})
	assert.Error(t, err)

	d, err := s.datasetFromRows([][]string{{"Label", "Sales"}, {}, {"Q1", "1"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"Q1"}, d.Labels)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "templates.yaml", overrideYAML)
	c, err := Load(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Watch(ctx) }()
	time.Sleep(100 * time.Millisecond)

	writeFile(t, dir, "templates.yaml", `
templates:
  - id: fresh
    type: bar
    data: {labels: [A], datasets: [{data: [1]}]}
`)
	assert.Eventually(t, func() bool {
		_, err := c.Lookup("fresh")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)
}
