package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/platformbuilds/dashboard-core/internal/models"
)

// WorkbookSource loads a template dataset from an Excel sheet. Row 1 is
// the header: its first cell is ignored and the remaining cells name the
// series. Column A of every following row is the label, the other
// columns are numeric values.
type WorkbookSource struct {
	Workbook string `yaml:"workbook"`
	// Sheet defaults to the first sheet of the workbook.
	Sheet string `yaml:"sheet"`
	// Optional uniform colours applied to every series.
	FillColor   string `yaml:"backgroundColor"`
	StrokeColor string `yaml:"borderColor"`
}

func (s WorkbookSource) Read() (models.Dataset, error) {
	if s.Workbook == "" {
		return models.Dataset{}, fmt.Errorf("workbook path is empty")
	}
	f, err := excelize.OpenFile(s.Workbook)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("open workbook %s: %w", s.Workbook, err)
	}
	defer func() { _ = f.Close() }()

	sheet := s.Sheet
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	rows, err := f.GetRows(sheet)
	if err != nil {
		return models.Dataset{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	return s.datasetFromRows(rows)
}

func (s WorkbookSource) datasetFromRows(rows [][]string) (models.Dataset, error) {
	if len(rows) == 0 || len(rows[0]) < 2 {
		return models.Dataset{}, fmt.Errorf("sheet needs a header row with at least one series column")
	}

	header := rows[0]
	d := models.Dataset{Labels: []string{}, Series: make([]models.Series, len(header)-1)}
	for i, name := range header[1:] {
		d.Series[i] = models.Series{Name: strings.TrimSpace(name), Values: []float64{}, BorderWidth: 1}
		if s.FillColor != "" {
			d.Series[i].FillColor = models.Uniform(s.FillColor)
		}
		if s.StrokeColor != "" {
			d.Series[i].StrokeColor = models.Uniform(s.StrokeColor)
		}
	}

	for r, row := range rows[1:] {
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue // skip blank rows
		}
		d.Labels = append(d.Labels, strings.TrimSpace(row[0]))
		for i := range d.Series {
			col := i + 1
			if col >= len(row) || strings.TrimSpace(row[col]) == "" {
				return models.Dataset{}, fmt.Errorf("row %d: missing value for series %q", r+2, d.Series[i].Name)
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[col]), 64)
			if err != nil {
				return models.Dataset{}, fmt.Errorf("row %d, series %q: %w", r+2, d.Series[i].Name, err)
			}
			d.Series[i].Values = append(d.Series[i].Values, v)
		}
	}
	return d, nil
}
