// Package transform holds the pure dataset transforms behind the filter
// panel: label-set filter, label search, sort by value and top-N.
//
// Every transform checks index alignment on its input and returns a
// *models.MalformedDatasetError instead of a result when it does not hold.
// Inputs are never mutated; results share no backing arrays with them.
package transform

import (
	"fmt"
	"sort"
	"strings"

	"github.com/platformbuilds/dashboard-core/internal/models"
)

// SortOrder selects how SortByValue ranks points.
type SortOrder string

const (
	SortNone       SortOrder = "none"
	SortAscending  SortOrder = "asc"
	SortDescending SortOrder = "desc"
)

// ParseSortOrder accepts "asc", "desc", "none" and the empty string (none).
func ParseSortOrder(s string) (SortOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return SortNone, nil
	case "asc", "ascending":
		return SortAscending, nil
	case "desc", "descending":
		return SortDescending, nil
	default:
		return SortNone, fmt.Errorf("invalid sort order %q: must be asc, desc or none", s)
	}
}

// IsNone reports whether the order leaves the dataset unchanged.
func (o SortOrder) IsNone() bool { return o == SortNone || o == "" }

// Reverse swaps ascending and descending.
func (o SortOrder) Reverse() SortOrder {
	switch o {
	case SortAscending:
		return SortDescending
	case SortDescending:
		return SortAscending
	default:
		return o
	}
}

// FilterByLabelSet keeps the labels in selected, in selection order.
// Selected labels missing from the dataset are dropped silently.
func FilterByLabelSet(d models.Dataset, selected []string) (models.Dataset, error) {
	if err := d.Validate(); err != nil {
		return models.Dataset{}, err
	}

	// first occurrence wins for duplicated labels
	pos := make(map[string]int, len(d.Labels))
	for i := len(d.Labels) - 1; i >= 0; i-- {
		pos[d.Labels[i]] = i
	}

	idx := make([]int, 0, len(selected))
	for _, label := range selected {
		if i, ok := pos[label]; ok {
			idx = append(idx, i)
		}
	}
	return Reindex(d, idx), nil
}

// SearchByLabel keeps labels containing query, case-insensitively, in
// their original order. The empty query matches every label.
func SearchByLabel(d models.Dataset, query string) (models.Dataset, error) {
	if err := d.Validate(); err != nil {
		return models.Dataset{}, err
	}

	q := strings.ToLower(query)
	idx := make([]int, 0, len(d.Labels))
	for i, label := range d.Labels {
		if strings.Contains(strings.ToLower(label), q) {
			idx = append(idx, i)
		}
	}
	return Reindex(d, idx), nil
}

// SortByValue ranks points by the first series. Ties keep their original
// relative order. SortNone returns the dataset unchanged.
func SortByValue(d models.Dataset, order SortOrder) (models.Dataset, error) {
	if err := d.Validate(); err != nil {
		return models.Dataset{}, err
	}
	if order.IsNone() {
		return d.Clone(), nil
	}
	if order != SortAscending && order != SortDescending {
		return models.Dataset{}, fmt.Errorf("invalid sort order %q", order)
	}
	idx, err := rank(d, order)
	if err != nil {
		return models.Dataset{}, err
	}
	return Reindex(d, idx), nil
}

// TakeTopN returns the n points with the highest first-series values,
// highest first, whatever sort order the caller chose elsewhere.
// Callers keep 0 < n < len(labels); n outside [1, len(labels)] is an
// error rather than being clamped.
func TakeTopN(d models.Dataset, n int) (models.Dataset, error) {
	if err := d.Validate(); err != nil {
		return models.Dataset{}, err
	}
	if n <= 0 || n > len(d.Labels) {
		return models.Dataset{}, fmt.Errorf("%w: n=%d, labels=%d", models.ErrTopNOutOfRange, n, len(d.Labels))
	}
	idx, err := rank(d, SortDescending)
	if err != nil {
		return models.Dataset{}, err
	}
	return Reindex(d, idx[:n]), nil
}

// rank returns point indices ordered by the first series, stably.
func rank(d models.Dataset, order SortOrder) ([]int, error) {
	if len(d.Series) == 0 {
		return nil, &models.MalformedDatasetError{Series: -1, Err: models.ErrEmptySeries}
	}
	values := d.Series[0].Values
	idx := make([]int, len(d.Labels))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		if order == SortAscending {
			return values[idx[a]] < values[idx[b]]
		}
		return values[idx[a]] > values[idx[b]]
	})
	return idx, nil
}

// Reindex builds a dataset whose point i is point idx[i] of d, applied to
// labels, every series' values and every per-point encoding alike.
// Indices must be in range for d.
func Reindex(d models.Dataset, idx []int) models.Dataset {
	out := models.Dataset{
		Labels: make([]string, len(idx)),
		Series: make([]models.Series, len(d.Series)),
	}
	for i, j := range idx {
		out.Labels[i] = d.Labels[j]
	}
	for s, series := range d.Series {
		values := make([]float64, len(idx))
		for i, j := range idx {
			values[i] = series.Values[j]
		}
		out.Series[s] = models.Series{
			Name:        series.Name,
			Values:      values,
			FillColor:   series.FillColor.Reindex(idx),
			StrokeColor: series.StrokeColor.Reindex(idx),
			BorderWidth: series.BorderWidth,
		}
	}
	return out
}
