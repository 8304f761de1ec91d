package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// DefaultDashboardName is given to dashboards synthesized on first open.
const DefaultDashboardName = "New Dashboard"

// Dashboard is the in-memory working copy the controller mutates.
type Dashboard struct {
	ID           string
	Name         string
	Widgets      map[string]Widget
	Layout       []LayoutCell
	CreatedAt    time.Time
	LastModified time.Time
}

// ChartConfig is the persisted form of a widget, keyed by widget id.
type ChartConfig struct {
	Type    ChartKind      `json:"type"`
	Options DisplayOptions `json:"options"`
	Data    Dataset        `json:"data"`
}

// Record is the persisted dashboard, one per dashboard, stored as a list
// under a single key.
type Record struct {
	ID           string                 `json:"id"`
	Name         string                 `json:"name"`
	Layout       []LayoutCell           `json:"layout"`
	Charts       map[string]ChartConfig `json:"charts"`
	LastModified time.Time              `json:"lastModified"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// NewDefaultRecord returns an empty dashboard record with the default name.
func NewDefaultRecord(id string) Record {
	return Record{
		ID:     id,
		Name:   DefaultDashboardName,
		Layout: []LayoutCell{},
		Charts: map[string]ChartConfig{},
	}
}

func (r *Record) Validate() error {
	if strings.TrimSpace(r.ID) == "" {
		return ErrEmptyID
	}
	for id, c := range r.Charts {
		if !c.Type.Valid() {
			return fmt.Errorf("chart %s: %w", id, ErrUnknownChartKind)
		}
	}
	return MatchLayout(r.widgetIDs(), r.Layout)
}

func (r *Record) widgetIDs() map[string]struct{} {
	ids := make(map[string]struct{}, len(r.Charts))
	for id := range r.Charts {
		ids[id] = struct{}{}
	}
	return ids
}

// ToDashboard copies the record into a working dashboard.
func (r Record) ToDashboard() Dashboard {
	d := Dashboard{
		ID:           r.ID,
		Name:         r.Name,
		Widgets:      make(map[string]Widget, len(r.Charts)),
		Layout:       CloneLayout(r.Layout),
		CreatedAt:    r.CreatedAt,
		LastModified: r.LastModified,
	}
	for id, c := range r.Charts {
		d.Widgets[id] = Widget{ID: id, Kind: c.Type, Options: c.Options, Dataset: c.Data.Clone()}
	}
	return d
}

// ToRecord serializes the working dashboard into its persisted form.
func (d Dashboard) ToRecord() Record {
	r := Record{
		ID:           d.ID,
		Name:         d.Name,
		Layout:       CloneLayout(d.Layout),
		Charts:       make(map[string]ChartConfig, len(d.Widgets)),
		CreatedAt:    d.CreatedAt,
		LastModified: d.LastModified,
	}
	for id, w := range d.Widgets {
		r.Charts[id] = ChartConfig{Type: w.Kind, Options: w.Options, Data: w.Dataset.Clone()}
	}
	return r
}

// MatchLayout checks that the cell ids are exactly the widget ids, each
// appearing once.
func MatchLayout(widgetIDs map[string]struct{}, cells []LayoutCell) error {
	seen := make(map[string]struct{}, len(cells))
	var unexpected []string
	for _, c := range cells {
		if _, dup := seen[c.WidgetID]; dup {
			unexpected = append(unexpected, c.WidgetID)
			continue
		}
		seen[c.WidgetID] = struct{}{}
		if _, ok := widgetIDs[c.WidgetID]; !ok {
			unexpected = append(unexpected, c.WidgetID)
		}
	}
	var missing []string
	for id := range widgetIDs {
		if _, ok := seen[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 && len(unexpected) == 0 {
		return nil
	}
	sort.Strings(missing)
	sort.Strings(unexpected)
	return &LayoutMismatchError{Missing: missing, Unexpected: unexpected}
}
