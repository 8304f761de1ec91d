// Package render turns a widget and its displayed dataset into the
// payload the charting component draws.
package render

import (
	"encoding/json"
	"fmt"

	"github.com/platformbuilds/dashboard-core/internal/models"
)

// Payload is the chart configuration handed to the charting component.
type Payload struct {
	Type    string         `json:"type"`
	Data    models.Dataset `json:"data"`
	Options Options        `json:"options"`
}

// Options are the widget's display options plus kind-specific hints.
type Options struct {
	models.DisplayOptions
	IndexAxis string  `json:"indexAxis,omitempty"`
	Scales    *Scales `json:"scales,omitempty"`
}

// MarshalJSON flattens the hints into the display options object.
func (o Options) MarshalJSON() ([]byte, error) {
	b, err := json.Marshal(o.DisplayOptions)
	if err != nil {
		return nil, err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if o.IndexAxis != "" {
		if m["indexAxis"], err = json.Marshal(o.IndexAxis); err != nil {
			return nil, err
		}
	}
	if o.Scales != nil {
		if m["scales"], err = json.Marshal(o.Scales); err != nil {
			return nil, err
		}
	}
	return json.Marshal(m)
}

func (o *Options) UnmarshalJSON(b []byte) error {
	var hints struct {
		IndexAxis string  `json:"indexAxis"`
		Scales    *Scales `json:"scales"`
	}
	if err := json.Unmarshal(b, &hints); err != nil {
		return err
	}
	var display models.DisplayOptions
	if err := json.Unmarshal(b, &display); err != nil {
		return err
	}
	delete(display.Extra, "indexAxis")
	delete(display.Extra, "scales")
	if len(display.Extra) == 0 {
		display.Extra = nil
	}
	*o = Options{DisplayOptions: display, IndexAxis: hints.IndexAxis, Scales: hints.Scales}
	return nil
}

type Scales struct {
	Y Axis `json:"y"`
}

type Axis struct {
	BeginAtZero bool `json:"beginAtZero"`
}

// Strategy renders one chart kind.
type Strategy interface {
	Render(w models.Widget, d models.Dataset) (Payload, error)
}

// For returns the strategy for kind.
func For(kind models.ChartKind) (Strategy, error) {
	switch kind {
	case models.ChartBar:
		return Bar{}, nil
	case models.ChartPie:
		return Pie{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownChartKind, kind)
	}
}

// Widget renders w with d as the dataset to display.
func Widget(w models.Widget, d models.Dataset) (Payload, error) {
	s, err := For(w.Kind)
	if err != nil {
		return Payload{}, err
	}
	return s.Render(w, d)
}

// Bar draws every series as a group of vertical bars.
type Bar struct{}

func (Bar) Render(w models.Widget, d models.Dataset) (Payload, error) {
	if err := d.Validate(); err != nil {
		return Payload{}, err
	}
	return Payload{
		Type: models.ChartBar.String(),
		Data: d.Clone(),
		Options: Options{
			DisplayOptions: w.Options,
			IndexAxis:      "x",
			Scales:         &Scales{Y: Axis{BeginAtZero: true}},
		},
	}, nil
}

// Pie draws only the first series: a pie has a single ring.
type Pie struct{}

func (Pie) Render(w models.Widget, d models.Dataset) (Payload, error) {
	if err := d.Validate(); err != nil {
		return Payload{}, err
	}
	out := models.Dataset{Labels: append([]string{}, d.Labels...), Series: []models.Series{}}
	if len(d.Series) > 0 {
		out.Series = append(out.Series, d.Series[0].Clone())
	}
	return Payload{
		Type:    models.ChartPie.String(),
		Data:    out,
		Options: Options{DisplayOptions: w.Options},
	}, nil
}
