package models

import (
	"encoding/json"
	"fmt"
)

// ChartKind is the closed set of chart types a widget can render as.
type ChartKind int

const (
	ChartBar ChartKind = iota + 1
	ChartPie
)

func (k ChartKind) String() string {
	switch k {
	case ChartBar:
		return "bar"
	case ChartPie:
		return "pie"
	default:
		return fmt.Sprintf("ChartKind(%d)", int(k))
	}
}

// ParseChartKind maps the persisted "bar"/"pie" strings to a ChartKind.
func ParseChartKind(s string) (ChartKind, error) {
	switch s {
	case "bar":
		return ChartBar, nil
	case "pie":
		return ChartPie, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownChartKind, s)
	}
}

func (k ChartKind) Valid() bool { return k == ChartBar || k == ChartPie }

func (k ChartKind) MarshalJSON() ([]byte, error) {
	if !k.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChartKind, int(k))
	}
	return json.Marshal(k.String())
}

func (k *ChartKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseChartKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

func (k *ChartKind) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	parsed, err := ParseChartKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Legend positions understood by the charting component.
const (
	LegendTop    = "top"
	LegendBottom = "bottom"
	LegendLeft   = "left"
	LegendRight  = "right"
)

// DisplayOptions are the per-widget options handed to the charting
// component alongside the dataset. Keys the service does not interpret
// are kept in Extra and written back unchanged.
type DisplayOptions struct {
	Responsive bool                       `json:"responsive" yaml:"responsive"`
	Plugins    PluginOptions              `json:"plugins" yaml:"plugins"`
	Extra      map[string]json.RawMessage `json:"-" yaml:"-"`
}

type PluginOptions struct {
	Legend LegendOptions              `json:"legend" yaml:"legend"`
	Title  TitleOptions               `json:"title" yaml:"title"`
	Extra  map[string]json.RawMessage `json:"-" yaml:"-"`
}

func (o DisplayOptions) MarshalJSON() ([]byte, error) {
	type plain DisplayOptions
	return marshalWithExtra(plain(o), o.Extra)
}

func (o *DisplayOptions) UnmarshalJSON(b []byte) error {
	type plain DisplayOptions
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := unknownKeys(b, "responsive", "plugins")
	if err != nil {
		return err
	}
	p.Extra = extra
	*o = DisplayOptions(p)
	return nil
}

func (o PluginOptions) MarshalJSON() ([]byte, error) {
	type plain PluginOptions
	return marshalWithExtra(plain(o), o.Extra)
}

func (o *PluginOptions) UnmarshalJSON(b []byte) error {
	type plain PluginOptions
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	extra, err := unknownKeys(b, "legend", "title")
	if err != nil {
		return err
	}
	p.Extra = extra
	*o = PluginOptions(p)
	return nil
}

// Clone copies the overflow maps so a widget never shares them with its
// template.
func (o DisplayOptions) Clone() DisplayOptions {
	o.Extra = cloneRaw(o.Extra)
	o.Plugins.Extra = cloneRaw(o.Plugins.Extra)
	return o
}

// unknownKeys returns the members of the JSON object b not named in known,
// or nil when there are none.
func unknownKeys(b []byte, known ...string) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(b, &all); err != nil {
		return nil, err
	}
	for _, k := range known {
		delete(all, k)
	}
	if len(all) == 0 {
		return nil, nil
	}
	return all, nil
}

// marshalWithExtra encodes v and merges extra into the object. Known
// fields win over an extra key of the same name.
func marshalWithExtra(v interface{}, extra map[string]json.RawMessage) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil || len(extra) == 0 {
		return b, err
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(b, &merged); err != nil {
		return nil, err
	}
	for k, raw := range extra {
		if _, known := merged[k]; !known {
			merged[k] = raw
		}
	}
	return json.Marshal(merged)
}

func cloneRaw(m map[string]json.RawMessage) map[string]json.RawMessage {
	if m == nil {
		return nil
	}
	out := make(map[string]json.RawMessage, len(m))
	for k, v := range m {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

type LegendOptions struct {
	Position string `json:"position" yaml:"position"`
}

type TitleOptions struct {
	Display bool   `json:"display" yaml:"display"`
	Text    string `json:"text" yaml:"text"`
}

// DefaultDisplayOptions returns responsive options with the legend on
// top and a visible title.
func DefaultDisplayOptions(title string) DisplayOptions {
	return DisplayOptions{
		Responsive: true,
		Plugins: PluginOptions{
			Legend: LegendOptions{Position: LegendTop},
			Title:  TitleOptions{Display: true, Text: title},
		},
	}
}

func (o DisplayOptions) Validate() error {
	switch o.Plugins.Legend.Position {
	case "", LegendTop, LegendBottom, LegendLeft, LegendRight:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidLegendPosition, o.Plugins.Legend.Position)
	}
}

// Widget is one chart instance. Dataset is an owned snapshot; filtering
// a widget never writes back into it.
type Widget struct {
	ID      string         `json:"id"`
	Kind    ChartKind      `json:"type"`
	Options DisplayOptions `json:"options"`
	Dataset Dataset        `json:"data"`
}

// Clone deep copies the widget's dataset and option overflow.
func (w Widget) Clone() Widget {
	w.Options = w.Options.Clone()
	w.Dataset = w.Dataset.Clone()
	return w
}
