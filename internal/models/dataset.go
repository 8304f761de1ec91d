package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Dataset is the labeled, multi-series table a chart widget draws.
// Labels define the point order; every per-point array in Series is
// positionally aligned with Labels.
type Dataset struct {
	Labels []string `json:"labels" yaml:"labels"`
	Series []Series `json:"datasets" yaml:"datasets"`
}

// Series is one named sequence of values within a Dataset.
type Series struct {
	Name        string    `json:"label,omitempty" yaml:"label"`
	Values      []float64 `json:"data" yaml:"data"`
	FillColor   Encoding  `json:"backgroundColor,omitzero" yaml:"backgroundColor"`
	StrokeColor Encoding  `json:"borderColor,omitzero" yaml:"borderColor"`
	BorderWidth int       `json:"borderWidth,omitempty" yaml:"borderWidth"`
}

// Validate checks index alignment: every series and per-point encoding
// must have exactly len(Labels) entries.
func (d Dataset) Validate() error {
	n := len(d.Labels)
	for i, s := range d.Series {
		if len(s.Values) != n {
			return &MalformedDatasetError{Series: i, Field: "values", Got: len(s.Values), Want: n}
		}
		if s.FillColor.IsPerPoint() && s.FillColor.Len() != n {
			return &MalformedDatasetError{Series: i, Field: "backgroundColor", Got: s.FillColor.Len(), Want: n}
		}
		if s.StrokeColor.IsPerPoint() && s.StrokeColor.Len() != n {
			return &MalformedDatasetError{Series: i, Field: "borderColor", Got: s.StrokeColor.Len(), Want: n}
		}
	}
	return nil
}

// Clone returns a deep copy that shares no backing arrays with d.
func (d Dataset) Clone() Dataset {
	out := Dataset{}
	if d.Labels != nil {
		out.Labels = append([]string(nil), d.Labels...)
	}
	if d.Series != nil {
		out.Series = make([]Series, len(d.Series))
		for i, s := range d.Series {
			out.Series[i] = s.Clone()
		}
	}
	return out
}

// Equal reports whether two datasets hold the same labels, values and encodings.
func (d Dataset) Equal(o Dataset) bool {
	if len(d.Labels) != len(o.Labels) || len(d.Series) != len(o.Series) {
		return false
	}
	for i := range d.Labels {
		if d.Labels[i] != o.Labels[i] {
			return false
		}
	}
	for i := range d.Series {
		if !d.Series[i].Equal(o.Series[i]) {
			return false
		}
	}
	return true
}

func (s Series) Clone() Series {
	out := s
	if s.Values != nil {
		out.Values = append([]float64(nil), s.Values...)
	}
	out.FillColor = s.FillColor.Clone()
	out.StrokeColor = s.StrokeColor.Clone()
	return out
}

func (s Series) Equal(o Series) bool {
	if s.Name != o.Name || s.BorderWidth != o.BorderWidth || len(s.Values) != len(o.Values) {
		return false
	}
	for i := range s.Values {
		if s.Values[i] != o.Values[i] {
			return false
		}
	}
	return s.FillColor.Equal(o.FillColor) && s.StrokeColor.Equal(o.StrokeColor)
}

// Encoding is a per-point visual attribute (a colour): unset, one value
// applied to every point, or one value per label.
type Encoding struct {
	uniform  string
	perPoint []string
	set      bool
}

// Uniform returns an encoding that applies v to every point.
func Uniform(v string) Encoding { return Encoding{uniform: v, set: true} }

// PerPoint returns an encoding with one value per label.
func PerPoint(values ...string) Encoding {
	return Encoding{perPoint: append([]string{}, values...), set: true}
}

func (e Encoding) IsSet() bool      { return e.set }
func (e Encoding) IsPerPoint() bool { return e.set && e.perPoint != nil }
func (e Encoding) Len() int         { return len(e.perPoint) }

// Value returns the uniform value, or "" for per-point and unset encodings.
func (e Encoding) Value() string { return e.uniform }

// Values returns a copy of the per-point values.
func (e Encoding) Values() []string { return append([]string(nil), e.perPoint...) }

// At returns the value for point i.
func (e Encoding) At(i int) string {
	if e.IsPerPoint() {
		return e.perPoint[i]
	}
	return e.uniform
}

// Reindex picks per-point values in idx order; uniform and unset
// encodings are returned as they are.
func (e Encoding) Reindex(idx []int) Encoding {
	if !e.IsPerPoint() {
		return e
	}
	out := make([]string, len(idx))
	for i, j := range idx {
		out[i] = e.perPoint[j]
	}
	return Encoding{perPoint: out, set: true}
}

func (e Encoding) Clone() Encoding {
	if e.perPoint != nil {
		e.perPoint = append([]string{}, e.perPoint...)
	}
	return e
}

func (e Encoding) Equal(o Encoding) bool {
	if e.set != o.set || e.uniform != o.uniform || (e.perPoint == nil) != (o.perPoint == nil) {
		return false
	}
	if len(e.perPoint) != len(o.perPoint) {
		return false
	}
	for i := range e.perPoint {
		if e.perPoint[i] != o.perPoint[i] {
			return false
		}
	}
	return true
}

// IsZero lets encoding/json omit unset encodings (omitzero).
func (e Encoding) IsZero() bool { return !e.set }

func (e Encoding) MarshalJSON() ([]byte, error) {
	switch {
	case !e.set:
		return []byte("null"), nil
	case e.perPoint != nil:
		return json.Marshal(e.perPoint)
	default:
		return json.Marshal(e.uniform)
	}
}

func (e *Encoding) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = Encoding{}
		return nil
	}
	if b[0] == '[' {
		var vals []string
		if err := json.Unmarshal(b, &vals); err != nil {
			return fmt.Errorf("encoding array: %w", err)
		}
		*e = PerPoint(vals...)
		return nil
	}
	var v string
	if err := json.Unmarshal(b, &v); err != nil {
		return fmt.Errorf("encoding value: %w", err)
	}
	*e = Uniform(v)
	return nil
}

// UnmarshalYAML accepts the same scalar-or-sequence forms as JSON.
func (e *Encoding) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var vals []string
	if err := unmarshal(&vals); err == nil {
		*e = PerPoint(vals...)
		return nil
	}
	var v string
	if err := unmarshal(&v); err != nil {
		return fmt.Errorf("encoding must be a string or a list of strings: %w", err)
	}
	*e = Uniform(v)
	return nil
}
