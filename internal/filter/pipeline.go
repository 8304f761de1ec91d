// Package filter applies a widget's filter panel settings to its dataset.
package filter

import (
	"strings"

	"github.com/platformbuilds/dashboard-core/internal/models"
	"github.com/platformbuilds/dashboard-core/internal/monitoring"
	"github.com/platformbuilds/dashboard-core/internal/transform"
	"github.com/platformbuilds/dashboard-core/pkg/logger"
)

// Pipeline steps, in the order they run.
const (
	StepSearch = "search"
	StepLabels = "labels"
	StepSort   = "sort"
	StepTopN   = "top_n"
)

// Spec is the filter panel state. The zero value is the identity filter.
type Spec struct {
	SearchText     string              `json:"searchText,omitempty"`
	SelectedLabels []string            `json:"selectedLabels,omitempty"`
	SortOrder      transform.SortOrder `json:"sortOrder,omitempty"`
	TopN           int                 `json:"topN,omitempty"`
}

// IsIdentity reports whether applying the spec leaves any dataset as is.
func (s Spec) IsIdentity() bool {
	return strings.TrimSpace(s.SearchText) == "" &&
		len(s.SelectedLabels) == 0 &&
		s.SortOrder.IsNone() &&
		s.TopN <= 0
}

// Clone copies the selected label slice.
func (s Spec) Clone() Spec {
	if s.SelectedLabels != nil {
		s.SelectedLabels = append([]string(nil), s.SelectedLabels...)
	}
	return s
}

// Diagnostic describes the step that failed when the pipeline fell back
// to the original dataset.
type Diagnostic struct {
	Step string `json:"step"`
	Err  error  `json:"-"`
}

func (d *Diagnostic) Error() string { return d.Step + ": " + d.Err.Error() }

func (d *Diagnostic) Unwrap() error { return d.Err }

// Result is the dataset to display plus, when a step failed, why the
// original was returned instead.
type Result struct {
	Dataset    models.Dataset `json:"data"`
	Diagnostic *Diagnostic    `json:"-"`
}

// FellBack reports whether the pipeline discarded its work.
func (r Result) FellBack() bool { return r.Diagnostic != nil }

// PanelOptions are the facts a filter panel needs to render its inputs.
type PanelOptions struct {
	Labels  []string `json:"labels"`
	MaxTopN int      `json:"maxTopN"`
}

// Pipeline runs search, label filter, sort and top-N in that fixed order,
// skipping steps whose setting is empty or neutral.
type Pipeline struct {
	logger logger.Logger
}

func New(log logger.Logger) *Pipeline {
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{logger: log}
}

// Apply runs spec over d. If any step fails, all partial results are
// dropped and a copy of d is returned with a Diagnostic.
func (p *Pipeline) Apply(d models.Dataset, spec Spec) Result {
	out, diag := run(d, spec)
	if diag != nil {
		p.logger.Warn("Filter step failed; showing unfiltered dataset",
			"step", diag.Step, "error", diag.Err)
		monitoring.RecordFilterFallback(diag.Step)
		return Result{Dataset: d.Clone(), Diagnostic: diag}
	}
	return Result{Dataset: out}
}

// Reset is Apply with the identity filter.
func (p *Pipeline) Reset(d models.Dataset) Result {
	return p.Apply(d, Spec{})
}

// Options lists the labels of d in their original order and the upper
// bound of the top-N input.
func (p *Pipeline) Options(d models.Dataset) PanelOptions {
	return PanelOptions{Labels: append([]string{}, d.Labels...), MaxTopN: len(d.Labels)}
}

// ApplyFilterSpec is the pure form of Pipeline.Apply: it returns the
// filtered dataset, or a copy of d when a step fails.
func ApplyFilterSpec(d models.Dataset, spec Spec) models.Dataset {
	out, diag := run(d, spec)
	if diag != nil {
		return d.Clone()
	}
	return out
}

func run(d models.Dataset, spec Spec) (models.Dataset, *Diagnostic) {
	cur := d.Clone()
	var err error

	if q := strings.TrimSpace(spec.SearchText); q != "" {
		if cur, err = transform.SearchByLabel(cur, q); err != nil {
			return models.Dataset{}, &Diagnostic{Step: StepSearch, Err: err}
		}
	}

	if len(spec.SelectedLabels) > 0 {
		if cur, err = transform.FilterByLabelSet(cur, spec.SelectedLabels); err != nil {
			return models.Dataset{}, &Diagnostic{Step: StepLabels, Err: err}
		}
	}

	if !spec.SortOrder.IsNone() {
		if cur, err = transform.SortByValue(cur, spec.SortOrder); err != nil {
			return models.Dataset{}, &Diagnostic{Step: StepSort, Err: err}
		}
	}

	// top-N only when it would actually drop points
	if spec.TopN > 0 && spec.TopN < len(cur.Labels) {
		if cur, err = transform.TakeTopN(cur, spec.TopN); err != nil {
			return models.Dataset{}, &Diagnostic{Step: StepTopN, Err: err}
		}
	}

	return cur, nil
}
