package engine

import (
	"io"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/moran"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/predictors"
	"github.com/YuminosukeSato/spatialpred/ranking"
	"github.com/YuminosukeSato/spatialpred/selection"
)

// Outcome says how a run ended.
type Outcome int

const (
	// NoSpatialCorrelation: the base model residuals are not positively
	// autocorrelated at any threshold. The final model is the base model.
	NoSpatialCorrelation Outcome = iota
	// NoEligiblePredictors: no candidate lowers the residual
	// autocorrelation. The final model is the base model.
	NoEligiblePredictors
	// Improved: a selector chose a non-empty subset.
	Improved
	// AllCandidatesKept: every raw distance predictor was added.
	AllCandidatesKept
)

func (o Outcome) String() string {
	switch o {
	case NoSpatialCorrelation:
		return "no_spatial_correlation"
	case NoEligiblePredictors:
		return "no_eligible_predictors"
	case Improved:
		return "improved"
	case AllCandidatesKept:
		return "all_candidates_kept"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// Result is the immutable outcome of one run.
type Result struct {
	RunID   string
	Config  Config
	Outcome Outcome

	BaseFit   model.FitResult
	BaseMoran *moran.MultiResult

	// Candidates is the number of candidates after the correlation filter.
	Candidates  int
	FilteredOut []string

	// Ranking and Selection are nil when the stage did not run.
	Ranking   *ranking.Result
	Selection *selection.Result

	// SpatialPredictors are the predictors of the final model, nil when the
	// base model is kept.
	SpatialPredictors *predictors.Set

	FinalFit   model.FitResult
	FinalMoran *moran.MultiResult

	DroppedThresholds []float64
}

// Reason returns ErrNoSpatialCorrelation or ErrNoEligiblePredictors when
// the run kept the base model, and nil otherwise.
func (r *Result) Reason() error {
	switch r.Outcome {
	case NoSpatialCorrelation:
		return errors.ErrNoSpatialCorrelation
	case NoEligiblePredictors:
		return errors.ErrNoEligiblePredictors
	}
	return nil
}

// SpatialPredictorNames returns the names of the final spatial predictors.
func (r *Result) SpatialPredictorNames() []string {
	if r.SpatialPredictors == nil {
		return nil
	}
	return r.SpatialPredictors.Names()
}

// FitSummary is the serializable part of a fit.
type FitSummary struct {
	Predictors []string           `yaml:"predictors"`
	RSquared   float64            `yaml:"r_squared"`
	Moran      *moran.MultiResult `yaml:"moran"`
}

// Report is the YAML document written for a run.
type Report struct {
	RunID             string            `yaml:"run_id"`
	Outcome           Outcome           `yaml:"outcome"`
	Reason            string            `yaml:"reason,omitempty"`
	Config            Config            `yaml:"config"`
	DroppedThresholds []float64         `yaml:"dropped_thresholds,omitempty"`
	Candidates        int               `yaml:"candidates"`
	FilteredOut       []string          `yaml:"filtered_out,omitempty"`
	Base              FitSummary        `yaml:"base_model"`
	Final             FitSummary        `yaml:"spatial_model"`
	SpatialPredictors []string          `yaml:"spatial_predictors"`
	Ranking           *ranking.Result   `yaml:"ranking,omitempty"`
	Selection         *selection.Result `yaml:"selection,omitempty"`
}

// Report builds the serializable report.
func (r *Result) Report() *Report {
	rep := &Report{
		RunID:             r.RunID,
		Outcome:           r.Outcome,
		Config:            r.Config,
		DroppedThresholds: r.DroppedThresholds,
		Candidates:        r.Candidates,
		FilteredOut:       r.FilteredOut,
		Base:              summarize(r.BaseFit, r.BaseMoran),
		Final:             summarize(r.FinalFit, r.FinalMoran),
		SpatialPredictors: r.SpatialPredictorNames(),
		Ranking:           r.Ranking,
		Selection:         r.Selection,
	}
	if err := r.Reason(); err != nil {
		rep.Reason = err.Error()
	}
	return rep
}

func summarize(fit model.FitResult, mr *moran.MultiResult) FitSummary {
	if fit == nil {
		return FitSummary{Moran: mr}
	}
	return FitSummary{Predictors: fit.Predictors(), RSquared: fit.RSquared(), Moran: mr}
}

// WriteYAML writes the report to w.
func (r *Result) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(r.Report()); err != nil {
		return errors.Wrap(err, "encode report")
	}
	return enc.Close()
}
