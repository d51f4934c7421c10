// Package selection picks the subset of ranked spatial predictors that goes
// into the final model.
//
// Sequential selection fits every prefix of the ranking. Optimized
// selection grows the model greedily, re-ranking the remaining candidates
// against the current model after every addition. Both record one
// Record per step and choose the best step with Score, so their results
// are comparable.
package selection

import (
	"context"
	"strings"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/moran"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/ranking"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// Strategy is the selection search strategy.
type Strategy int

const (
	// Sequential fits every prefix of the ranking in ranking order.
	Sequential Strategy = iota
	// Optimized adds one predictor per step, re-ranking the rest against
	// the current model. Requires an effect ranking.
	Optimized
)

// String returns "sequential" or "optimized".
func (s Strategy) String() string {
	switch s {
	case Sequential:
		return "sequential"
	case Optimized:
		return "optimized"
	default:
		return "unknown"
	}
}

// ParseStrategy parses a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sequential":
		return Sequential, nil
	case "optimized":
		return Optimized, nil
	}
	return 0, errors.NewConfigError("selection.strategy", "must be sequential or optimized", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler using ParseStrategy.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := ParseStrategy(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Weights are the optimization score weights.
type Weights struct {
	// RSquared weighs the rescaled R² of a step.
	RSquared float64 `yaml:"r_squared" mapstructure:"r_squared"`
	// Penalization weighs the rescaled predictor count of a step.
	Penalization float64 `yaml:"penalization" mapstructure:"penalization"`
}

// DefaultWeights returns {RSquared: 0.75, Penalization: 0.25}.
func DefaultWeights() Weights {
	return Weights{RSquared: 0.75, Penalization: 0.25}
}

// Validate checks that both weights are in [0, 1].
func (w Weights) Validate() error {
	if !(w.RSquared >= 0 && w.RSquared <= 1) {
		return errors.NewConfigError("weights.r_squared", "must be in [0, 1]", w.RSquared)
	}
	if !(w.Penalization >= 0 && w.Penalization <= 1) {
		return errors.NewConfigError("weights.penalization", "must be in [0, 1]", w.Penalization)
	}
	return nil
}

// Record describes one selection step.
type Record struct {
	// Step is the number of spatial predictors in the model, from 1.
	Step int `yaml:"step" json:"step"`

	// Predictor is the spatial predictor added at this step.
	Predictor string `yaml:"spatial_predictor_name" json:"spatial_predictor_name"`

	// MoranI is the max positive residual Moran's I of the step's model.
	MoranI float64 `yaml:"moran_i" json:"moran_i"`
	PValue float64 `yaml:"p_value" json:"p_value"`

	// PValueBinary is 1 when no threshold is significantly positive.
	PValueBinary float64 `yaml:"p_value_binary" json:"p_value_binary"`
	PValueLabel  string  `yaml:"p_value_label" json:"p_value_label"`

	RSquared float64 `yaml:"r_squared" json:"r_squared"`

	// Penalization is Step divided by the size of the initial ranking.
	Penalization float64 `yaml:"penalization" json:"penalization"`

	// Score is filled in by Score.
	Score float64 `yaml:"optimization" json:"optimization"`

	// Selected marks steps whose predictor belongs to the chosen subset.
	Selected bool `yaml:"selected" json:"selected"`
}

func newRecord(step, total int, predictor string, fit model.FitResult, mr *moran.MultiResult) Record {
	return Record{
		Step:         step,
		Predictor:    predictor,
		MoranI:       mr.MaxMoran,
		PValue:       mr.MaxMoranPValue,
		PValueBinary: mr.PValueBinary(),
		PValueLabel:  mr.PValueLabel(),
		RSquared:     fit.RSquared(),
		Penalization: float64(step) / float64(total),
	}
}

// Result is the output of a selector.
type Result struct {
	Strategy Strategy `yaml:"method" json:"method"`

	// Optimization has one record per step in step order.
	Optimization []Record `yaml:"optimization" json:"optimization"`

	// Best is the chosen subset in the order the predictors were added.
	Best []string `yaml:"best_spatial_predictors" json:"best_spatial_predictors"`

	bestFit   model.FitResult
	bestMoran *moran.MultiResult
}

// BestFit returns the fit of the model with the Best predictors.
func (r *Result) BestFit() model.FitResult { return r.bestFit }

// BestMoran returns the residual diagnostics of BestFit.
func (r *Result) BestMoran() *moran.MultiResult { return r.bestMoran }

// Selector picks spatial predictors from a ranking. base is the model
// without spatial predictors; its Data must hold every ranked column.
type Selector interface {
	Strategy() Strategy
	Select(ctx context.Context, rk *ranking.Result, base model.FitRequest) (*Result, error)
}

// Option configures a selector.
type Option func(*selector)

// WithPool sets the worker pool fits run on.
func WithPool(p *parallel.Pool) Option {
	return func(s *selector) { s.pool = p }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(s *selector) { s.logger = l }
}

// New returns the selector for strategy.
func New(strategy Strategy, fitter model.Fitter, ws *spatial.WeightSet, w Weights, opts ...Option) (Selector, error) {
	switch strategy {
	case Sequential:
		return NewSequential(fitter, ws, w, opts...), nil
	case Optimized:
		return NewOptimized(fitter, ws, w, opts...), nil
	}
	return nil, errors.NewConfigError("selection.strategy", "unknown strategy", strategy)
}

type selector struct {
	fitter  model.Fitter
	ws      *spatial.WeightSet
	weights Weights
	pool    *parallel.Pool
	logger  log.Logger
}

func newSelector(strategy Strategy, fitter model.Fitter, ws *spatial.WeightSet, w Weights, opts []Option) selector {
	s := selector{fitter: fitter, ws: ws, weights: w}
	for _, opt := range opts {
		opt(&s)
	}
	if s.pool == nil {
		s.pool = parallel.NewPool(0)
	}
	if s.logger == nil {
		s.logger = log.Default()
	}
	s.logger = s.logger.With(log.ComponentKey, "selection", log.SelectorKey, strategy.String())
	return s
}

func (s *selector) check(rk *ranking.Result) error {
	if s.fitter == nil {
		return errors.NewMissingInputError("selection", "fitter")
	}
	if s.ws == nil {
		return errors.NewMissingInputError("selection", "weight matrices")
	}
	if rk.Len() == 0 {
		return errors.WithStack(errors.ErrNoEligiblePredictors)
	}
	return nil
}

// fit fits base plus preds and tests its residuals.
func (s *selector) fit(ctx context.Context, base model.FitRequest, preds []string) (model.FitResult, *moran.MultiResult, error) {
	fit, err := s.fitter.Fit(ctx, base.With(preds...))
	if err != nil {
		return nil, nil, errors.Wrapf(err, "fit with %d spatial predictors", len(preds))
	}
	mr, err := moran.MultiThreshold(fit.Residuals(), s.ws)
	if err != nil {
		return nil, nil, err
	}
	return fit, mr, nil
}

// finish scores records, marks the chosen prefix and assembles the result.
func (s *selector) finish(strategy Strategy, records []Record, order []string, fits []model.FitResult, morans []*moran.MultiResult) (*Result, error) {
	best, err := Score(records, s.weights)
	if err != nil {
		return nil, err
	}
	for i := 0; i <= best; i++ {
		records[i].Selected = true
	}
	s.logger.Info("selection finished",
		log.OperationKey, log.OperationSelect,
		log.StepKey, len(records),
		log.SelectedKey, best+1,
		log.ScoreKey, records[best].Score,
		log.MaxMoranKey, records[best].MoranI,
		log.R2ScoreKey, records[best].RSquared,
	)
	return &Result{
		Strategy:     strategy,
		Optimization: records,
		Best:         append([]string(nil), order[:best+1]...),
		bestFit:      fits[best],
		bestMoran:    morans[best],
	}, nil
}
