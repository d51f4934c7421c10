// Package engine runs the spatial predictor pipeline: fit the base model,
// generate candidate spatial predictors, rank them, select a subset and
// fit the final model.
//
// A run never mutates its inputs. Every stage returns its own value and the
// Result is assembled once at the end.
//
//	eng, err := engine.New(engine.DefaultConfig(), linear.NewFitter())
//	if err != nil {
//	    return err
//	}
//	res, err := eng.Run(ctx, engine.Input{
//	    Data:       table,
//	    Distance:   distances,
//	    Dependent:  "y",
//	    Predictors: []string{"x1", "x2"},
//	})
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/dataset"
	"github.com/YuminosukeSato/spatialpred/moran"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/predictors"
	"github.com/YuminosukeSato/spatialpred/ranking"
	"github.com/YuminosukeSato/spatialpred/selection"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// Input is the data of one run. Distance must be row-aligned with Data.
type Input struct {
	Data       *dataset.Table
	Distance   *spatial.DistanceMatrix
	Dependent  string
	Predictors []string
}

func (in Input) validate() error {
	if in.Distance == nil {
		return errors.NewMissingInputError("engine.Run", "distance matrix")
	}
	if in.Data == nil {
		return errors.NewMissingInputError("engine.Run", "data table")
	}
	if in.Data.Rows() != in.Distance.N() {
		return errors.NewDimensionError("engine.Run", in.Distance.N(), in.Data.Rows(), 0)
	}
	return in.request(in.Data, 0).Validate()
}

func (in Input) request(data *dataset.Table, seed int64) model.FitRequest {
	return model.FitRequest{
		Data:       data,
		Dependent:  in.Dependent,
		Predictors: append([]string(nil), in.Predictors...),
		Seed:       seed,
	}
}

// Engine runs the pipeline with a fixed configuration. It is safe for
// concurrent use if its Fitter is.
type Engine struct {
	cfg    Config
	fitter model.Fitter
	pool   *parallel.Pool
	logger log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithPool sets the worker pool for candidate and step fits.
func WithPool(p *parallel.Pool) Option {
	return func(e *Engine) { e.pool = p }
}

// WithWorkers creates a pool with n workers. n <= 0 means
// parallel.DefaultWorkers().
func WithWorkers(n int) Option {
	return func(e *Engine) { e.pool = parallel.NewPool(n) }
}

// New validates cfg and creates an Engine around the regression
// collaborator fitter.
func New(cfg Config, fitter model.Fitter, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if fitter == nil {
		return nil, errors.NewMissingInputError("engine.New", "fitter")
	}
	e := &Engine{cfg: cfg, fitter: fitter}
	for _, opt := range opts {
		opt(e)
	}
	if e.pool == nil {
		e.pool = parallel.NewPool(0)
	}
	if e.logger == nil {
		e.logger = log.Default()
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Run executes the pipeline. Conditions that leave the base model in place
// are reported through Result.Outcome, not as errors. A missing distance
// matrix fails before any fit.
func (e *Engine) Run(ctx context.Context, in Input) (*Result, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	runID := uuid.NewString()
	logger := e.logger.With(log.RunIDKey, runID, log.ComponentKey, "engine")
	start := time.Now()

	res := &Result{RunID: runID, Config: e.cfg}
	fitter := model.NewCachedFitter(model.Repeated(model.Checked(e.fitter), e.cfg.Repetitions, e.cfg.Seed))

	ws, err := spatial.NewWeightSet(in.Distance, e.cfg.Thresholds)
	if err != nil {
		logger.Error("weight matrices failed", log.ErrorKey, err)
		return nil, err
	}
	res.DroppedThresholds = ws.Dropped()
	for _, t := range res.DroppedThresholds {
		logger.Warn("threshold dropped", log.ThresholdKey, t)
	}

	base := in.request(in.Data, e.cfg.Seed)
	if res.BaseFit, res.BaseMoran, err = fitAndTest(ctx, fitter, base, ws); err != nil {
		return nil, errors.Wrap(err, "base model")
	}
	res.FinalFit, res.FinalMoran = res.BaseFit, res.BaseMoran
	logger.Info("base model fitted",
		log.StageKey, "base",
		log.SamplesKey, in.Data.Rows(),
		log.PredictorsKey, len(in.Predictors),
		log.MaxMoranKey, res.BaseMoran.MaxMoran,
		log.R2ScoreKey, res.BaseFit.RSquared(),
	)
	if !res.BaseMoran.HasPositive() {
		res.Outcome = NoSpatialCorrelation
		logger.Info("no residual spatial autocorrelation", log.StageKey, "base")
		return res, nil
	}

	cands, err := e.generate(ctx, in, ws, res, logger)
	if err != nil {
		return nil, err
	}
	res.Candidates = cands.Len()
	if cands.Len() == 0 {
		res.Outcome = NoEligiblePredictors
		return res, nil
	}

	names, cols := cands.Columns()
	augmented, err := in.Data.WithColumns(names, cols)
	if err != nil {
		return nil, errors.Wrap(err, "add spatial predictors to data")
	}
	augBase := in.request(augmented, e.cfg.Seed)

	var chosen []string
	if e.cfg.Ranker == RankerNone {
		chosen = names
		if res.FinalFit, res.FinalMoran, err = fitAndTest(ctx, fitter, augBase.With(names...), ws); err != nil {
			return nil, errors.Wrap(err, "model with every candidate")
		}
		res.Outcome = AllCandidatesKept
	} else {
		ranker := ranking.NewRanker(fitter, ws, ranking.WithPool(e.pool), ranking.WithLogger(logger))
		switch e.cfg.Ranker.mode() {
		case ranking.Moran:
			res.Ranking, err = ranker.RankMoran(ctx, cands)
		default:
			res.Ranking, err = ranker.RankEffect(ctx, names, augBase, res.BaseMoran.MaxMoran)
		}
		if err != nil {
			return nil, err
		}
		if res.Ranking.Len() == 0 {
			res.Outcome = NoEligiblePredictors
			logger.Info("no eligible spatial predictors", log.StageKey, "rank")
			return res, nil
		}

		sel, err := selection.New(e.cfg.Selector.strategy(), fitter, ws, e.cfg.Weights,
			selection.WithPool(e.pool), selection.WithLogger(logger))
		if err != nil {
			return nil, err
		}
		if res.Selection, err = sel.Select(ctx, res.Ranking, augBase); err != nil {
			return nil, err
		}
		chosen = res.Selection.Best
		res.FinalFit, res.FinalMoran = res.Selection.BestFit(), res.Selection.BestMoran()
		res.Outcome = Improved
	}

	if res.SpatialPredictors, err = cands.Subset(chosen); err != nil {
		return nil, err
	}
	hits, misses := fitter.Stats()
	logger.Info("run finished",
		log.StageKey, "final",
		log.SelectedKey, len(chosen),
		log.MaxMoranKey, res.FinalMoran.MaxMoran,
		log.R2ScoreKey, res.FinalFit.RSquared(),
		log.CacheHitsKey, hits,
		log.CacheMissesKey, misses,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (e *Engine) generate(ctx context.Context, in Input, ws *spatial.WeightSet, res *Result, logger log.Logger) (*predictors.Set, error) {
	gen, err := predictors.NewGenerator(e.cfg.Generator, e.cfg.MaxPredictors, e.cfg.PCAWeighted)
	if err != nil {
		return nil, err
	}
	cands, err := gen.Generate(ctx, in.Distance, ws)
	if err != nil {
		return nil, errors.Wrapf(err, "generate %s predictors", e.cfg.Generator)
	}
	generated := cands.Len()

	// Without a ranker every generated column is kept.
	if e.cfg.MaxCorrelation > 0 && generated > 0 && e.cfg.Ranker != RankerNone {
		base := make([][]float64, 0, len(in.Predictors))
		for _, p := range in.Predictors {
			col, err := in.Data.Column(p)
			if err != nil {
				return nil, err
			}
			base = append(base, col)
		}
		cands, res.FilteredOut = predictors.FilterCorrelated(cands, base, e.cfg.MaxCorrelation)
	}

	logger.Info("candidates generated",
		log.StageKey, "generate",
		log.OperationKey, log.OperationGenerate,
		log.GeneratorKey, e.cfg.Generator.String(),
		log.ThresholdsKey, ws.Len(),
		log.CandidatesKey, cands.Len(),
		log.FilteredKey, generated-cands.Len(),
	)
	return cands, nil
}

func fitAndTest(ctx context.Context, fitter model.Fitter, req model.FitRequest, ws *spatial.WeightSet) (model.FitResult, *moran.MultiResult, error) {
	fit, err := fitter.Fit(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	mr, err := moran.MultiThreshold(fit.Residuals(), ws)
	if err != nil {
		return nil, nil, err
	}
	return fit, mr, nil
}
