package selection

import (
	"context"
	"time"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/moran"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/ranking"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// SequentialSelector fits the first k ranked predictors for every k and
// keeps the best prefix.
type SequentialSelector struct {
	selector
}

// NewSequential creates a SequentialSelector.
func NewSequential(fitter model.Fitter, ws *spatial.WeightSet, w Weights, opts ...Option) *SequentialSelector {
	return &SequentialSelector{selector: newSelector(Sequential, fitter, ws, w, opts)}
}

// Strategy implements Selector.
func (s *SequentialSelector) Strategy() Strategy { return Sequential }

// Select implements Selector. The prefix fits are independent and run on
// the pool. An empty ranking returns ErrNoEligiblePredictors.
func (s *SequentialSelector) Select(ctx context.Context, rk *ranking.Result, base model.FitRequest) (*Result, error) {
	if err := s.check(rk); err != nil {
		return nil, err
	}
	start := time.Now()
	order := rk.Ranking
	k := len(order)

	fits := make([]model.FitResult, k)
	morans := make([]*moran.MultiResult, k)
	err := s.pool.Map(ctx, k, func(ctx context.Context, i int) error {
		fit, mr, err := s.fit(ctx, base, order[:i+1])
		if err != nil {
			return err
		}
		fits[i], morans[i] = fit, mr
		s.logger.Debug("step fitted",
			log.StepKey, i+1,
			log.PredictorKey, order[i],
			log.MaxMoranKey, mr.MaxMoran,
			log.R2ScoreKey, fit.RSquared(),
		)
		return nil
	})
	if err != nil {
		s.logger.Error("sequential selection failed", log.ErrorKey, err)
		return nil, err
	}

	records := make([]Record, k)
	for i := range records {
		records[i] = newRecord(i+1, k, order[i], fits[i], morans[i])
	}
	s.logger.Debug("prefix fits finished", log.DurationMsKey, time.Since(start).Milliseconds())
	return s.finish(Sequential, records, order, fits, morans)
}
