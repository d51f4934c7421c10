package selection

import (
	"context"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/moran"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/ranking"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// OptimizedSelector grows the model one predictor at a time. After every
// addition the remaining candidates are re-ranked in effect mode against
// the current model's residual Moran's I, and the new top candidate is
// added. Candidates a round finds ineligible are dropped for good. The
// search stops when a round has no eligible candidate.
//
// Rounds depend on each other; fits within a round run on the pool.
type OptimizedSelector struct {
	selector
	ranker *ranking.Ranker
}

// NewOptimized creates an OptimizedSelector.
func NewOptimized(fitter model.Fitter, ws *spatial.WeightSet, w Weights, opts ...Option) *OptimizedSelector {
	s := newSelector(Optimized, fitter, ws, w, opts)
	return &OptimizedSelector{
		selector: s,
		ranker:   ranking.NewRanker(fitter, ws, ranking.WithPool(s.pool), ranking.WithLogger(s.logger)),
	}
}

// Strategy implements Selector.
func (s *OptimizedSelector) Strategy() Strategy { return Optimized }

// Select implements Selector. The penalization of step k is k divided by
// the size of rk.
func (s *OptimizedSelector) Select(ctx context.Context, rk *ranking.Result, base model.FitRequest) (*Result, error) {
	if err := s.check(rk); err != nil {
		return nil, err
	}
	total := rk.Len()
	included := []string{rk.Ranking[0]}
	remaining := rk.Ranking[1:]

	// an effect-mode ranking already fitted the first model
	var fit model.FitResult
	var mr *moran.MultiResult
	if top, ok := rk.Top(); ok && top.Fit() != nil {
		fit, mr = top.Fit(), top.Moran()
	} else {
		var err error
		if fit, mr, err = s.fit(ctx, base, included); err != nil {
			return nil, err
		}
	}

	records := []Record{newRecord(1, total, included[0], fit, mr)}
	fits := []model.FitResult{fit}
	morans := []*moran.MultiResult{mr}

	// without positive autocorrelation left no candidate can reduce it
	for round := 2; len(remaining) > 0 && mr.HasPositive(); round++ {
		rr, err := s.ranker.RankEffect(ctx, remaining, base.With(included...), mr.MaxMoran)
		if err != nil {
			return nil, err
		}
		top, ok := rr.Top()
		if !ok {
			break
		}
		included = append(included, top.Name)
		remaining = rr.Ranking[1:]
		fit, mr = top.Fit(), top.Moran()

		records = append(records, newRecord(len(included), total, top.Name, fit, mr))
		fits = append(fits, fit)
		morans = append(morans, mr)

		s.logger.Debug("round finished",
			log.RoundKey, round,
			log.PredictorKey, top.Name,
			log.MaxMoranKey, mr.MaxMoran,
			log.EligibleKey, rr.Len(),
			log.R2ScoreKey, fit.RSquared(),
		)
	}

	return s.finish(Optimized, records, included, fits, morans)
}
