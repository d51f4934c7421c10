package fixtures

import (
	"context"
	"math"
	"sync/atomic"

	"github.com/YuminosukeSato/spatialpred/core/model"
)

// EffectFitter is a model.Fitter with scripted residuals. The residual of
// observation i is amplitude·Pattern[i] + Noise[i], where amplitude is Base
// minus the sum of Effects of the fitted predictors, floored at zero.
// Predictors absent from Effects have no effect. R² grows as the amplitude
// shrinks and by 0.01 per predictor.
type EffectFitter struct {
	Pattern []float64
	Noise   []float64
	Base    float64
	Effects map[string]float64

	// AmplitudeFunc replaces Base and Effects when set.
	AmplitudeFunc func(preds []string) float64

	calls atomic.Int64
}

// NewClusterEffectFitter scripts residuals on TwoClusters(nPer): the pattern
// is ±1 by cluster and the noise is normal with standard deviation sd.
func NewClusterEffectFitter(seed uint64, nPer int, sd, base float64, effects map[string]float64) *EffectFitter {
	rng := NewRand(seed)
	n := 2 * nPer
	pattern := make([]float64, n)
	noise := make([]float64, n)
	for i := 0; i < n; i++ {
		pattern[i] = float64(2*Cluster(i, nPer) - 1)
		noise[i] = sd * rng.NormFloat64()
	}
	return &EffectFitter{Pattern: pattern, Noise: noise, Base: base, Effects: effects}
}

// Fit implements model.Fitter.
func (f *EffectFitter) Fit(ctx context.Context, req model.FitRequest) (model.FitResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.calls.Add(1)

	amp := f.Amplitude(req.Predictors)
	residuals := make([]float64, len(f.Pattern))
	for i := range residuals {
		residuals[i] = amp*f.Pattern[i] + f.Noise[i]
	}
	r2 := 0.5 + 0.01*float64(len(req.Predictors))
	if f.Base > 0 {
		r2 += 0.4 * (1 - amp/f.Base)
	}
	return model.NewSingleFit(req.Predictors, residuals, math.Min(r2, 1)), nil
}

// Amplitude returns the pattern amplitude left after fitting preds.
func (f *EffectFitter) Amplitude(preds []string) float64 {
	if f.AmplitudeFunc != nil {
		return f.AmplitudeFunc(preds)
	}
	amp := f.Base
	for _, p := range preds {
		amp -= f.Effects[p]
	}
	return math.Max(amp, 0)
}

// Calls returns the number of Fit calls made so far.
func (f *EffectFitter) Calls() int64 {
	return f.calls.Load()
}
