package predictors

import (
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// DefaultMaxCorrelation is the correlation filter default.
const DefaultMaxCorrelation = 0.5

// FilterCorrelated drops predictors that are constant or non-finite, and
// predictors whose absolute Pearson correlation with a base predictor or
// with an earlier kept predictor exceeds maxCorrelation. Set order decides
// which of two correlated predictors survives. It returns the kept set and
// the names of dropped predictors.
func FilterCorrelated(set *Set, base [][]float64, maxCorrelation float64) (*Set, []string) {
	var kept [][]float64
	var dropped []string

	out := set.Filter(func(p *SpatialPredictor) bool {
		if !usable(p.Values) {
			dropped = append(dropped, p.Name)
			return false
		}
		for _, b := range base {
			if tooCorrelated(p.Values, b, maxCorrelation) {
				dropped = append(dropped, p.Name)
				return false
			}
		}
		for _, k := range kept {
			if tooCorrelated(p.Values, k, maxCorrelation) {
				dropped = append(dropped, p.Name)
				return false
			}
		}
		kept = append(kept, p.Values)
		return true
	})
	return out, dropped
}

func usable(v []float64) bool {
	if len(v) < 2 {
		return false
	}
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	_, sd := stat.MeanStdDev(v, nil)
	return sd > 1e-12
}

func tooCorrelated(a, b []float64, max float64) bool {
	if len(a) != len(b) {
		return false
	}
	r := stat.Correlation(a, b, nil)
	// NaN means one side is constant
	if math.IsNaN(r) {
		return false
	}
	// rounding can push |r| of collinear columns past 1
	return math.Abs(errors.ClipValue(r, -1, 1)) > max
}
