package moran

import (
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// MultiResult aggregates one Test per distance threshold.
type MultiResult struct {
	Results []Result `yaml:"per_threshold" json:"per_threshold"`

	// MaxMoran is the largest I among thresholds interpreted as positive,
	// or 0 when none is.
	MaxMoran float64 `yaml:"max_moran" json:"max_moran"`

	// MaxMoranThreshold is the threshold MaxMoran was observed at, or -1.
	MaxMoranThreshold float64 `yaml:"max_moran_threshold" json:"max_moran_threshold"`

	// MaxMoranPValue is the p-value of the MaxMoran test, or 1.
	MaxMoranPValue float64 `yaml:"max_moran_p_value" json:"max_moran_p_value"`
}

// MultiThreshold tests x against every matrix in ws.
func MultiThreshold(x []float64, ws *spatial.WeightSet) (*MultiResult, error) {
	matrices := ws.Matrices()
	out := &MultiResult{
		Results:           make([]Result, 0, len(matrices)),
		MaxMoranThreshold: -1,
		MaxMoranPValue:    1,
	}
	found := false
	for _, w := range matrices {
		r, err := Test(x, w)
		if err != nil {
			return nil, err
		}
		out.Results = append(out.Results, r)
		if r.Interpretation == Positive && (!found || r.Observed > out.MaxMoran) {
			found = true
			out.MaxMoran = r.Observed
			out.MaxMoranThreshold = r.Threshold
			out.MaxMoranPValue = r.PValue
		}
	}
	return out, nil
}

// HasPositive reports whether any threshold shows significant positive
// autocorrelation.
func (m *MultiResult) HasPositive() bool {
	return m.MaxMoranThreshold >= 0
}

// PValueBinary is 0 when some threshold is significantly positive and 1
// otherwise. It is the p-value series the optimization scorer rescales.
func (m *MultiResult) PValueBinary() float64 {
	if m.HasPositive() {
		return 0
	}
	return 1
}

// PValueLabel renders PValueBinary as "<0.05" or ">=0.05".
func (m *MultiResult) PValueLabel() string {
	if m.HasPositive() {
		return "<0.05"
	}
	return ">=0.05"
}

// At returns the result for threshold t.
func (m *MultiResult) At(t float64) (Result, bool) {
	for _, r := range m.Results {
		if r.Threshold == t {
			return r, true
		}
	}
	return Result{}, false
}
