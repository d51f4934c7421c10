package spatial

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// rows below this are filled sequentially
const parallelRowThreshold = 256

// WeightMatrix is the inverse-distance neighbourhood matrix for one
// threshold: zero on the diagonal and for pairs at distance <= threshold,
// 1/d otherwise, scaled so that all weights sum to 1.
//
// S0, S1 and S2 are the sums used by the Moran's I variance and are computed
// once at construction.
type WeightMatrix struct {
	threshold float64
	w         *mat.SymDense
	rowSums   []float64
	s0        float64
	s1        float64
	s2        float64
}

// Weights builds the normalized weight matrix of d at threshold t. It returns
// a DegenerateWeightsWarning when no pair is farther apart than t.
func Weights(d *DistanceMatrix, t float64) (*WeightMatrix, error) {
	if d == nil {
		return nil, errors.NewMissingInputError("spatial.Weights", "distance matrix")
	}
	if t < 0 {
		return nil, errors.NewConfigError("thresholds", "thresholds must be finite and non-negative", t)
	}

	n := d.N()
	w := mat.NewSymDense(n, nil)
	parallel.ParallelizeWithThreshold(n, parallelRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			for j := i + 1; j < n; j++ {
				if dist := d.At(i, j); dist > t {
					w.SetSym(i, j, 1/dist)
				}
			}
		}
	})

	total := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			total += w.At(i, j)
		}
	}
	if total == 0 {
		return nil, errors.WithStack(errors.NewDegenerateWeightsWarning("spatial.Weights", t))
	}

	wm := &WeightMatrix{threshold: t, w: w, rowSums: make([]float64, n)}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			w.SetSym(i, j, w.At(i, j)/total)
		}
	}
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := w.At(i, j)
			wm.rowSums[i] += v
			wm.s0 += v
			// symmetric, so (w_ij + w_ji)² = 4 w_ij²
			wm.s1 += 2 * v * v
		}
	}
	for _, rs := range wm.rowSums {
		// row and column sums coincide
		wm.s2 += 4 * rs * rs
	}
	return wm, nil
}

// Threshold returns the distance threshold the matrix was built for.
func (w *WeightMatrix) Threshold() float64 { return w.threshold }

// N returns the number of observations.
func (w *WeightMatrix) N() int { return w.w.SymmetricDim() }

// At returns the weight between observations i and j.
func (w *WeightMatrix) At(i, j int) float64 { return w.w.At(i, j) }

// Sym returns the underlying symmetric matrix. It must not be modified.
func (w *WeightMatrix) Sym() mat.Symmetric { return w.w }

// RowSums returns a copy of the row sums.
func (w *WeightMatrix) RowSums() []float64 { return append([]float64(nil), w.rowSums...) }

// S0 returns the total weight (1 up to rounding).
func (w *WeightMatrix) S0() float64 { return w.s0 }

// S1 returns ½ Σ (w_ij + w_ji)².
func (w *WeightMatrix) S1() float64 { return w.s1 }

// S2 returns Σ (row_i + col_i)².
func (w *WeightMatrix) S2() float64 { return w.s2 }

// WeightSet is the ordered set of non-degenerate weight matrices of a run.
type WeightSet struct {
	matrices []*WeightMatrix
	dropped  []float64
}

// NewWeightSet builds one weight matrix per threshold. Degenerate thresholds
// are reported through errors.Warn and dropped; if every threshold is
// degenerate the last warning is returned as an error.
func NewWeightSet(d *DistanceMatrix, thresholds Thresholds) (*WeightSet, error) {
	if d == nil {
		return nil, errors.NewMissingInputError("spatial.NewWeightSet", "distance matrix")
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}

	set := &WeightSet{}
	var lastWarning error
	for _, t := range thresholds {
		wm, err := Weights(d, t)
		if err != nil {
			var degenerate *errors.DegenerateWeightsWarning
			if !errors.As(err, &degenerate) {
				return nil, err
			}
			errors.Warn(degenerate)
			set.dropped = append(set.dropped, t)
			lastWarning = err
			continue
		}
		set.matrices = append(set.matrices, wm)
	}
	if len(set.matrices) == 0 {
		return nil, errors.Wrap(lastWarning, "every distance threshold is degenerate")
	}
	return set, nil
}

// Len returns the number of kept thresholds.
func (s *WeightSet) Len() int { return len(s.matrices) }

// Matrices returns the weight matrices in ascending threshold order.
func (s *WeightSet) Matrices() []*WeightMatrix {
	return append([]*WeightMatrix(nil), s.matrices...)
}

// Thresholds returns the kept thresholds.
func (s *WeightSet) Thresholds() Thresholds {
	out := make(Thresholds, len(s.matrices))
	for i, m := range s.matrices {
		out[i] = m.threshold
	}
	return out
}

// ForThreshold returns the matrix built for t.
func (s *WeightSet) ForThreshold(t float64) (*WeightMatrix, bool) {
	for _, m := range s.matrices {
		if m.threshold == t {
			return m, true
		}
	}
	return nil, false
}

// Dropped returns the thresholds that were degenerate.
func (s *WeightSet) Dropped() []float64 {
	return append([]float64(nil), s.dropped...)
}
