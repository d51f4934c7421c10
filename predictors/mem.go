package predictors

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// DefaultEigenTolerance is the relative size below which an eigenvalue
// counts as zero.
const DefaultEigenTolerance = 1e-10

// MEMGenerator produces Moran's eigenvector maps. Candidate names are
// spatial_predictor_<threshold>_<rank>.
type MEMGenerator struct {
	// MaxPredictors caps the total across thresholds. The eigenvectors with
	// the smallest eigenvalues are dropped first. <= 0 means no cap.
	MaxPredictors int

	// Tolerance overrides DefaultEigenTolerance when > 0.
	Tolerance float64
}

// Method implements Generator.
func (g *MEMGenerator) Method() Method { return MEM }

// Generate implements Generator.
func (g *MEMGenerator) Generate(ctx context.Context, _ *spatial.DistanceMatrix, ws *spatial.WeightSet) (*Set, error) {
	if ws == nil {
		return nil, errors.NewMissingInputError("predictors.MEMGenerator", "weight matrices")
	}
	tol := g.Tolerance
	if tol <= 0 {
		tol = DefaultEigenTolerance
	}

	var all []*SpatialPredictor
	for _, w := range ws.Matrices() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		preds, err := memForThreshold(w, tol)
		if err != nil {
			return nil, err
		}
		all = append(all, preds...)
	}
	return NewSet(capByEigenvalue(all, g.MaxPredictors)...)
}

func memForThreshold(w *spatial.WeightMatrix, tol float64) ([]*SpatialPredictor, error) {
	centred := DoubleCenter(w.Sym())

	var eig mat.EigenSym
	if ok := eig.Factorize(centred, true); !ok {
		return nil, errors.NewModelError("predictors.MEM", "eigendecomposition failed", errors.ErrSingularMatrix)
	}
	values := eig.Values(nil)
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	maxAbs := 0.0
	for _, v := range values {
		maxAbs = math.Max(maxAbs, math.Abs(v))
	}
	cutoff := tol * maxAbs

	var positive []int
	for i, v := range values {
		if v > cutoff {
			positive = append(positive, i)
		}
	}
	sort.SliceStable(positive, func(a, b int) bool {
		return values[positive[a]] > values[positive[b]]
	})

	out := make([]*SpatialPredictor, 0, len(positive))
	for rank, i := range positive {
		vec := mat.Col(nil, i, &vectors)
		normalizeSign(vec)
		out = append(out, &SpatialPredictor{
			Name:       predictorName("spatial_predictor", w.Threshold(), rank+1),
			Method:     MEM,
			Threshold:  w.Threshold(),
			Rank:       rank + 1,
			Eigenvalue: values[i],
			Values:     vec,
		})
	}
	return out, nil
}

// DoubleCenter returns W − row means − column means + grand mean, so that
// every row and column of the result sums to zero.
func DoubleCenter(w mat.Symmetric) *mat.SymDense {
	n := w.SymmetricDim()
	means := make([]float64, n)
	grand := 0.0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			means[i] += w.At(i, j)
		}
		grand += means[i]
		means[i] /= float64(n)
	}
	grand /= float64(n * n)

	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, w.At(i, j)-means[i]-means[j]+grand)
		}
	}
	return out
}
