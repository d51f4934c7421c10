package predictors

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/preprocessing"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// PCAGenerator produces principal components of the distance matrix with
// distances at or below each threshold set to zero. Columns are
// standardized before the decomposition. Candidate names are
// spatial_predictor_pca_<threshold>_<rank>.
type PCAGenerator struct {
	// MaxPredictors caps the total across thresholds by component variance.
	MaxPredictors int

	// Weighted decomposes the normalized weight matrix instead of the
	// thresholded distances.
	Weighted bool

	// Tolerance overrides DefaultEigenTolerance when > 0.
	Tolerance float64
}

// Method implements Generator.
func (g *PCAGenerator) Method() Method { return PCA }

// Generate implements Generator.
func (g *PCAGenerator) Generate(ctx context.Context, d *spatial.DistanceMatrix, ws *spatial.WeightSet) (*Set, error) {
	if d == nil {
		return nil, errors.NewMissingInputError("predictors.PCAGenerator", "distance matrix")
	}
	if ws == nil {
		return nil, errors.NewMissingInputError("predictors.PCAGenerator", "weight matrices")
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
		preds, err := g.forThreshold(d, w, tol)
		if err != nil {
			return nil, err
		}
		all = append(all, preds...)
	}
	return NewSet(capByEigenvalue(all, g.MaxPredictors)...)
}

func (g *PCAGenerator) forThreshold(d *spatial.DistanceMatrix, w *spatial.WeightMatrix, tol float64) ([]*SpatialPredictor, error) {
	n := d.N()
	t := w.Threshold()

	X := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			switch {
			case g.Weighted:
				X.Set(i, j, w.At(i, j))
			case d.At(i, j) > t:
				X.Set(i, j, d.At(i, j))
			}
		}
	}

	scaler := preprocessing.NewStandardScaler(true, true)
	Xs, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(Xs, nil); !ok {
		return nil, errors.NewModelError("predictors.PCA", "principal components failed", errors.ErrSingularMatrix)
	}
	vars := pc.VarsTo(nil)
	var vecs mat.Dense
	pc.VectorsTo(&vecs)

	var scores mat.Dense
	scores.Mul(Xs, &vecs)

	if len(vars) == 0 || vars[0] <= 0 {
		return nil, nil
	}
	cutoff := tol * vars[0]

	var out []*SpatialPredictor
	for k, v := range vars {
		if v <= cutoff {
			break
		}
		vec := mat.Col(nil, k, &scores)
		normalizeSign(vec)
		out = append(out, &SpatialPredictor{
			Name:       predictorName("spatial_predictor_pca", t, k+1),
			Method:     PCA,
			Threshold:  t,
			Rank:       k + 1,
			Eigenvalue: v,
			Values:     vec,
		})
	}
	return out, nil
}
