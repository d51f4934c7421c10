package selection

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/preprocessing"
)

// Components returns the rescaled score series, one row per record:
// 1 − MoranI, PValueBinary, RSquared and Penalization, each min-max scaled
// to [0, 1] across records. A constant series scales to 0.5.
func Components(records []Record) (*mat.Dense, error) {
	if len(records) == 0 {
		return nil, errors.NewValueError("selection.Components", "no records")
	}
	X := mat.NewDense(len(records), 4, nil)
	for i, r := range records {
		X.Set(i, 0, 1-r.MoranI)
		X.Set(i, 1, r.PValueBinary)
		X.Set(i, 2, r.RSquared)
		X.Set(i, 3, r.Penalization)
	}
	return preprocessing.NewMinMaxScalerDefault().FitTransform(X)
}

// Score sets the Score of every record and returns the index of the best
// one. The score of a step is
//
//	max(c(1−MoranI), c(PValueBinary)) + w.RSquared·c(RSquared) − w.Penalization·c(Penalization)
//
// where c is the rescaling of Components. Ties go to the earliest step,
// that is the smallest predictor count.
func Score(records []Record, w Weights) (int, error) {
	c, err := Components(records)
	if err != nil {
		return -1, err
	}
	best, bestScore := 0, math.Inf(-1)
	for i := range records {
		s := math.Max(c.At(i, 0), c.At(i, 1)) + w.RSquared*c.At(i, 2) - w.Penalization*c.At(i, 3)
		records[i].Score = s
		if s > bestScore {
			best, bestScore = i, s
		}
	}
	return best, nil
}
