package predictors

import (
	"context"
	"strconv"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// RawDistanceGenerator uses every column of the distance matrix as a
// predictor, named distance_<observation>. Predictors carry the smallest
// kept threshold so that moran-mode ranking has a neighbourhood to test
// them against.
type RawDistanceGenerator struct{}

// Method implements Generator.
func (g *RawDistanceGenerator) Method() Method { return RawDistance }

// Generate implements Generator.
func (g *RawDistanceGenerator) Generate(ctx context.Context, d *spatial.DistanceMatrix, ws *spatial.WeightSet) (*Set, error) {
	if d == nil {
		return nil, errors.NewMissingInputError("predictors.RawDistanceGenerator", "distance matrix")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t := 0.0
	if ws != nil && ws.Len() > 0 {
		t = ws.Thresholds()[0]
	}

	preds := make([]*SpatialPredictor, d.N())
	for j := range preds {
		preds[j] = &SpatialPredictor{
			Name:      "distance_" + strconv.Itoa(j+1),
			Method:    RawDistance,
			Threshold: t,
			Rank:      j + 1,
			Values:    d.Row(j),
		}
	}
	return NewSet(preds...)
}
