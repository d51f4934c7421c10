package linear

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/dataset"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

func TestLinearRegression_ExactFit(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 0,
		2, 1,
		3, 0,
		4, 1,
		5, 0,
	})
	y := mat.NewDense(5, 1, nil)
	for i := 0; i < 5; i++ {
		y.Set(i, 0, 3+2*X.At(i, 0)-X.At(i, 1))
	}

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	assert.InDelta(t, 3, lr.GetIntercept(), 1e-9)
	w := lr.GetWeights()
	assert.InDelta(t, 2, w[0], 1e-9)
	assert.InDelta(t, -1, w[1], 1e-9)
	assert.Equal(t, 3, lr.Rank)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1, score, 1e-9)
}

func TestLinearRegression_NoIntercept(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{2, 4, 6})

	lr := NewLinearRegression(WithFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 0.0, lr.GetIntercept())
	assert.InDelta(t, 2, lr.GetWeights()[0], 1e-9)
}

func TestLinearRegression_RankDeficientWarns(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	// second column duplicates the first
	X := mat.NewDense(4, 2, []float64{1, 1, 2, 2, 3, 3, 4, 4})
	y := mat.NewDense(4, 1, []float64{2, 4, 6, 8})

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))
	assert.Equal(t, 2, lr.Rank)

	pred, err := lr.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-9)
	}

	require.Len(t, warnings, 1)
	var rankWarn *errors.RankDeficiencyWarning
	assert.True(t, errors.As(warnings[0], &rankWarn))
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()
	_, err := lr.Predict(mat.NewDense(1, 1, nil))
	assert.Error(t, err)

	err = lr.Fit(mat.NewDense(3, 1, nil), mat.NewDense(2, 1, nil))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestFitter_ResidualsAndRSquared(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 7))
	n := 50
	x := make([]float64, n)
	y := make([]float64, n)
	for i := range x {
		x[i] = rng.Float64() * 10
		y[i] = 1 + 0.5*x[i] + rng.NormFloat64()
	}
	tbl, err := dataset.NewTable([]string{"y", "x"}, [][]float64{y, x})
	require.NoError(t, err)

	res, err := NewFitter().Fit(context.Background(), model.FitRequest{Data: tbl, Dependent: "y", Predictors: []string{"x"}})
	require.NoError(t, err)

	residuals := res.Residuals()
	require.Len(t, residuals, n)

	var sum, sumX float64
	for i, e := range residuals {
		sum += e
		sumX += e * x[i]
	}
	assert.InDelta(t, 0, sum, 1e-8, "OLS residuals sum to zero with an intercept")
	assert.InDelta(t, 0, sumX, 1e-7, "OLS residuals are orthogonal to predictors")
	assert.Greater(t, res.RSquared(), 0.3)
	assert.Less(t, res.RSquared(), 1.0)
}
