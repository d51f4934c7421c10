package errors

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "linear.OLS.Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "spatialpred: linear.OLS.Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "linear.OLS.Fit",
			kind:    "empty data",
			wantMsg: "spatialpred: linear.OLS.Fit: empty data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)
			assert.Equal(t, tt.wantMsg, err.Error())

			formatted := fmt.Sprintf("%+v", err)
			assert.True(t, strings.Contains(formatted, "errors_test.go"), "stack trace should mention the test file")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("spatial.NewDistanceMatrix", 10, 9, 1)
	assert.Equal(t, "spatialpred: spatial.NewDistanceMatrix: dimension mismatch on axis 1 (columns). Expected 10, got 9", err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 9, dimErr.Got)
}

func TestNewMissingInputError(t *testing.T) {
	err := NewMissingInputError("engine.Run", "distance matrix")
	assert.Equal(t, "spatialpred: engine.Run: missing required input 'distance matrix'", err.Error())

	var missing *MissingInputError
	assert.True(t, As(err, &missing))
}

func TestNewWorkerUnavailableError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewWorkerUnavailableError("10.0.0.2:7777", cause)

	assert.Equal(t, "spatialpred: worker 10.0.0.2:7777 unavailable: connection refused", err.Error())
	assert.True(t, Is(err, cause))

	var unavailable *WorkerUnavailableError
	require.True(t, As(err, &unavailable))
	assert.Equal(t, "10.0.0.2:7777", unavailable.Node)
}

func TestNewConfigError(t *testing.T) {
	err := NewConfigError("selector", "optimized selection requires the effect ranker", "optimized")
	assert.Equal(t, "spatialpred: invalid configuration 'selector': optimized selection requires the effect ranker (got: optimized)", err.Error())

	var cfgErr *ConfigError
	assert.True(t, As(err, &cfgErr))
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrap(ErrNoEligiblePredictors, "ranking moran")
	assert.True(t, Is(wrapped, ErrNoEligiblePredictors))
	assert.Contains(t, wrapped.Error(), "ranking moran")

	wrappedf := Wrapf(ErrEmptyData, "in %s: expected %d, got %d", "Fit", 10, 0)
	assert.True(t, Is(wrappedf, ErrEmptyData))
	assert.Contains(t, wrappedf.Error(), "in Fit: expected 10, got 0")
}

func TestWarn_RoutesToHandlers(t *testing.T) {
	var got []error
	SetWarningHandler(func(w error) { got = append(got, w) })
	defer SetWarningHandler(func(w error) {})

	w := NewDegenerateWeightsWarning("moran.MultiThreshold", 500)
	Warn(w)
	require.Len(t, got, 1)
	assert.Equal(t, "moran.MultiThreshold: distance threshold 500 excludes every pair of observations; threshold dropped", got[0].Error())

	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	SetZerologWarnFunc(func(w error) {
		if m, ok := w.(zerolog.LogObjectMarshaler); ok {
			logger.Warn().EmbedObject(m).Msg(w.Error())
		}
	})
	defer SetZerologWarnFunc(nil)

	Warn(w)
	assert.Len(t, got, 1, "fallback handler must not run when zerolog sink is set")
	assert.Contains(t, buf.String(), `"type":"DegenerateWeightsWarning"`)
	assert.Contains(t, buf.String(), `"threshold":500`)
}

func TestCheckNumericalStability(t *testing.T) {
	assert.NoError(t, CheckNumericalStability("residuals", []float64{1, -2, 0.5}))

	err := CheckNumericalStability("residuals", []float64{1, math.NaN(), 3})
	require.Error(t, err)
	var instab *NumericalInstabilityError
	require.True(t, As(err, &instab))
	assert.Equal(t, 1, instab.Index)

	assert.Error(t, CheckScalar("r2", math.Inf(1)))
	assert.Equal(t, 1.0, ClipValue(3, 0, 1))
	assert.Equal(t, -1.0, ClipValue(-1.0000000000000002, -1, 1))
}
