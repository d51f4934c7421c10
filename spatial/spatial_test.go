package spatial_test

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/YuminosukeSato/spatialpred/internal/fixtures"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

func TestNewDistanceMatrix_Validation(t *testing.T) {
	tests := []struct {
		name string
		data []float64
	}{
		{"nonzero diagonal", []float64{1, 2, 2, 0}},
		{"negative", []float64{0, -1, -1, 0}},
		{"asymmetric", []float64{0, 1, 2, 0}},
		{"nan", []float64{0, math.NaN(), math.NaN(), 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := spatial.NewDistanceMatrix(2, tt.data)
			var valErr *errors.ValueError
			assert.True(t, errors.As(err, &valErr), "%v", err)
		})
	}

	_, err := spatial.NewDistanceMatrix(2, []float64{0, 1, 1})
	assert.Error(t, err)

	d, err := spatial.NewDistanceMatrix(2, []float64{0, 3, 3, 0})
	require.NoError(t, err)
	assert.Equal(t, 2, d.N())
	assert.Equal(t, 3.0, d.At(1, 0))
	assert.Equal(t, 3.0, d.Max())
	assert.Equal(t, []float64{3, 0}, d.Row(1))
}

func TestReadCSV(t *testing.T) {
	in := "a,b,c\n0,1,2\n1,0,3\n2,3,0\n"
	d, err := spatial.ReadCSV(strings.NewReader(in), true)
	require.NoError(t, err)
	assert.Equal(t, 3, d.N())
	assert.Equal(t, 3.0, d.At(2, 1))

	_, err = spatial.ReadCSV(strings.NewReader("0,1\n1,0\n5,5\n"), false)
	assert.Error(t, err)
}

func TestNewThresholds(t *testing.T) {
	ts, err := spatial.NewThresholds(0, 10, 100)
	require.NoError(t, err)
	assert.Equal(t, spatial.Thresholds{0, 10, 100}, ts)

	for _, bad := range [][]float64{{}, {10, 5}, {5, 5}, {-1}, {math.Inf(1)}} {
		_, err := spatial.NewThresholds(bad...)
		var cfgErr *errors.ConfigError
		assert.True(t, errors.As(err, &cfgErr), "%v", bad)
	}
}

func TestWeights_ZeroDiagonalAndUnitTotal(t *testing.T) {
	rng := fixtures.NewRand(3)
	d := fixtures.RandomDistances(rng, 30)

	for _, th := range []float64{0, 20, 60} {
		w, err := spatial.Weights(d, th)
		require.NoError(t, err)

		total := 0.0
		for i := 0; i < w.N(); i++ {
			assert.Equal(t, 0.0, w.At(i, i))
			for j := 0; j < w.N(); j++ {
				total += w.At(i, j)
				assert.Equal(t, w.At(i, j), w.At(j, i))
				if i != j && d.At(i, j) <= th {
					assert.Equal(t, 0.0, w.At(i, j))
				}
			}
		}
		assert.InDelta(t, 1, total, 1e-12)
		assert.InDelta(t, 1, w.S0(), 1e-12)
	}
}

func TestWeights_InverseDistance(t *testing.T) {
	d, err := spatial.NewDistanceMatrix(3, []float64{
		0, 1, 2,
		1, 0, 4,
		2, 4, 0,
	})
	require.NoError(t, err)

	w, err := spatial.Weights(d, 1)
	require.NoError(t, err)

	// pairs (0,2) and (1,2) survive: 1/2 and 1/4, each counted twice
	total := 2 * (0.5 + 0.25)
	assert.Equal(t, 0.0, w.At(0, 1))
	assert.InDelta(t, 0.5/total, w.At(0, 2), 1e-15)
	assert.InDelta(t, 0.25/total, w.At(2, 1), 1e-15)
}

func TestWeights_Degenerate(t *testing.T) {
	d := fixtures.TwoClusters(3)
	_, err := spatial.Weights(d, 100)

	var warn *errors.DegenerateWeightsWarning
	require.True(t, errors.As(err, &warn))
	assert.Equal(t, 100.0, warn.Threshold)
}

func TestNewWeightSet_DropsDegenerateThresholds(t *testing.T) {
	var warnings []error
	errors.SetWarningHandler(func(w error) { warnings = append(warnings, w) })
	defer errors.SetWarningHandler(func(error) {})

	d := fixtures.TwoClusters(3)
	ws, err := spatial.NewWeightSet(d, spatial.Thresholds{0, 10, 100, 200})
	require.NoError(t, err)

	assert.Equal(t, 2, ws.Len())
	assert.Equal(t, spatial.Thresholds{0, 10}, ws.Thresholds())
	assert.Equal(t, []float64{100, 200}, ws.Dropped())
	assert.Len(t, warnings, 2)

	w, ok := ws.ForThreshold(10)
	require.True(t, ok)
	assert.Equal(t, 10.0, w.Threshold())
	_, ok = ws.ForThreshold(100)
	assert.False(t, ok)

	_, err = spatial.NewWeightSet(d, spatial.Thresholds{100})
	assert.Error(t, err)

	_, err = spatial.NewWeightSet(nil, spatial.Thresholds{0})
	var missing *errors.MissingInputError
	assert.True(t, errors.As(err, &missing))
}

func TestFromPoints(t *testing.T) {
	points, err := spatial.NewPoints([]float64{0, 3, 0}, []float64{0, 4, 1})
	require.NoError(t, err)

	d, err := spatial.FromPoints(points, spatial.Euclidean)
	require.NoError(t, err)
	assert.InDelta(t, 5, d.At(0, 1), 1e-12)
	assert.InDelta(t, 1, d.At(2, 0), 1e-12)

	// one degree of latitude is about 111.2 km
	geo := []*geom.Point{
		geom.NewPointFlat(geom.XY, []float64{0, 0}),
		geom.NewPointFlat(geom.XY, []float64{0, 1}),
	}
	d, err = spatial.FromPoints(geo, spatial.Haversine)
	require.NoError(t, err)
	assert.InDelta(t, 111.19, d.At(0, 1), 0.05)
}

func TestParseMetric(t *testing.T) {
	m, err := spatial.ParseMetric("Haversine")
	require.NoError(t, err)
	assert.Equal(t, spatial.Haversine, m)
	assert.Equal(t, "haversine", m.String())

	_, err = spatial.ParseMetric("manhattan")
	assert.Error(t, err)
}
