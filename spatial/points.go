package spatial

import (
	"math"
	"strconv"
	"strings"

	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// Metric selects how FromPoints measures distance.
type Metric int

const (
	// Euclidean is planar distance in the coordinates' own units.
	Euclidean Metric = iota
	// Haversine is great-circle distance in kilometres between
	// longitude/latitude points given in degrees.
	Haversine
)

const earthRadiusKm = 6371.0088

func (m Metric) String() string {
	switch m {
	case Euclidean:
		return "euclidean"
	case Haversine:
		return "haversine"
	default:
		return "unknown"
	}
}

// ParseMetric parses "euclidean" or "haversine".
func ParseMetric(s string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "euclidean", "":
		return Euclidean, nil
	case "haversine", "great-circle":
		return Haversine, nil
	default:
		return Euclidean, errors.NewConfigError("distance.metric", "unknown distance metric", s)
	}
}

// NewPoints builds XY points from parallel coordinate slices. For the
// haversine metric x is longitude and y is latitude.
func NewPoints(x, y []float64) ([]*geom.Point, error) {
	if len(x) != len(y) {
		return nil, errors.NewDimensionError("spatial.NewPoints", len(x), len(y), 0)
	}
	points := make([]*geom.Point, len(x))
	for i := range x {
		points[i] = geom.NewPointFlat(geom.XY, []float64{x[i], y[i]})
	}
	return points, nil
}

// FromPoints builds the pairwise distance matrix of points.
func FromPoints(points []*geom.Point, metric Metric) (*DistanceMatrix, error) {
	n := len(points)
	if n == 0 {
		return nil, errors.NewModelError("spatial.FromPoints", "no points", errors.ErrEmptyData)
	}
	for i, p := range points {
		if p == nil || p.Empty() {
			return nil, errors.NewValueError("spatial.FromPoints", "empty point at index "+strconv.Itoa(i))
		}
	}

	var dist func(a, b *geom.Point) float64
	switch metric {
	case Euclidean:
		dist = func(a, b *geom.Point) float64 { return xy.Distance(a.Coords(), b.Coords()) }
	case Haversine:
		dist = haversine
	default:
		return nil, errors.NewConfigError("distance.metric", "unknown distance metric", int(metric))
	}

	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := dist(points[i], points[j])
			data[i*n+j] = v
			data[j*n+i] = v
		}
	}
	return NewDistanceMatrix(n, data)
}

func haversine(a, b *geom.Point) float64 {
	lat1 := a.Y() * math.Pi / 180
	lat2 := b.Y() * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.X() - a.X()) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}
