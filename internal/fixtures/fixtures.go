// Package fixtures builds deterministic spatial data sets for tests and
// examples.
package fixtures

import (
	"math/rand/v2"

	"github.com/YuminosukeSato/spatialpred/dataset"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// Intra- and inter-cluster distances of TwoClusters.
const (
	IntraClusterDistance = 1.0
	InterClusterDistance = 100.0
)

// NewRand returns a PCG-seeded generator.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Cluster returns 0 for the first nPer observations and 1 for the rest.
func Cluster(i, nPer int) int {
	if i < nPer {
		return 0
	}
	return 1
}

// TwoClusters returns a 2·nPer distance matrix with two tight clusters.
func TwoClusters(nPer int) *spatial.DistanceMatrix {
	n := 2 * nPer
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			switch {
			case i == j:
			case Cluster(i, nPer) == Cluster(j, nPer):
				data[i*n+j] = IntraClusterDistance
			default:
				data[i*n+j] = InterClusterDistance
			}
		}
	}
	d, err := spatial.NewDistanceMatrix(n, data)
	if err != nil {
		panic(err)
	}
	return d
}

// ClusterTable returns a table with columns y and x for TwoClusters(nPer).
// y carries a cluster effect of size effect plus unit noise; x is an
// unrelated covariate.
func ClusterTable(rng *rand.Rand, nPer int, effect float64) *dataset.Table {
	n := 2 * nPer
	y := make([]float64, n)
	x := make([]float64, n)
	for i := 0; i < n; i++ {
		x[i] = rng.NormFloat64()
		y[i] = effect*float64(Cluster(i, nPer)) + 0.5*x[i] + rng.NormFloat64()
	}
	tbl, err := dataset.NewTable([]string{"y", "x"}, [][]float64{y, x})
	if err != nil {
		panic(err)
	}
	return tbl
}

// RandomDistances returns an n×n matrix of independent uniform distances in
// (1, 101).
func RandomDistances(rng *rand.Rand, n int) *spatial.DistanceMatrix {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 1 + 100*rng.Float64()
			data[i*n+j] = v
			data[j*n+i] = v
		}
	}
	d, err := spatial.NewDistanceMatrix(n, data)
	if err != nil {
		panic(err)
	}
	return d
}

// NoiseTable returns a table with y and x drawn independently of position.
func NoiseTable(rng *rand.Rand, n int) *dataset.Table {
	y := make([]float64, n)
	x := make([]float64, n)
	for i := range y {
		x[i] = rng.NormFloat64()
		y[i] = 0.5*x[i] + rng.NormFloat64()
	}
	tbl, err := dataset.NewTable([]string{"y", "x"}, [][]float64{y, x})
	if err != nil {
		panic(err)
	}
	return tbl
}

// Transect returns the distance matrix of n points on a line at unit
// spacing.
func Transect(n int) *spatial.DistanceMatrix {
	data := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := float64(i - j)
			if d < 0 {
				d = -d
			}
			data[i*n+j] = d
		}
	}
	d, err := spatial.NewDistanceMatrix(n, data)
	if err != nil {
		panic(err)
	}
	return d
}
