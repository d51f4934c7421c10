// Package spatial holds the spatial inputs of a run: the pairwise distance
// matrix between observations, the distance thresholds that define
// neighbourhoods, and the normalized inverse-distance weight matrices
// derived from them.
package spatial

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

const symmetryTolerance = 1e-9

// DistanceMatrix is a validated N×N distance matrix: symmetric, zero on the
// diagonal, non-negative and finite. It is immutable once built.
type DistanceMatrix struct {
	n    int
	data []float64 // row-major
}

// NewDistanceMatrix validates and copies a row-major N×N slice.
func NewDistanceMatrix(n int, data []float64) (*DistanceMatrix, error) {
	if n == 0 {
		return nil, errors.NewModelError("spatial.NewDistanceMatrix", "empty matrix", errors.ErrEmptyData)
	}
	if len(data) != n*n {
		return nil, errors.NewDimensionError("spatial.NewDistanceMatrix", n*n, len(data), 0)
	}
	d := &DistanceMatrix{n: n, data: append([]float64(nil), data...)}
	if err := d.validate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DistanceMatrix) validate() error {
	for i := 0; i < d.n; i++ {
		if v := d.data[i*d.n+i]; v != 0 {
			return errors.NewValueError("spatial.DistanceMatrix", fmt.Sprintf("diagonal entry %d is %g, want 0", i, v))
		}
		for j := i + 1; j < d.n; j++ {
			a, b := d.data[i*d.n+j], d.data[j*d.n+i]
			if math.IsNaN(a) || math.IsInf(a, 0) || math.IsNaN(b) || math.IsInf(b, 0) {
				return errors.NewValueError("spatial.DistanceMatrix", fmt.Sprintf("non-finite distance at (%d, %d)", i, j))
			}
			if a < 0 || b < 0 {
				return errors.NewValueError("spatial.DistanceMatrix", fmt.Sprintf("negative distance at (%d, %d)", i, j))
			}
			if math.Abs(a-b) > symmetryTolerance*math.Max(1, math.Max(a, b)) {
				return errors.NewValueError("spatial.DistanceMatrix", fmt.Sprintf("not symmetric at (%d, %d): %g != %g", i, j, a, b))
			}
		}
	}
	return nil
}

// N returns the number of observations.
func (d *DistanceMatrix) N() int {
	return d.n
}

// At returns the distance between observations i and j.
func (d *DistanceMatrix) At(i, j int) float64 {
	return d.data[i*d.n+j]
}

// Row returns a copy of row i.
func (d *DistanceMatrix) Row(i int) []float64 {
	return append([]float64(nil), d.data[i*d.n:(i+1)*d.n]...)
}

// Max returns the largest distance.
func (d *DistanceMatrix) Max() float64 {
	m := 0.0
	for _, v := range d.data {
		if v > m {
			m = v
		}
	}
	return m
}

// Dense returns a copy as a gonum matrix.
func (d *DistanceMatrix) Dense() *mat.Dense {
	return mat.NewDense(d.n, d.n, append([]float64(nil), d.data...))
}

// ReadCSV reads a square distance matrix. With header set, the first row is
// skipped (column names).
func ReadCSV(r io.Reader, header bool) (*DistanceMatrix, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	var data []float64
	n := -1
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, errors.Wrapf(err, "spatial: read distance csv line %d", line)
		}
		if header && line == 1 {
			continue
		}
		if n < 0 {
			n = len(record)
		}
		for j, field := range record {
			v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
			if err != nil {
				return nil, errors.Wrapf(err, "spatial: distance csv line %d column %d", line, j+1)
			}
			data = append(data, v)
		}
	}
	if n <= 0 {
		return nil, errors.NewModelError("spatial.ReadCSV", "no rows", errors.ErrEmptyData)
	}
	if len(data) != n*n {
		return nil, errors.NewDimensionError("spatial.ReadCSV", n*n, len(data), 0)
	}
	return NewDistanceMatrix(n, data)
}

// Thresholds is an ascending set of non-negative distance thresholds.
type Thresholds []float64

// NewThresholds validates ts and returns it as Thresholds.
func NewThresholds(ts ...float64) (Thresholds, error) {
	t := Thresholds(append([]float64(nil), ts...))
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that the set is non-empty, strictly ascending and
// non-negative.
func (t Thresholds) Validate() error {
	if len(t) == 0 {
		return errors.NewConfigError("thresholds", "at least one distance threshold is required", []float64(t))
	}
	for i, v := range t {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return errors.NewConfigError("thresholds", "thresholds must be finite and non-negative", v)
		}
		if i > 0 && v <= t[i-1] {
			return errors.NewConfigError("thresholds", "thresholds must be strictly ascending", []float64(t))
		}
	}
	return nil
}

// FormatThreshold renders a threshold for use in predictor names.
func FormatThreshold(t float64) string {
	return strconv.FormatFloat(t, 'f', -1, 64)
}
