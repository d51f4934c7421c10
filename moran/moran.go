// Package moran computes Moran's I of a residual vector under the
// neighbourhood weight matrices of a run, with randomization-based
// significance.
//
// For a weight matrix W with total weight S0 and residuals centred on their
// mean (z),
//
//	I    = (n/S0) · zᵗWz / zᵗz
//	E[I] = −1/(n−1)
//
// and the variance follows the randomization assumption (Cliff and Ord),
// which depends on the kurtosis of z. P-values are two-tailed against the
// standard normal.
package moran

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// SignificanceLevel is the p-value below which autocorrelation counts as
// positive or negative.
const SignificanceLevel = 0.05

// MinObservations is the smallest n for which the variance is defined.
const MinObservations = 4

// Interpretation classifies a Moran's I test.
type Interpretation int

const (
	// None means no significant spatial autocorrelation.
	None Interpretation = iota
	// Positive means nearby observations are more similar than expected.
	Positive
	// Negative means nearby observations are less similar than expected.
	Negative
)

func (i Interpretation) String() string {
	switch i {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	default:
		return "none"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (i Interpretation) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *Interpretation) UnmarshalText(b []byte) error {
	switch strings.ToLower(string(b)) {
	case "positive":
		*i = Positive
	case "negative":
		*i = Negative
	case "none", "":
		*i = None
	default:
		return errors.NewValueError("moran.Interpretation", "unknown interpretation "+string(b))
	}
	return nil
}

// Result is one Moran's I test at one distance threshold.
type Result struct {
	Threshold      float64        `yaml:"threshold" json:"threshold"`
	Observed       float64        `yaml:"moran_i" json:"moran_i"`
	Expected       float64        `yaml:"moran_i_null" json:"moran_i_null"`
	Variance       float64        `yaml:"variance" json:"variance"`
	Z              float64        `yaml:"z" json:"z"`
	PValue         float64        `yaml:"p_value" json:"p_value"`
	Interpretation Interpretation `yaml:"interpretation" json:"interpretation"`
}

// Significant reports whether the test rejects the null at
// SignificanceLevel.
func (r Result) Significant() bool {
	return r.PValue < SignificanceLevel
}

// Test computes Moran's I of x under w.
func Test(x []float64, w *spatial.WeightMatrix) (Result, error) {
	if w == nil {
		return Result{}, errors.NewMissingInputError("moran.Test", "weight matrix")
	}
	n := len(x)
	if n != w.N() {
		return Result{}, errors.NewDimensionError("moran.Test", w.N(), n, 0)
	}
	if n < MinObservations {
		return Result{}, errors.NewValueError("moran.Test", "at least 4 observations are required")
	}
	if err := errors.CheckNumericalStability("moran.Test", x); err != nil {
		return Result{}, err
	}

	nf := float64(n)
	res := Result{
		Threshold: w.Threshold(),
		Expected:  -1 / (nf - 1),
		PValue:    1,
	}

	mean := 0.0
	for _, v := range x {
		mean += v
	}
	mean /= nf

	z := mat.NewVecDense(n, nil)
	var m2, m4 float64
	for i, v := range x {
		d := v - mean
		z.SetVec(i, d)
		m2 += d * d
		m4 += d * d * d * d
	}
	// a constant vector has no spatial pattern
	if m2 == 0 {
		return res, nil
	}

	s0, s1, s2 := w.S0(), w.S1(), w.S2()
	res.Observed = (nf / s0) * mat.Inner(z, w.Sym(), z) / m2

	k := (m4 / nf) / ((m2 / nf) * (m2 / nf))
	s0sq := s0 * s0
	num := nf*((nf*nf-3*nf+3)*s1-nf*s2+3*s0sq) -
		k*(nf*(nf-1)*s1-2*nf*s2+6*s0sq)
	den := (nf - 1) * (nf - 2) * (nf - 3) * s0sq
	res.Variance = num/den - res.Expected*res.Expected

	if res.Variance > 0 {
		res.Z = (res.Observed - res.Expected) / math.Sqrt(res.Variance)
		res.PValue = 2 * distuv.UnitNormal.Survival(math.Abs(res.Z))
	}

	if res.Significant() {
		switch {
		case res.Observed > res.Expected:
			res.Interpretation = Positive
		case res.Observed < res.Expected:
			res.Interpretation = Negative
		}
	}
	return res, nil
}
