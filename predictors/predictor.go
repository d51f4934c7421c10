// Package predictors generates candidate spatial predictors from the
// distance matrix of a run.
//
// A spatial predictor is a per-observation vector derived only from the
// spatial configuration. Three generators are provided:
//
//   - MEMGenerator: Moran's eigenvector maps, the eigenvectors with positive
//     eigenvalue of each double-centred weight matrix.
//   - PCAGenerator: principal components of the thresholded distance (or
//     weight) matrix.
//   - RawDistanceGenerator: the distance matrix columns themselves.
package predictors

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// Method identifies the generator that produced a predictor.
type Method int

const (
	// MEM is Moran's eigenvector maps.
	MEM Method = iota
	// PCA is principal components of the distance matrix.
	PCA
	// RawDistance uses the distance columns directly.
	RawDistance
)

func (m Method) String() string {
	switch m {
	case MEM:
		return "mem"
	case PCA:
		return "pca"
	case RawDistance:
		return "distance"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod parses "mem", "pca" or "distance".
func ParseMethod(s string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mem":
		return MEM, nil
	case "pca":
		return PCA, nil
	case "distance", "raw", "rawdistance", "raw_distance":
		return RawDistance, nil
	default:
		return MEM, errors.NewConfigError("generator", "unknown generator", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Method) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Method) UnmarshalText(b []byte) error {
	v, err := ParseMethod(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// SpatialPredictor is one named candidate.
type SpatialPredictor struct {
	Name      string  `yaml:"name" json:"name"`
	Method    Method  `yaml:"method" json:"method"`
	Threshold float64 `yaml:"threshold" json:"threshold"`
	// Rank is the 1-based position within its threshold.
	Rank int `yaml:"rank" json:"rank"`
	// Eigenvalue is the MEM eigenvalue or the PCA component variance.
	// Zero for raw distance predictors.
	Eigenvalue float64   `yaml:"eigenvalue" json:"eigenvalue"`
	Values     []float64 `yaml:"-" json:"values,omitempty"`
}

// Set is an ordered collection of predictors with unique names.
type Set struct {
	items []*SpatialPredictor
	index map[string]int
}

// NewSet builds a set. Duplicate names are rejected.
func NewSet(preds ...*SpatialPredictor) (*Set, error) {
	s := &Set{index: make(map[string]int, len(preds))}
	for _, p := range preds {
		if err := s.add(p); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Set) add(p *SpatialPredictor) error {
	if p == nil || p.Name == "" {
		return errors.NewValueError("predictors.Set", "predictor without a name")
	}
	if _, dup := s.index[p.Name]; dup {
		return errors.NewValueError("predictors.Set", "duplicate predictor "+p.Name)
	}
	if len(s.items) > 0 && len(p.Values) != len(s.items[0].Values) {
		return errors.NewDimensionError("predictors.Set", len(s.items[0].Values), len(p.Values), 0)
	}
	s.index[p.Name] = len(s.items)
	s.items = append(s.items, p)
	return nil
}

// Len returns the number of predictors.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.items)
}

// At returns the i-th predictor.
func (s *Set) At(i int) *SpatialPredictor {
	return s.items[i]
}

// Get returns the named predictor.
func (s *Set) Get(name string) (*SpatialPredictor, bool) {
	i, ok := s.index[name]
	if !ok {
		return nil, false
	}
	return s.items[i], true
}

// Names returns predictor names in set order.
func (s *Set) Names() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.items))
	for i, p := range s.items {
		out[i] = p.Name
	}
	return out
}

// Subset returns the named predictors in the given order.
func (s *Set) Subset(names []string) (*Set, error) {
	out := &Set{index: make(map[string]int, len(names))}
	for _, name := range names {
		p, ok := s.Get(name)
		if !ok {
			return nil, errors.NewMissingInputError("predictors.Set.Subset", "predictor "+name)
		}
		if err := out.add(p); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Filter returns the predictors for which keep returns true.
func (s *Set) Filter(keep func(*SpatialPredictor) bool) *Set {
	out := &Set{index: make(map[string]int)}
	for _, p := range s.items {
		if keep(p) {
			out.index[p.Name] = len(out.items)
			out.items = append(out.items, p)
		}
	}
	return out
}

// Columns returns names and value vectors, ready for dataset.Table.WithColumns.
func (s *Set) Columns() ([]string, [][]float64) {
	names := s.Names()
	cols := make([][]float64, len(s.items))
	for i, p := range s.items {
		cols[i] = p.Values
	}
	return names, cols
}

// Generator turns a distance matrix into candidate predictors. ws holds the
// weight matrices of the non-degenerate thresholds.
type Generator interface {
	Method() Method
	Generate(ctx context.Context, d *spatial.DistanceMatrix, ws *spatial.WeightSet) (*Set, error)
}

// NewGenerator returns the generator for m. maxPredictors <= 0 means no cap.
func NewGenerator(m Method, maxPredictors int, pcaWeighted bool) (Generator, error) {
	switch m {
	case MEM:
		return &MEMGenerator{MaxPredictors: maxPredictors}, nil
	case PCA:
		return &PCAGenerator{MaxPredictors: maxPredictors, Weighted: pcaWeighted}, nil
	case RawDistance:
		return &RawDistanceGenerator{}, nil
	default:
		return nil, errors.NewConfigError("generator", "unknown generator", int(m))
	}
}

func predictorName(prefix string, threshold float64, rank int) string {
	return fmt.Sprintf("%s_%s_%d", prefix, spatial.FormatThreshold(threshold), rank)
}

// capByEigenvalue keeps the max predictors with the largest eigenvalues,
// preserving the original order.
func capByEigenvalue(preds []*SpatialPredictor, max int) []*SpatialPredictor {
	if max <= 0 || len(preds) <= max {
		return preds
	}
	order := make([]int, len(preds))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return preds[order[a]].Eigenvalue > preds[order[b]].Eigenvalue
	})
	keep := make([]bool, len(preds))
	for _, i := range order[:max] {
		keep[i] = true
	}
	out := make([]*SpatialPredictor, 0, max)
	for i, p := range preds {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// normalizeSign flips v so that its first non-negligible entry is positive.
// Eigenvector signs are arbitrary; this makes generated values reproducible.
func normalizeSign(v []float64) {
	for _, x := range v {
		if x > 1e-12 {
			return
		}
		if x < -1e-12 {
			for i := range v {
				v[i] = -v[i]
			}
			return
		}
	}
}
