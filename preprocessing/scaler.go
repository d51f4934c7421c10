// Package preprocessing provides column scalers used by the predictor
// generators (StandardScaler before PCA) and by the optimization scorer
// (MinMaxScaler over the per-step metric series).
package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// StandardScaler はデータを平均0、標準偏差1に変換するスケーラー
type StandardScaler struct {
	// Mean は各列の平均値
	Mean []float64

	// Scale は各列の標準偏差（分散0の列は1）
	Scale []float64

	// NFeatures は列数
	NFeatures int

	// WithMean は平均を引くかどうか
	WithMean bool

	// WithStd は標準偏差で割るかどうか
	WithStd bool

	fitted bool
}

// NewStandardScaler は新しいStandardScalerを作成する
//
//	scaler := preprocessing.NewStandardScaler(true, true)
//	XScaled, err := scaler.FitTransform(X)
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{
		WithMean: withMean,
		WithStd:  withStd,
	}
}

// Fit は各列の平均と標準偏差を計算する
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)

	for j := 0; j < c; j++ {
		if s.WithMean {
			sum := 0.0
			for i := 0; i < r; i++ {
				sum += X.At(i, j)
			}
			s.Mean[j] = sum / float64(r)
		}

		s.Scale[j] = 1.0
		if s.WithStd {
			sumSquares := 0.0
			for i := 0; i < r; i++ {
				diff := X.At(i, j) - s.Mean[j]
				sumSquares += diff * diff
			}
			sd := math.Sqrt(sumSquares / float64(r))
			// 分散0の列はゼロ除算を避けるため1のまま
			if sd >= 1e-12 {
				s.Scale[j] = sd
			}
		}
	}

	s.fitted = true
	return nil
}

// Transform は学習済みの統計量でデータを標準化する
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !s.fitted {
		return nil, errors.NewValueError("StandardScaler.Transform", "scaler is not fitted")
	}

	r, c := X.Dims()
	if c != s.NFeatures {
		return nil, errors.NewDimensionError("StandardScaler.Transform", s.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			result.Set(i, j, (X.At(i, j)-s.Mean[j])/s.Scale[j])
		}
	}
	return result, nil
}

// FitTransform はFitとTransformを続けて実行する
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// String returns a short description.
func (s *StandardScaler) String() string {
	if !s.fitted {
		return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
	}
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t, n_features=%d)", s.WithMean, s.WithStd, s.NFeatures)
}

// MinMaxScaler はデータを指定範囲（デフォルト[0,1]）に線形変換するスケーラー
//
// 定数列（最大値と最小値が一致する列）は範囲の中点に写像する。
type MinMaxScaler struct {
	// DataMin は学習データの各列の最小値
	DataMin []float64

	// DataMax は学習データの各列の最大値
	DataMax []float64

	// NFeatures は列数
	NFeatures int

	// FeatureRange は変換後の範囲 [min, max]
	FeatureRange [2]float64

	// ConstantTolerance 以下の値域を持つ列を定数列とみなす
	ConstantTolerance float64

	fitted bool
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{
		FeatureRange:      featureRange,
		ConstantTolerance: 1e-12,
	}
}

// NewMinMaxScalerDefault は[0,1]範囲のMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0.0, 1.0})
}

// Fit は各列の最小値・最大値を計算する
func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	if m.FeatureRange[0] >= m.FeatureRange[1] {
		return errors.NewValueError("MinMaxScaler.Fit", fmt.Sprintf("invalid feature range %v", m.FeatureRange))
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)

	for j := 0; j < c; j++ {
		lo, hi := X.At(0, j), X.At(0, j)
		for i := 1; i < r; i++ {
			v := X.At(i, j)
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
		m.DataMin[j] = lo
		m.DataMax[j] = hi
	}

	m.fitted = true
	return nil
}

// IsConstant reports whether column j was constant in the training data.
func (m *MinMaxScaler) IsConstant(j int) bool {
	return m.DataMax[j]-m.DataMin[j] <= m.ConstantTolerance
}

// Transform は学習済みの最小値・最大値でデータを変換する
func (m *MinMaxScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if !m.fitted {
		return nil, errors.NewValueError("MinMaxScaler.Transform", "scaler is not fitted")
	}

	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("MinMaxScaler.Transform", m.NFeatures, c, 1)
	}

	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	mid := (lo + hi) / 2
	result := mat.NewDense(r, c, nil)
	for j := 0; j < c; j++ {
		constant := m.IsConstant(j)
		span := m.DataMax[j] - m.DataMin[j]
		for i := 0; i < r; i++ {
			if constant {
				result.Set(i, j, mid)
				continue
			}
			scaled := (X.At(i, j) - m.DataMin[j]) / span
			result.Set(i, j, lo+scaled*(hi-lo))
		}
	}
	return result, nil
}

// FitTransform はFitとTransformを続けて実行する
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

// String returns a short description.
func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=[%g, %g])", m.FeatureRange[0], m.FeatureRange[1])
}
