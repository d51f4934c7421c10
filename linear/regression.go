// Package linear provides the built-in regression collaborator: ordinary
// least squares solved through a thin SVD.
package linear

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/metrics"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

var machineEpsilon = math.Nextafter(1, 2) - 1

// LinearRegression は最小二乗法による線形回帰モデル
//
// 係数は特異値分解による疑似逆行列で求めるため、空間予測変数が互いに
// 共線的でも学習は失敗しない（ランク落ちは警告として通知する）。
type LinearRegression struct {
	Weights   *mat.VecDense // 重み（係数）
	Intercept float64       // 切片
	NFeatures int           // 特徴量の数
	Rank      int           // 計画行列のランク

	fitIntercept bool
	tol          float64
	fitted       bool
}

// NewLinearRegression は新しい線形回帰モデルを作成する
func NewLinearRegression(opts ...Option) *LinearRegression {
	lr := &LinearRegression{fitIntercept: true}
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// NewFitter returns a model.Fitter that fits a fresh LinearRegression per
// request.
func NewFitter(opts ...Option) model.Fitter {
	return model.RegressorFitter(func() model.Regressor {
		return NewLinearRegression(opts...)
	})
}

// Fit はモデルを訓練データで学習させる
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, cy := y.Dims()

	if r == 0 || c == 0 {
		return errors.NewModelError("LinearRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LinearRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LinearRegression.Fit", "y must be a column vector")
	}

	lr.NFeatures = c

	offset := 0
	if lr.fitIntercept {
		offset = 1
	}
	cols := c + offset

	// 切片項のために X に 1 の列を追加
	design := mat.NewDense(r, cols, nil)
	const parallelThreshold = 1000
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			if offset == 1 {
				design.Set(i, 0, 1.0)
			}
			for j := 0; j < c; j++ {
				design.Set(i, j+offset, X.At(i, j))
			}
		}
	})

	var svd mat.SVD
	if ok := svd.Factorize(design, mat.SVDThin); !ok {
		return errors.NewModelError("LinearRegression.Fit", "svd factorization failed", errors.ErrSingularMatrix)
	}
	values := svd.Values(nil)

	// 特異値の打ち切り閾値（numpy.linalg.lstsq と同じ既定値）
	tol := lr.tol
	if tol <= 0 {
		tol = float64(max(r, cols)) * machineEpsilon
	}
	cutoff := tol * values[0]

	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	yVec := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		yVec.SetVec(i, y.At(i, 0))
	}

	// β = V Σ⁺ Uᵀ y
	uty := mat.NewVecDense(len(values), nil)
	uty.MulVec(u.T(), yVec)
	rank := 0
	for i, s := range values {
		if s > cutoff {
			uty.SetVec(i, uty.AtVec(i)/s)
			rank++
		} else {
			uty.SetVec(i, 0)
		}
	}
	beta := mat.NewVecDense(cols, nil)
	beta.MulVec(&v, uty)

	if err := errors.CheckNumericalStability("LinearRegression.Fit", beta.RawVector().Data); err != nil {
		return err
	}

	lr.Rank = rank
	if rank < cols {
		errors.Warn(errors.NewRankDeficiencyWarning(cols, rank))
	}

	lr.Intercept = 0
	if offset == 1 {
		lr.Intercept = beta.AtVec(0)
	}
	lr.Weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.Weights.SetVec(j, beta.AtVec(j+offset))
	}

	lr.fitted = true
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.fitted {
		return nil, errors.NewValueError("LinearRegression.Predict", "model is not fitted")
	}

	r, c := X.Dims()
	if c != lr.NFeatures {
		return nil, errors.NewDimensionError("LinearRegression.Predict", lr.NFeatures, c, 1)
	}

	// y = X * weights + intercept
	predictions := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		pred := lr.Intercept
		for j := 0; j < c; j++ {
			pred += X.At(i, j) * lr.Weights.AtVec(j)
		}
		predictions.Set(i, 0, pred)
	}
	return predictions, nil
}

// GetWeights は学習された重み（係数）を返す
func (lr *LinearRegression) GetWeights() []float64 {
	if lr.Weights == nil {
		return nil
	}
	return append([]float64(nil), lr.Weights.RawVector().Data...)
}

// GetIntercept は学習された切片を返す
func (lr *LinearRegression) GetIntercept() float64 {
	if !lr.fitted {
		return 0
	}
	return lr.Intercept
}

// Score はモデルの決定係数（R²）を計算する
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	yPred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(mat.Col(nil, 0, y), mat.Col(nil, 0, yPred))
}
