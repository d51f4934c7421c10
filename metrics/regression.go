// Package metrics computes the goodness-of-fit measures reported for every
// regression fit: R², RMSE and MAE over observed and fitted values.
package metrics

import (
	"math"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

func checkPair(op string, yTrue, yPred []float64) error {
	if len(yTrue) == 0 {
		return errors.NewValueError(op, "empty vector")
	}
	if len(yPred) != len(yTrue) {
		return errors.NewDimensionError(op, len(yTrue), len(yPred), 0)
	}
	return nil
}

// MSE は平均二乗誤差（Mean Squared Error）を計算する
func MSE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MSE", yTrue, yPred); err != nil {
		return 0, err
	}

	// MSE = (1/n) * Σ(yTrue - yPred)²
	var sum float64
	for i := range yTrue {
		diff := yTrue[i] - yPred[i]
		sum += diff * diff
	}
	return sum / float64(len(yTrue)), nil
}

// RMSE は平方根平均二乗誤差（Root Mean Squared Error）を計算する
func RMSE(yTrue, yPred []float64) (float64, error) {
	mse, err := MSE(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAE は平均絶対誤差（Mean Absolute Error）を計算する
func MAE(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("MAE", yTrue, yPred); err != nil {
		return 0, err
	}

	var sum float64
	for i := range yTrue {
		sum += math.Abs(yTrue[i] - yPred[i])
	}
	return sum / float64(len(yTrue)), nil
}

// R2Score は決定係数（R²）を計算する
//
// yTrue が定数の場合（全変動が0）はエラーを返す。
func R2Score(yTrue, yPred []float64) (float64, error) {
	if err := checkPair("R2Score", yTrue, yPred); err != nil {
		return 0, err
	}

	var yMean float64
	for _, v := range yTrue {
		yMean += v
	}
	yMean /= float64(len(yTrue))

	// 全変動（TSS）と残差変動（RSS）
	var tss, rss float64
	for i := range yTrue {
		tss += (yTrue[i] - yMean) * (yTrue[i] - yMean)
		rss += (yTrue[i] - yPred[i]) * (yTrue[i] - yPred[i])
	}

	if tss == 0 {
		return 0, errors.NewValueError("R2Score", "total sum of squares is zero (no variance in yTrue)")
	}

	return 1 - rss/tss, nil
}

// R2FromResiduals computes R² from observed values and residuals
// (observed minus fitted).
func R2FromResiduals(yTrue, residuals []float64) (float64, error) {
	if err := checkPair("R2FromResiduals", yTrue, residuals); err != nil {
		return 0, err
	}
	fitted := make([]float64, len(yTrue))
	for i := range yTrue {
		fitted[i] = yTrue[i] - residuals[i]
	}
	return R2Score(yTrue, fitted)
}
