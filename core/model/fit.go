// Package model defines the contract between the engine and the regression
// collaborator that fits models on a data table.
//
// The engine never inspects a fitted model. It consumes only the residual
// vector and the R² of each fit, through the FitResult sum type.
package model

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/spatialpred/dataset"
	"github.com/YuminosukeSato/spatialpred/metrics"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
)

// FitRequest asks the collaborator to fit Dependent on Predictors over Data.
type FitRequest struct {
	Data       *dataset.Table
	Dependent  string
	Predictors []string
	// Seed is forwarded to stochastic learners. Deterministic learners
	// ignore it.
	Seed int64
}

// With returns a copy of the request with extra predictors appended.
func (r FitRequest) With(extra ...string) FitRequest {
	preds := make([]string, 0, len(r.Predictors)+len(extra))
	preds = append(preds, r.Predictors...)
	r.Predictors = append(preds, extra...)
	return r
}

// Validate checks that every referenced column exists.
func (r FitRequest) Validate() error {
	if r.Data == nil {
		return errors.NewMissingInputError("model.FitRequest", "data table")
	}
	if r.Dependent == "" || !r.Data.Has(r.Dependent) {
		return errors.NewMissingInputError("model.FitRequest", fmt.Sprintf("dependent variable %q", r.Dependent))
	}
	for _, p := range r.Predictors {
		if !r.Data.Has(p) {
			return errors.NewMissingInputError("model.FitRequest", fmt.Sprintf("predictor %q", p))
		}
	}
	return nil
}

// FitResult is what the engine reads from a fit. It is implemented only by
// SingleFit and RepeatedFit.
type FitResult interface {
	// Residuals returns observed minus fitted values, one per row.
	Residuals() []float64
	// RSquared returns the coefficient of determination.
	RSquared() float64
	// Predictors returns the predictor names the model was fitted with.
	Predictors() []string

	sealed()
}

// SingleFit is the result of one collaborator call.
type SingleFit struct {
	residuals  []float64
	rSquared   float64
	predictors []string
}

// NewSingleFit copies residuals and predictors into a SingleFit.
func NewSingleFit(predictors []string, residuals []float64, rSquared float64) *SingleFit {
	return &SingleFit{
		residuals:  append([]float64(nil), residuals...),
		rSquared:   rSquared,
		predictors: append([]string(nil), predictors...),
	}
}

func (f *SingleFit) Residuals() []float64 { return append([]float64(nil), f.residuals...) }
func (f *SingleFit) RSquared() float64    { return f.rSquared }
func (f *SingleFit) Predictors() []string { return append([]string(nil), f.predictors...) }
func (*SingleFit) sealed()                {}

// RepeatedFit averages several fits of the same model made with different
// seeds.
type RepeatedFit struct {
	Fits []*SingleFit

	residuals []float64
	rSquared  float64
}

// NewRepeatedFit averages residuals per observation and R² across fits.
// All fits must share predictors and length.
func NewRepeatedFit(fits []*SingleFit) (*RepeatedFit, error) {
	if len(fits) == 0 {
		return nil, errors.NewValueError("model.NewRepeatedFit", "no fits")
	}
	n := len(fits[0].residuals)
	mean := make([]float64, n)
	var r2 float64
	for _, f := range fits {
		if len(f.residuals) != n {
			return nil, errors.NewDimensionError("model.NewRepeatedFit", n, len(f.residuals), 0)
		}
		for i, v := range f.residuals {
			mean[i] += v
		}
		r2 += f.rSquared
	}
	k := float64(len(fits))
	for i := range mean {
		mean[i] /= k
	}
	return &RepeatedFit{Fits: fits, residuals: mean, rSquared: r2 / k}, nil
}

func (f *RepeatedFit) Residuals() []float64 { return append([]float64(nil), f.residuals...) }
func (f *RepeatedFit) RSquared() float64    { return f.rSquared }
func (f *RepeatedFit) Predictors() []string { return f.Fits[0].Predictors() }
func (*RepeatedFit) sealed()                {}

// Repetitions returns the number of underlying fits.
func (f *RepeatedFit) Repetitions() int { return len(f.Fits) }

// Fitter is the regression collaborator. Implementations must be safe for
// concurrent use; the engine calls Fit from pool workers.
type Fitter interface {
	Fit(ctx context.Context, req FitRequest) (FitResult, error)
}

// FitterFunc adapts a function into a Fitter.
type FitterFunc func(ctx context.Context, req FitRequest) (FitResult, error)

// Fit calls f(ctx, req).
func (f FitterFunc) Fit(ctx context.Context, req FitRequest) (FitResult, error) {
	return f(ctx, req)
}

// Regressor は学習・予測が可能な回帰モデルのインターフェース
type Regressor interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error

	// Predict は入力データに対する予測を行う
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// RegressorFitter turns a Regressor constructor into a Fitter. Each call
// builds a fresh Regressor, so the result is safe for concurrent use when
// the constructor is.
func RegressorFitter(newRegressor func() Regressor) Fitter {
	return FitterFunc(func(ctx context.Context, req FitRequest) (FitResult, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := req.Validate(); err != nil {
			return nil, err
		}
		if len(req.Predictors) == 0 {
			return interceptOnly(req)
		}

		X, err := req.Data.Matrix(req.Predictors)
		if err != nil {
			return nil, err
		}
		yCol, err := req.Data.Column(req.Dependent)
		if err != nil {
			return nil, err
		}
		y := mat.NewDense(len(yCol), 1, yCol)

		reg := newRegressor()
		if err := reg.Fit(X, y); err != nil {
			return nil, errors.NewModelError("model.RegressorFitter", "fit", err)
		}
		pred, err := reg.Predict(X)
		if err != nil {
			return nil, errors.NewModelError("model.RegressorFitter", "predict", err)
		}

		fitted := mat.Col(nil, 0, pred)
		residuals := make([]float64, len(yCol))
		for i := range yCol {
			residuals[i] = yCol[i] - fitted[i]
		}
		r2, err := metrics.R2Score(yCol, fitted)
		if err != nil {
			return nil, errors.NewModelError("model.RegressorFitter", "r squared", err)
		}
		return NewSingleFit(req.Predictors, residuals, r2), nil
	})
}

// interceptOnly fits the mean. Its R² is 0 by definition.
func interceptOnly(req FitRequest) (FitResult, error) {
	y, err := req.Data.Column(req.Dependent)
	if err != nil {
		return nil, err
	}
	var mean float64
	for _, v := range y {
		mean += v
	}
	mean /= float64(len(y))
	residuals := make([]float64, len(y))
	for i, v := range y {
		residuals[i] = v - mean
	}
	return NewSingleFit(nil, residuals, 0), nil
}

// Checked wraps a Fitter so that requests are validated and results with a
// wrong length or non-finite values are rejected as a ModelError.
func Checked(inner Fitter) Fitter {
	return FitterFunc(func(ctx context.Context, req FitRequest) (FitResult, error) {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		res, err := inner.Fit(ctx, req)
		if err != nil {
			return nil, err
		}
		residuals := res.Residuals()
		if len(residuals) != req.Data.Rows() {
			return nil, errors.NewModelError("model.Checked", "residual length",
				errors.NewDimensionError("model.Checked", req.Data.Rows(), len(residuals), 0))
		}
		if err := errors.CheckNumericalStability("model.Checked residuals", residuals); err != nil {
			return nil, errors.NewModelError("model.Checked", "residuals", err)
		}
		if err := errors.CheckScalar("model.Checked r squared", res.RSquared()); err != nil {
			return nil, errors.NewModelError("model.Checked", "r squared", err)
		}
		return res, nil
	})
}
