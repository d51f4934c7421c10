package linear

// Option は LinearRegression を設定する関数
type Option func(*LinearRegression)

// WithFitIntercept は切片を推定するかどうかを設定する（デフォルト true）
func WithFitIntercept(fit bool) Option {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// WithTol は特異値の相対打ち切り閾値を設定する。0 以下で既定値
// max(rows, cols) * machine epsilon を使う。
func WithTol(tol float64) Option {
	return func(lr *LinearRegression) {
		lr.tol = tol
	}
}
