package model

import (
	"context"
)

// Repeated runs inner repetitions times with seeds seed, seed+1, ... and
// returns a RepeatedFit. With repetitions <= 1 it makes a single call with
// the given seed and returns inner's result unchanged.
func Repeated(inner Fitter, repetitions int, seed int64) Fitter {
	if repetitions <= 1 {
		return FitterFunc(func(ctx context.Context, req FitRequest) (FitResult, error) {
			req.Seed = seed
			return inner.Fit(ctx, req)
		})
	}

	return FitterFunc(func(ctx context.Context, req FitRequest) (FitResult, error) {
		fits := make([]*SingleFit, 0, repetitions)
		for r := 0; r < repetitions; r++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			req.Seed = seed + int64(r)
			res, err := inner.Fit(ctx, req)
			if err != nil {
				return nil, err
			}
			fits = append(fits, asSingle(res))
		}
		return NewRepeatedFit(fits)
	})
}

func asSingle(res FitResult) *SingleFit {
	if s, ok := res.(*SingleFit); ok {
		return s
	}
	return NewSingleFit(res.Predictors(), res.Residuals(), res.RSquared())
}
