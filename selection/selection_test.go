package selection_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/internal/fixtures"
	"github.com/YuminosukeSato/spatialpred/moran"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/ranking"
	"github.com/YuminosukeSato/spatialpred/selection"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

func TestScore_TieBreak(t *testing.T) {
	// two steps with identical metrics: without a penalty the scores tie
	records := []selection.Record{
		{Step: 1, MoranI: 0.2, PValueBinary: 0, RSquared: 0.5, Penalization: 0.5},
		{Step: 2, MoranI: 0.2, PValueBinary: 0, RSquared: 0.5, Penalization: 1},
	}
	best, err := selection.Score(records, selection.Weights{RSquared: 0.75, Penalization: 0})
	require.NoError(t, err)
	assert.Equal(t, records[0].Score, records[1].Score)
	assert.Equal(t, 0, best)

	// the same score sequence in a different candidate order
	swapped := []selection.Record{records[1], records[0]}
	swapped[0].Step, swapped[1].Step = 1, 2
	best, err = selection.Score(swapped, selection.Weights{RSquared: 0.75, Penalization: 0})
	require.NoError(t, err)
	assert.Equal(t, 0, best)
}

func TestScore_Formula(t *testing.T) {
	records := []selection.Record{
		{MoranI: 0.6, PValueBinary: 0, RSquared: 0.2, Penalization: 1.0 / 3},
		{MoranI: 0.3, PValueBinary: 0, RSquared: 0.4, Penalization: 2.0 / 3},
		{MoranI: 0.0, PValueBinary: 1, RSquared: 0.5, Penalization: 1},
	}
	w := selection.DefaultWeights()
	best, err := selection.Score(records, w)
	require.NoError(t, err)

	// rescaled: 1−I = {0, .5, 1}, p = {0, 0, 1}, r² = {0, 2/3, 1}, k/K = {0, .5, 1}
	assert.InDelta(t, 0, records[0].Score, 1e-12)
	assert.InDelta(t, 0.5+0.75*2.0/3-0.25*0.5, records[1].Score, 1e-12)
	assert.InDelta(t, 1+0.75-0.25, records[2].Score, 1e-12)
	assert.Equal(t, 2, best)
}

func TestComponents_ConstantSeries(t *testing.T) {
	records := []selection.Record{
		{MoranI: 0.1, PValueBinary: 1, RSquared: 0.3, Penalization: 0.5},
		{MoranI: 0.1, PValueBinary: 1, RSquared: 0.7, Penalization: 1},
	}
	c, err := selection.Components(records)
	require.NoError(t, err)
	for i := 0; i < 2; i++ {
		assert.Equal(t, 0.5, c.At(i, 0))
		assert.Equal(t, 0.5, c.At(i, 1))
	}
	assert.Equal(t, 0.0, c.At(0, 2))
	assert.Equal(t, 1.0, c.At(1, 2))
}

func TestScore_Bounds(t *testing.T) {
	rng := fixtures.NewRand(5)
	for trial := 0; trial < 50; trial++ {
		n := 1 + rng.IntN(12)
		records := make([]selection.Record, n)
		for i := range records {
			records[i] = selection.Record{
				Step:         i + 1,
				MoranI:       rng.Float64()*2 - 1,
				PValueBinary: float64(rng.IntN(2)),
				RSquared:     rng.Float64(),
				Penalization: float64(i+1) / float64(n),
			}
		}
		w := selection.Weights{RSquared: rng.Float64(), Penalization: rng.Float64()}

		c, err := selection.Components(records)
		require.NoError(t, err)
		r, k := c.Dims()
		for i := 0; i < r; i++ {
			for j := 0; j < k; j++ {
				assert.GreaterOrEqual(t, c.At(i, j), 0.0)
				assert.LessOrEqual(t, c.At(i, j), 1.0)
			}
		}

		best, err := selection.Score(records, w)
		require.NoError(t, err)
		for i, rec := range records {
			assert.LessOrEqual(t, rec.Score, 1+w.RSquared+1e-12)
			assert.GreaterOrEqual(t, rec.Score, -w.Penalization-1e-12)
			assert.LessOrEqual(t, rec.Score, records[best].Score)
			if i < best {
				assert.Less(t, rec.Score, records[best].Score, "earliest maximum wins")
			}
		}
	}
}

func TestScore_Empty(t *testing.T) {
	_, err := selection.Score(nil, selection.DefaultWeights())
	assert.Error(t, err)
}

func TestWeights_Validate(t *testing.T) {
	assert.NoError(t, selection.DefaultWeights().Validate())
	assert.NoError(t, selection.Weights{}.Validate())
	assert.Error(t, selection.Weights{RSquared: 1.5}.Validate())
	assert.Error(t, selection.Weights{Penalization: -0.1}.Validate())
}

type harness struct {
	ws     *spatial.WeightSet
	base   model.FitRequest
	fitter *fixtures.EffectFitter
	rank   *ranking.Result
}

func newHarness(t *testing.T, fitter *fixtures.EffectFitter, cands []string) *harness {
	t.Helper()
	ws, err := spatial.NewWeightSet(fixtures.TwoClusters(10), spatial.Thresholds{0})
	require.NoError(t, err)
	base := model.FitRequest{
		Data:       fixtures.ClusterTable(fixtures.NewRand(3), 10, 5),
		Dependent:  "y",
		Predictors: []string{"x"},
	}
	baseFit, err := fitter.Fit(context.Background(), base)
	require.NoError(t, err)
	ref, err := moran.MultiThreshold(baseFit.Residuals(), ws)
	require.NoError(t, err)
	require.True(t, ref.HasPositive())

	rk, err := ranking.NewRanker(fitter, ws).RankEffect(context.Background(), cands, base, ref.MaxMoran)
	require.NoError(t, err)
	return &harness{ws: ws, base: base, fitter: fitter, rank: rk}
}

func TestSequential_Prefix(t *testing.T) {
	fitter := fixtures.NewClusterEffectFitter(7, 10, 0.3, 4, map[string]float64{
		"a": 1.5, "b": 1, "c": 1, "d": 0.5,
	})
	h := newHarness(t, fitter, []string{"a", "b", "c", "d"})
	require.Equal(t, []string{"a", "b", "c", "d"}, h.rank.Ranking)

	logger, _ := log.NewTestLogger(log.LevelInfo)
	sel := selection.NewSequential(fitter, h.ws, selection.DefaultWeights(),
		selection.WithPool(parallel.NewPool(2)), selection.WithLogger(logger))
	res, err := sel.Select(context.Background(), h.rank, h.base)
	require.NoError(t, err)

	assert.Equal(t, selection.Sequential, res.Strategy)
	require.Len(t, res.Optimization, 4)
	require.NotEmpty(t, res.Best)
	assert.Equal(t, h.rank.Ranking[:len(res.Best)], res.Best)

	for i, rec := range res.Optimization {
		assert.Equal(t, i+1, rec.Step)
		assert.Equal(t, h.rank.Ranking[i], rec.Predictor)
		assert.InDelta(t, float64(i+1)/4, rec.Penalization, 1e-12)
		assert.Equal(t, i < len(res.Best), rec.Selected)
	}

	require.NotNil(t, res.BestFit())
	assert.Equal(t, append([]string{"x"}, res.Best...), res.BestFit().Predictors())
	assert.Equal(t, res.Optimization[len(res.Best)-1].MoranI, res.BestMoran().MaxMoran)
	assert.True(t, logger.ContainsMessage("selection finished"))
}

func TestSequential_Empty(t *testing.T) {
	fitter := fixtures.NewClusterEffectFitter(7, 10, 0.3, 3, nil)
	h := newHarness(t, fitter, []string{"z"})
	require.Zero(t, h.rank.Len())

	_, err := selection.NewSequential(fitter, h.ws, selection.DefaultWeights()).Select(context.Background(), h.rank, h.base)
	assert.True(t, errors.Is(err, errors.ErrNoEligiblePredictors))
}

func TestOptimized_NotLargerThanSequential(t *testing.T) {
	fitter := fixtures.NewClusterEffectFitter(7, 10, 0.3, 3, map[string]float64{
		"a": 3, "b": 1, "c": 1, "d": 0.5,
	})
	h := newHarness(t, fitter, []string{"a", "b", "c", "d"})
	w := selection.DefaultWeights()

	seq, err := selection.NewSequential(fitter, h.ws, w).Select(context.Background(), h.rank, h.base)
	require.NoError(t, err)
	opt, err := selection.NewOptimized(fitter, h.ws, w).Select(context.Background(), h.rank, h.base)
	require.NoError(t, err)

	assert.Equal(t, selection.Optimized, opt.Strategy)
	assert.LessOrEqual(t, len(opt.Best), len(seq.Best))
	assert.Equal(t, "a", opt.Optimization[0].Predictor)
	assert.Equal(t, []string{"a"}, opt.Best)
}

func TestOptimized_Greedy(t *testing.T) {
	fitter := fixtures.NewClusterEffectFitter(7, 10, 0.3, 3, nil)
	// e helps on its own but adds nothing once a is in the model
	fitter.AmplitudeFunc = func(preds []string) float64 {
		has := map[string]bool{}
		for _, p := range preds {
			has[p] = true
		}
		switch {
		case has["a"] && has["b"]:
			return 0.5
		case has["a"]:
			return 1
		case has["e"]:
			return 2
		case has["b"]:
			return 2.5
		}
		return 3
	}
	h := newHarness(t, fitter, []string{"a", "b", "e"})
	require.Equal(t, []string{"a", "e", "b"}, h.rank.Ranking)

	var mu sync.Mutex
	var requests [][]string
	recording := model.FitterFunc(func(ctx context.Context, req model.FitRequest) (model.FitResult, error) {
		mu.Lock()
		requests = append(requests, req.Predictors)
		mu.Unlock()
		return fitter.Fit(ctx, req)
	})

	res, err := selection.NewOptimized(recording, h.ws, selection.DefaultWeights()).Select(context.Background(), h.rank, h.base)
	require.NoError(t, err)

	require.Len(t, res.Optimization, 2)
	assert.Equal(t, "a", res.Optimization[0].Predictor)
	assert.Equal(t, "b", res.Optimization[1].Predictor)
	assert.InDelta(t, 2.0/3, res.Optimization[1].Penalization, 1e-12)
	assert.Less(t, res.Optimization[1].MoranI, res.Optimization[0].MoranI)

	// the first model comes from the ranking, e is tried once and dropped
	withE := 0
	for _, preds := range requests {
		for _, p := range preds {
			if p == "e" {
				withE++
			}
		}
	}
	assert.Len(t, requests, 2)
	assert.Equal(t, 1, withE)
}

func TestNew(t *testing.T) {
	ws, err := spatial.NewWeightSet(fixtures.TwoClusters(3), spatial.Thresholds{0})
	require.NoError(t, err)
	fitter := fixtures.NewClusterEffectFitter(1, 3, 0.1, 1, nil)

	for _, s := range []selection.Strategy{selection.Sequential, selection.Optimized} {
		sel, err := selection.New(s, fitter, ws, selection.DefaultWeights())
		require.NoError(t, err)
		assert.Equal(t, s, sel.Strategy())

		parsed, err := selection.ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)

		text, err := s.MarshalText()
		require.NoError(t, err)
		var back selection.Strategy
		require.NoError(t, back.UnmarshalText(text))
		assert.Equal(t, s, back)
	}
	var bad selection.Strategy
	assert.Error(t, bad.UnmarshalText([]byte("greedy")))
	_, err = selection.New(selection.Strategy(9), fitter, ws, selection.DefaultWeights())
	assert.Error(t, err)
}
