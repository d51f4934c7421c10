// Package ranking orders candidate spatial predictors before selection.
//
// Two modes are available. Moran mode ranks each candidate by its own
// Moran's I at the threshold it was generated for and needs no model fits.
// Effect mode fits the base model plus one candidate at a time and ranks
// candidates by how much they lower the residual autocorrelation relative
// to a reference value. Candidates that do not qualify are excluded from
// the ranking and are never reconsidered by the selectors.
package ranking

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/YuminosukeSato/spatialpred/core/model"
	"github.com/YuminosukeSato/spatialpred/core/parallel"
	"github.com/YuminosukeSato/spatialpred/moran"
	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/pkg/log"
	"github.com/YuminosukeSato/spatialpred/predictors"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// Mode selects the ranking criterion.
type Mode int

const (
	// Moran ranks by each candidate's own Moran's I.
	Moran Mode = iota
	// Effect ranks by the reduction of residual Moran's I when the
	// candidate is added to the model.
	Effect
)

// String returns "moran" or "effect".
func (m Mode) String() string {
	switch m {
	case Moran:
		return "moran"
	case Effect:
		return "effect"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "moran", "moran.i":
		return Moran, nil
	case "effect":
		return Effect, nil
	}
	return 0, errors.NewConfigError("ranking.mode", "must be moran or effect", s)
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler using ParseMode.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Entry is the evaluation of one candidate.
type Entry struct {
	Name string `yaml:"name" json:"name"`

	// Score is the candidate's own Moran's I in Moran mode and the
	// reduction of residual Moran's I in Effect mode.
	Score float64 `yaml:"score" json:"score"`

	// Eligible is Score > 0.
	Eligible bool `yaml:"eligible" json:"eligible"`

	// MoranI is the candidate's own I (Moran mode) or the max positive
	// residual I of the augmented model (Effect mode).
	MoranI float64 `yaml:"moran_i" json:"moran_i"`
	PValue float64 `yaml:"p_value" json:"p_value"`

	// RSquared of the augmented model. Zero in Moran mode.
	RSquared float64 `yaml:"r_squared,omitempty" json:"r_squared,omitempty"`

	fit   model.FitResult
	moran *moran.MultiResult
}

// Fit returns the augmented model fit of an Effect mode entry, or nil.
func (e *Entry) Fit() model.FitResult { return e.fit }

// Moran returns the residual diagnostics of an Effect mode entry, or nil.
func (e *Entry) Moran() *moran.MultiResult { return e.moran }

// Result is the output of one ranking pass.
type Result struct {
	Mode Mode `yaml:"method" json:"method"`

	// Reference is the residual max Moran's I the Effect mode reductions
	// were measured against.
	Reference float64 `yaml:"reference,omitempty" json:"reference,omitempty"`

	// Criteria holds every evaluated candidate in input order.
	Criteria []Entry `yaml:"criteria" json:"criteria"`

	// Ranking lists eligible candidates by descending score. Ties keep the
	// input order.
	Ranking []string `yaml:"ranking" json:"ranking"`

	// Excluded lists candidates that were not eligible.
	Excluded []string `yaml:"excluded,omitempty" json:"excluded,omitempty"`
}

// Len returns the number of ranked candidates.
func (r *Result) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Ranking)
}

// Entry returns the evaluation of the named candidate.
func (r *Result) Entry(name string) (*Entry, bool) {
	for i := range r.Criteria {
		if r.Criteria[i].Name == name {
			return &r.Criteria[i], true
		}
	}
	return nil, false
}

// Top returns the best ranked entry.
func (r *Result) Top() (*Entry, bool) {
	if r.Len() == 0 {
		return nil, false
	}
	return r.Entry(r.Ranking[0])
}

// Ranker evaluates candidates against a weight set. A Ranker is safe for
// concurrent use if its Fitter is.
type Ranker struct {
	fitter model.Fitter
	ws     *spatial.WeightSet
	pool   *parallel.Pool
	logger log.Logger
}

// Option configures a Ranker.
type Option func(*Ranker)

// WithPool sets the worker pool candidate evaluations run on.
func WithPool(p *parallel.Pool) Option {
	return func(r *Ranker) { r.pool = p }
}

// WithLogger sets the logger.
func WithLogger(l log.Logger) Option {
	return func(r *Ranker) { r.logger = l }
}

// NewRanker creates a Ranker. fitter may be nil when only Moran mode is
// used.
func NewRanker(fitter model.Fitter, ws *spatial.WeightSet, opts ...Option) *Ranker {
	r := &Ranker{fitter: fitter, ws: ws}
	for _, opt := range opts {
		opt(r)
	}
	if r.pool == nil {
		r.pool = parallel.NewPool(0)
	}
	if r.logger == nil {
		r.logger = log.Default()
	}
	r.logger = r.logger.With(log.ComponentKey, "ranking")
	return r
}

// RankMoran ranks candidates by their own Moran's I at the threshold each
// was generated for. Candidates with I <= 0 are excluded.
func (r *Ranker) RankMoran(ctx context.Context, cands *predictors.Set) (*Result, error) {
	if r.ws == nil {
		return nil, errors.NewMissingInputError("ranking.RankMoran", "weight matrices")
	}
	start := time.Now()
	n := cands.Len()
	entries := make([]Entry, n)

	err := r.pool.Map(ctx, n, func(ctx context.Context, i int) error {
		p := cands.At(i)
		w, ok := r.ws.ForThreshold(p.Threshold)
		if !ok {
			return errors.NewValueError("ranking.RankMoran",
				"no weight matrix for threshold "+spatial.FormatThreshold(p.Threshold)+" of "+p.Name)
		}
		res, err := moran.Test(p.Values, w)
		if err != nil {
			return errors.Wrapf(err, "candidate %s", p.Name)
		}
		entries[i] = Entry{
			Name:     p.Name,
			Score:    res.Observed,
			Eligible: res.Observed > 0,
			MoranI:   res.Observed,
			PValue:   res.PValue,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := assemble(Moran, 0, entries)
	r.logger.Info("ranking finished",
		log.OperationKey, log.OperationRank,
		log.RankerKey, Moran.String(),
		log.CandidatesKey, n,
		log.EligibleKey, out.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

// RankEffect fits base plus each candidate and ranks candidates by
// reference minus the augmented model's max positive residual Moran's I.
// Candidates with a reduction <= 0 are excluded. The candidate columns must
// already be present in base.Data.
//
// All fits of one call form a barrier: the call returns after every fit has
// finished, or after the first failure.
func (r *Ranker) RankEffect(ctx context.Context, cands []string, base model.FitRequest, reference float64) (*Result, error) {
	if r.fitter == nil {
		return nil, errors.NewMissingInputError("ranking.RankEffect", "fitter")
	}
	if r.ws == nil {
		return nil, errors.NewMissingInputError("ranking.RankEffect", "weight matrices")
	}
	start := time.Now()
	entries := make([]Entry, len(cands))

	err := r.pool.Map(ctx, len(cands), func(ctx context.Context, i int) error {
		name := cands[i]
		fit, err := r.fitter.Fit(ctx, base.With(name))
		if err != nil {
			return errors.Wrapf(err, "fit with candidate %s", name)
		}
		mr, err := moran.MultiThreshold(fit.Residuals(), r.ws)
		if err != nil {
			return errors.Wrapf(err, "residual moran with candidate %s", name)
		}
		reduction := reference - mr.MaxMoran
		entries[i] = Entry{
			Name:     name,
			Score:    reduction,
			Eligible: reduction > 0,
			MoranI:   mr.MaxMoran,
			PValue:   mr.MaxMoranPValue,
			RSquared: fit.RSquared(),
			fit:      fit,
			moran:    mr,
		}
		r.logger.Debug("candidate evaluated",
			log.PredictorKey, name,
			log.MaxMoranKey, mr.MaxMoran,
			log.ScoreKey, reduction,
			log.R2ScoreKey, fit.RSquared(),
		)
		return nil
	})
	if err != nil {
		r.logger.Error("effect ranking failed", log.ErrorKey, err)
		return nil, err
	}

	out := assemble(Effect, reference, entries)
	r.logger.Info("ranking finished",
		log.OperationKey, log.OperationRank,
		log.RankerKey, Effect.String(),
		log.MaxMoranKey, reference,
		log.CandidatesKey, len(cands),
		log.EligibleKey, out.Len(),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return out, nil
}

func assemble(mode Mode, reference float64, entries []Entry) *Result {
	out := &Result{Mode: mode, Reference: reference, Criteria: entries}

	eligible := make([]int, 0, len(entries))
	for i, e := range entries {
		if e.Eligible {
			eligible = append(eligible, i)
		} else {
			out.Excluded = append(out.Excluded, e.Name)
		}
	}
	sort.SliceStable(eligible, func(a, b int) bool {
		return entries[eligible[a]].Score > entries[eligible[b]].Score
	})
	out.Ranking = make([]string, len(eligible))
	for k, i := range eligible {
		out.Ranking[k] = entries[i].Name
	}
	return out
}
