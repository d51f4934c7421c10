package engine

import (
	"strings"

	"github.com/YuminosukeSato/spatialpred/pkg/errors"
	"github.com/YuminosukeSato/spatialpred/predictors"
	"github.com/YuminosukeSato/spatialpred/ranking"
	"github.com/YuminosukeSato/spatialpred/selection"
	"github.com/YuminosukeSato/spatialpred/spatial"
)

// Ranker is the ranking stage of a run.
type Ranker int

const (
	// RankerNone keeps every candidate. Valid only with SelectorNone and
	// the raw distance generator.
	RankerNone Ranker = iota
	RankerMoran
	RankerEffect
)

func (r Ranker) String() string {
	switch r {
	case RankerNone:
		return "none"
	case RankerMoran:
		return "moran"
	case RankerEffect:
		return "effect"
	default:
		return "unknown"
	}
}

// ParseRanker parses "none", "moran" or "effect".
func ParseRanker(s string) (Ranker, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return RankerNone, nil
	case "moran", "moran.i":
		return RankerMoran, nil
	case "effect":
		return RankerEffect, nil
	}
	return 0, errors.NewConfigError("ranker", "must be none, moran or effect", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r Ranker) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler using ParseRanker.
func (r *Ranker) UnmarshalText(b []byte) error {
	v, err := ParseRanker(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

func (r Ranker) mode() ranking.Mode {
	if r == RankerMoran {
		return ranking.Moran
	}
	return ranking.Effect
}

// Selector is the selection stage of a run.
type Selector int

const (
	// SelectorNone skips selection. Valid only with RankerNone.
	SelectorNone Selector = iota
	SelectorSequential
	SelectorOptimized
)

func (s Selector) String() string {
	switch s {
	case SelectorNone:
		return "none"
	case SelectorSequential:
		return "sequential"
	case SelectorOptimized:
		return "optimized"
	default:
		return "unknown"
	}
}

// ParseSelector parses "none", "sequential" or "optimized".
func ParseSelector(s string) (Selector, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "none", "":
		return SelectorNone, nil
	case "sequential":
		return SelectorSequential, nil
	case "optimized":
		return SelectorOptimized, nil
	}
	return 0, errors.NewConfigError("selector", "must be none, sequential or optimized", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Selector) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler using ParseSelector.
func (s *Selector) UnmarshalText(b []byte) error {
	v, err := ParseSelector(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Selector) strategy() selection.Strategy {
	if s == SelectorOptimized {
		return selection.Optimized
	}
	return selection.Sequential
}

// Config is the tagged configuration of a run.
type Config struct {
	Generator predictors.Method `yaml:"generator" mapstructure:"generator"`
	Ranker    Ranker            `yaml:"ranker" mapstructure:"ranker"`
	Selector  Selector          `yaml:"selector" mapstructure:"selector"`

	// Thresholds are the distance thresholds, ascending.
	Thresholds spatial.Thresholds `yaml:"thresholds" mapstructure:"thresholds"`

	Weights selection.Weights `yaml:"weights" mapstructure:"weights"`

	// MaxPredictors caps the number of generated candidates. 0 means no cap.
	MaxPredictors int `yaml:"max_predictors" mapstructure:"max_predictors"`

	// PCAWeighted makes the PCA generator decompose weight matrices.
	PCAWeighted bool `yaml:"pca_weighted" mapstructure:"pca_weighted"`

	// MaxCorrelation enables the correlation filter when > 0. It has no
	// effect with RankerNone.
	MaxCorrelation float64 `yaml:"max_correlation" mapstructure:"max_correlation"`

	// Repetitions of every model fit. Values <= 1 mean a single fit.
	Repetitions int   `yaml:"repetitions" mapstructure:"repetitions"`
	Seed        int64 `yaml:"seed" mapstructure:"seed"`
}

// DefaultConfig returns MEM generation, effect ranking and sequential
// selection at threshold 0 with default weights and the correlation filter
// at predictors.DefaultMaxCorrelation.
func DefaultConfig() Config {
	return Config{
		Generator:      predictors.MEM,
		Ranker:         RankerEffect,
		Selector:       SelectorSequential,
		Thresholds:     spatial.Thresholds{0},
		Weights:        selection.DefaultWeights(),
		MaxCorrelation: predictors.DefaultMaxCorrelation,
		Repetitions:    1,
	}
}

// Validate rejects invalid stage combinations and out-of-range values.
func (c Config) Validate() error {
	if _, err := predictors.NewGenerator(c.Generator, 0, false); err != nil {
		return err
	}
	switch {
	case c.Ranker == RankerMoran && c.Selector == SelectorOptimized:
		return errors.NewConfigError("selector", "optimized selection requires effect ranking", c.Selector.String())
	case c.Ranker == RankerNone && c.Selector != SelectorNone:
		return errors.NewConfigError("selector", "selection requires a ranker", c.Selector.String())
	case c.Ranker != RankerNone && c.Selector == SelectorNone:
		return errors.NewConfigError("ranker", "ranking without selection", c.Ranker.String())
	case c.Ranker == RankerNone && c.Generator != predictors.RawDistance:
		return errors.NewConfigError("ranker", "only raw distance predictors can be kept without ranking", c.Generator.String())
	}
	if c.Ranker > RankerEffect || c.Ranker < RankerNone {
		return errors.NewConfigError("ranker", "unknown ranker", int(c.Ranker))
	}
	if c.Selector > SelectorOptimized || c.Selector < SelectorNone {
		return errors.NewConfigError("selector", "unknown selector", int(c.Selector))
	}
	if err := c.Weights.Validate(); err != nil {
		return err
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.MaxPredictors < 0 {
		return errors.NewConfigError("max_predictors", "must be >= 0", c.MaxPredictors)
	}
	if c.MaxCorrelation < 0 || c.MaxCorrelation > 1 {
		return errors.NewConfigError("max_correlation", "must be in [0, 1]", c.MaxCorrelation)
	}
	if c.Repetitions < 0 {
		return errors.NewConfigError("repetitions", "must be >= 0", c.Repetitions)
	}
	return nil
}
