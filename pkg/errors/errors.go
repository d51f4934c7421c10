// Package errors provides the error and warning types used across spatialpred.
//
// Errors carry stack traces through cockroachdb/errors. Warnings are plain
// error values routed through a replaceable handler so that locally recovered
// conditions (a degenerate distance threshold, for example) can be surfaced
// without aborting a run.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("spatialpred-Warning: %v\n", w)
	}
	// set by pkg/log; kept as a func to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the fallback warning handler.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink. Passing nil
// restores the fallback handler.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning. The zerolog sink wins when installed.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// DegenerateWeightsWarning is raised when a distance threshold excludes every
// pair of observations, leaving an all-zero weight matrix. The threshold is
// dropped and the remaining thresholds proceed.
type DegenerateWeightsWarning struct {
	Threshold float64
	Op        string
}

func (w *DegenerateWeightsWarning) Error() string {
	return fmt.Sprintf("%s: distance threshold %g excludes every pair of observations; threshold dropped", w.Op, w.Threshold)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *DegenerateWeightsWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Float64("threshold", w.Threshold).
		Str("operation", w.Op).
		Str("type", "DegenerateWeightsWarning")
}

// NewDegenerateWeightsWarning creates a DegenerateWeightsWarning.
func NewDegenerateWeightsWarning(op string, threshold float64) *DegenerateWeightsWarning {
	return &DegenerateWeightsWarning{Threshold: threshold, Op: op}
}

// RankDeficiencyWarning is raised by the least-squares collaborator when the
// design matrix does not have full column rank.
type RankDeficiencyWarning struct {
	Columns int
	Rank    int
}

func (w *RankDeficiencyWarning) Error() string {
	return fmt.Sprintf("design matrix is rank deficient: rank %d of %d columns; minimum-norm solution used", w.Rank, w.Columns)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *RankDeficiencyWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Int("columns", w.Columns).
		Int("rank", w.Rank).
		Str("type", "RankDeficiencyWarning")
}

// NewRankDeficiencyWarning creates a RankDeficiencyWarning.
func NewRankDeficiencyWarning(columns, rank int) *RankDeficiencyWarning {
	return &RankDeficiencyWarning{Columns: columns, Rank: rank}
}

// ===========================================================================
//
//	Structured errors
//
// ===========================================================================

// MissingInputError reports a required input that was not supplied, such as
// the distance matrix. It is fatal: the caller must abort before the engine
// runs.
type MissingInputError struct {
	Op    string
	Input string
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("spatialpred: %s: missing required input '%s'", e.Op, e.Input)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *MissingInputError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("input", e.Input).
		Str("type", "MissingInputError")
}

// NewMissingInputError creates a MissingInputError with a stack trace.
func NewMissingInputError(op, input string) error {
	return errors.WithStack(&MissingInputError{Op: op, Input: input})
}

// WorkerUnavailableError reports a pool or cluster worker that could not be
// reached or that failed mid-round. There is no retry; the run is aborted.
type WorkerUnavailableError struct {
	Node string
	Err  error
}

func (e *WorkerUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spatialpred: worker %s unavailable: %v", e.Node, e.Err)
	}
	return fmt.Sprintf("spatialpred: worker %s unavailable", e.Node)
}

func (e *WorkerUnavailableError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *WorkerUnavailableError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("node", e.Node).
		Str("type", "WorkerUnavailableError")
	if e.Err != nil {
		event.Str("cause", e.Err.Error())
	}
}

// NewWorkerUnavailableError creates a WorkerUnavailableError with a stack trace.
func NewWorkerUnavailableError(node string, err error) error {
	return errors.WithStack(&WorkerUnavailableError{Node: node, Err: err})
}

// ConfigError reports an invalid engine configuration, for example a ranker
// and selector combination that cannot run together.
type ConfigError struct {
	Field  string
	Reason string
	Value  interface{}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("spatialpred: invalid configuration '%s': %s (got: %v)", e.Field, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ConfigError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("field", e.Field).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ConfigError")
}

// NewConfigError creates a ConfigError with a stack trace.
func NewConfigError(field, reason string, value interface{}) error {
	return errors.WithStack(&ConfigError{Field: field, Reason: reason, Value: value})
}

// DimensionError reports inputs whose shapes do not line up.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns
}

func (e *DimensionError) Error() string {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("spatialpred: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "columns"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValueError reports an argument with an unusable value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("spatialpred: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError reports a failure of the regression collaborator.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("spatialpred: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("spatialpred: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinels
//
// ===========================================================================

var (
	// ErrNoEligiblePredictors means ranking left no candidate that improves
	// residual autocorrelation; the caller keeps the non-spatial model.
	ErrNoEligiblePredictors = New("no eligible spatial predictors")

	// ErrNoSpatialCorrelation means the base model residuals show no
	// significant positive autocorrelation at any threshold.
	ErrNoSpatialCorrelation = New("no significant residual spatial autocorrelation")

	// ErrEmptyData is returned for empty inputs.
	ErrEmptyData = New("empty data")

	// ErrSingularMatrix is returned when a decomposition fails.
	ErrSingularMatrix = New("singular matrix")
)

// StackTrace returns the stack recorded on the outermost layer of err, or ""
// when none was recorded.
func StackTrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}
