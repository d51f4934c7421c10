// Standard attribute keys for spatial predictor runs.
//
// Keys follow the same dotted, hierarchical convention across packages so
// that log output of a run can be filtered by stage ("spatial.*",
// "moran.*", "ranking.*", "selection.*").

package log

// Run and component context.
const (
	// RunIDKey identifies one engine run. Generated per Run call.
	RunIDKey = "run.id"

	// ComponentKey names the package emitting the record.
	// Examples: "engine", "ranking", "selection", "cluster"
	ComponentKey = "component"

	// OperationKey names the operation within the component.
	// Examples: "generate", "rank", "select", "fit"
	OperationKey = "operation"

	// StageKey names the pipeline stage of a run.
	StageKey = "run.stage"
)

// Data shape.
const (
	// SamplesKey is the number of observations (rows).
	SamplesKey = "data.samples"

	// PredictorsKey is the number of predictors in a fit.
	PredictorsKey = "data.predictors"

	// DependentKey is the name of the dependent variable.
	DependentKey = "data.dependent"
)

// Spatial context.
const (
	// ThresholdKey is a distance threshold.
	ThresholdKey = "spatial.threshold"

	// ThresholdsKey is the number of thresholds in a set.
	ThresholdsKey = "spatial.thresholds"

	// GeneratorKey is the predictor generation method.
	GeneratorKey = "spatial.generator"

	// CandidatesKey is the number of candidate spatial predictors.
	CandidatesKey = "spatial.candidates"

	// PredictorKey is the name of one spatial predictor.
	PredictorKey = "spatial.predictor"

	// FilteredKey is the number of candidates removed by the correlation
	// filter.
	FilteredKey = "spatial.filtered"
)

// Autocorrelation and fit metrics.
const (
	MoranIKey      = "moran.i"
	MoranPValueKey = "moran.p_value"
	MaxMoranKey    = "moran.max"
	R2ScoreKey     = "metrics.r2_score"
	ScoreKey       = "selection.score"
)

// Ranking and selection.
const (
	RankerKey   = "ranking.mode"
	EligibleKey = "ranking.eligible"
	SelectorKey = "selection.mode"
	StepKey     = "selection.step"
	SelectedKey = "selection.selected"
	RoundKey    = "selection.round"
)

// Performance and infrastructure.
const (
	DurationMsKey  = "perf.duration_ms"
	CacheHitsKey   = "perf.cache_hits"
	CacheMissesKey = "perf.cache_misses"
	WorkersKey     = "infra.workers"
	NodeKey        = "infra.node"
)

// Error context.
const (
	ErrorKey      = "error"
	StacktraceKey = "error.stacktrace"
	ErrorTypeKey  = "error.type"
)

// Standard operation values.
const (
	OperationGenerate = "generate"
	OperationRank     = "rank"
	OperationSelect   = "select"
	OperationFit      = "fit"
	OperationServe    = "serve"
)
