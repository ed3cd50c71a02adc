package scorecard

import "errors"

// Non-fatal scoring conditions. Each one causes the affected score or
// snapshot to be omitted and logged while the pass continues. Store I/O
// failures are the only fatal condition and are returned as ordinary
// wrapped errors, never as one of these sentinels.
var (
	// ErrInsufficientData means a metric had too few points in both the
	// primary and fallback windows to estimate a distribution.
	ErrInsufficientData = errors.New("insufficient data for percentile snapshot")

	// ErrNoDistribution means a rank was requested but no percentile
	// snapshot exists at any window for the metric.
	ErrNoDistribution = errors.New("no percentile distribution available")

	// ErrMissingDefinition means a score was requested for an id that is
	// not in the definition catalog.
	ErrMissingDefinition = errors.New("no definition in catalog")

	// ErrZeroWeight means every input to a weighted aggregation was absent,
	// leaving a zero denominator.
	ErrZeroWeight = errors.New("no scored inputs with positive weight")

	// ErrNoMeasurement means a metric has no raw readings to score.
	ErrNoMeasurement = errors.New("no measurement available")

	// ErrNotFound is returned by stores when a requested row does not
	// exist. Callers distinguish it from store I/O failures, which abort
	// the pass.
	ErrNotFound = errors.New("not found")
)
