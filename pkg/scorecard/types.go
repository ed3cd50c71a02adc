// Package scorecard implements the chainhealth normalization and scoring
// engine. It converts heterogeneous time-series measurements into a 0-100
// health score hierarchy: individual metric scores roll up into weighted
// pillar scores, which roll up into a single overall score, each with
// trailing 7d/30d trend indicators.
package scorecard

// Direction controls how a raw metric value maps to a 0-100 score.
type Direction string

const (
	// HigherBetter metrics score as percentile rank * 100.
	HigherBetter Direction = "higher_better"
	// LowerBetter metrics score as (1 - percentile rank) * 100.
	LowerBetter Direction = "lower_better"
	// TargetBand metrics score by distance from a configured value band.
	TargetBand Direction = "target_band"
)

// Kind identifies the level of a score record in the hierarchy.
type Kind string

const (
	KindMetric  Kind = "metric"
	KindPillar  Kind = "pillar"
	KindOverall Kind = "overall"
)

// OverallID is the fixed record ID for the single overall score.
const OverallID = "overall"

// Measurement is one raw time-series reading for a metric.
// Keyed by (MetricID, Timestamp); re-ingestion with the same key overwrites.
type Measurement struct {
	MetricID  string  `json:"metric_id"`
	Timestamp int64   `json:"ts"` // Unix seconds
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
}

// Percentiles holds the distribution breakpoints of a historical sample.
type Percentiles struct {
	P10 float64 `json:"p10"`
	P25 float64 `json:"p25"`
	P50 float64 `json:"p50"`
	P75 float64 `json:"p75"`
	P90 float64 `json:"p90"`
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// PercentileSnapshot is a persisted distribution estimate for one metric.
// WindowDays records the window actually used (primary or fallback).
type PercentileSnapshot struct {
	MetricID   string `json:"metric_id"`
	WindowDays int    `json:"window_days"`
	Timestamp  int64  `json:"ts"`
	Percentiles
}

// ScoreRecord is one persisted score sample at any level of the hierarchy.
// Trend fields are nil when the trend could not be computed.
type ScoreRecord struct {
	Kind      Kind     `json:"kind"`
	ID        string   `json:"id"`
	Timestamp int64    `json:"ts"`
	Score     float64  `json:"score"`
	Trend7d   *float64 `json:"trend_7d,omitempty"`
	Trend30d  *float64 `json:"trend_30d,omitempty"`
}

// MetricDefinition describes how one metric is scored and where it rolls up.
type MetricDefinition struct {
	MetricID    string    `json:"metric_id"`
	PillarID    string    `json:"pillar_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Unit        string    `json:"unit,omitempty"`
	Direction   Direction `json:"direction"`
	Weight      float64   `json:"weight"` // >= 0; catalog loading applies the 1.0 default

	// TargetMin and TargetMax bound the acceptable band.
	// Set iff Direction == TargetBand.
	TargetMin *float64 `json:"target_min,omitempty"`
	TargetMax *float64 `json:"target_max,omitempty"`
}

// PillarDefinition describes a thematic metric grouping and its weight in
// the overall score. Pillar weights need not sum to 1; aggregation divides
// by the total weight of pillars that produced a score.
type PillarDefinition struct {
	PillarID string  `json:"pillar_id"`
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
}

// Score is the outcome of scoring one id at one level: either a present
// value in the expected 0-100 range, or an absence carrying its reason.
// Absent scores are excluded from aggregation entirely; they are never
// defaulted to zero or fifty.
type Score struct {
	Value   float64
	Present bool
	Reason  error // nil when Present
}

// Present wraps a computed score value.
func Present(v float64) Score {
	return Score{Value: v, Present: true}
}

// Absent marks a score that could not be computed, with the reason.
func Absent(reason error) Score {
	return Score{Reason: reason}
}

// PassResult is the transient output of one ComputeAll pass. Pillar and
// overall scores are aggregated from the Metrics map of the same pass,
// never from previously persisted records.
type PassResult struct {
	PassID    string
	Timestamp int64
	Metrics   map[string]Score
	Pillars   map[string]Score
	Overall   Score
	Records   []ScoreRecord
}
