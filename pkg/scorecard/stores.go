package scorecard

import "context"

// MeasurementStore is the engine's read/write view of raw time-series
// measurements. Range returns measurements ordered by ascending timestamp.
// Latest and Range report ErrNotFound / empty results for missing metrics;
// any other error is a store I/O failure.
type MeasurementStore interface {
	Upsert(ctx context.Context, m Measurement) error
	Latest(ctx context.Context, metricID string) (Measurement, error)
	Range(ctx context.Context, metricID string, since int64) ([]Measurement, error)
}

// SnapshotStore persists percentile snapshots. Latest returns the most
// recent snapshot for (metricID, windowDays), or ErrNotFound.
type SnapshotStore interface {
	Upsert(ctx context.Context, s PercentileSnapshot) error
	Latest(ctx context.Context, metricID string, windowDays int) (PercentileSnapshot, error)
}

// ScoreStore persists score records. Writes are idempotent upserts keyed by
// (kind, id, ts). LatestBefore returns the most recent record at or before
// cutoff (nearest-prior sample, no interpolation), or ErrNotFound.
type ScoreStore interface {
	Upsert(ctx context.Context, r ScoreRecord) error
	Latest(ctx context.Context, kind Kind, id string) (ScoreRecord, error)
	LatestBefore(ctx context.Context, kind Kind, id string, cutoff int64) (ScoreRecord, error)
	Range(ctx context.Context, kind Kind, id string, since int64) ([]ScoreRecord, error)
}
