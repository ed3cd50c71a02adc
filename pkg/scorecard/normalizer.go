package scorecard

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	// DefaultWindowDays is the primary percentile window.
	DefaultWindowDays = 365
	// DefaultFallbackDays is used when the primary window is too sparse.
	DefaultFallbackDays = 90

	// minPrimaryPoints is the sample size below which the primary window
	// falls back to the shorter one.
	minPrimaryPoints = 30
	// minFallbackPoints is the absolute minimum sample size; below it no
	// snapshot is produced at all.
	minFallbackPoints = 10
)

// Normalizer maintains rolling-window percentile snapshots per metric and
// converts raw values into percentile ranks.
type Normalizer struct {
	measurements MeasurementStore
	snapshots    SnapshotStore
	windowDays   int
	fallbackDays int
	log          *zap.Logger
}

// NewNormalizer creates a Normalizer with the default 365d/90d windows.
func NewNormalizer(measurements MeasurementStore, snapshots SnapshotStore, log *zap.Logger) *Normalizer {
	return &Normalizer{
		measurements: measurements,
		snapshots:    snapshots,
		windowDays:   DefaultWindowDays,
		fallbackDays: DefaultFallbackDays,
		log:          log,
	}
}

// WithWindows overrides the primary and fallback window lengths.
func (n *Normalizer) WithWindows(windowDays, fallbackDays int) *Normalizer {
	n.windowDays = windowDays
	n.fallbackDays = fallbackDays
	return n
}

// ComputePercentiles estimates and persists the distribution for one metric
// as of the given timestamp. It tries the primary window first and falls
// back to the shorter window when fewer than 30 points exist; with fewer
// than 10 points in the fallback window it returns ErrInsufficientData and
// persists nothing. Store failures are returned as-is.
func (n *Normalizer) ComputePercentiles(ctx context.Context, metricID string, asOf int64) (PercentileSnapshot, error) {
	history, err := n.measurements.Range(ctx, metricID, asOf-int64(n.windowDays)*86400)
	if err != nil {
		return PercentileSnapshot{}, fmt.Errorf("read %s history (%dd): %w", metricID, n.windowDays, err)
	}
	windowUsed := n.windowDays

	if len(history) < minPrimaryPoints {
		history, err = n.measurements.Range(ctx, metricID, asOf-int64(n.fallbackDays)*86400)
		if err != nil {
			return PercentileSnapshot{}, fmt.Errorf("read %s history (%dd): %w", metricID, n.fallbackDays, err)
		}
		windowUsed = n.fallbackDays

		if len(history) < minFallbackPoints {
			return PercentileSnapshot{}, fmt.Errorf("metric %s: %d points: %w",
				metricID, len(history), ErrInsufficientData)
		}
	}

	values := make([]float64, len(history))
	for i, m := range history {
		values[i] = m.Value
	}

	snap := PercentileSnapshot{
		MetricID:    metricID,
		WindowDays:  windowUsed,
		Timestamp:   asOf,
		Percentiles: ComputePercentiles(values),
	}
	if err := n.snapshots.Upsert(ctx, snap); err != nil {
		return PercentileSnapshot{}, fmt.Errorf("persist snapshot %s/%dd: %w", metricID, windowUsed, err)
	}

	n.log.Debug("computed percentile snapshot",
		zap.String("metric", metricID),
		zap.Int("window_days", windowUsed),
		zap.Int("points", len(values)),
		zap.Float64("p50", snap.P50))

	return snap, nil
}

// RefreshAll recomputes snapshots for every given metric. Metrics with
// insufficient data are logged and skipped; any store failure aborts the
// refresh and is returned.
func (n *Normalizer) RefreshAll(ctx context.Context, metricIDs []string, asOf int64) error {
	refreshed := 0
	for _, id := range metricIDs {
		if _, err := n.ComputePercentiles(ctx, id, asOf); err != nil {
			if errors.Is(err, ErrInsufficientData) {
				n.log.Warn("skipping percentile snapshot", zap.String("metric", id), zap.Error(err))
				continue
			}
			return err
		}
		refreshed++
	}
	n.log.Info("refreshed percentile snapshots",
		zap.Int("refreshed", refreshed), zap.Int("total", len(metricIDs)))
	return nil
}

// Rank converts a raw value into a percentile rank in [0, 1] against the
// metric's most recent snapshot, preferring the primary window and falling
// back to the secondary one. With no snapshot at either window it returns
// ErrNoDistribution; callers must treat the metric score as absent rather
// than defaulting it.
func (n *Normalizer) Rank(ctx context.Context, metricID string, value float64) (float64, error) {
	snap, err := n.snapshots.Latest(ctx, metricID, n.windowDays)
	if errors.Is(err, ErrNotFound) {
		snap, err = n.snapshots.Latest(ctx, metricID, n.fallbackDays)
		if errors.Is(err, ErrNotFound) {
			return 0, fmt.Errorf("metric %s: %w", metricID, ErrNoDistribution)
		}
	}
	if err != nil {
		return 0, fmt.Errorf("lookup snapshot %s: %w", metricID, err)
	}

	return snap.Rank(value), nil
}
