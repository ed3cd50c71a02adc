package scorecard_test

import (
	"context"
	"errors"
	"math"
	"testing"

	"go.uber.org/zap"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

const day = int64(86400)

// seedHistory inserts n daily points ending at asOf, oldest first, with
// values 1..n.
func seedHistory(m *fakeMeasurements, metricID string, asOf int64, n int) {
	for i := 0; i < n; i++ {
		m.add(metricID, asOf-int64(n-i)*day, float64(i+1))
	}
}

func TestComputePercentilesPrimaryWindow(t *testing.T) {
	measurements := newFakeMeasurements()
	snapshots := newFakeSnapshots()
	asOf := int64(1_700_000_000)
	seedHistory(measurements, "security.hashprice", asOf, 100)

	n := scorecard.NewNormalizer(measurements, snapshots, zap.NewNop())
	snap, err := n.ComputePercentiles(context.Background(), "security.hashprice", asOf)
	if err != nil {
		t.Fatalf("ComputePercentiles() error: %v", err)
	}

	if snap.WindowDays != scorecard.DefaultWindowDays {
		t.Errorf("WindowDays = %d, want %d", snap.WindowDays, scorecard.DefaultWindowDays)
	}
	if math.Abs(snap.P50-50.5) > 1e-9 {
		t.Errorf("P50 = %v, want 50.5", snap.P50)
	}
	if snap.Min != 1 || snap.Max != 100 {
		t.Errorf("range = [%v, %v], want [1, 100]", snap.Min, snap.Max)
	}

	if _, err := snapshots.Latest(context.Background(), "security.hashprice", scorecard.DefaultWindowDays); err != nil {
		t.Errorf("snapshot was not persisted: %v", err)
	}
}

func TestComputePercentilesFallbackWindow(t *testing.T) {
	measurements := newFakeMeasurements()
	snapshots := newFakeSnapshots()
	asOf := int64(1_700_000_000)
	// 15 points: below the 30-point primary threshold, above the 10-point
	// absolute minimum, so the fallback window is used.
	seedHistory(measurements, "decent.tor_share", asOf, 15)

	n := scorecard.NewNormalizer(measurements, snapshots, zap.NewNop())
	snap, err := n.ComputePercentiles(context.Background(), "decent.tor_share", asOf)
	if err != nil {
		t.Fatalf("ComputePercentiles() error: %v", err)
	}
	if snap.WindowDays != scorecard.DefaultFallbackDays {
		t.Errorf("WindowDays = %d, want fallback %d", snap.WindowDays, scorecard.DefaultFallbackDays)
	}
}

func TestComputePercentilesInsufficientData(t *testing.T) {
	measurements := newFakeMeasurements()
	snapshots := newFakeSnapshots()
	asOf := int64(1_700_000_000)
	seedHistory(measurements, "lightning.capacity", asOf, 9)

	n := scorecard.NewNormalizer(measurements, snapshots, zap.NewNop())
	_, err := n.ComputePercentiles(context.Background(), "lightning.capacity", asOf)
	if !errors.Is(err, scorecard.ErrInsufficientData) {
		t.Fatalf("error = %v, want ErrInsufficientData", err)
	}
	if len(snapshots.snaps) != 0 {
		t.Error("snapshot persisted despite insufficient data")
	}
}

func TestComputePercentilesStoreFailure(t *testing.T) {
	measurements := newFakeMeasurements()
	measurements.fail = true
	n := scorecard.NewNormalizer(measurements, newFakeSnapshots(), zap.NewNop())

	_, err := n.ComputePercentiles(context.Background(), "x", 0)
	if !errors.Is(err, errStoreDown) {
		t.Fatalf("error = %v, want store failure to propagate", err)
	}
}

func TestRefreshAllSkipsSparseMetrics(t *testing.T) {
	measurements := newFakeMeasurements()
	snapshots := newFakeSnapshots()
	asOf := int64(1_700_000_000)
	seedHistory(measurements, "a", asOf, 50)
	seedHistory(measurements, "b", asOf, 3) // too sparse, must not abort

	n := scorecard.NewNormalizer(measurements, snapshots, zap.NewNop())
	if err := n.RefreshAll(context.Background(), []string{"a", "b"}, asOf); err != nil {
		t.Fatalf("RefreshAll() error: %v", err)
	}

	if _, err := snapshots.Latest(context.Background(), "a", scorecard.DefaultWindowDays); err != nil {
		t.Errorf("snapshot for a missing: %v", err)
	}
	if len(snapshots.snaps) != 1 {
		t.Errorf("snapshot count = %d, want 1", len(snapshots.snaps))
	}
}

func TestRankFallsBackToSecondarySnapshot(t *testing.T) {
	snapshots := newFakeSnapshots()
	snapshots.snaps[snapKey{"m", scorecard.DefaultFallbackDays}] = scorecard.PercentileSnapshot{
		MetricID:   "m",
		WindowDays: scorecard.DefaultFallbackDays,
		Percentiles: scorecard.Percentiles{
			Min: 0, P10: 10, P25: 25, P50: 50, P75: 75, P90: 90, Max: 100,
		},
	}

	n := scorecard.NewNormalizer(newFakeMeasurements(), snapshots, zap.NewNop())
	rank, err := n.Rank(context.Background(), "m", 50)
	if err != nil {
		t.Fatalf("Rank() error: %v", err)
	}
	if math.Abs(rank-0.5) > 1e-9 {
		t.Errorf("rank = %v, want 0.5", rank)
	}
}

func TestRankNoDistribution(t *testing.T) {
	n := scorecard.NewNormalizer(newFakeMeasurements(), newFakeSnapshots(), zap.NewNop())
	_, err := n.Rank(context.Background(), "m", 1)
	if !errors.Is(err, scorecard.ErrNoDistribution) {
		t.Fatalf("error = %v, want ErrNoDistribution", err)
	}
}
