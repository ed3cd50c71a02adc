package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// Snapshots persists percentile snapshots. Snapshots are retained, keyed
// by (metric_id, window_days, ts); Latest picks the newest, older rows
// stay for audit.
type Snapshots struct {
	db *sql.DB
}

func (s *Snapshots) Upsert(ctx context.Context, snap scorecard.PercentileSnapshot) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO percentiles
		   (metric_id, window_days, ts, p10, p25, p50, p75, p90, min_val, max_val)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 ON CONFLICT (metric_id, window_days, ts) DO UPDATE
		   SET p10 = EXCLUDED.p10, p25 = EXCLUDED.p25, p50 = EXCLUDED.p50,
		       p75 = EXCLUDED.p75, p90 = EXCLUDED.p90,
		       min_val = EXCLUDED.min_val, max_val = EXCLUDED.max_val`,
		snap.MetricID, snap.WindowDays, snap.Timestamp,
		snap.P10, snap.P25, snap.P50, snap.P75, snap.P90, snap.Min, snap.Max,
	)
	if err != nil {
		return fmt.Errorf("upsert snapshot %s/%dd: %w", snap.MetricID, snap.WindowDays, err)
	}
	return nil
}

// Latest returns the most recent snapshot for (metric_id, window_days).
func (s *Snapshots) Latest(ctx context.Context, metricID string, windowDays int) (scorecard.PercentileSnapshot, error) {
	var snap scorecard.PercentileSnapshot
	err := s.db.QueryRowContext(ctx,
		`SELECT metric_id, window_days, ts, p10, p25, p50, p75, p90, min_val, max_val
		 FROM percentiles WHERE metric_id = $1 AND window_days = $2
		 ORDER BY ts DESC LIMIT 1`,
		metricID, windowDays,
	).Scan(&snap.MetricID, &snap.WindowDays, &snap.Timestamp,
		&snap.P10, &snap.P25, &snap.P50, &snap.P75, &snap.P90, &snap.Min, &snap.Max)
	if err != nil {
		return scorecard.PercentileSnapshot{}, notFound(
			fmt.Sprintf("latest snapshot %s/%dd", metricID, windowDays), err)
	}
	return snap, nil
}
