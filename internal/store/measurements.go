package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// Measurements persists normalized metric readings.
type Measurements struct {
	db *sql.DB
}

// Upsert writes one measurement, overwriting any prior reading with the
// same (metric_id, ts) key.
func (s *Measurements) Upsert(ctx context.Context, m scorecard.Measurement) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO measurements (metric_id, ts, value, unit)
		 VALUES ($1, $2, $3, NULLIF($4, ''))
		 ON CONFLICT (metric_id, ts) DO UPDATE
		   SET value = EXCLUDED.value,
		       unit  = EXCLUDED.unit`,
		m.MetricID, m.Timestamp, m.Value, m.Unit,
	)
	if err != nil {
		return fmt.Errorf("upsert measurement %s: %w", m.MetricID, err)
	}
	return nil
}

// Latest returns the most recent measurement for a metric.
func (s *Measurements) Latest(ctx context.Context, metricID string) (scorecard.Measurement, error) {
	var (
		m    scorecard.Measurement
		unit sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT metric_id, ts, value, unit
		 FROM measurements WHERE metric_id = $1
		 ORDER BY ts DESC LIMIT 1`,
		metricID,
	).Scan(&m.MetricID, &m.Timestamp, &m.Value, &unit)
	if err != nil {
		return scorecard.Measurement{}, notFound(fmt.Sprintf("latest measurement %s", metricID), err)
	}
	m.Unit = unit.String
	return m, nil
}

// Range returns measurements for a metric at or after since, oldest first.
func (s *Measurements) Range(ctx context.Context, metricID string, since int64) ([]scorecard.Measurement, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT metric_id, ts, value, unit
		 FROM measurements WHERE metric_id = $1 AND ts >= $2
		 ORDER BY ts ASC`,
		metricID, since,
	)
	if err != nil {
		return nil, fmt.Errorf("range measurements %s: %w", metricID, err)
	}
	defer rows.Close()

	var out []scorecard.Measurement
	for rows.Next() {
		var (
			m    scorecard.Measurement
			unit sql.NullString
		)
		if err := rows.Scan(&m.MetricID, &m.Timestamp, &m.Value, &unit); err != nil {
			return nil, fmt.Errorf("scan measurement: %w", err)
		}
		m.Unit = unit.String
		out = append(out, m)
	}
	return out, rows.Err()
}
