package store

import (
	"context"
	"database/sql"
	"fmt"
)

// Status tracks collector run outcomes for the status API.
type Status struct {
	db *sql.DB
}

// CollectorStatus is one collector's most recent run outcome.
type CollectorStatus struct {
	Collector           string `json:"collector"`
	LastRun             int64  `json:"last_run"`
	LastSuccess         int64  `json:"last_success,omitempty"`
	LastError           string `json:"last_error,omitempty"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

// MarkSuccess records a successful run and clears the failure streak.
func (s *Status) MarkSuccess(ctx context.Context, collector string, ts int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collector_status (collector, last_run, last_success, last_error, consecutive_failures)
		 VALUES ($1, $2, $2, NULL, 0)
		 ON CONFLICT (collector) DO UPDATE
		   SET last_run = EXCLUDED.last_run,
		       last_success = EXCLUDED.last_success,
		       last_error = NULL,
		       consecutive_failures = 0`,
		collector, ts,
	)
	if err != nil {
		return fmt.Errorf("mark success %s: %w", collector, err)
	}
	return nil
}

// MarkFailure records a failed run, keeping the prior last_success and
// bumping the failure streak.
func (s *Status) MarkFailure(ctx context.Context, collector string, ts int64, runErr error) error {
	msg := ""
	if runErr != nil {
		msg = runErr.Error()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collector_status (collector, last_run, last_error, consecutive_failures)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (collector) DO UPDATE
		   SET last_run = EXCLUDED.last_run,
		       last_error = EXCLUDED.last_error,
		       consecutive_failures = collector_status.consecutive_failures + 1`,
		collector, ts, msg,
	)
	if err != nil {
		return fmt.Errorf("mark failure %s: %w", collector, err)
	}
	return nil
}

// List returns all collector statuses, sorted by collector name.
func (s *Status) List(ctx context.Context) ([]CollectorStatus, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collector, last_run, last_success, last_error, consecutive_failures
		 FROM collector_status ORDER BY collector`,
	)
	if err != nil {
		return nil, fmt.Errorf("list collector status: %w", err)
	}
	defer rows.Close()

	var out []CollectorStatus
	for rows.Next() {
		var (
			st      CollectorStatus
			success sql.NullInt64
			lastErr sql.NullString
		)
		if err := rows.Scan(&st.Collector, &st.LastRun, &success, &lastErr, &st.ConsecutiveFailures); err != nil {
			return nil, fmt.Errorf("scan collector status: %w", err)
		}
		st.LastSuccess = success.Int64
		st.LastError = lastErr.String
		out = append(out, st)
	}
	return out, rows.Err()
}
