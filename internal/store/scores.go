package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// Scores persists computed score records for metrics, pillars, and the
// overall score.
type Scores struct {
	db *sql.DB
}

func (s *Scores) Upsert(ctx context.Context, rec scorecard.ScoreRecord) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (kind, id, ts, score, trend_7d, trend_30d)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (kind, id, ts) DO UPDATE
		   SET score = EXCLUDED.score,
		       trend_7d  = EXCLUDED.trend_7d,
		       trend_30d = EXCLUDED.trend_30d`,
		rec.Kind, rec.ID, rec.Timestamp, rec.Score, rec.Trend7d, rec.Trend30d,
	)
	if err != nil {
		return fmt.Errorf("upsert score %s/%s: %w", rec.Kind, rec.ID, err)
	}
	return nil
}

// Latest returns the most recent score record for (kind, id).
func (s *Scores) Latest(ctx context.Context, kind scorecard.Kind, id string) (scorecard.ScoreRecord, error) {
	rec, err := s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT kind, id, ts, score, trend_7d, trend_30d
		 FROM scores WHERE kind = $1 AND id = $2
		 ORDER BY ts DESC LIMIT 1`,
		kind, id,
	))
	if err != nil {
		return scorecard.ScoreRecord{}, notFound(fmt.Sprintf("latest score %s/%s", kind, id), err)
	}
	return rec, nil
}

// LatestBefore returns the newest score record for (kind, id) whose
// timestamp is at or before cutoff.
func (s *Scores) LatestBefore(ctx context.Context, kind scorecard.Kind, id string, cutoff int64) (scorecard.ScoreRecord, error) {
	rec, err := s.scanOne(s.db.QueryRowContext(ctx,
		`SELECT kind, id, ts, score, trend_7d, trend_30d
		 FROM scores WHERE kind = $1 AND id = $2 AND ts <= $3
		 ORDER BY ts DESC LIMIT 1`,
		kind, id, cutoff,
	))
	if err != nil {
		return scorecard.ScoreRecord{}, notFound(fmt.Sprintf("score before %d %s/%s", cutoff, kind, id), err)
	}
	return rec, nil
}

// Range returns score records for (kind, id) at or after since, oldest
// first.
func (s *Scores) Range(ctx context.Context, kind scorecard.Kind, id string, since int64) ([]scorecard.ScoreRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT kind, id, ts, score, trend_7d, trend_30d
		 FROM scores WHERE kind = $1 AND id = $2 AND ts >= $3
		 ORDER BY ts ASC`,
		kind, id, since,
	)
	if err != nil {
		return nil, fmt.Errorf("range scores %s/%s: %w", kind, id, err)
	}
	defer rows.Close()

	var out []scorecard.ScoreRecord
	for rows.Next() {
		rec, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan score: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Scores) scanOne(row rowScanner) (scorecard.ScoreRecord, error) {
	var (
		rec     scorecard.ScoreRecord
		trend7  sql.NullFloat64
		trend30 sql.NullFloat64
	)
	if err := row.Scan(&rec.Kind, &rec.ID, &rec.Timestamp, &rec.Score, &trend7, &trend30); err != nil {
		return scorecard.ScoreRecord{}, err
	}
	if trend7.Valid {
		rec.Trend7d = &trend7.Float64
	}
	if trend30.Valid {
		rec.Trend30d = &trend30.Float64
	}
	return rec, nil
}
