// Package store implements the chainhealth persistence layer on Postgres:
// raw measurements, percentile snapshots, score records, collector status,
// and the raw payload tables feeding the derived-metric formulas.
package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/chainhealth/chainhealth/pkg/scorecard"
)

// Store bundles the per-table stores over a shared database handle.
type Store struct {
	db *sql.DB

	Measurements *Measurements
	Snapshots    *Snapshots
	Scores       *Scores
	Raw          *Raw
	Status       *Status
}

// New creates a Store over an open database handle.
func New(db *sql.DB) *Store {
	return &Store{
		db:           db,
		Measurements: &Measurements{db: db},
		Snapshots:    &Snapshots{db: db},
		Scores:       &Scores{db: db},
		Raw:          &Raw{db: db},
		Status:       &Status{db: db},
	}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// notFound maps sql.ErrNoRows onto the engine's ErrNotFound sentinel so
// callers can distinguish absence from store I/O failure.
func notFound(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, scorecard.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Interface conformance for the engine's collaborators.
var (
	_ scorecard.MeasurementStore = (*Measurements)(nil)
	_ scorecard.SnapshotStore    = (*Snapshots)(nil)
	_ scorecard.ScoreStore       = (*Scores)(nil)
)
