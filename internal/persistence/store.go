// Package persistence stores completed backtest runs in Postgres. The store
// is optional: runs proceed unchanged when no database is configured, and a
// failed save never fails the run.
package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Run is one persisted backtest run.
type Run struct {
	ID        uuid.UUID       `db:"id"`
	CreatedAt time.Time       `db:"created_at"`
	Start     time.Time       `db:"start_date"`
	End       time.Time       `db:"end_date"`
	Strategy  string          `db:"strategy"`
	Config    json.RawMessage `db:"config"`
	Metrics   json.RawMessage `db:"metrics"`
}

// NavPoint is one row of a run's NAV history.
type NavPoint struct {
	RunID  uuid.UUID `db:"run_id"`
	Date   time.Time `db:"ts"`
	NAV    float64   `db:"nav"`
	Return float64   `db:"ret"`
	Cash   float64   `db:"cash"`
}

// RunStore persists runs and their NAV histories.
type RunStore struct {
	db      *sqlx.DB
	timeout time.Duration
}

// NewRunStore wraps an open database handle.
func NewRunStore(db *sqlx.DB, timeout time.Duration) *RunStore {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &RunStore{db: db, timeout: timeout}
}

// Open connects to Postgres and returns a store.
func Open(dsn string, timeout time.Duration) (*RunStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return NewRunStore(db, timeout), nil
}

// InitSchema creates the run tables when they do not exist.
func (s *RunStore) InitSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	schema := `
	CREATE TABLE IF NOT EXISTS backtest_runs (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		start_date DATE NOT NULL,
		end_date DATE NOT NULL,
		strategy TEXT NOT NULL,
		config JSONB NOT NULL,
		metrics JSONB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS backtest_nav_points (
		run_id UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
		ts DATE NOT NULL,
		nav DOUBLE PRECISION NOT NULL,
		ret DOUBLE PRECISION NOT NULL,
		cash DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, ts)
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// SaveRun inserts the run row and its NAV points in one transaction.
func (s *RunStore) SaveRun(ctx context.Context, run Run, points []NavPoint) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs (id, start_date, end_date, strategy, config, metrics)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.Start, run.End, run.Strategy, run.Config, run.Metrics)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_nav_points (run_id, ts, nav, ret, cash)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return fmt.Errorf("prepare nav insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range points {
		if _, err := stmt.ExecContext(ctx, run.ID, p.Date, p.NAV, p.Return, p.Cash); err != nil {
			return fmt.Errorf("insert nav point %s: %w", p.Date.Format("2006-01-02"), err)
		}
	}
	return tx.Commit()
}

// LatestRun returns the most recently created run.
func (s *RunStore) LatestRun(ctx context.Context) (*Run, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var run Run
	err := s.db.GetContext(ctx, &run, `
		SELECT id, created_at, start_date, end_date, strategy, config, metrics
		FROM backtest_runs ORDER BY created_at DESC LIMIT 1`)
	if err != nil {
		return nil, fmt.Errorf("query latest run: %w", err)
	}
	return &run, nil
}

// Close releases the database handle.
func (s *RunStore) Close() error {
	return s.db.Close()
}
