package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*RunStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRunStore(sqlx.NewDb(db, "postgres"), time.Second), mock
}

func sampleRun() Run {
	return Run{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
		Start:     time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2023, 12, 31, 0, 0, 0, 0, time.UTC),
		Strategy:  "macro",
		Config:    json.RawMessage(`{}`),
		Metrics:   json.RawMessage(`{"total_return":12.5}`),
	}
}

func TestInitSchema(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS backtest_runs").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.InitSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	store, mock := newMockStore(t)
	run := sampleRun()
	points := []NavPoint{
		{RunID: run.ID, Date: run.Start, NAV: 1_000_000, Return: 0, Cash: 0},
		{RunID: run.ID, Date: run.Start.AddDate(0, 1, 0), NAV: 1_010_000, Return: 0.01, Cash: 0},
	}

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO backtest_runs").
		WithArgs(run.ID, run.Start, run.End, run.Strategy, []byte(run.Config), []byte(run.Metrics)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectPrepare("INSERT INTO backtest_nav_points")
	for _, p := range points {
		mock.ExpectExec("INSERT INTO backtest_nav_points").
			WithArgs(run.ID, p.Date, p.NAV, p.Return, p.Cash).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.SaveRun(context.Background(), run, points))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)
	run := sampleRun()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO backtest_runs").
		WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := store.SaveRun(context.Background(), run, nil)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRun(t *testing.T) {
	store, mock := newMockStore(t)
	run := sampleRun()

	rows := sqlmock.NewRows([]string{"id", "created_at", "start_date", "end_date", "strategy", "config", "metrics"}).
		AddRow(run.ID, run.CreatedAt, run.Start, run.End, run.Strategy, []byte(run.Config), []byte(run.Metrics))
	mock.ExpectQuery("SELECT id, created_at, start_date, end_date, strategy, config, metrics").
		WillReturnRows(rows)

	got, err := store.LatestRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "macro", got.Strategy)
}

func TestLatestRunEmpty(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT id, created_at").
		WillReturnError(errors.New("sql: no rows in result set"))

	_, err := store.LatestRun(context.Background())
	assert.Error(t, err)
}
