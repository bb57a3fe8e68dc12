package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/biomarker-insight-server/internal/domain"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return &PostgresStore{db: db}, mock
}

func TestPostgresStore_SaveObservations(t *testing.T) {
	store, mock := newMockStore(t)

	collected := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO observations").
		WithArgs("user-1", "glucose", 95.0, "mg/dL", "normal", collected).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.SaveObservations(context.Background(), "user-1", []domain.NormalizedBiomarker{
		{Code: "glucose", Value: 95, Unit: "mg/dL", Status: domain.StatusNormal, CollectedAt: collected},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveSkipsUnresolved(t *testing.T) {
	store, mock := newMockStore(t)

	// Only the resolved biomarker reaches the database.
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO observations").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := store.SaveObservations(context.Background(), "user-1", []domain.NormalizedBiomarker{
		{CanonicalName: "mystery", Value: 1, Status: domain.StatusUnknown, CollectedAt: time.Now()},
		{Code: "glucose", Value: 95, Unit: "mg/dL", Status: domain.StatusNormal, CollectedAt: time.Now()},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRollsBackOnError(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO observations").
		WillReturnError(errors.New("constraint violation"))
	mock.ExpectRollback()

	err := store.SaveObservations(context.Background(), "user-1", []domain.NormalizedBiomarker{
		{Code: "glucose", Value: 95, Status: domain.StatusNormal, CollectedAt: time.Now()},
	})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveRequiresUserID(t *testing.T) {
	store, _ := newMockStore(t)

	err := store.SaveObservations(context.Background(), "", []domain.NormalizedBiomarker{
		{Code: "glucose", Value: 95, Status: domain.StatusNormal},
	})
	assert.Error(t, err)
}

func TestPostgresStore_LoadSeries(t *testing.T) {
	store, mock := newMockStore(t)

	d0 := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	d1 := d0.AddDate(0, 1, 0)

	rows := sqlmock.NewRows([]string{"code", "value", "collected_at"}).
		AddRow("glucose", 92.0, d0).
		AddRow("glucose", 98.0, d1).
		AddRow("tsh", 2.1, d0)

	mock.ExpectQuery("SELECT code, value, collected_at").
		WithArgs("user-1").
		WillReturnRows(rows)

	series, err := store.LoadSeries(context.Background(), "user-1")
	require.NoError(t, err)
	require.Len(t, series, 2)
	require.Len(t, series["glucose"], 2)
	assert.Equal(t, 92.0, series["glucose"][0].Value)
	assert.Equal(t, 98.0, series["glucose"][1].Value)
	require.Len(t, series["tsh"], 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadCodeHistory(t *testing.T) {
	store, mock := newMockStore(t)

	d := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"value", "collected_at"}).
		AddRow(98.0, d.AddDate(0, 0, 2)).
		AddRow(95.0, d.AddDate(0, 0, 1)).
		AddRow(92.0, d)

	mock.ExpectQuery("SELECT value, collected_at").
		WithArgs("user-1", "glucose", 3).
		WillReturnRows(rows)

	series, err := store.LoadCodeHistory(context.Background(), "user-1", "glucose", 3)
	require.NoError(t, err)
	require.Len(t, series, 3)
	assert.Equal(t, 98.0, series[0].Value)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_LoadCodeHistoryDefaultLimit(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT value, collected_at").
		WithArgs("user-1", "glucose", 1000).
		WillReturnRows(sqlmock.NewRows([]string{"value", "collected_at"}))

	series, err := store.LoadCodeHistory(context.Background(), "user-1", "glucose", 0)
	require.NoError(t, err)
	assert.Empty(t, series)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_EnsureSchema(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS observations").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.EnsureSchema(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}
