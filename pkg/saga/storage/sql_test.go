// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

func newMockStore(t *testing.T) (*SQLRecordStore, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	store, err := NewSQLRecordStore(db, DialectPostgres, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	return store, mock
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "saga_id", "correlation_id", "saga_type", "state_payload", "status",
		"retry_count", "max_retries", "next_retry_at", "trace_id", "created_at", "updated_at", "completed_at",
	})
}

func TestDialect_Rebind(t *testing.T) {
	q := "UPDATE t SET a = ?, b = ? WHERE id = ?"
	assert.Equal(t, "UPDATE t SET a = $1, b = $2 WHERE id = $3", DialectPostgres.rebind(q))
	assert.Equal(t, q, DialectSQLite.rebind(q))
	assert.False(t, Dialect("mysql").Valid())
}

func TestNewSQLRecordStore_Validation(t *testing.T) {
	_, err := NewSQLRecordStore(nil, DialectPostgres)
	assert.Error(t, err)

	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	_, err = NewSQLRecordStore(db, Dialect("oracle"))
	assert.Error(t, err)
}

func TestSQLRecordStore_GetScansRecord(t *testing.T) {
	store, mock := newMockStore(t)
	created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	completed := created.Add(time.Minute)

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_records WHERE saga_id = $1")).
		WithArgs("saga-1").
		WillReturnRows(recordRows().AddRow(
			"rec-1", "saga-1", "corr-1", "AssetUpdate", `{"schemaVersion":1}`, "Failed",
			1, 3, nil, "abc123", created, created, completed,
		))

	rec, err := store.GetBySagaID(context.Background(), "saga-1")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, saga.SagaTypeAssetUpdate, rec.SagaType)
	assert.Equal(t, saga.RecordStatusFailed, rec.Status)
	assert.Equal(t, []byte(`{"schemaVersion":1}`), rec.StatePayload)
	assert.Equal(t, 1, rec.RetryCount)
	assert.Nil(t, rec.NextRetryAt)
	require.NotNil(t, rec.CompletedAt)
	assert.True(t, completed.Equal(*rec.CompletedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRecordStore_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("FROM saga_records WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(recordRows())

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, saga.ErrRecordNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRecordStore_UpdateStatusTerminalSetsCompletedAt(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM saga_records WHERE id = $1 FOR UPDATE")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("InProgress"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_records SET status = $1, updated_at = $2, completed_at = $3 WHERE id = $4")).
		WithArgs("Failed", sqlmock.AnyArg(), sqlmock.AnyArg(), "rec-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	found, err := store.UpdateStatus(context.Background(), "rec-1", saga.RecordStatusFailed)
	require.NoError(t, err)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRecordStore_UpdateStatusRejectsRegression(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM saga_records WHERE id = $1 FOR UPDATE")).
		WithArgs("rec-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("Compensated"))
	mock.ExpectRollback()

	found, err := store.UpdateStatus(context.Background(), "rec-1", saga.RecordStatusInProgress)
	assert.ErrorIs(t, err, saga.ErrInvalidStatusTransition)
	assert.True(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRecordStore_UpdateStatusMissingRecord(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT status FROM saga_records WHERE id = $1 FOR UPDATE")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"status"}))
	mock.ExpectRollback()

	found, err := store.UpdateStatus(context.Background(), "missing", saga.RecordStatusFailed)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRecordStore_WriteErrorsAreWrapped(t *testing.T) {
	store, mock := newMockStore(t)
	dbErr := errors.New("connection reset")

	mock.ExpectExec(regexp.QuoteMeta("UPDATE saga_records SET state_payload = $1, updated_at = $2 WHERE id = $3")).
		WithArgs(`{}`, sqlmock.AnyArg(), "rec-1").
		WillReturnError(dbErr)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO saga_records")).
		WillReturnError(dbErr)

	found, err := store.SaveState(context.Background(), "rec-1", []byte(`{}`))
	assert.ErrorIs(t, err, dbErr)
	assert.False(t, found)

	_, err = store.Add(context.Background(), &saga.SagaRecord{SagaID: "s", SagaType: saga.SagaTypeAssetCreation})
	assert.ErrorIs(t, err, dbErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLRecordStore_ListFailedForRetryQuery(t *testing.T) {
	store, mock := newMockStore(t)
	now := time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND retry_count < max_retries AND (next_retry_at IS NULL OR next_retry_at <= $2)")).
		WithArgs("Failed", now).
		WillReturnRows(recordRows().AddRow(
			"rec-9", "saga-9", "corr-9", "AssetDeletion", `{}`, "Failed",
			0, 3, nil, "", now, now, now,
		))

	recs, err := store.ListFailedForRetry(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "rec-9", recs[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
