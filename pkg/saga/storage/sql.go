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
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Dialect selects the SQL flavour spoken by SQLRecordStore.
type Dialect string

const (
	// DialectPostgres targets PostgreSQL through github.com/lib/pq.
	DialectPostgres Dialect = "postgres"

	// DialectSQLite targets SQLite through github.com/mattn/go-sqlite3.
	DialectSQLite Dialect = "sqlite3"
)

// Valid reports whether d is a supported dialect.
func (d Dialect) Valid() bool {
	return d == DialectPostgres || d == DialectSQLite
}

// rebind rewrites ? placeholders into $n for PostgreSQL.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (d Dialect) timestampType() string {
	if d == DialectPostgres {
		return "TIMESTAMPTZ"
	}
	return "TIMESTAMP"
}

// forUpdate is appended to the row read that precedes a status change.
func (d Dialect) forUpdate() string {
	if d == DialectPostgres {
		return " FOR UPDATE"
	}
	return ""
}

const recordColumns = `id, saga_id, correlation_id, saga_type, state_payload, status,
	retry_count, max_retries, next_retry_at, trace_id, created_at, updated_at, completed_at`

// SQLRecordStore implements saga.RecordStore on database/sql.
type SQLRecordStore struct {
	db      *sql.DB
	dialect Dialect
	opts    *options
}

// NewSQLRecordStore wraps an open database handle.
func NewSQLRecordStore(db *sql.DB, dialect Dialect, opts ...Option) (*SQLRecordStore, error) {
	if db == nil {
		return nil, errors.New("database handle is required")
	}
	if !dialect.Valid() {
		return nil, fmt.Errorf("unsupported sql dialect %q", dialect)
	}
	return &SQLRecordStore{db: db, dialect: dialect, opts: buildOptions(opts)}, nil
}

// Migrate creates the saga_records table and its indexes when missing.
func (s *SQLRecordStore) Migrate(ctx context.Context) error {
	ts := s.dialect.timestampType()
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS saga_records (
			id VARCHAR(64) PRIMARY KEY,
			saga_id VARCHAR(64) NOT NULL UNIQUE,
			correlation_id VARCHAR(128) NOT NULL,
			saga_type VARCHAR(32) NOT NULL,
			state_payload TEXT NOT NULL,
			status VARCHAR(32) NOT NULL,
			retry_count INTEGER NOT NULL DEFAULT 0,
			max_retries INTEGER NOT NULL DEFAULT 3,
			next_retry_at ` + ts + ` NULL,
			trace_id VARCHAR(64) NOT NULL DEFAULT '',
			created_at ` + ts + ` NOT NULL,
			updated_at ` + ts + ` NOT NULL,
			completed_at ` + ts + ` NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_saga_records_correlation ON saga_records (correlation_id)`,
		`CREATE INDEX IF NOT EXISTS idx_saga_records_status ON saga_records (status, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_saga_records_type ON saga_records (saga_type, created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate saga_records: %w", err)
		}
	}
	return nil
}

// Get implements saga.RecordStore.
func (s *SQLRecordStore) Get(ctx context.Context, id string) (*saga.SagaRecord, error) {
	return s.queryOne(ctx, "SELECT "+recordColumns+" FROM saga_records WHERE id = ?", id)
}

// GetBySagaID implements saga.RecordStore.
func (s *SQLRecordStore) GetBySagaID(ctx context.Context, sagaID string) (*saga.SagaRecord, error) {
	return s.queryOne(ctx, "SELECT "+recordColumns+" FROM saga_records WHERE saga_id = ?", sagaID)
}

// GetByCorrelationID implements saga.RecordStore. The newest match wins.
func (s *SQLRecordStore) GetByCorrelationID(ctx context.Context, correlationID string) (*saga.SagaRecord, error) {
	return s.queryOne(ctx, "SELECT "+recordColumns+
		" FROM saga_records WHERE correlation_id = ? ORDER BY created_at DESC, id DESC LIMIT 1", correlationID)
}

// ListByStatus implements saga.RecordStore.
func (s *SQLRecordStore) ListByStatus(ctx context.Context, status saga.RecordStatus) ([]*saga.SagaRecord, error) {
	return s.queryMany(ctx, "SELECT "+recordColumns+
		" FROM saga_records WHERE status = ? ORDER BY created_at DESC, id DESC", string(status))
}

// ListBySagaType implements saga.RecordStore.
func (s *SQLRecordStore) ListBySagaType(ctx context.Context, sagaType saga.SagaType) ([]*saga.SagaRecord, error) {
	return s.queryMany(ctx, "SELECT "+recordColumns+
		" FROM saga_records WHERE saga_type = ? ORDER BY created_at DESC, id DESC", string(sagaType))
}

// ListFailedForRetry implements saga.RecordStore.
func (s *SQLRecordStore) ListFailedForRetry(ctx context.Context, now time.Time) ([]*saga.SagaRecord, error) {
	return s.queryMany(ctx, "SELECT "+recordColumns+` FROM saga_records
		WHERE status = ? AND retry_count < max_retries AND (next_retry_at IS NULL OR next_retry_at <= ?)
		ORDER BY created_at DESC, id DESC`, string(saga.RecordStatusFailed), dbTime(now))
}

// Add implements saga.RecordStore.
func (s *SQLRecordStore) Add(ctx context.Context, record *saga.SagaRecord) (*saga.SagaRecord, error) {
	rec, err := prepareNew(record, dbTime(s.opts.now()))
	if err != nil {
		return nil, err
	}
	rec.NextRetryAt = dbTimePtr(rec.NextRetryAt)

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(`INSERT INTO saga_records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		rec.ID, rec.SagaID, rec.CorrelationID, string(rec.SagaType), string(rec.StatePayload),
		string(rec.Status), rec.RetryCount, rec.MaxRetries, nullTime(rec.NextRetryAt), rec.TraceID,
		rec.CreatedAt, rec.UpdatedAt, nullTime(rec.CompletedAt))
	if err != nil {
		return nil, fmt.Errorf("failed to insert saga record: %w", err)
	}
	return rec, nil
}

// SaveState implements saga.RecordStore.
func (s *SQLRecordStore) SaveState(ctx context.Context, id string, payload []byte) (bool, error) {
	return s.exec(ctx, "UPDATE saga_records SET state_payload = ?, updated_at = ? WHERE id = ?",
		string(payload), dbTime(s.opts.now()), id)
}

// IncrementRetryCount implements saga.RecordStore.
func (s *SQLRecordStore) IncrementRetryCount(ctx context.Context, id string) (bool, error) {
	return s.exec(ctx, "UPDATE saga_records SET retry_count = retry_count + 1, updated_at = ? WHERE id = ?",
		dbTime(s.opts.now()), id)
}

// SetNextRetry implements saga.RecordStore.
func (s *SQLRecordStore) SetNextRetry(ctx context.Context, id string, when time.Time) (bool, error) {
	return s.exec(ctx, "UPDATE saga_records SET next_retry_at = ?, updated_at = ? WHERE id = ?",
		dbTime(when), dbTime(s.opts.now()), id)
}

// UpdateStatus implements saga.RecordStore. The current status is read and checked
// inside the same transaction as the write.
func (s *SQLRecordStore) UpdateStatus(ctx context.Context, id string, status saga.RecordStatus) (found bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var current string
	err = tx.QueryRowContext(ctx,
		s.dialect.rebind("SELECT status FROM saga_records WHERE id = ?"+s.dialect.forUpdate()), id).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		_ = tx.Rollback()
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read saga record status: %w", err)
	}

	from := saga.RecordStatus(current)
	if !from.CanTransitionTo(status) {
		err = saga.ErrInvalidStatusTransition
		return true, err
	}
	if from == status {
		return true, tx.Commit()
	}

	now := dbTime(s.opts.now())
	if status.IsTerminal() {
		_, err = tx.ExecContext(ctx,
			s.dialect.rebind("UPDATE saga_records SET status = ?, updated_at = ?, completed_at = ? WHERE id = ?"),
			string(status), now, now, id)
	} else {
		_, err = tx.ExecContext(ctx,
			s.dialect.rebind("UPDATE saga_records SET status = ?, updated_at = ? WHERE id = ?"),
			string(status), now, id)
	}
	if err != nil {
		return true, fmt.Errorf("failed to update saga record status: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return true, fmt.Errorf("failed to commit status update: %w", err)
	}
	return true, nil
}

// Close closes the underlying database handle.
func (s *SQLRecordStore) Close() error {
	return s.db.Close()
}

func (s *SQLRecordStore) exec(ctx context.Context, query string, args ...interface{}) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return false, fmt.Errorf("failed to update saga record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n > 0, nil
}

func (s *SQLRecordStore) queryOne(ctx context.Context, query string, args ...interface{}) (*saga.SagaRecord, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, saga.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query saga record: %w", err)
	}
	return rec, nil
}

func (s *SQLRecordStore) queryMany(ctx context.Context, query string, args ...interface{}) ([]*saga.SagaRecord, error) {
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query saga records: %w", err)
	}
	defer rows.Close()

	out := make([]*saga.SagaRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan saga record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate saga records: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*saga.SagaRecord, error) {
	var (
		rec                       saga.SagaRecord
		sagaType, status, payload string
		nextRetry, completed      sql.NullTime
	)
	err := row.Scan(&rec.ID, &rec.SagaID, &rec.CorrelationID, &sagaType, &payload, &status,
		&rec.RetryCount, &rec.MaxRetries, &nextRetry, &rec.TraceID, &rec.CreatedAt, &rec.UpdatedAt, &completed)
	if err != nil {
		return nil, err
	}
	rec.SagaType = saga.SagaType(sagaType)
	rec.Status = saga.RecordStatus(status)
	rec.StatePayload = []byte(payload)
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	if nextRetry.Valid {
		t := nextRetry.Time.UTC()
		rec.NextRetryAt = &t
	}
	if completed.Valid {
		t := completed.Time.UTC()
		rec.CompletedAt = &t
	}
	return &rec, nil
}

// dbTime normalizes t to the precision every supported database round-trips.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

func dbTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := dbTime(*t)
	return &v
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}
