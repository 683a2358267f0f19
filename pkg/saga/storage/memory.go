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
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// MemoryRecordStore provides an in-memory implementation of saga.RecordStore.
// It is suitable for development, testing and the CLI dry-run mode where durability
// across restarts is not required. All returned records are copies.
type MemoryRecordStore struct {
	// mu protects the maps below
	mu sync.RWMutex

	records       map[string]*saga.SagaRecord
	bySagaID      map[string]string
	byCorrelation map[string]string

	// seq orders records created within the same clock tick
	seq    map[string]uint64
	next   uint64
	opts   *options
	closed bool
}

// NewMemoryRecordStore creates an empty in-memory store.
func NewMemoryRecordStore(opts ...Option) *MemoryRecordStore {
	return &MemoryRecordStore{
		records:       make(map[string]*saga.SagaRecord),
		bySagaID:      make(map[string]string),
		byCorrelation: make(map[string]string),
		seq:           make(map[string]uint64),
		opts:          buildOptions(opts),
	}
}

// Get implements saga.RecordStore.
func (m *MemoryRecordStore) Get(ctx context.Context, id string) (*saga.SagaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, saga.ErrRecordNotFound
	}
	return rec.Clone(), nil
}

// GetBySagaID implements saga.RecordStore.
func (m *MemoryRecordStore) GetBySagaID(ctx context.Context, sagaID string) (*saga.SagaRecord, error) {
	return m.lookup(ctx, m.bySagaID, sagaID)
}

// GetByCorrelationID implements saga.RecordStore. When several sagas share a
// correlation id the newest one is returned.
func (m *MemoryRecordStore) GetByCorrelationID(ctx context.Context, correlationID string) (*saga.SagaRecord, error) {
	return m.lookup(ctx, m.byCorrelation, correlationID)
}

func (m *MemoryRecordStore) lookup(ctx context.Context, index map[string]string, key string) (*saga.SagaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	id, ok := index[key]
	if !ok {
		return nil, saga.ErrRecordNotFound
	}
	return m.records[id].Clone(), nil
}

// ListByStatus implements saga.RecordStore.
func (m *MemoryRecordStore) ListByStatus(ctx context.Context, status saga.RecordStatus) ([]*saga.SagaRecord, error) {
	return m.list(ctx, func(r *saga.SagaRecord) bool { return r.Status == status })
}

// ListBySagaType implements saga.RecordStore.
func (m *MemoryRecordStore) ListBySagaType(ctx context.Context, sagaType saga.SagaType) ([]*saga.SagaRecord, error) {
	return m.list(ctx, func(r *saga.SagaRecord) bool { return r.SagaType == sagaType })
}

// ListFailedForRetry implements saga.RecordStore.
func (m *MemoryRecordStore) ListFailedForRetry(ctx context.Context, now time.Time) ([]*saga.SagaRecord, error) {
	return m.list(ctx, func(r *saga.SagaRecord) bool { return r.DueForRetry(now) })
}

func (m *MemoryRecordStore) list(ctx context.Context, match func(*saga.SagaRecord) bool) ([]*saga.SagaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}

	out := make([]*saga.SagaRecord, 0)
	for _, rec := range m.records {
		if match(rec) {
			out = append(out, rec.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return m.seq[out[i].ID] > m.seq[out[j].ID]
	})
	return out, nil
}

// Add implements saga.RecordStore.
func (m *MemoryRecordStore) Add(ctx context.Context, record *saga.SagaRecord) (*saga.SagaRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rec, err := prepareNew(record, m.opts.now())
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	if _, exists := m.bySagaID[rec.SagaID]; exists {
		return nil, ErrDuplicateSagaID
	}

	m.next++
	m.records[rec.ID] = rec
	m.seq[rec.ID] = m.next
	m.bySagaID[rec.SagaID] = rec.ID
	if rec.CorrelationID != "" {
		m.byCorrelation[rec.CorrelationID] = rec.ID
	}
	return rec.Clone(), nil
}

// SaveState implements saga.RecordStore.
func (m *MemoryRecordStore) SaveState(ctx context.Context, id string, payload []byte) (bool, error) {
	return m.mutate(ctx, id, func(r *saga.SagaRecord, now time.Time) error {
		r.StatePayload = append([]byte(nil), payload...)
		r.UpdatedAt = now
		return nil
	})
}

// UpdateStatus implements saga.RecordStore.
func (m *MemoryRecordStore) UpdateStatus(ctx context.Context, id string, status saga.RecordStatus) (bool, error) {
	return m.mutate(ctx, id, func(r *saga.SagaRecord, now time.Time) error {
		return r.ApplyStatus(status, now)
	})
}

// IncrementRetryCount implements saga.RecordStore.
func (m *MemoryRecordStore) IncrementRetryCount(ctx context.Context, id string) (bool, error) {
	return m.mutate(ctx, id, func(r *saga.SagaRecord, now time.Time) error {
		r.RetryCount++
		r.UpdatedAt = now
		return nil
	})
}

// SetNextRetry implements saga.RecordStore.
func (m *MemoryRecordStore) SetNextRetry(ctx context.Context, id string, when time.Time) (bool, error) {
	return m.mutate(ctx, id, func(r *saga.SagaRecord, now time.Time) error {
		w := when
		r.NextRetryAt = &w
		r.UpdatedAt = now
		return nil
	})
}

func (m *MemoryRecordStore) mutate(ctx context.Context, id string, fn func(*saga.SagaRecord, time.Time) error) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	rec, ok := m.records[id]
	if !ok {
		return false, nil
	}
	// apply to a copy so a rejected transition leaves the stored record untouched
	c := rec.Clone()
	if err := fn(c, m.opts.now()); err != nil {
		return true, err
	}
	m.records[id] = c
	return true, nil
}

// Len returns the number of stored records.
func (m *MemoryRecordStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close releases the store. Further calls return ErrStorageClosed.
func (m *MemoryRecordStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// prepareNew validates record and returns a copy with identity, defaults and timestamps set.
func prepareNew(record *saga.SagaRecord, now time.Time) (*saga.SagaRecord, error) {
	if record == nil || record.SagaID == "" || !record.SagaType.Valid() {
		return nil, ErrInvalidRecord
	}
	rec := record.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = saga.RecordStatusPending
	}
	if !rec.Status.Valid() {
		return nil, ErrInvalidRecord
	}
	if rec.MaxRetries <= 0 {
		rec.MaxRetries = saga.DefaultMaxRetries
	}
	rec.CreatedAt = now
	rec.UpdatedAt = now
	if rec.Status.IsTerminal() {
		t := now
		rec.CompletedAt = &t
	} else {
		rec.CompletedAt = nil
	}
	return rec, nil
}
