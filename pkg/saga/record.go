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

package saga

import (
	"context"
	"time"
)

// SagaRecord is the durable wrapper around one saga instance.
type SagaRecord struct {
	// ID is assigned by the RecordStore and is distinct from SagaID.
	ID            string       `json:"id"`
	SagaID        string       `json:"sagaId"`
	CorrelationID string       `json:"correlationId"`
	SagaType      SagaType     `json:"sagaType"`
	StatePayload  []byte       `json:"statePayload"`
	Status        RecordStatus `json:"status"`
	RetryCount    int          `json:"retryCount"`
	MaxRetries    int          `json:"maxRetries"`
	NextRetryAt   *time.Time   `json:"nextRetryAt,omitempty"`
	TraceID       string       `json:"traceId,omitempty"`
	CreatedAt     time.Time    `json:"createdAt"`
	UpdatedAt     time.Time    `json:"updatedAt"`
	CompletedAt   *time.Time   `json:"completedAt,omitempty"`
}

// Clone returns a deep copy of r.
func (r *SagaRecord) Clone() *SagaRecord {
	if r == nil {
		return nil
	}
	c := *r
	if r.StatePayload != nil {
		c.StatePayload = append([]byte(nil), r.StatePayload...)
	}
	c.NextRetryAt = copyTime(r.NextRetryAt)
	c.CompletedAt = copyTime(r.CompletedAt)
	return &c
}

// DueForRetry reports whether an external sweep should pick the record up at now.
func (r *SagaRecord) DueForRetry(now time.Time) bool {
	if r.Status != RecordStatusFailed || r.RetryCount >= r.MaxRetries {
		return false
	}
	return r.NextRetryAt == nil || !r.NextRetryAt.After(now)
}

// ApplyStatus moves r to status at now, enforcing the monotonic transition rules.
// It sets CompletedAt whenever the new status is terminal.
func (r *SagaRecord) ApplyStatus(status RecordStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(status) {
		return ErrInvalidStatusTransition
	}
	if r.Status == status {
		return nil
	}
	r.Status = status
	r.UpdatedAt = now
	if status.IsTerminal() {
		t := now
		r.CompletedAt = &t
	}
	return nil
}

// RecordStore persists SagaRecords.
//
// Point lookups return ErrRecordNotFound when nothing matches. Mutators return
// whether a record was found; a missing record is not an error for them.
type RecordStore interface {
	// Get returns the record with the store-assigned id.
	Get(ctx context.Context, id string) (*SagaRecord, error)

	// GetBySagaID returns the record for a caller-visible saga id.
	GetBySagaID(ctx context.Context, sagaID string) (*SagaRecord, error)

	// GetByCorrelationID returns the record carrying correlationID.
	GetByCorrelationID(ctx context.Context, correlationID string) (*SagaRecord, error)

	// ListByStatus returns records in status, newest first.
	ListByStatus(ctx context.Context, status RecordStatus) ([]*SagaRecord, error)

	// ListBySagaType returns records of sagaType, newest first.
	ListBySagaType(ctx context.Context, sagaType SagaType) ([]*SagaRecord, error)

	// Add assigns an id, stamps CreatedAt/UpdatedAt and persists the record.
	Add(ctx context.Context, record *SagaRecord) (*SagaRecord, error)

	// SaveState replaces the state payload.
	SaveState(ctx context.Context, id string, payload []byte) (bool, error)

	// UpdateStatus moves the record to status, setting CompletedAt for terminal statuses.
	// Backward moves fail with ErrInvalidStatusTransition.
	UpdateStatus(ctx context.Context, id string, status RecordStatus) (bool, error)

	// IncrementRetryCount adds one to the retry counter.
	IncrementRetryCount(ctx context.Context, id string) (bool, error)

	// SetNextRetry schedules the next sweep attempt.
	SetNextRetry(ctx context.Context, id string, when time.Time) (bool, error)

	// ListFailedForRetry returns Failed records with retries left whose next attempt is due.
	ListFailedForRetry(ctx context.Context, now time.Time) ([]*SagaRecord, error)
}
