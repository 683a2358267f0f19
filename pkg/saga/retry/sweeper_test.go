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

package retry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/assetsaga/pkg/saga"
	"github.com/innovationmech/assetsaga/pkg/saga/storage"
)

type mockCompensator struct {
	mock.Mock
}

func (m *mockCompensator) Compensate(ctx context.Context, sagaID string) (*saga.SagaResult, error) {
	args := m.Called(ctx, sagaID)
	res, _ := args.Get(0).(*saga.SagaResult)
	return res, args.Error(1)
}

type recordedSweeps struct {
	mu      sync.Mutex
	reports []SweepReport
}

func (r *recordedSweeps) RecordSweep(report *SweepReport, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports = append(r.reports, *report)
}

var sweepNow = time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)

func newTestSweeper(t *testing.T, comp Compensator, metrics SweepMetrics) (*Sweeper, *storage.MemoryRecordStore) {
	t.Helper()
	store := storage.NewMemoryRecordStore()
	sw, err := NewSweeper(store, comp, &SweeperConfig{
		Backoff: NewExponentialBackoffPolicy(&BackoffConfig{InitialDelay: 30 * time.Second}, 2.0, 0),
		Metrics: metrics,
		Now:     func() time.Time { return sweepNow },
	})
	require.NoError(t, err)
	return sw, store
}

func addFailed(t *testing.T, store saga.RecordStore, sagaID string, maxRetries int) *saga.SagaRecord {
	t.Helper()
	rec, err := store.Add(context.Background(), &saga.SagaRecord{
		SagaID:       sagaID,
		SagaType:     saga.SagaTypeAssetDeletion,
		StatePayload: []byte(`{}`),
		Status:       saga.RecordStatusFailed,
		MaxRetries:   maxRetries,
	})
	require.NoError(t, err)
	return rec
}

func compensated(sagaID string) *saga.SagaResult {
	return &saga.SagaResult{IsSuccess: true, SagaID: sagaID, Outcome: saga.OutcomeFailedCompensated}
}

func TestNewSweeper_Validation(t *testing.T) {
	store := storage.NewMemoryRecordStore()

	_, err := NewSweeper(nil, &mockCompensator{}, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSweeper(store, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSweeper(store, &mockCompensator{}, &SweeperConfig{Schedule: "every now and then"})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewSweeper(store, &mockCompensator{}, &SweeperConfig{
		Backoff: NewExponentialBackoffPolicy(&BackoffConfig{InitialDelay: time.Minute, MaxDelay: time.Second}, 2, 0),
	})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	sw, err := NewSweeper(store, &mockCompensator{}, nil)
	require.NoError(t, err)
	assert.NotNil(t, sw.backoff)
}

func TestSweeper_RunOnceCompensatesDueRecords(t *testing.T) {
	comp := &mockCompensator{}
	metrics := &recordedSweeps{}
	sw, store := newTestSweeper(t, comp, metrics)
	rec := addFailed(t, store, "saga-1", 3)

	comp.On("Compensate", mock.Anything, "saga-1").Return(compensated("saga-1"), nil).Once()

	report, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{Scanned: 1, Compensated: 1}, report)
	comp.AssertExpectations(t)

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.NextRetryAt)

	require.Len(t, metrics.reports, 1)
	assert.Equal(t, 1, metrics.reports[0].Compensated)
}

func TestSweeper_RunOnceReschedulesFailures(t *testing.T) {
	comp := &mockCompensator{}
	sw, store := newTestSweeper(t, comp, nil)
	rec := addFailed(t, store, "saga-2", 3)

	comp.On("Compensate", mock.Anything, "saga-2").
		Return(&saga.SagaResult{IsSuccess: false, Outcome: saga.OutcomeFailedCompensationFailed, Message: "restore failed"}, nil).
		Once()

	report, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{Scanned: 1, Rescheduled: 1}, report)

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)
	assert.True(t, got.NextRetryAt.Equal(sweepNow.Add(30*time.Second)))

	// not due again until the backoff elapses
	report, err = sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	comp.AssertNumberOfCalls(t, "Compensate", 1)
}

func TestSweeper_RunOnceCountsErrorsAndBacksOff(t *testing.T) {
	comp := &mockCompensator{}
	sw, store := newTestSweeper(t, comp, nil)
	rec := addFailed(t, store, "saga-3", 5)
	_, err := store.IncrementRetryCount(context.Background(), rec.ID)
	require.NoError(t, err)

	comp.On("Compensate", mock.Anything, "saga-3").Return(nil, errors.New("store unavailable")).Once()

	report, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{Scanned: 1, Rescheduled: 1, Errors: 1}, report)

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.RetryCount)
	require.NotNil(t, got.NextRetryAt)
	// second attempt doubles the initial delay
	assert.True(t, got.NextRetryAt.Equal(sweepNow.Add(time.Minute)))
}

func TestSweeper_StopsAtMaxRetries(t *testing.T) {
	comp := &mockCompensator{}
	sw, store := newTestSweeper(t, comp, nil)
	rec := addFailed(t, store, "saga-4", 1)

	comp.On("Compensate", mock.Anything, "saga-4").
		Return(&saga.SagaResult{IsSuccess: false, Outcome: saga.OutcomeFailedCompensationFailed}, nil).
		Once()

	report, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{Scanned: 1}, report)

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.NextRetryAt)

	report, err = sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	comp.AssertExpectations(t)
}

func TestSweeper_RetiresRecordsWithNoAppliedMutation(t *testing.T) {
	comp := &mockCompensator{}
	sw, store := newTestSweeper(t, comp, nil)

	// An update rejected by the permission check fails before anything is written.
	state := &saga.AssetUpdateState{
		BaseState: saga.NewBaseState("denied", "corr-denied", 3, sweepNow),
		StepFlags: saga.StepFlags{UserValidated: true},
		AssetID:   "asset-1",
	}
	state.StepFailed("check_permission", errors.New("permission denied"))
	state.Finish(saga.StateStatusFailed, sweepNow)
	payload, err := saga.EncodeState(state)
	require.NoError(t, err)

	rec, err := store.Add(context.Background(), &saga.SagaRecord{
		SagaID:       "denied",
		SagaType:     saga.SagaTypeAssetUpdate,
		StatePayload: payload,
		Status:       saga.RecordStatusFailed,
		MaxRetries:   3,
	})
	require.NoError(t, err)

	report, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &SweepReport{Scanned: 1, Skipped: 1}, report)
	comp.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)

	got, err := store.Get(context.Background(), rec.ID)
	require.NoError(t, err)
	assert.Equal(t, saga.RecordStatusFailed, got.Status)
	assert.Equal(t, 3, got.RetryCount)
	assert.False(t, got.DueForRetry(sweepNow))

	report, err = sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
}

func TestSweeper_SkipsRecordsThatAreNotDue(t *testing.T) {
	comp := &mockCompensator{}
	sw, store := newTestSweeper(t, comp, nil)
	rec := addFailed(t, store, "later", 3)
	_, err := store.SetNextRetry(context.Background(), rec.ID, sweepNow.Add(time.Hour))
	require.NoError(t, err)

	_, err = store.Add(context.Background(), &saga.SagaRecord{
		SagaID: "done", SagaType: saga.SagaTypeAssetCreation, StatePayload: []byte(`{}`),
		Status: saga.RecordStatusCompensated,
	})
	require.NoError(t, err)

	report, err := sw.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Scanned)
	comp.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)
}

func TestSweeper_RunOnceHonoursCancellation(t *testing.T) {
	comp := &mockCompensator{}
	sw, store := newTestSweeper(t, comp, nil)
	addFailed(t, store, "saga-5", 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := sw.RunOnce(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	comp.AssertNotCalled(t, "Compensate", mock.Anything, mock.Anything)
}

func TestSweeper_RunOnceDoesNotOverlap(t *testing.T) {
	comp := &mockCompensator{}
	sw, store := newTestSweeper(t, comp, nil)
	addFailed(t, store, "slow", 3)

	entered := make(chan struct{})
	release := make(chan struct{})
	comp.On("Compensate", mock.Anything, "slow").
		Run(func(mock.Arguments) {
			close(entered)
			<-release
		}).
		Return(compensated("slow"), nil).
		Once()

	done := make(chan error, 1)
	go func() {
		_, err := sw.RunOnce(context.Background())
		done <- err
	}()

	<-entered
	_, err := sw.RunOnce(context.Background())
	assert.ErrorIs(t, err, ErrSweepInProgress)

	close(release)
	require.NoError(t, <-done)
	comp.AssertExpectations(t)
}

func TestSweeper_StartRunsOnSchedule(t *testing.T) {
	comp := &mockCompensator{}
	store := storage.NewMemoryRecordStore()
	addFailed(t, store, "scheduled", 3)

	called := make(chan struct{}, 1)
	comp.On("Compensate", mock.Anything, "scheduled").
		Run(func(mock.Arguments) {
			select {
			case called <- struct{}{}:
			default:
			}
		}).
		Return(compensated("scheduled"), nil)

	sw, err := NewSweeper(store, comp, &SweeperConfig{Schedule: "@every 1s"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sw.Start(ctx)
	defer sw.Stop()

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduled sweep did not run")
	}
}
