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
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

func newExpiringRedisStore(t *testing.T) (*RedisRecordStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store, err := NewRedisRecordStore(client, &RedisConfig{KeyPrefix: "test:", TerminalTTL: time.Hour})
	require.NoError(t, err)
	return store, mr
}

func addRedisRecord(t *testing.T, store *RedisRecordStore, sagaID, correlationID string) *saga.SagaRecord {
	t.Helper()
	rec, err := store.Add(context.Background(), &saga.SagaRecord{
		SagaID:        sagaID,
		CorrelationID: correlationID,
		SagaType:      saga.SagaTypeAssetUpdate,
		StatePayload:  []byte(`{"schemaVersion":1}`),
		Status:        saga.RecordStatusPending,
	})
	require.NoError(t, err)
	return rec
}

func moveTo(t *testing.T, store *RedisRecordStore, id string, statuses ...saga.RecordStatus) {
	t.Helper()
	for _, status := range statuses {
		found, err := store.UpdateStatus(context.Background(), id, status)
		require.NoError(t, err)
		require.True(t, found)
	}
}

func TestRedisRecordStore_FailedRecordsDoNotExpire(t *testing.T) {
	ctx := context.Background()
	store, mr := newExpiringRedisStore(t)
	rec := addRedisRecord(t, store, "saga-1", "corr-1")
	moveTo(t, store, rec.ID, saga.RecordStatusInProgress, saga.RecordStatusFailed)

	assert.Zero(t, mr.TTL("test:record:"+rec.ID))
	mr.FastForward(2 * time.Hour)

	got, err := store.GetBySagaID(ctx, "saga-1")
	require.NoError(t, err)
	assert.Equal(t, saga.RecordStatusFailed, got.Status)

	got, err = store.GetByCorrelationID(ctx, "corr-1")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)

	due, err := store.ListFailedForRetry(ctx, time.Now())
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, rec.ID, due[0].ID)
}

func TestRedisRecordStore_CompensatedRecordsExpireWithLookups(t *testing.T) {
	ctx := context.Background()
	store, mr := newExpiringRedisStore(t)
	rec := addRedisRecord(t, store, "saga-1", "corr-1")
	moveTo(t, store, rec.ID, saga.RecordStatusInProgress, saga.RecordStatusFailed, saga.RecordStatusCompensated)

	assert.Equal(t, time.Hour, mr.TTL("test:record:"+rec.ID))
	assert.Equal(t, time.Hour, mr.TTL("test:saga:saga-1"))
	assert.Equal(t, time.Hour, mr.TTL("test:correlation:corr-1"))

	mr.FastForward(2 * time.Hour)

	_, err := store.Get(ctx, rec.ID)
	assert.ErrorIs(t, err, saga.ErrRecordNotFound)
	_, err = store.GetBySagaID(ctx, "saga-1")
	assert.ErrorIs(t, err, saga.ErrRecordNotFound)
	_, err = store.GetByCorrelationID(ctx, "corr-1")
	assert.ErrorIs(t, err, saga.ErrRecordNotFound)

	listed, err := store.ListByStatus(ctx, saga.RecordStatusCompensated)
	require.NoError(t, err)
	assert.Empty(t, listed)
	members, _ := mr.ZMembers("test:index:status:Compensated")
	assert.Empty(t, members)
}

func TestRedisRecordStore_CompletedRecordThatFailsLaterIsKept(t *testing.T) {
	ctx := context.Background()
	store, mr := newExpiringRedisStore(t)
	rec := addRedisRecord(t, store, "saga-1", "corr-1")
	moveTo(t, store, rec.ID, saga.RecordStatusInProgress, saga.RecordStatusCompleted)
	assert.Equal(t, time.Hour, mr.TTL("test:saga:saga-1"))

	moveTo(t, store, rec.ID, saga.RecordStatusFailed)
	assert.Zero(t, mr.TTL("test:record:"+rec.ID))
	assert.Zero(t, mr.TTL("test:saga:saga-1"))
	assert.Zero(t, mr.TTL("test:correlation:corr-1"))

	mr.FastForward(2 * time.Hour)
	got, err := store.GetBySagaID(ctx, "saga-1")
	require.NoError(t, err)
	assert.Equal(t, saga.RecordStatusFailed, got.Status)
}

func TestRedisRecordStore_SharedCorrelationFollowsNewestRecord(t *testing.T) {
	store, mr := newExpiringRedisStore(t)
	first := addRedisRecord(t, store, "saga-1", "corr-1")
	second := addRedisRecord(t, store, "saga-2", "corr-1")

	moveTo(t, store, first.ID, saga.RecordStatusInProgress, saga.RecordStatusCompleted)
	assert.Equal(t, time.Hour, mr.TTL("test:saga:saga-1"))
	assert.Zero(t, mr.TTL("test:correlation:corr-1"))

	mr.FastForward(2 * time.Hour)
	got, err := store.GetByCorrelationID(context.Background(), "corr-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)
}
