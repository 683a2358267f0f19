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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Redis key naming conventions
const (
	// recordKeyPattern holds the JSON record: {prefix}record:{id}
	recordKeyPattern = "%srecord:%s"

	// sagaIDKeyPattern maps a saga id to a record id: {prefix}saga:{sagaID}
	sagaIDKeyPattern = "%ssaga:%s"

	// correlationKeyPattern maps a correlation id to the newest record id: {prefix}correlation:{id}
	correlationKeyPattern = "%scorrelation:%s"

	// statusIndexKeyPattern is a sorted set of record ids scored by creation time: {prefix}index:status:{status}
	statusIndexKeyPattern = "%sindex:status:%s"

	// typeIndexKeyPattern is a sorted set of record ids scored by creation time: {prefix}index:type:{type}
	typeIndexKeyPattern = "%sindex:type:%s"
)

// stringGetter is satisfied by both the client and a WATCH transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

// maxTxAttempts bounds optimistic transaction retries on contention.
const maxTxAttempts = 5

// RedisConfig configures RedisRecordStore.
type RedisConfig struct {
	// KeyPrefix namespaces every key. Defaults to "assetsaga:".
	KeyPrefix string

	// TerminalTTL expires records, with their lookup keys, once they are Completed or
	// Compensated. Failed records are kept because they may still need compensation.
	// Zero keeps everything.
	TerminalTTL time.Duration
}

// RedisRecordStore implements saga.RecordStore on Redis.
//
// Key Design:
//   - Record: {prefix}record:{id} (JSON)
//   - Saga id lookup: {prefix}saga:{sagaID}
//   - Correlation lookup: {prefix}correlation:{correlationID}
//   - Status index: {prefix}index:status:{status} (sorted set scored by creation time)
//   - Type index: {prefix}index:type:{type} (sorted set scored by creation time)
//
// Writes to an existing record run under WATCH so concurrent writers cannot lose updates.
type RedisRecordStore struct {
	client redis.UniversalClient
	config RedisConfig
	opts   *options
}

// NewRedisRecordStore creates a store on an existing client.
func NewRedisRecordStore(client redis.UniversalClient, config *RedisConfig, opts ...Option) (*RedisRecordStore, error) {
	if client == nil {
		return nil, errors.New("redis client is required")
	}
	cfg := RedisConfig{}
	if config != nil {
		cfg = *config
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "assetsaga:"
	}
	return &RedisRecordStore{client: client, config: cfg, opts: buildOptions(opts)}, nil
}

// Get implements saga.RecordStore.
func (r *RedisRecordStore) Get(ctx context.Context, id string) (*saga.SagaRecord, error) {
	rec, err := r.load(ctx, r.client, id)
	if errors.Is(err, redis.Nil) {
		return nil, saga.ErrRecordNotFound
	}
	return rec, err
}

// GetBySagaID implements saga.RecordStore.
func (r *RedisRecordStore) GetBySagaID(ctx context.Context, sagaID string) (*saga.SagaRecord, error) {
	return r.lookup(ctx, r.sagaIDKey(sagaID))
}

// GetByCorrelationID implements saga.RecordStore.
func (r *RedisRecordStore) GetByCorrelationID(ctx context.Context, correlationID string) (*saga.SagaRecord, error) {
	return r.lookup(ctx, r.correlationKey(correlationID))
}

func (r *RedisRecordStore) lookup(ctx context.Context, key string) (*saga.SagaRecord, error) {
	id, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, saga.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to resolve saga record id: %w", err)
	}
	return r.Get(ctx, id)
}

// ListByStatus implements saga.RecordStore.
func (r *RedisRecordStore) ListByStatus(ctx context.Context, status saga.RecordStatus) ([]*saga.SagaRecord, error) {
	return r.list(ctx, r.statusIndexKey(status), nil)
}

// ListBySagaType implements saga.RecordStore.
func (r *RedisRecordStore) ListBySagaType(ctx context.Context, sagaType saga.SagaType) ([]*saga.SagaRecord, error) {
	return r.list(ctx, r.typeIndexKey(sagaType), nil)
}

// ListFailedForRetry implements saga.RecordStore.
func (r *RedisRecordStore) ListFailedForRetry(ctx context.Context, now time.Time) ([]*saga.SagaRecord, error) {
	return r.list(ctx, r.statusIndexKey(saga.RecordStatusFailed), func(rec *saga.SagaRecord) bool {
		return rec.DueForRetry(now)
	})
}

func (r *RedisRecordStore) list(ctx context.Context, indexKey string, match func(*saga.SagaRecord) bool) ([]*saga.SagaRecord, error) {
	ids, err := r.client.ZRevRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read saga index: %w", err)
	}

	out := make([]*saga.SagaRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := r.load(ctx, r.client, id)
		if errors.Is(err, redis.Nil) {
			// expired record; drop the stale index entry
			if err := r.client.ZRem(ctx, indexKey, id).Err(); err != nil {
				return nil, fmt.Errorf("failed to prune saga index: %w", err)
			}
			continue
		}
		if err != nil {
			return nil, err
		}
		if match == nil || match(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Add implements saga.RecordStore.
func (r *RedisRecordStore) Add(ctx context.Context, record *saga.SagaRecord) (*saga.SagaRecord, error) {
	rec, err := prepareNew(record, r.opts.now().UTC())
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize saga record: %w", err)
	}

	claimed, err := r.client.SetNX(ctx, r.sagaIDKey(rec.SagaID), rec.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim saga id: %w", err)
	}
	if !claimed {
		return nil, ErrDuplicateSagaID
	}

	score := float64(rec.CreatedAt.UnixMicro())
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.recordKey(rec.ID), data, 0)
	if rec.CorrelationID != "" {
		pipe.Set(ctx, r.correlationKey(rec.CorrelationID), rec.ID, 0)
	}
	pipe.ZAdd(ctx, r.statusIndexKey(rec.Status), redis.Z{Score: score, Member: rec.ID})
	pipe.ZAdd(ctx, r.typeIndexKey(rec.SagaType), redis.Z{Score: score, Member: rec.ID})
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to save saga record to redis: %w", err)
	}
	return rec, nil
}

// SaveState implements saga.RecordStore.
func (r *RedisRecordStore) SaveState(ctx context.Context, id string, payload []byte) (bool, error) {
	return r.mutate(ctx, id, func(rec *saga.SagaRecord, now time.Time) error {
		rec.StatePayload = append([]byte(nil), payload...)
		rec.UpdatedAt = now
		return nil
	})
}

// UpdateStatus implements saga.RecordStore.
func (r *RedisRecordStore) UpdateStatus(ctx context.Context, id string, status saga.RecordStatus) (bool, error) {
	return r.mutate(ctx, id, func(rec *saga.SagaRecord, now time.Time) error {
		return rec.ApplyStatus(status, now)
	})
}

// IncrementRetryCount implements saga.RecordStore.
func (r *RedisRecordStore) IncrementRetryCount(ctx context.Context, id string) (bool, error) {
	return r.mutate(ctx, id, func(rec *saga.SagaRecord, now time.Time) error {
		rec.RetryCount++
		rec.UpdatedAt = now
		return nil
	})
}

// SetNextRetry implements saga.RecordStore.
func (r *RedisRecordStore) SetNextRetry(ctx context.Context, id string, when time.Time) (bool, error) {
	return r.mutate(ctx, id, func(rec *saga.SagaRecord, now time.Time) error {
		w := when.UTC()
		rec.NextRetryAt = &w
		rec.UpdatedAt = now
		return nil
	})
}

// mutate applies fn to the stored record inside a WATCH transaction and keeps the
// status index in step with the record.
func (r *RedisRecordStore) mutate(ctx context.Context, id string, fn func(*saga.SagaRecord, time.Time) error) (bool, error) {
	key := r.recordKey(id)
	found := false

	txf := func(tx *redis.Tx) error {
		rec, err := r.load(ctx, tx, id)
		if errors.Is(err, redis.Nil) {
			found = false
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		before := rec.Status
		if err := fn(rec, r.opts.now().UTC()); err != nil {
			return err
		}
		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to serialize saga record: %w", err)
		}

		// The correlation key is shared by retries of the same request and only
		// follows this record while it still points here.
		lookups := []string{r.sagaIDKey(rec.SagaID)}
		if rec.CorrelationID != "" {
			corrKey := r.correlationKey(rec.CorrelationID)
			owner, err := tx.Get(ctx, corrKey).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to read correlation lookup: %w", err)
			}
			if owner == id {
				lookups = append(lookups, corrKey)
			}
		}

		ttl := r.expiryFor(rec.Status)
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, ttl)
			for _, k := range lookups {
				if ttl > 0 {
					pipe.Expire(ctx, k, ttl)
				} else {
					pipe.Persist(ctx, k)
				}
			}
			if before != rec.Status {
				pipe.ZRem(ctx, r.statusIndexKey(before), id)
				pipe.ZAdd(ctx, r.statusIndexKey(rec.Status), redis.Z{
					Score:  float64(rec.CreatedAt.UnixMicro()),
					Member: id,
				})
			}
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, key)
		if err == nil {
			return found, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if errors.Is(err, saga.ErrInvalidStatusTransition) {
			return true, err
		}
		return found, fmt.Errorf("failed to update saga record in redis: %w", err)
	}
	return found, fmt.Errorf("failed to update saga record in redis: %w", redis.TxFailedErr)
}

// Ping checks the connection.
func (r *RedisRecordStore) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the underlying client.
func (r *RedisRecordStore) Close() error {
	return r.client.Close()
}

func (r *RedisRecordStore) load(ctx context.Context, c stringGetter, id string) (*saga.SagaRecord, error) {
	data, err := c.Get(ctx, r.recordKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, redis.Nil
		}
		return nil, fmt.Errorf("failed to get saga record from redis: %w", err)
	}
	var rec saga.SagaRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to deserialize saga record: %w", err)
	}
	return &rec, nil
}

func (r *RedisRecordStore) recordKey(id string) string {
	return fmt.Sprintf(recordKeyPattern, r.config.KeyPrefix, id)
}

func (r *RedisRecordStore) sagaIDKey(sagaID string) string {
	return fmt.Sprintf(sagaIDKeyPattern, r.config.KeyPrefix, sagaID)
}

func (r *RedisRecordStore) correlationKey(correlationID string) string {
	return fmt.Sprintf(correlationKeyPattern, r.config.KeyPrefix, correlationID)
}

// expiryFor returns the TTL for a record in status. Failed records never expire.
func (r *RedisRecordStore) expiryFor(status saga.RecordStatus) time.Duration {
	if status == saga.RecordStatusCompleted || status == saga.RecordStatusCompensated {
		return r.config.TerminalTTL
	}
	return 0
}

func (r *RedisRecordStore) statusIndexKey(status saga.RecordStatus) string {
	return fmt.Sprintf(statusIndexKeyPattern, r.config.KeyPrefix, status)
}

func (r *RedisRecordStore) typeIndexKey(sagaType saga.SagaType) string {
	return fmt.Sprintf(typeIndexKeyPattern, r.config.KeyPrefix, sagaType)
}
