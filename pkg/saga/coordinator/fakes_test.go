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

package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// fakeAssetStore is an in-memory saga.AssetStore with per-operation error injection.
type fakeAssetStore struct {
	mu     sync.Mutex
	assets map[string]*saga.Asset

	createErr  error
	getErr     error
	updateErr  error
	deleteErr  error
	restoreErr error

	calls map[string]int
}

func newFakeAssetStore() *fakeAssetStore {
	return &fakeAssetStore{
		assets: make(map[string]*saga.Asset),
		calls:  make(map[string]int),
	}
}

func (f *fakeAssetStore) seed(a *saga.Asset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assets[a.ID] = a.Clone()
}

func (f *fakeAssetStore) snapshot(id string) (*saga.Asset, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assets[id]
	return a.Clone(), ok
}

func (f *fakeAssetStore) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeAssetStore) Create(ctx context.Context, asset *saga.Asset) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["create"]++
	if f.createErr != nil {
		return "", f.createErr
	}
	a := asset.Clone()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a.CreatedAt, a.UpdatedAt = now, now
	f.assets[a.ID] = a
	return a.ID, nil
}

func (f *fakeAssetStore) Get(ctx context.Context, id string) (*saga.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["get"]++
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.assets[id]
	if !ok {
		return nil, saga.ErrAssetNotFound
	}
	return a.Clone(), nil
}

func (f *fakeAssetStore) Update(ctx context.Context, id string, fields saga.AssetFields, mask []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["update"]++
	if f.updateErr != nil {
		return f.updateErr
	}
	a, ok := f.assets[id]
	if !ok {
		return saga.ErrAssetNotFound
	}
	a.Fields.Apply(fields, mask)
	a.UpdatedAt = a.UpdatedAt.Add(time.Second)
	return nil
}

func (f *fakeAssetStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["delete"]++
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.assets[id]; !ok {
		return saga.ErrAssetNotFound
	}
	delete(f.assets, id)
	return nil
}

func (f *fakeAssetStore) Restore(ctx context.Context, asset *saga.Asset) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["restore"]++
	if f.restoreErr != nil {
		return f.restoreErr
	}
	if _, ok := f.assets[asset.ID]; ok {
		return saga.ErrAssetExists
	}
	f.assets[asset.ID] = asset.Clone()
	return nil
}

// fakePermissions answers every check with allowed/err and can run a hook first.
type fakePermissions struct {
	allowed bool
	err     error
	hook    func(ctx context.Context)

	mu    sync.Mutex
	asked []saga.Capability
}

func (f *fakePermissions) Validate(ctx context.Context, token string, capability saga.Capability) (bool, error) {
	f.mu.Lock()
	f.asked = append(f.asked, capability)
	f.mu.Unlock()
	if f.hook != nil {
		f.hook(ctx)
	}
	return f.allowed, f.err
}

type publishedEvent struct {
	eventType     saga.EventType
	payload       interface{}
	correlationID string
}

// fakeEvents records published events. A non-nil err fails every publish.
type fakeEvents struct {
	err      error
	panicMsg string
	block    bool

	mu        sync.Mutex
	published []publishedEvent
}

func (f *fakeEvents) Publish(ctx context.Context, eventType saga.EventType, payload interface{}, correlationID string) error {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.err != nil {
		return f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, publishedEvent{eventType, payload, correlationID})
	return nil
}

func (f *fakeEvents) events() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.published...)
}

// statusRecorder wraps a RecordStore and remembers every status written per record.
type statusRecorder struct {
	saga.RecordStore

	mu      sync.Mutex
	history map[string][]saga.RecordStatus
	failAdd error
}

func newStatusRecorder(inner saga.RecordStore) *statusRecorder {
	return &statusRecorder{RecordStore: inner, history: make(map[string][]saga.RecordStatus)}
}

func (r *statusRecorder) Add(ctx context.Context, rec *saga.SagaRecord) (*saga.SagaRecord, error) {
	if r.failAdd != nil {
		return nil, r.failAdd
	}
	stored, err := r.RecordStore.Add(ctx, rec)
	if err == nil {
		r.mu.Lock()
		r.history[stored.ID] = append(r.history[stored.ID], stored.Status)
		r.mu.Unlock()
	}
	return stored, err
}

func (r *statusRecorder) UpdateStatus(ctx context.Context, id string, status saga.RecordStatus) (bool, error) {
	found, err := r.RecordStore.UpdateStatus(ctx, id, status)
	if err == nil && found {
		r.mu.Lock()
		r.history[id] = append(r.history[id], status)
		r.mu.Unlock()
	}
	return found, err
}

func (r *statusRecorder) statuses(id string) []saga.RecordStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]saga.RecordStatus(nil), r.history[id]...)
}
