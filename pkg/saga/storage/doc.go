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

// Package storage provides saga.RecordStore implementations backed by memory,
// database/sql (PostgreSQL or SQLite) and Redis.
//
// Every implementation enforces the monotonic record status graph of
// saga.RecordStatus.CanTransitionTo and returns saga.ErrRecordNotFound from point
// lookups that match nothing.
package storage

import (
	"errors"
	"time"
)

var (
	// ErrStorageClosed indicates the store has been closed.
	ErrStorageClosed = errors.New("record store is closed")

	// ErrInvalidRecord indicates a record that cannot be stored.
	ErrInvalidRecord = errors.New("invalid saga record")

	// ErrDuplicateSagaID indicates a record with the same saga id already exists.
	ErrDuplicateSagaID = errors.New("saga id already recorded")
)

// Option configures a record store.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the clock used to stamp CreatedAt, UpdatedAt and CompletedAt.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func buildOptions(opts []Option) *options {
	o := &options{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}
	return o
}
