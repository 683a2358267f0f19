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

package events

import (
	"context"

	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
	"github.com/innovationmech/assetsaga/pkg/saga"
)

// LogPublisher writes envelopes to the process logger. It is meant for local runs
// without a broker.
type LogPublisher struct{}

// Publish implements saga.EventAnnouncer.
func (LogPublisher) Publish(ctx context.Context, eventType saga.EventType, payload interface{}, correlationID string) error {
	env, _, err := encode(ctx, eventType, payload, correlationID)
	if err != nil {
		return err
	}
	logger.GetLogger().Info("asset event",
		zap.String("event_id", env.EventID),
		zap.String("event_type", string(eventType)),
		zap.String("correlation_id", correlationID),
		zap.ByteString("payload", env.Payload))
	return nil
}

// Close is a no-op.
func (LogPublisher) Close() error { return nil }
