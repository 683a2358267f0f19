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
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Header keys set on NATS and Kafka messages.
const (
	HeaderCorrelationID = "correlation_id"
	HeaderEventType     = "event_type"
	HeaderEventID       = "event_id"
)

// FlushWithContext refuses contexts without a deadline.
const defaultFlushTimeout = 5 * time.Second

// NATSConfig configures the NATS publisher.
type NATSConfig struct {
	URL           string        `mapstructure:"url"`
	Name          string        `mapstructure:"name"`
	SubjectPrefix string        `mapstructure:"subject_prefix"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type natsConn interface {
	PublishMsg(m *nats.Msg) error
	FlushWithContext(ctx context.Context) error
	Close()
}

// NATSPublisher publishes envelopes on subject {prefix}.{eventType}.
type NATSPublisher struct {
	conn   natsConn
	prefix string
}

func newNATSPublisher(conn natsConn, prefix string) *NATSPublisher {
	if prefix == "" {
		prefix = "assetsaga.events"
	}
	return &NATSPublisher{conn: conn, prefix: prefix}
}

func newNATSPublisherFromConfig(cfg NATSConfig) (*NATSPublisher, error) {
	opts := []nats.Option{nats.MaxReconnects(5)}
	if cfg.Name != "" {
		opts = append(opts, nats.Name(cfg.Name))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, nats.Timeout(cfg.Timeout))
	}
	url := cfg.URL
	if url == "" {
		url = nats.DefaultURL
	}
	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}
	return newNATSPublisher(conn, cfg.SubjectPrefix), nil
}

// Subject returns the subject an event type is published on.
func (p *NATSPublisher) Subject(eventType saga.EventType) string {
	return p.prefix + "." + string(eventType)
}

// Publish implements saga.EventAnnouncer. It flushes so a nil error means the
// server received the message.
func (p *NATSPublisher) Publish(ctx context.Context, eventType saga.EventType, payload interface{}, correlationID string) error {
	env, data, err := encode(ctx, eventType, payload, correlationID)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(p.Subject(eventType))
	msg.Data = data
	msg.Header.Set(HeaderCorrelationID, correlationID)
	msg.Header.Set(HeaderEventType, string(eventType))
	msg.Header.Set(HeaderEventID, env.EventID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("nats publish %s: %w", eventType, err)
	}
	flushCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		flushCtx, cancel = context.WithTimeout(ctx, defaultFlushTimeout)
		defer cancel()
	}
	if err := p.conn.FlushWithContext(flushCtx); err != nil {
		return fmt.Errorf("nats flush %s: %w", eventType, err)
	}
	return nil
}

// Close closes the connection.
func (p *NATSPublisher) Close() error {
	p.conn.Close()
	return nil
}
