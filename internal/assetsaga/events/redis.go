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

	"github.com/redis/go-redis/v9"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// RedisConfig configures the Redis pub/sub publisher.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

// RedisPublisher publishes envelopes on channel {prefix}{eventType}.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	owned  bool
}

// NewRedisPublisher wraps an existing client. The caller keeps ownership of it.
func NewRedisPublisher(client *redis.Client, prefix string) *RedisPublisher {
	if prefix == "" {
		prefix = "assetsaga:events:"
	}
	return &RedisPublisher{client: client, prefix: prefix}
}

func newRedisPublisherFromConfig(ctx context.Context, cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	p := NewRedisPublisher(client, cfg.ChannelPrefix)
	p.owned = true
	return p, nil
}

// Channel returns the channel an event type is published on.
func (p *RedisPublisher) Channel(eventType saga.EventType) string {
	return p.prefix + string(eventType)
}

// Publish implements saga.EventAnnouncer.
func (p *RedisPublisher) Publish(ctx context.Context, eventType saga.EventType, payload interface{}, correlationID string) error {
	_, data, err := encode(ctx, eventType, payload, correlationID)
	if err != nil {
		return err
	}
	if err := p.client.Publish(ctx, p.Channel(eventType), data).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", eventType, err)
	}
	return nil
}

// Close closes the client when the publisher created it.
func (p *RedisPublisher) Close() error {
	if p.owned {
		return p.client.Close()
	}
	return nil
}
