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
)

// Broker names accepted by New.
const (
	BrokerLog      = "log"
	BrokerRedis    = "redis"
	BrokerNATS     = "nats"
	BrokerKafka    = "kafka"
	BrokerRabbitMQ = "rabbitmq"
)

// Config selects and configures the broker.
type Config struct {
	Broker   string         `mapstructure:"broker"`
	Redis    RedisConfig    `mapstructure:"redis"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	RabbitMQ RabbitMQConfig `mapstructure:"rabbitmq"`
}

// New creates the publisher named by cfg.Broker.
func New(ctx context.Context, cfg Config) (Publisher, error) {
	switch cfg.Broker {
	case "", BrokerLog:
		return LogPublisher{}, nil
	case BrokerRedis:
		return asPublisher(newRedisPublisherFromConfig(ctx, cfg.Redis))
	case BrokerNATS:
		return asPublisher(newNATSPublisherFromConfig(cfg.NATS))
	case BrokerKafka:
		return asPublisher(newKafkaPublisherFromConfig(cfg.Kafka))
	case BrokerRabbitMQ:
		return asPublisher(newRabbitMQPublisherFromConfig(cfg.RabbitMQ))
	default:
		return nil, fmt.Errorf("unsupported event broker: %s", cfg.Broker)
	}
}

// asPublisher keeps a failed constructor's typed nil out of the interface.
func asPublisher[T Publisher](p T, err error) (Publisher, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
