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

	"github.com/streadway/amqp"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// RabbitMQConfig configures the RabbitMQ publisher.
type RabbitMQConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type amqpChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitMQPublisher publishes persistent messages on a durable topic exchange with
// the event type as routing key.
type RabbitMQPublisher struct {
	conn     *amqp.Connection
	channel  amqpChannel
	exchange string
}

func newRabbitMQPublisher(ch amqpChannel, exchange string) (*RabbitMQPublisher, error) {
	if exchange == "" {
		exchange = "assetsaga.events"
	}
	if err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		return nil, fmt.Errorf("failed to declare exchange %s: %w", exchange, err)
	}
	return &RabbitMQPublisher{channel: ch, exchange: exchange}, nil
}

func newRabbitMQPublisherFromConfig(cfg RabbitMQConfig) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open rabbitmq channel: %w", err)
	}
	p, err := newRabbitMQPublisher(ch, cfg.Exchange)
	if err != nil {
		conn.Close()
		return nil, err
	}
	p.conn = conn
	return p, nil
}

// Publish implements saga.EventAnnouncer.
func (p *RabbitMQPublisher) Publish(ctx context.Context, eventType saga.EventType, payload interface{}, correlationID string) error {
	env, data, err := encode(ctx, eventType, payload, correlationID)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		Headers:       amqp.Table{HeaderEventType: string(eventType)},
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.EventID,
		CorrelationId: correlationID,
		Timestamp:     env.OccurredAt,
		Type:          string(eventType),
		Body:          data,
	}
	if err := p.channel.Publish(p.exchange, string(eventType), false, false, msg); err != nil {
		return fmt.Errorf("rabbitmq publish %s: %w", eventType, err)
	}
	return nil
}

// Close closes the channel and, when owned, the connection.
func (p *RabbitMQPublisher) Close() error {
	err := p.channel.Close()
	if p.conn != nil {
		if cerr := p.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
