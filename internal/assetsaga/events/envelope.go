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

// Package events announces asset saga outcomes on a message broker. Every broker
// receives the same JSON Envelope.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Envelope wraps every announced payload.
type Envelope struct {
	EventID       string          `json:"eventId"`
	EventType     saga.EventType  `json:"eventType"`
	CorrelationID string          `json:"correlationId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Payload       json.RawMessage `json:"payload"`
}

// Publisher is a saga.EventAnnouncer that owns a broker connection.
type Publisher interface {
	saga.EventAnnouncer
	Close() error
}

// NewEnvelope marshals payload into an envelope and returns the encoded bytes.
// The result must satisfy the envelope schema.
func NewEnvelope(eventType saga.EventType, payload interface{}, correlationID string) (*Envelope, []byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	env := &Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		CorrelationID: correlationID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal envelope: %w", err)
	}
	if err := ValidateEnvelope(data); err != nil {
		return nil, nil, err
	}
	return env, data, nil
}

// encode checks ctx before marshalling.
func encode(ctx context.Context, eventType saga.EventType, payload interface{}, correlationID string) (*Envelope, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return NewEnvelope(eventType, payload, correlationID)
}
