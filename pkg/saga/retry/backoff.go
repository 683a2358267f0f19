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

// Package retry schedules repeated compensation of failed sagas. It never re-runs a
// saga forward: a Sweeper only calls Compensate on records the RecordStore reports as
// due, and spaces the attempts out with an ExponentialBackoffPolicy.
package retry

import (
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrInvalidConfig is returned when a backoff or sweeper configuration is invalid.
var ErrInvalidConfig = errors.New("invalid retry configuration")

// BackoffConfig holds the delay bounds shared by backoff policies.
type BackoffConfig struct {
	// InitialDelay is the delay before the first retry. Must be >= 0.
	InitialDelay time.Duration

	// MaxDelay caps every computed delay. Zero means no cap.
	MaxDelay time.Duration
}

// Validate checks the delay bounds.
func (c *BackoffConfig) Validate() error {
	if c.InitialDelay < 0 {
		return ErrInvalidConfig
	}
	if c.MaxDelay > 0 && c.MaxDelay < c.InitialDelay {
		return ErrInvalidConfig
	}
	return nil
}

// DefaultBackoffConfig returns 30s initial delay capped at 30m.
func DefaultBackoffConfig() *BackoffConfig {
	return &BackoffConfig{
		InitialDelay: 30 * time.Second,
		MaxDelay:     30 * time.Minute,
	}
}

// JitterType selects how randomness is mixed into a delay.
type JitterType int

const (
	// JitterTypeFull spreads the delay over [delay*(1-jitter), delay].
	JitterTypeFull JitterType = iota

	// JitterTypeEqual keeps half of the delay and spreads the jittered share of the other half.
	JitterTypeEqual
)

// ExponentialBackoffPolicy computes
//
//	delay = InitialDelay * Multiplier^(attempt-1)
//
// capped at MaxDelay, then reduced by up to Jitter of itself.
type ExponentialBackoffPolicy struct {
	Config     *BackoffConfig
	Multiplier float64
	Jitter     float64
	JitterType JitterType

	// rnd returns a value in [0, 1). Replaced in tests.
	rnd func() float64
}

// NewExponentialBackoffPolicy creates a policy. A multiplier below 1 becomes 2 and
// jitter is clamped to [0, 1].
func NewExponentialBackoffPolicy(config *BackoffConfig, multiplier, jitter float64) *ExponentialBackoffPolicy {
	if config == nil {
		config = DefaultBackoffConfig()
	}
	if multiplier < 1.0 {
		multiplier = 2.0
	}
	jitter = math.Max(0, math.Min(1, jitter))

	return &ExponentialBackoffPolicy{
		Config:     config,
		Multiplier: multiplier,
		Jitter:     jitter,
		JitterType: JitterTypeFull,
		rnd:        rand.Float64,
	}
}

// GetRetryDelay returns the delay to wait after the given attempt (1-based).
func (p *ExponentialBackoffPolicy) GetRetryDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(p.Config.InitialDelay) * math.Pow(p.Multiplier, float64(attempt-1))
	if p.Config.MaxDelay > 0 && delay > float64(p.Config.MaxDelay) {
		delay = float64(p.Config.MaxDelay)
	}
	return time.Duration(p.applyJitter(delay))
}

func (p *ExponentialBackoffPolicy) applyJitter(delay float64) float64 {
	if p.Jitter == 0 {
		return delay
	}
	rnd := p.rnd
	if rnd == nil {
		rnd = rand.Float64
	}

	switch p.JitterType {
	case JitterTypeEqual:
		half := delay / 2
		return half + half*(1-p.Jitter*rnd())
	default:
		return delay * (1 - p.Jitter*rnd())
	}
}
