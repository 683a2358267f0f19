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

package monitoring

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
	"github.com/innovationmech/assetsaga/pkg/saga"
	"github.com/innovationmech/assetsaga/pkg/saga/coordinator"
)

// SentryConfig holds Sentry configuration options
type SentryConfig struct {
	Enabled     bool    `yaml:"enabled" json:"enabled" mapstructure:"enabled"`
	DSN         string  `yaml:"dsn" json:"dsn" mapstructure:"dsn"`
	Environment string  `yaml:"environment" json:"environment" mapstructure:"environment"`
	Release     string  `yaml:"release" json:"release" mapstructure:"release"`
	SampleRate  float64 `yaml:"sample_rate" json:"sample_rate" mapstructure:"sample_rate"`
	Debug       bool    `yaml:"debug" json:"debug" mapstructure:"debug"`
}

// Validate checks the configuration.
func (c *SentryConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.DSN == "" {
		return fmt.Errorf("sentry DSN is required when enabled")
	}
	if c.SampleRate < 0 || c.SampleRate > 1 {
		return fmt.Errorf("sentry sample rate must be between 0 and 1")
	}
	return nil
}

// NewSentryHub creates an isolated hub for cfg. A disabled config yields nil.
func NewSentryHub(cfg SentryConfig) (*sentry.Hub, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := sentry.NewClient(sentry.ClientOptions{
		Dsn:         cfg.DSN,
		Environment: cfg.Environment,
		Release:     cfg.Release,
		SampleRate:  cfg.SampleRate,
		Debug:       cfg.Debug,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return sentry.NewHub(client, sentry.NewScope()), nil
}

// AlertingCollector forwards every metric to next and raises a Sentry event when a
// saga ends with its compensation failed, which leaves an asset that needs manual repair.
type AlertingCollector struct {
	next coordinator.MetricsCollector
	hub  *sentry.Hub
}

var _ coordinator.MetricsCollector = (*AlertingCollector)(nil)

// NewAlertingCollector wraps next. A nil hub disables alerting.
func NewAlertingCollector(next coordinator.MetricsCollector, hub *sentry.Hub) *AlertingCollector {
	if next == nil {
		next = coordinator.NoOpMetricsCollector{}
	}
	return &AlertingCollector{next: next, hub: hub}
}

func (a *AlertingCollector) RecordSagaStarted(sagaType saga.SagaType) {
	a.next.RecordSagaStarted(sagaType)
}

func (a *AlertingCollector) RecordSagaFinished(sagaType saga.SagaType, outcome saga.Outcome, duration time.Duration) {
	a.next.RecordSagaFinished(sagaType, outcome, duration)
	if outcome == saga.OutcomeFailedCompensationFailed {
		a.alert(sagaType, outcome, "saga compensation failed")
	}
}

func (a *AlertingCollector) RecordStepExecuted(sagaType saga.SagaType, step string, success bool, duration time.Duration) {
	a.next.RecordStepExecuted(sagaType, step, success, duration)
}

func (a *AlertingCollector) RecordCompensation(sagaType saga.SagaType, success bool, duration time.Duration) {
	a.next.RecordCompensation(sagaType, success, duration)
}

// Flush waits up to timeout for queued events to be delivered.
func (a *AlertingCollector) Flush(timeout time.Duration) bool {
	if a.hub == nil {
		return true
	}
	return a.hub.Flush(timeout)
}

func (a *AlertingCollector) alert(sagaType saga.SagaType, outcome saga.Outcome, message string) {
	if a.hub == nil {
		return
	}
	a.hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetTag("saga_type", string(sagaType))
		scope.SetTag("outcome", string(outcome))
		if id := a.hub.CaptureMessage(message); id != nil {
			logger.GetLogger().Debug("compensation failure reported",
				zap.String("event_id", string(*id)),
				zap.String("saga_type", string(sagaType)))
		}
	})
}
