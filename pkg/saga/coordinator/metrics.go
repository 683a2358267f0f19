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
	"time"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// MetricsCollector defines the interface for collecting orchestrator metrics.
// Implementations can send metrics to Prometheus, StatsD, or other monitoring systems.
type MetricsCollector interface {
	// RecordSagaStarted increments the count of started sagas.
	RecordSagaStarted(sagaType saga.SagaType)

	// RecordSagaFinished records the outcome and total duration of a saga call.
	RecordSagaFinished(sagaType saga.SagaType, outcome saga.Outcome, duration time.Duration)

	// RecordStepExecuted records one forward step.
	RecordStepExecuted(sagaType saga.SagaType, step string, success bool, duration time.Duration)

	// RecordCompensation records one compensator run, inline or standalone.
	RecordCompensation(sagaType saga.SagaType, success bool, duration time.Duration)
}

// NoOpMetricsCollector discards all metrics.
type NoOpMetricsCollector struct{}

func (NoOpMetricsCollector) RecordSagaStarted(saga.SagaType) {}

func (NoOpMetricsCollector) RecordSagaFinished(saga.SagaType, saga.Outcome, time.Duration) {}

func (NoOpMetricsCollector) RecordStepExecuted(saga.SagaType, string, bool, time.Duration) {}

func (NoOpMetricsCollector) RecordCompensation(saga.SagaType, bool, time.Duration) {}
