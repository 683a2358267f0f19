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

// Package monitoring exports asset saga metrics to Prometheus. SagaMetricsCollector
// satisfies both the orchestrator's and the retry sweeper's metrics hooks, so one
// collector observes forward execution, compensation and sweeps.
package monitoring

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/innovationmech/assetsaga/pkg/saga"
	"github.com/innovationmech/assetsaga/pkg/saga/retry"
)

// Metrics is a point-in-time snapshot of the collector's own counters.
type Metrics struct {
	SagasStarted     int64
	SagasSucceeded   int64
	SagasFailed      int64
	ActiveSagas      int64
	Compensations    int64
	CompensationsBad int64
	Outcomes         map[saga.Outcome]int64
	Timestamp        time.Time
}

// SagaMetricsCollector records saga metrics in Prometheus.
type SagaMetricsCollector struct {
	registry prometheus.Registerer

	sagaStarted        *prometheus.CounterVec
	sagaFinished       *prometheus.CounterVec
	sagaDuration       *prometheus.HistogramVec
	stepDuration       *prometheus.HistogramVec
	compensationTotal  *prometheus.CounterVec
	compensationTiming *prometheus.HistogramVec
	activeSagas        prometheus.Gauge
	sweepTotal         prometheus.Counter
	sweepRecords       *prometheus.CounterVec

	mu               sync.RWMutex
	started          int64
	active           int64
	compensations    int64
	compensationsBad int64
	outcomes         map[saga.Outcome]int64
}

// Config contains configuration options for SagaMetricsCollector.
type Config struct {
	// Namespace for Prometheus metrics (default: "assetsaga")
	Namespace string

	// Registry for Prometheus metrics. If nil, uses prometheus.DefaultRegisterer.
	Registry prometheus.Registerer

	// DurationBuckets for the duration histograms.
	DurationBuckets []float64
}

// DefaultConfig returns a default configuration for SagaMetricsCollector.
func DefaultConfig() *Config {
	return &Config{
		Namespace:       "assetsaga",
		Registry:        prometheus.DefaultRegisterer,
		DurationBuckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
	}
}

// NewSagaMetricsCollector creates the collector and registers its metrics.
func NewSagaMetricsCollector(config *Config) (*SagaMetricsCollector, error) {
	defaults := DefaultConfig()
	if config == nil {
		config = defaults
	}
	if config.Namespace == "" {
		config.Namespace = defaults.Namespace
	}
	if config.Registry == nil {
		config.Registry = defaults.Registry
	}
	if config.DurationBuckets == nil {
		config.DurationBuckets = defaults.DurationBuckets
	}
	ns := config.Namespace

	c := &SagaMetricsCollector{
		registry: config.Registry,
		outcomes: make(map[saga.Outcome]int64),
	}

	c.sagaStarted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "saga_started_total",
		Help:      "Total number of sagas started",
	}, []string{"saga_type"})

	c.sagaFinished = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "saga_finished_total",
		Help:      "Total number of sagas finished, by outcome",
	}, []string{"saga_type", "outcome"})

	c.sagaDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "saga_duration_seconds",
		Help:      "Duration of saga executions in seconds",
		Buckets:   config.DurationBuckets,
	}, []string{"saga_type"})

	c.stepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "step_duration_seconds",
		Help:      "Duration of forward saga steps in seconds",
		Buckets:   config.DurationBuckets,
	}, []string{"saga_type", "step", "success"})

	c.compensationTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "compensation_total",
		Help:      "Total number of compensation attempts",
	}, []string{"saga_type", "success"})

	c.compensationTiming = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: ns,
		Name:      "compensation_duration_seconds",
		Help:      "Duration of compensation attempts in seconds",
		Buckets:   config.DurationBuckets,
	}, []string{"saga_type"})

	c.activeSagas = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: ns,
		Name:      "active_sagas",
		Help:      "Number of sagas currently executing",
	})

	c.sweepTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "sweep_runs_total",
		Help:      "Total number of compensation sweeps",
	})

	c.sweepRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: ns,
		Name:      "sweep_records_total",
		Help:      "Records handled by compensation sweeps, by result",
	}, []string{"result"})

	for _, m := range []prometheus.Collector{
		c.sagaStarted, c.sagaFinished, c.sagaDuration, c.stepDuration,
		c.compensationTotal, c.compensationTiming, c.activeSagas,
		c.sweepTotal, c.sweepRecords,
	} {
		if err := c.registry.Register(m); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return c, nil
}

// RecordSagaStarted implements coordinator.MetricsCollector.
func (c *SagaMetricsCollector) RecordSagaStarted(sagaType saga.SagaType) {
	c.sagaStarted.WithLabelValues(sagaType.String()).Inc()
	c.activeSagas.Inc()

	c.mu.Lock()
	c.started++
	c.active++
	c.mu.Unlock()
}

// RecordSagaFinished implements coordinator.MetricsCollector.
func (c *SagaMetricsCollector) RecordSagaFinished(sagaType saga.SagaType, outcome saga.Outcome, duration time.Duration) {
	c.sagaFinished.WithLabelValues(sagaType.String(), outcome.String()).Inc()
	c.sagaDuration.WithLabelValues(sagaType.String()).Observe(duration.Seconds())
	c.activeSagas.Dec()

	c.mu.Lock()
	c.outcomes[outcome]++
	if c.active > 0 {
		c.active--
	}
	c.mu.Unlock()
}

// RecordStepExecuted implements coordinator.MetricsCollector.
func (c *SagaMetricsCollector) RecordStepExecuted(sagaType saga.SagaType, step string, success bool, duration time.Duration) {
	c.stepDuration.WithLabelValues(sagaType.String(), step, strconv.FormatBool(success)).Observe(duration.Seconds())
}

// RecordCompensation implements coordinator.MetricsCollector.
func (c *SagaMetricsCollector) RecordCompensation(sagaType saga.SagaType, success bool, duration time.Duration) {
	c.compensationTotal.WithLabelValues(sagaType.String(), strconv.FormatBool(success)).Inc()
	c.compensationTiming.WithLabelValues(sagaType.String()).Observe(duration.Seconds())

	c.mu.Lock()
	c.compensations++
	if !success {
		c.compensationsBad++
	}
	c.mu.Unlock()
}

// RecordSweep implements retry.SweepMetrics.
func (c *SagaMetricsCollector) RecordSweep(report *retry.SweepReport, _ time.Duration) {
	c.sweepTotal.Inc()
	if report == nil {
		return
	}
	c.sweepRecords.WithLabelValues("compensated").Add(float64(report.Compensated))
	c.sweepRecords.WithLabelValues("rescheduled").Add(float64(report.Rescheduled))
	c.sweepRecords.WithLabelValues("skipped").Add(float64(report.Skipped))
	c.sweepRecords.WithLabelValues("error").Add(float64(report.Errors))
}

// GetActiveSagasCount returns the number of sagas started but not yet finished.
func (c *SagaMetricsCollector) GetActiveSagasCount() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.active
}

// GetMetrics returns a snapshot of the collector's counters.
func (c *SagaMetricsCollector) GetMetrics() *Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m := &Metrics{
		SagasStarted:     c.started,
		ActiveSagas:      c.active,
		Compensations:    c.compensations,
		CompensationsBad: c.compensationsBad,
		Outcomes:         make(map[saga.Outcome]int64, len(c.outcomes)),
		Timestamp:        time.Now(),
	}
	for k, v := range c.outcomes {
		m.Outcomes[k] = v
		if k == saga.OutcomeSucceeded {
			m.SagasSucceeded += v
		} else {
			m.SagasFailed += v
		}
	}
	return m
}
