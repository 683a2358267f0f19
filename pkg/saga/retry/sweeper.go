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

package retry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
	"github.com/innovationmech/assetsaga/pkg/saga"
)

// DefaultSchedule runs a sweep every 30 seconds.
const DefaultSchedule = "@every 30s"

// ErrSweepInProgress is returned by RunOnce while another sweep is running.
var ErrSweepInProgress = errors.New("sweep already in progress")

// Compensator is the part of the orchestrator a Sweeper drives.
type Compensator interface {
	Compensate(ctx context.Context, sagaID string) (*saga.SagaResult, error)
}

// SweepMetrics receives one observation per finished sweep.
type SweepMetrics interface {
	RecordSweep(report *SweepReport, duration time.Duration)
}

type noopSweepMetrics struct{}

func (noopSweepMetrics) RecordSweep(*SweepReport, time.Duration) {}

// SweeperConfig configures a Sweeper.
type SweeperConfig struct {
	// Schedule is a standard cron expression or descriptor. Defaults to DefaultSchedule.
	Schedule string

	// Backoff spaces out failed attempts. Defaults to NewExponentialBackoffPolicy(nil, 2, 0.2).
	Backoff *ExponentialBackoffPolicy

	// Metrics is optional.
	Metrics SweepMetrics

	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	Scanned     int
	Compensated int
	Rescheduled int
	// Skipped counts records retired without a compensation attempt because
	// their mutation never ran.
	Skipped int
	Errors  int
}

// Sweeper periodically compensates Failed records that still have retries left.
type Sweeper struct {
	records     saga.RecordStore
	compensator Compensator
	backoff     *ExponentialBackoffPolicy
	schedule    cron.Schedule
	metrics     SweepMetrics
	now         func() time.Time
	logger      *zap.Logger

	running sync.Mutex

	mu   sync.Mutex
	cron *cron.Cron
}

// NewSweeper validates cfg and creates a Sweeper. It does not start the schedule.
func NewSweeper(records saga.RecordStore, compensator Compensator, cfg *SweeperConfig) (*Sweeper, error) {
	if records == nil || compensator == nil {
		return nil, fmt.Errorf("%w: record store and compensator are required", ErrInvalidConfig)
	}
	if cfg == nil {
		cfg = &SweeperConfig{}
	}

	spec := cfg.Schedule
	if spec == "" {
		spec = DefaultSchedule
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("%w: schedule %q: %v", ErrInvalidConfig, spec, err)
	}

	s := &Sweeper{
		records:     records,
		compensator: compensator,
		backoff:     cfg.Backoff,
		schedule:    schedule,
		metrics:     cfg.Metrics,
		now:         cfg.Now,
		logger:      logger.GetLogger().Named("sweeper"),
	}
	if s.backoff == nil {
		s.backoff = NewExponentialBackoffPolicy(nil, 2.0, 0.2)
	}
	if err := s.backoff.Config.Validate(); err != nil {
		return nil, err
	}
	if s.metrics == nil {
		s.metrics = noopSweepMetrics{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// RunOnce performs a single sweep. Records are handled one at a time in the order the
// store returns them; a cancelled ctx stops the sweep between records.
func (s *Sweeper) RunOnce(ctx context.Context) (*SweepReport, error) {
	if !s.running.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.running.Unlock()

	started := s.now()
	report := &SweepReport{}
	defer func() {
		s.metrics.RecordSweep(report, s.now().Sub(started))
	}()

	due, err := s.records.ListFailedForRetry(ctx, started)
	if err != nil {
		return report, fmt.Errorf("failed to list sagas due for retry: %w", err)
	}
	report.Scanned = len(due)

	for _, rec := range due {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		s.retry(ctx, rec, report)
	}

	if report.Scanned > 0 {
		s.logger.Info("Compensation sweep finished",
			zap.Int("scanned", report.Scanned),
			zap.Int("compensated", report.Compensated),
			zap.Int("rescheduled", report.Rescheduled),
			zap.Int("skipped", report.Skipped),
			zap.Int("errors", report.Errors))
	}
	return report, nil
}

func (s *Sweeper) retry(ctx context.Context, rec *saga.SagaRecord, report *SweepReport) {
	log := s.logger.With(
		zap.String("saga_id", rec.SagaID),
		zap.String("saga_type", rec.SagaType.String()),
		zap.Int("attempt", rec.RetryCount+1))

	// Undecodable payloads still go through Compensate so the failure is recorded there.
	if state, err := saga.DecodeState(rec.SagaType, rec.StatePayload); err == nil && !state.Flags().MutationApplied {
		s.retire(ctx, rec, report, log)
		return
	}

	if _, err := s.records.IncrementRetryCount(ctx, rec.ID); err != nil {
		report.Errors++
		log.Error("Failed to bump retry count", zap.Error(err))
		return
	}

	res, err := s.compensator.Compensate(ctx, rec.SagaID)
	if err == nil && res != nil && res.IsSuccess {
		report.Compensated++
		log.Info("Saga compensated by sweep")
		return
	}
	if err != nil {
		report.Errors++
		log.Warn("Compensation attempt errored", zap.Error(err))
	} else if res != nil {
		log.Warn("Compensation attempt failed", zap.String("message", res.Message))
	}

	if rec.RetryCount+1 >= rec.MaxRetries {
		log.Warn("Saga exhausted its retries", zap.Int("max_retries", rec.MaxRetries))
		return
	}
	next := s.now().Add(s.backoff.GetRetryDelay(rec.RetryCount + 1))
	if _, err := s.records.SetNextRetry(ctx, rec.ID, next); err != nil {
		report.Errors++
		log.Error("Failed to schedule next retry", zap.Error(err))
		return
	}
	report.Rescheduled++
	log.Debug("Next compensation attempt scheduled", zap.Time("next_retry_at", next))
}

// retire uses up the remaining retries of a record with nothing to undo. It stays
// Failed so the original failure is kept, but it is no longer due for retry.
func (s *Sweeper) retire(ctx context.Context, rec *saga.SagaRecord, report *SweepReport, log *zap.Logger) {
	for n := rec.RetryCount; n < rec.MaxRetries; n++ {
		if _, err := s.records.IncrementRetryCount(ctx, rec.ID); err != nil {
			report.Errors++
			log.Error("Failed to retire saga", zap.Error(err))
			return
		}
	}
	report.Skipped++
	log.Info("Saga retired without compensation, no mutation was applied")
}

// Start runs RunOnce on the schedule until Stop is called or ctx is done. A tick that
// fires while a sweep is still running is skipped.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return
	}

	clog := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithLogger(clog), cron.WithChain(cron.Recover(clog), cron.SkipIfStillRunning(clog)))
	c.Schedule(s.schedule, cron.FuncJob(func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSweepInProgress) {
			s.logger.Error("Compensation sweep failed", zap.Error(err))
		}
	}))
	c.Start()
	s.cron = c

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
