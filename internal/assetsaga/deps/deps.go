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

// Package deps builds the asset saga object graph from configuration.
package deps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/innovationmech/assetsaga/internal/assetsaga/authz"
	"github.com/innovationmech/assetsaga/internal/assetsaga/config"
	"github.com/innovationmech/assetsaga/internal/assetsaga/events"
	"github.com/innovationmech/assetsaga/internal/assetsaga/repository"
	"github.com/innovationmech/assetsaga/pkg/logger"
	"github.com/innovationmech/assetsaga/pkg/saga/coordinator"
	"github.com/innovationmech/assetsaga/pkg/saga/monitoring"
	"github.com/innovationmech/assetsaga/pkg/saga/retry"
	"github.com/innovationmech/assetsaga/pkg/saga/storage"
	"github.com/innovationmech/assetsaga/pkg/tracing"
)

// ErrDependencyInitialization wraps every construction failure.
var ErrDependencyInitialization = errors.New("failed to initialize dependencies")

// Dependencies holds everything the commands need.
type Dependencies struct {
	Config *config.AssetSagaConfig

	// Infrastructure
	DB       *gorm.DB
	Records  storage.Store
	Events   events.Publisher
	Tracing  *tracing.Provider
	Registry *prometheus.Registry
	Sentry   *sentry.Hub

	// Collaborators
	Assets      *repository.AssetRepository
	Permissions *authz.PermissionValidator
	Metrics     *monitoring.SagaMetricsCollector
	Alerting    *monitoring.AlertingCollector

	Orchestrator *coordinator.Orchestrator
}

// Option overrides a component, mainly so tests can avoid real brokers and databases.
type Option func(*overrides)

type overrides struct {
	db        *gorm.DB
	records   storage.Store
	publisher events.Publisher
}

// WithAssetDB uses db instead of opening the configured MySQL database.
func WithAssetDB(db *gorm.DB) Option {
	return func(o *overrides) { o.db = db }
}

// WithRecordStore uses store instead of the configured backend.
func WithRecordStore(store storage.Store) Option {
	return func(o *overrides) { o.records = store }
}

// WithPublisher uses p instead of the configured broker.
func WithPublisher(p events.Publisher) Option {
	return func(o *overrides) { o.publisher = p }
}

// NewDependencies creates and initializes all dependencies. Everything opened
// before a failure is closed again.
func NewDependencies(ctx context.Context, cfg *config.AssetSagaConfig, opts ...Option) (_ *Dependencies, err error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is nil", ErrDependencyInitialization)
	}
	o := &overrides{}
	for _, opt := range opts {
		opt(o)
	}

	d := &Dependencies{Config: cfg, Registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = d.Close(context.WithoutCancel(ctx))
			err = fmt.Errorf("%w: %w", ErrDependencyInitialization, err)
		}
	}()

	// 1. Infrastructure
	d.DB = o.db
	if d.DB == nil {
		if d.DB, err = repository.Open(cfg.Database); err != nil {
			return nil, err
		}
	}
	d.Records = o.records
	if d.Records == nil {
		if d.Records, err = storage.New(ctx, &cfg.Storage); err != nil {
			return nil, err
		}
	}
	d.Events = o.publisher
	if d.Events == nil {
		if d.Events, err = events.New(ctx, cfg.Events); err != nil {
			return nil, err
		}
	}
	if d.Tracing, err = tracing.Setup(ctx, &cfg.Tracing, tracing.WithGlobal()); err != nil {
		return nil, err
	}

	// 2. Collaborators
	d.Assets = repository.NewAssetRepository(d.DB)
	if d.Permissions, err = authz.NewPermissionValidator(ctx, cfg.Auth); err != nil {
		return nil, err
	}
	metricsCfg := monitoring.DefaultConfig()
	metricsCfg.Registry = d.Registry
	if d.Metrics, err = monitoring.NewSagaMetricsCollector(metricsCfg); err != nil {
		return nil, err
	}
	if d.Sentry, err = monitoring.NewSentryHub(cfg.Sentry); err != nil {
		return nil, err
	}
	d.Alerting = monitoring.NewAlertingCollector(d.Metrics, d.Sentry)

	// 3. Orchestrator
	d.Orchestrator, err = coordinator.NewOrchestrator(&coordinator.Config{
		RecordStore:    d.Records,
		Permissions:    d.Permissions,
		Assets:         d.Assets,
		Events:         d.Events,
		Metrics:        d.Alerting,
		TracerProvider: d.Tracing.TracerProvider(),
		MaxRetries:     cfg.Saga.MaxRetries,
		StepTimeout:    cfg.Saga.StepTimeout,
	})
	if err != nil {
		return nil, err
	}

	logger.GetLogger().Info("asset saga dependencies initialized",
		zap.String("record_store", cfg.Storage.Type),
		zap.String("event_broker", cfg.Events.Broker),
		zap.Bool("tracing", d.Tracing.Enabled()),
		zap.Bool("sentry", d.Sentry != nil))
	return d, nil
}

// NewSweeper builds the compensation sweeper from the retry section.
func (d *Dependencies) NewSweeper() (*retry.Sweeper, error) {
	rc := d.Config.Retry
	backoff := retry.NewExponentialBackoffPolicy(&retry.BackoffConfig{
		InitialDelay: rc.InitialDelay,
		MaxDelay:     rc.MaxDelay,
	}, rc.Multiplier, rc.Jitter)

	return retry.NewSweeper(d.Records, d.Orchestrator, &retry.SweeperConfig{
		Schedule: rc.Schedule,
		Backoff:  backoff,
		Metrics:  d.Metrics,
	})
}

// MetricsExporter serves the private registry.
func (d *Dependencies) MetricsExporter() *monitoring.MetricsExporter {
	return monitoring.NewMetricsExporter(d.Registry)
}

// Close releases every opened resource and returns the joined errors.
func (d *Dependencies) Close(ctx context.Context) error {
	var errs []error
	if d.Alerting != nil {
		d.Alerting.Flush(2 * time.Second)
	}
	if d.Tracing != nil {
		errs = append(errs, d.Tracing.Shutdown(ctx))
	}
	if d.Permissions != nil {
		errs = append(errs, d.Permissions.Close())
	}
	if d.Events != nil {
		errs = append(errs, d.Events.Close())
	}
	if d.Records != nil {
		errs = append(errs, d.Records.Close())
	}
	if d.DB != nil {
		if sqlDB, err := d.DB.DB(); err == nil {
			errs = append(errs, sqlDB.Close())
		}
	}
	return errors.Join(errs...)
}
