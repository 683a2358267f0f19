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

// Package coordinator runs the asset sagas. The Orchestrator executes the three-step
// create, update and delete sagas against the permission, asset and event collaborators,
// persists every step through a saga.RecordStore and undoes committed mutations when a
// later step fails.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
	"github.com/innovationmech/assetsaga/pkg/saga"
)

const tracerName = "github.com/innovationmech/assetsaga/pkg/saga/coordinator"

var (
	// ErrRecordStoreNotConfigured indicates the RecordStore is not configured.
	ErrRecordStoreNotConfigured = errors.New("record store not configured")

	// ErrPermissionValidatorNotConfigured indicates the PermissionValidator is not configured.
	ErrPermissionValidatorNotConfigured = errors.New("permission validator not configured")

	// ErrAssetStoreNotConfigured indicates the AssetStore is not configured.
	ErrAssetStoreNotConfigured = errors.New("asset store not configured")

	// ErrEventAnnouncerNotConfigured indicates the EventAnnouncer is not configured.
	ErrEventAnnouncerNotConfigured = errors.New("event announcer not configured")
)

// Config contains the collaborators and options of an Orchestrator.
type Config struct {
	// RecordStore persists saga records. Required.
	RecordStore saga.RecordStore

	// Permissions answers the permission step. Required.
	Permissions saga.PermissionValidator

	// Assets applies and undoes the domain mutation. Required.
	Assets saga.AssetStore

	// Events announces the outcome of a successful mutation. Required.
	Events saga.EventAnnouncer

	// Metrics collects runtime metrics. If not provided, a no-op collector is used.
	Metrics MetricsCollector

	// TracerProvider creates saga and step spans. Defaults to the global provider.
	TracerProvider trace.TracerProvider

	// MaxRetries is written into new records. Defaults to saga.DefaultMaxRetries.
	MaxRetries int

	// StepTimeout bounds each collaborator call. Zero disables the limit.
	StepTimeout time.Duration

	// Now returns the current time. Defaults to time.Now in UTC.
	Now func() time.Time
}

// Orchestrator executes asset sagas. It keeps no per-saga state between calls, so
// concurrent calls for different sagas never contend inside the orchestrator.
type Orchestrator struct {
	records     saga.RecordStore
	permissions saga.PermissionValidator
	assets      saga.AssetStore
	events      saga.EventAnnouncer
	metrics     MetricsCollector
	tracer      trace.Tracer
	validate    *validator.Validate
	maxRetries  int
	stepTimeout time.Duration
	now         func() time.Time
}

// NewOrchestrator creates an Orchestrator from cfg.
func NewOrchestrator(cfg *Config) (*Orchestrator, error) {
	if cfg == nil {
		return nil, errors.New("orchestrator config is required")
	}
	if cfg.RecordStore == nil {
		return nil, ErrRecordStoreNotConfigured
	}
	if cfg.Permissions == nil {
		return nil, ErrPermissionValidatorNotConfigured
	}
	if cfg.Assets == nil {
		return nil, ErrAssetStoreNotConfigured
	}
	if cfg.Events == nil {
		return nil, ErrEventAnnouncerNotConfigured
	}

	o := &Orchestrator{
		records:     cfg.RecordStore,
		permissions: cfg.Permissions,
		assets:      cfg.Assets,
		events:      cfg.Events,
		metrics:     cfg.Metrics,
		validate:    validator.New(),
		maxRetries:  cfg.MaxRetries,
		stepTimeout: cfg.StepTimeout,
		now:         cfg.Now,
	}
	if o.metrics == nil {
		o.metrics = NoOpMetricsCollector{}
	}
	if o.maxRetries <= 0 {
		o.maxRetries = saga.DefaultMaxRetries
	}
	if o.stepTimeout < 0 {
		o.stepTimeout = 0
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	tp := cfg.TracerProvider
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	o.tracer = tp.Tracer(tracerName)

	return o, nil
}

// ExecuteCreateSaga creates a new asset.
func (o *Orchestrator) ExecuteCreateSaga(ctx context.Context, req *saga.CreateAssetRequest) *saga.SagaResult {
	if req == nil {
		return o.rejected(saga.SagaTypeAssetCreation, errors.New("request is nil"))
	}
	if err := o.validate.StructCtx(ctx, req); err != nil {
		return o.rejected(saga.SagaTypeAssetCreation, err)
	}

	state := &saga.AssetCreationState{
		BaseState: saga.NewBaseState(uuid.NewString(), correlationID(req.CorrelationID), o.maxRetries, o.now()),
		AssetID:   uuid.NewString(),
		Target:    req.Fields.Clone(),
	}

	return o.execute(ctx, &plan{
		state: state,
		token: req.IdentityToken,
		mutate: func(ctx context.Context, _ *execution) error {
			id, err := o.assets.Create(ctx, &saga.Asset{ID: state.AssetID, Fields: state.Target.Clone()})
			if err != nil {
				return err
			}
			if id != "" {
				state.AssetID = id
			}
			return nil
		},
		event: func() interface{} {
			return &saga.AssetEvent{
				SagaID:     state.SagaID,
				AssetID:    state.AssetID,
				Asset:      &saga.Asset{ID: state.AssetID, Fields: state.Target.Clone()},
				OccurredAt: o.now(),
			}
		},
	})
}

// ExecuteUpdateSaga overwrites the masked fields of an existing asset. The values being
// replaced are captured and persisted before the asset is touched.
func (o *Orchestrator) ExecuteUpdateSaga(ctx context.Context, req *saga.UpdateAssetRequest) *saga.SagaResult {
	if req == nil {
		return o.rejected(saga.SagaTypeAssetUpdate, errors.New("request is nil"))
	}
	mask := normalizeMask(req.ChangedFields)
	if err := o.validate.StructCtx(ctx, req); err != nil {
		return o.rejected(saga.SagaTypeAssetUpdate, err)
	}
	if err := o.validate.StructPartialCtx(ctx, req.Fields, structFields(mask)...); err != nil {
		return o.rejected(saga.SagaTypeAssetUpdate, err)
	}

	state := &saga.AssetUpdateState{
		BaseState:     saga.NewBaseState(uuid.NewString(), correlationID(req.CorrelationID), o.maxRetries, o.now()),
		AssetID:       req.AssetID,
		Target:        req.Fields.Clone(),
		ChangedFields: mask,
	}

	return o.execute(ctx, &plan{
		state: state,
		token: req.IdentityToken,
		mutate: func(ctx context.Context, e *execution) error {
			current, err := o.assets.Get(ctx, state.AssetID)
			if err != nil {
				return err
			}
			var original saga.AssetFields
			original.Apply(current.Fields, state.ChangedFields)
			state.Original = original
			state.OriginalCaptured = true
			if err := e.checkpoint(ctx, ""); err != nil {
				return err
			}
			return o.assets.Update(ctx, state.AssetID, state.Target, state.ChangedFields)
		},
		event: func() interface{} {
			return &saga.AssetEvent{
				SagaID:        state.SagaID,
				AssetID:       state.AssetID,
				ChangedFields: append([]string(nil), state.ChangedFields...),
				OccurredAt:    o.now(),
			}
		},
	})
}

// ExecuteDeleteSaga removes an existing asset. The full asset is captured and persisted
// before removal so compensation can re-materialize it.
func (o *Orchestrator) ExecuteDeleteSaga(ctx context.Context, req *saga.DeleteAssetRequest) *saga.SagaResult {
	if req == nil {
		return o.rejected(saga.SagaTypeAssetDeletion, errors.New("request is nil"))
	}
	if err := o.validate.StructCtx(ctx, req); err != nil {
		return o.rejected(saga.SagaTypeAssetDeletion, err)
	}

	state := &saga.AssetDeletionState{
		BaseState: saga.NewBaseState(uuid.NewString(), correlationID(req.CorrelationID), o.maxRetries, o.now()),
		AssetID:   req.AssetID,
	}

	return o.execute(ctx, &plan{
		state: state,
		token: req.IdentityToken,
		mutate: func(ctx context.Context, e *execution) error {
			current, err := o.assets.Get(ctx, state.AssetID)
			if err != nil {
				return err
			}
			state.Deleted = current.Clone()
			if err := e.checkpoint(ctx, ""); err != nil {
				return err
			}
			return o.assets.Delete(ctx, state.AssetID)
		},
		event: func() interface{} {
			return &saga.AssetEvent{
				SagaID:     state.SagaID,
				AssetID:    state.AssetID,
				Asset:      state.Deleted.Clone(),
				OccurredAt: o.now(),
			}
		},
	})
}

// plan is the type-specific part of one saga call.
type plan struct {
	state  saga.State
	token  string
	mutate func(ctx context.Context, e *execution) error
	event  func() interface{}
}

// execution carries the bookkeeping of a single saga call.
type execution struct {
	o       *Orchestrator
	plan    *plan
	record  *saga.SagaRecord
	steps   []saga.SagaStepResult
	logger  *zap.Logger
	current string
	since   time.Time
}

func (o *Orchestrator) execute(ctx context.Context, p *plan) (result *saga.SagaResult) {
	sagaType := p.state.SagaType()
	base := p.state.Base()
	flags := p.state.Flags()
	desc, _ := sagaType.Descriptor()
	startedAt := o.now()

	ctx, span := o.tracer.Start(ctx, "saga."+sagaType.String(), trace.WithAttributes(
		attribute.String("saga.id", base.SagaID),
		attribute.String("saga.type", sagaType.String()),
		attribute.String("saga.correlation_id", base.CorrelationID),
	))
	defer span.End()

	e := &execution{
		o:     o,
		plan:  p,
		steps: make([]saga.SagaStepResult, 0, 4),
		logger: logger.GetLogger().With(
			zap.String("saga_id", base.SagaID),
			zap.String("saga_type", sagaType.String()),
			zap.String("correlation_id", base.CorrelationID),
		),
	}
	o.metrics.RecordSagaStarted(sagaType)

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Saga execution panicked", zap.Any("panic", r), zap.Stack("stack"))
			result = e.fail(ctx, fmt.Errorf("unexpected error: %v", r))
		}
		o.metrics.RecordSagaFinished(sagaType, result.Outcome, o.now().Sub(startedAt))
		span.SetAttributes(attribute.String("saga.outcome", result.Outcome.String()))
		if result.IsSuccess {
			span.SetStatus(codes.Ok, "")
		} else {
			span.SetStatus(codes.Error, result.Message)
		}
	}()

	if err := e.begin(ctx); err != nil {
		return e.fail(ctx, err)
	}

	err := e.step(ctx, saga.StepPermissionValidation, func(ctx context.Context) error {
		allowed, err := o.permissions.Validate(ctx, p.token, desc.Capability)
		if err != nil {
			return fmt.Errorf("permission check failed: %w", err)
		}
		if !allowed {
			return fmt.Errorf("%w: capability %s", saga.ErrPermissionDenied, desc.Capability)
		}
		return nil
	})
	if err != nil {
		return e.fail(ctx, err)
	}
	flags.UserValidated = true
	base.Status = saga.StateStatusInProgress
	if err := e.checkpoint(ctx, saga.RecordStatusInProgress); err != nil {
		return e.fail(ctx, err)
	}

	if err := e.step(ctx, desc.MutationStep, func(ctx context.Context) error {
		return p.mutate(ctx, e)
	}); err != nil {
		return e.fail(ctx, err)
	}
	flags.MutationApplied = true
	if err := e.checkpoint(ctx, ""); err != nil {
		return e.fail(ctx, err)
	}

	if err := e.step(ctx, saga.StepPublishEvent, func(ctx context.Context) error {
		return o.events.Publish(ctx, desc.Event, p.event(), base.CorrelationID)
	}); err != nil {
		return e.fail(ctx, err)
	}
	flags.EventPublished = true
	base.Finish(saga.StateStatusCompleted, o.now())
	if err := e.checkpoint(ctx, saga.RecordStatusCompleted); err != nil {
		return e.fail(ctx, err)
	}

	e.logger.Info("Saga completed", zap.String("asset_id", p.state.AssetRef()))
	return e.result(true, saga.OutcomeSucceeded, fmt.Sprintf("%s saga completed successfully", sagaType))
}

// begin persists the Pending record.
func (e *execution) begin(ctx context.Context) error {
	payload, err := saga.EncodeState(e.plan.state)
	if err != nil {
		return err
	}
	base := e.plan.state.Base()
	rec := &saga.SagaRecord{
		SagaID:        base.SagaID,
		CorrelationID: base.CorrelationID,
		SagaType:      e.plan.state.SagaType(),
		StatePayload:  payload,
		Status:        saga.RecordStatusPending,
		MaxRetries:    base.MaxRetries,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		rec.TraceID = sc.TraceID().String()
	}

	stored, err := e.o.records.Add(context.WithoutCancel(ctx), rec)
	if err != nil {
		return saga.NewStorageError("add", err)
	}
	e.record = stored
	e.logger.Debug("Saga record created", zap.String("record_id", stored.ID))
	return nil
}

// checkpoint re-persists the state and, when status is set, moves the record to it.
// Writes are detached from cancellation so progress that already happened is recorded.
func (e *execution) checkpoint(ctx context.Context, status saga.RecordStatus) error {
	ctx = context.WithoutCancel(ctx)
	payload, err := saga.EncodeState(e.plan.state)
	if err != nil {
		return err
	}
	found, err := e.o.records.SaveState(ctx, e.record.ID, payload)
	if err != nil {
		return saga.NewStorageError("save_state", err)
	}
	if !found {
		return saga.NewStorageError("save_state", saga.ErrRecordNotFound)
	}
	if status == "" || status == e.record.Status {
		return nil
	}
	return e.setStatus(ctx, status)
}

func (e *execution) setStatus(ctx context.Context, status saga.RecordStatus) error {
	found, err := e.o.records.UpdateStatus(ctx, e.record.ID, status)
	if err != nil {
		return saga.NewStorageError("update_status", err)
	}
	if !found {
		return saga.NewStorageError("update_status", saga.ErrRecordNotFound)
	}
	e.record.Status = status
	return nil
}

// step runs fn as the named step. A cancelled context skips the step.
func (e *execution) step(ctx context.Context, name string, fn func(context.Context) error) error {
	e.current, e.since = name, e.o.now()

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("step %s not started: %w", name, err)
		e.completeStep(err)
		return err
	}

	stepCtx, span := e.o.tracer.Start(ctx, "saga.step."+name, trace.WithAttributes(
		attribute.String("saga.step", name),
	))
	defer span.End()

	if e.o.stepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(stepCtx, e.o.stepTimeout)
		defer cancel()
	}

	err := fn(stepCtx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	e.completeStep(err)
	return err
}

func (e *execution) completeStep(err error) {
	name := e.current
	e.current = ""
	completedAt := e.o.now()
	duration := completedAt.Sub(e.since)
	base := e.plan.state.Base()

	res := saga.SagaStepResult{
		StepName:    name,
		IsSuccess:   err == nil,
		ExecutedAt:  e.since,
		CompletedAt: completedAt,
		Duration:    duration,
	}
	if err != nil {
		res.Message = err.Error()
		base.StepFailed(name, err)
		e.logger.Warn("Saga step failed", zap.String("step", name), zap.Error(err))
	} else {
		res.Message = fmt.Sprintf("%s succeeded", name)
		base.StepCompleted(name)
		e.logger.Debug("Saga step completed", zap.String("step", name), zap.Duration("duration", duration))
	}
	e.steps = append(e.steps, res)
	e.o.metrics.RecordStepExecuted(e.plan.state.SagaType(), name, err == nil, duration)
}

// fail ends the saga after cause. A committed mutation is compensated before the
// record is marked Failed, and the record moves on to Compensated when that succeeded.
func (e *execution) fail(ctx context.Context, cause error) *saga.SagaResult {
	ctx = context.WithoutCancel(ctx)
	if e.current != "" {
		e.completeStep(cause)
	}

	state := e.plan.state
	base := state.Base()
	outcome := saga.OutcomeFailedClean
	final := saga.StateStatusFailed
	message := fmt.Sprintf("%s saga failed: %v", state.SagaType(), cause)

	if state.Flags().MutationApplied {
		res, err := e.o.runCompensator(ctx, state)
		e.steps = append(e.steps, res)
		if err != nil {
			base.StepFailed(res.StepName, err)
			outcome = saga.OutcomeFailedCompensationFailed
			message += fmt.Sprintf("; compensation failed: %v", err)
			e.logger.Error("Saga compensation failed", zap.Error(err))
		} else {
			outcome = saga.OutcomeFailedCompensated
			final = saga.StateStatusCompensated
			message += "; compensation succeeded"
		}
	}
	base.Finish(final, e.o.now())

	if e.record != nil {
		e.settle(ctx, outcome)
	}

	e.logger.Warn("Saga failed",
		zap.String("outcome", outcome.String()),
		zap.Strings("completed_steps", base.CompletedSteps),
		zap.Error(cause))
	return e.result(false, outcome, message)
}

// settle writes the final state and walks the record to its terminal status. Errors are
// logged only: the caller already has a failure result.
func (e *execution) settle(ctx context.Context, outcome saga.Outcome) {
	payload, err := saga.EncodeState(e.plan.state)
	if err == nil {
		_, err = e.o.records.SaveState(ctx, e.record.ID, payload)
	}
	if err != nil {
		e.logger.Error("Failed to persist final saga state", zap.Error(err))
	}

	if err := e.setStatus(ctx, saga.RecordStatusFailed); err != nil {
		e.logger.Error("Failed to mark saga record failed", zap.Error(err))
		return
	}
	if outcome == saga.OutcomeFailedCompensated {
		if err := e.setStatus(ctx, saga.RecordStatusCompensated); err != nil {
			e.logger.Error("Failed to mark saga record compensated", zap.Error(err))
		}
	}
}

func (e *execution) result(success bool, outcome saga.Outcome, message string) *saga.SagaResult {
	return &saga.SagaResult{
		IsSuccess:   success,
		SagaID:      e.plan.state.Base().SagaID,
		Outcome:     outcome,
		Message:     message,
		Steps:       e.steps,
		CompletedAt: e.o.now(),
	}
}

// rejected reports a request that failed validation. No record is written.
func (o *Orchestrator) rejected(sagaType saga.SagaType, err error) *saga.SagaResult {
	logger.GetLogger().Warn("Rejected saga request",
		zap.String("saga_type", sagaType.String()),
		zap.Error(err))
	return &saga.SagaResult{
		IsSuccess:   false,
		Outcome:     saga.OutcomeFailedClean,
		Message:     fmt.Sprintf("%v: %v", saga.ErrInvalidRequest, err),
		Steps:       []saga.SagaStepResult{},
		CompletedAt: o.now(),
	}
}

func correlationID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

// normalizeMask drops duplicates and expands an empty mask to every field.
func normalizeMask(mask []string) []string {
	if len(mask) == 0 {
		return append([]string(nil), saga.AllAssetFields...)
	}
	seen := make(map[string]bool, len(mask))
	out := make([]string, 0, len(mask))
	for _, f := range mask {
		if !seen[f] {
			seen[f] = true
			out = append(out, f)
		}
	}
	return out
}

var fieldStructNames = map[string]string{
	saga.FieldName:           "Name",
	saga.FieldType:           "AssetType",
	saga.FieldManufacturer:   "Manufacturer",
	saga.FieldLocation:       "Location",
	saga.FieldStatus:         "Status",
	saga.FieldWarrantyExpiry: "WarrantyExpiry",
}

func structFields(mask []string) []string {
	out := make([]string, 0, len(mask))
	for _, f := range mask {
		if name, ok := fieldStructNames[f]; ok {
			out = append(out, name)
		}
	}
	return out
}
