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
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Compensate undoes whatever the saga identified by sagaID committed, using only its
// durable record. It can be called out of band and any number of times.
//
// An unknown sagaID yields a *saga.SagaError matching saga.ErrSagaNotFound, and an
// undecodable payload yields one wrapping the codec error. A compensator failure is
// reported through the result, not the error, and leaves the record Failed.
func (o *Orchestrator) Compensate(ctx context.Context, sagaID string) (*saga.SagaResult, error) {
	rec, err := o.records.GetBySagaID(ctx, sagaID)
	if err != nil {
		if errors.Is(err, saga.ErrRecordNotFound) {
			return nil, saga.NewSagaNotFoundError(sagaID)
		}
		return nil, saga.NewStorageError("get_by_saga_id", err)
	}

	state, err := saga.DecodeState(rec.SagaType, rec.StatePayload)
	if err != nil {
		return nil, saga.NewStateDecodeError(sagaID, rec.SagaType, err)
	}

	log := logger.GetLogger().With(
		zap.String("saga_id", sagaID),
		zap.String("saga_type", rec.SagaType.String()),
		zap.String("record_status", rec.Status.String()),
	)

	if rec.Status == saga.RecordStatusCompensated {
		log.Info("Saga already compensated")
		return &saga.SagaResult{
			IsSuccess:   true,
			SagaID:      sagaID,
			Outcome:     saga.OutcomeFailedCompensated,
			Message:     "saga already compensated",
			Steps:       []saga.SagaStepResult{},
			CompletedAt: o.now(),
		}, nil
	}

	ctx, span := o.tracer.Start(ctx, "saga.Compensate", trace.WithAttributes(
		attribute.String("saga.id", sagaID),
		attribute.String("saga.type", rec.SagaType.String()),
	))
	defer span.End()
	writeCtx := context.WithoutCancel(ctx)

	// A record left Pending or InProgress belongs to a call that never finished.
	if !rec.Status.IsTerminal() {
		if _, err := o.records.UpdateStatus(writeCtx, rec.ID, saga.RecordStatusFailed); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, saga.NewStorageError("update_status", err)
		}
	}

	res, cerr := o.runCompensator(ctx, state)
	base := state.Base()

	if cerr != nil {
		base.StepFailed(res.StepName, cerr)
		o.saveState(writeCtx, rec.ID, state, log)
		// A Completed saga whose undo failed needs repair like any other failed one.
		if rec.Status == saga.RecordStatusCompleted {
			if _, err := o.records.UpdateStatus(writeCtx, rec.ID, saga.RecordStatusFailed); err != nil {
				span.SetStatus(codes.Error, err.Error())
				return nil, saga.NewStorageError("update_status", err)
			}
		}
		span.SetStatus(codes.Error, cerr.Error())
		log.Error("Saga compensation failed", zap.Error(cerr))
		return &saga.SagaResult{
			IsSuccess:   false,
			SagaID:      sagaID,
			Outcome:     saga.OutcomeFailedCompensationFailed,
			Message:     fmt.Sprintf("compensation of %s saga failed: %v", rec.SagaType, cerr),
			Steps:       []saga.SagaStepResult{res},
			CompletedAt: o.now(),
		}, nil
	}

	base.Finish(saga.StateStatusCompensated, o.now())
	o.saveState(writeCtx, rec.ID, state, log)
	if _, err := o.records.UpdateStatus(writeCtx, rec.ID, saga.RecordStatusCompensated); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, saga.NewStorageError("update_status", err)
	}

	span.SetStatus(codes.Ok, "")
	log.Info("Saga compensated")
	return &saga.SagaResult{
		IsSuccess:   true,
		SagaID:      sagaID,
		Outcome:     saga.OutcomeFailedCompensated,
		Message:     fmt.Sprintf("%s saga compensated", rec.SagaType),
		Steps:       []saga.SagaStepResult{res},
		CompletedAt: o.now(),
	}, nil
}

func (o *Orchestrator) saveState(ctx context.Context, id string, state saga.State, log *zap.Logger) {
	payload, err := saga.EncodeState(state)
	if err == nil {
		_, err = o.records.SaveState(ctx, id, payload)
	}
	if err != nil {
		log.Error("Failed to persist compensated saga state", zap.Error(err))
	}
}

// runCompensator dispatches on the state shape. Step flags are the only input that
// decides how far to unwind.
func (o *Orchestrator) runCompensator(ctx context.Context, state saga.State) (res saga.SagaStepResult, err error) {
	sagaType := state.SagaType()
	desc, _ := sagaType.Descriptor()
	startedAt := o.now()

	ctx, span := o.tracer.Start(ctx, "saga.step."+desc.CompensationStep, trace.WithAttributes(
		attribute.String("saga.step", desc.CompensationStep),
		attribute.String("saga.asset_id", state.AssetRef()),
	))

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("compensator panicked: %v", r)
		}
		completedAt := o.now()
		res = saga.SagaStepResult{
			StepName:    desc.CompensationStep,
			IsSuccess:   err == nil,
			Message:     fmt.Sprintf("%s succeeded", desc.CompensationStep),
			ExecutedAt:  startedAt,
			CompletedAt: completedAt,
			Duration:    completedAt.Sub(startedAt),
		}
		if err != nil {
			err = saga.NewCompensationFailedError(desc.CompensationStep, err)
			res.Message = err.Error()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		o.metrics.RecordCompensation(sagaType, err == nil, res.Duration)
	}()

	if o.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.stepTimeout)
		defer cancel()
	}

	switch s := state.(type) {
	case *saga.AssetCreationState:
		err = o.compensateCreation(ctx, s)
	case *saga.AssetUpdateState:
		err = o.compensateUpdate(ctx, s)
	case *saga.AssetDeletionState:
		err = o.compensateDeletion(ctx, s)
	default:
		err = fmt.Errorf("%w: %T", saga.ErrUnknownSagaType, state)
	}
	return res, err
}

// compensateCreation deletes the created asset. A missing asset is already compensated.
func (o *Orchestrator) compensateCreation(ctx context.Context, s *saga.AssetCreationState) error {
	if !s.MutationApplied {
		return nil
	}
	if _, err := o.assets.Get(ctx, s.AssetID); err != nil {
		if errors.Is(err, saga.ErrAssetNotFound) {
			return nil
		}
		return err
	}
	if err := o.assets.Delete(ctx, s.AssetID); err != nil && !errors.Is(err, saga.ErrAssetNotFound) {
		return err
	}
	return nil
}

// compensateUpdate writes the captured originals back. A missing asset has nothing to revert.
func (o *Orchestrator) compensateUpdate(ctx context.Context, s *saga.AssetUpdateState) error {
	if !s.MutationApplied {
		return nil
	}
	if !s.OriginalCaptured {
		return errors.New("original field values were not captured")
	}
	if _, err := o.assets.Get(ctx, s.AssetID); err != nil {
		if errors.Is(err, saga.ErrAssetNotFound) {
			return nil
		}
		return err
	}
	err := o.assets.Update(ctx, s.AssetID, s.Original, s.ChangedFields)
	if errors.Is(err, saga.ErrAssetNotFound) {
		return nil
	}
	return err
}

// compensateDeletion re-inserts the captured asset. An asset already present under the
// same id means an earlier run restored it.
func (o *Orchestrator) compensateDeletion(ctx context.Context, s *saga.AssetDeletionState) error {
	if !s.MutationApplied {
		return nil
	}
	if s.Deleted == nil {
		return errors.New("deleted asset was not captured")
	}
	_, err := o.assets.Get(ctx, s.AssetID)
	if err == nil {
		return nil
	}
	if !errors.Is(err, saga.ErrAssetNotFound) {
		return err
	}
	if err := o.assets.Restore(ctx, s.Deleted.Clone()); err != nil && !errors.Is(err, saga.ErrAssetExists) {
		return err
	}
	return nil
}
