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

package saga

// SagaType identifies which business operation a saga runs. It doubles as the tag
// that selects the concrete State shape stored in a record's payload.
type SagaType string

const (
	// SagaTypeAssetCreation creates a new asset.
	SagaTypeAssetCreation SagaType = "AssetCreation"

	// SagaTypeAssetUpdate overwrites fields of an existing asset.
	SagaTypeAssetUpdate SagaType = "AssetUpdate"

	// SagaTypeAssetDeletion removes an existing asset.
	SagaTypeAssetDeletion SagaType = "AssetDeletion"
)

// String returns the string representation of the SagaType.
func (t SagaType) String() string {
	return string(t)
}

// Valid reports whether t is one of the known saga types.
func (t SagaType) Valid() bool {
	switch t {
	case SagaTypeAssetCreation, SagaTypeAssetUpdate, SagaTypeAssetDeletion:
		return true
	default:
		return false
	}
}

// RecordStatus is the durable lifecycle status of a SagaRecord.
//
// Status only moves forward: Pending -> InProgress -> {Completed | Failed} -> Compensated.
// A Pending record may fail directly when the first step is rejected.
type RecordStatus string

const (
	// RecordStatusPending indicates the record is persisted but no step has succeeded yet.
	RecordStatusPending RecordStatus = "Pending"

	// RecordStatusInProgress indicates at least the permission step succeeded.
	RecordStatusInProgress RecordStatus = "InProgress"

	// RecordStatusCompleted indicates all steps succeeded.
	RecordStatusCompleted RecordStatus = "Completed"

	// RecordStatusFailed indicates the saga stopped on a failure.
	RecordStatusFailed RecordStatus = "Failed"

	// RecordStatusCompensated indicates partial work has been undone.
	RecordStatusCompensated RecordStatus = "Compensated"
)

// String returns the string representation of the RecordStatus.
func (s RecordStatus) String() string {
	return string(s)
}

// Valid reports whether s is one of the known record statuses.
func (s RecordStatus) Valid() bool {
	switch s {
	case RecordStatusPending, RecordStatusInProgress, RecordStatusCompleted,
		RecordStatusFailed, RecordStatusCompensated:
		return true
	default:
		return false
	}
}

// IsTerminal returns true for Completed, Failed and Compensated.
func (s RecordStatus) IsTerminal() bool {
	return s == RecordStatusCompleted || s == RecordStatusFailed || s == RecordStatusCompensated
}

// CanTransitionTo reports whether a record in status s may move to next.
// Re-applying the current status is always allowed and is a no-op for callers.
// Completed may still fall to Failed when a later compensation of it fails; no
// terminal status ever returns to Pending or InProgress.
func (s RecordStatus) CanTransitionTo(next RecordStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	switch s {
	case RecordStatusPending:
		return next == RecordStatusInProgress || next == RecordStatusFailed
	case RecordStatusInProgress:
		return next == RecordStatusCompleted || next == RecordStatusFailed
	case RecordStatusCompleted:
		return next == RecordStatusCompensated || next == RecordStatusFailed
	case RecordStatusFailed:
		return next == RecordStatusCompensated
	default:
		return false
	}
}

// StateStatus is the in-memory status tracked inside a SagaState payload.
type StateStatus string

const (
	StateStatusStarted     StateStatus = "Started"
	StateStatusInProgress  StateStatus = "InProgress"
	StateStatusCompleted   StateStatus = "Completed"
	StateStatusFailed      StateStatus = "Failed"
	StateStatusCompensated StateStatus = "Compensated"
)

// Outcome classifies how a saga call ended. It replaces parsing the result message
// to tell a clean failure from a compensated one.
type Outcome string

const (
	// OutcomeSucceeded means every step succeeded.
	OutcomeSucceeded Outcome = "Succeeded"

	// OutcomeFailedClean means the saga failed before any side effect committed.
	OutcomeFailedClean Outcome = "FailedClean"

	// OutcomeFailedCompensated means a committed side effect was undone.
	OutcomeFailedCompensated Outcome = "FailedCompensated"

	// OutcomeFailedCompensationFailed means a committed side effect could not be undone.
	OutcomeFailedCompensationFailed Outcome = "FailedCompensationFailed"
)

// String returns the string representation of the Outcome.
func (o Outcome) String() string {
	return string(o)
}

// Step names, in execution order.
const (
	StepPermissionValidation = "PermissionValidation"
	StepCreateAsset          = "CreateAsset"
	StepUpdateAsset          = "UpdateAsset"
	StepDeleteAsset          = "DeleteAsset"
	StepPublishEvent         = "PublishEvent"
)

// Compensation step names reported in SagaResult.Steps.
const (
	StepCompensateCreateAsset = "CompensateCreateAsset"
	StepCompensateUpdateAsset = "CompensateUpdateAsset"
	StepCompensateDeleteAsset = "CompensateDeleteAsset"
)

// EventType is the domain event announced by the last step of a saga.
type EventType string

const (
	EventAssetCreated EventType = "AssetCreated"
	EventAssetUpdated EventType = "AssetUpdated"
	EventAssetDeleted EventType = "AssetDeleted"
)

// String returns the string representation of the EventType.
func (e EventType) String() string {
	return string(e)
}

// Capability is the permission a caller needs to run a saga.
type Capability string

const (
	CapabilityAssetCreate Capability = "asset:create"
	CapabilityAssetUpdate Capability = "asset:update"
	CapabilityAssetDelete Capability = "asset:delete"
)

// DefaultMaxRetries is used when a record is created without an explicit limit.
const DefaultMaxRetries = 3

// Descriptor returns the static parts of a saga type: its capability, mutation step,
// compensation step and announced event. ok is false for unknown types.
func (t SagaType) Descriptor() (d Descriptor, ok bool) {
	switch t {
	case SagaTypeAssetCreation:
		return Descriptor{CapabilityAssetCreate, StepCreateAsset, StepCompensateCreateAsset, EventAssetCreated}, true
	case SagaTypeAssetUpdate:
		return Descriptor{CapabilityAssetUpdate, StepUpdateAsset, StepCompensateUpdateAsset, EventAssetUpdated}, true
	case SagaTypeAssetDeletion:
		return Descriptor{CapabilityAssetDelete, StepDeleteAsset, StepCompensateDeleteAsset, EventAssetDeleted}, true
	default:
		return Descriptor{}, false
	}
}

// Descriptor groups the per-type constants used by the orchestrator.
type Descriptor struct {
	Capability       Capability
	MutationStep     string
	CompensationStep string
	Event            EventType
}

// StepSequence returns the ordered step names of a successful saga of type t.
func (t SagaType) StepSequence() []string {
	d, ok := t.Descriptor()
	if !ok {
		return nil
	}
	return []string{StepPermissionValidation, d.MutationStep, StepPublishEvent}
}
