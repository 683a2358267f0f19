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

import "time"

// State is the working state of one in-flight saga. It is a closed sum type:
// the only implementations are AssetCreationState, AssetUpdateState and
// AssetDeletionState, and SagaType() is the tag that tells them apart.
type State interface {
	SagaType() SagaType
	Base() *BaseState
	Flags() *StepFlags
	AssetRef() string

	sealed()
}

// BaseState is shared by every state shape.
type BaseState struct {
	SagaID         string      `json:"sagaId"`
	CorrelationID  string      `json:"correlationId"`
	Status         StateStatus `json:"status"`
	StartedAt      time.Time   `json:"startedAt"`
	CompletedAt    *time.Time  `json:"completedAt,omitempty"`
	RetryCount     int         `json:"retryCount"`
	MaxRetries     int         `json:"maxRetries"`
	CompletedSteps []string    `json:"completedSteps"`
	FailedSteps    []string    `json:"failedSteps"`
	Errors         []string    `json:"errors"`
}

// NewBaseState returns a Started base state.
func NewBaseState(sagaID, correlationID string, maxRetries int, now time.Time) BaseState {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return BaseState{
		SagaID:         sagaID,
		CorrelationID:  correlationID,
		Status:         StateStatusStarted,
		StartedAt:      now,
		MaxRetries:     maxRetries,
		CompletedSteps: []string{},
		FailedSteps:    []string{},
		Errors:         []string{},
	}
}

// StepCompleted appends step to the completed list.
func (b *BaseState) StepCompleted(step string) {
	b.CompletedSteps = append(b.CompletedSteps, step)
}

// StepFailed appends step to the failed list and records the error text.
func (b *BaseState) StepFailed(step string, err error) {
	b.FailedSteps = append(b.FailedSteps, step)
	if err != nil {
		b.Errors = append(b.Errors, step+": "+err.Error())
	}
}

// Finish moves the state to a terminal status.
func (b *BaseState) Finish(status StateStatus, now time.Time) {
	b.Status = status
	b.CompletedAt = &now
}

// StepFlags record which steps committed. They are set strictly in order and are the
// only input compensation uses to decide how far to unwind.
type StepFlags struct {
	UserValidated   bool `json:"userValidated"`
	MutationApplied bool `json:"mutationApplied"`
	EventPublished  bool `json:"eventPublished"`
}

// AssetCreationState tracks a create saga.
type AssetCreationState struct {
	BaseState
	StepFlags

	// AssetID is assigned before the mutation runs so compensation knows what to delete.
	AssetID string      `json:"assetId"`
	Target  AssetFields `json:"target"`
}

func (s *AssetCreationState) SagaType() SagaType { return SagaTypeAssetCreation }
func (s *AssetCreationState) Base() *BaseState   { return &s.BaseState }
func (s *AssetCreationState) Flags() *StepFlags  { return &s.StepFlags }
func (s *AssetCreationState) AssetRef() string   { return s.AssetID }
func (s *AssetCreationState) sealed()            {}

// AssetUpdateState tracks an update saga.
type AssetUpdateState struct {
	BaseState
	StepFlags

	AssetID       string      `json:"assetId"`
	Target        AssetFields `json:"target"`
	ChangedFields []string    `json:"changedFields"`

	// Original holds the pre-mutation values of ChangedFields. It is captured and
	// persisted before the mutation step and is the only input to compensation.
	Original         AssetFields `json:"original"`
	OriginalCaptured bool        `json:"originalCaptured"`
}

func (s *AssetUpdateState) SagaType() SagaType { return SagaTypeAssetUpdate }
func (s *AssetUpdateState) Base() *BaseState   { return &s.BaseState }
func (s *AssetUpdateState) Flags() *StepFlags  { return &s.StepFlags }
func (s *AssetUpdateState) AssetRef() string   { return s.AssetID }
func (s *AssetUpdateState) sealed()            {}

// AssetDeletionState tracks a delete saga.
type AssetDeletionState struct {
	BaseState
	StepFlags

	AssetID string `json:"assetId"`

	// Deleted is the full asset as it was immediately before removal.
	Deleted *Asset `json:"deleted,omitempty"`
}

func (s *AssetDeletionState) SagaType() SagaType { return SagaTypeAssetDeletion }
func (s *AssetDeletionState) Base() *BaseState   { return &s.BaseState }
func (s *AssetDeletionState) Flags() *StepFlags  { return &s.StepFlags }
func (s *AssetDeletionState) AssetRef() string   { return s.AssetID }
func (s *AssetDeletionState) sealed()            {}
