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

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from RecordStatus
		to   RecordStatus
		want bool
	}{
		{RecordStatusPending, RecordStatusInProgress, true},
		{RecordStatusPending, RecordStatusFailed, true},
		{RecordStatusPending, RecordStatusCompleted, false},
		{RecordStatusPending, RecordStatusCompensated, false},
		{RecordStatusInProgress, RecordStatusCompleted, true},
		{RecordStatusInProgress, RecordStatusFailed, true},
		{RecordStatusInProgress, RecordStatusPending, false},
		{RecordStatusInProgress, RecordStatusCompensated, false},
		{RecordStatusCompleted, RecordStatusCompensated, true},
		{RecordStatusCompleted, RecordStatusInProgress, false},
		{RecordStatusCompleted, RecordStatusFailed, true},
		{RecordStatusFailed, RecordStatusCompleted, false},
		{RecordStatusFailed, RecordStatusCompensated, true},
		{RecordStatusFailed, RecordStatusPending, false},
		{RecordStatusFailed, RecordStatusInProgress, false},
		{RecordStatusCompensated, RecordStatusFailed, false},
		{RecordStatusCompensated, RecordStatusCompensated, true},
		{RecordStatusFailed, RecordStatusFailed, true},
		{RecordStatusPending, RecordStatus("Bogus"), false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestRecordStatus_IsTerminal(t *testing.T) {
	assert.False(t, RecordStatusPending.IsTerminal())
	assert.False(t, RecordStatusInProgress.IsTerminal())
	assert.True(t, RecordStatusCompleted.IsTerminal())
	assert.True(t, RecordStatusFailed.IsTerminal())
	assert.True(t, RecordStatusCompensated.IsTerminal())
}

func TestSagaType_Descriptor(t *testing.T) {
	d, ok := SagaTypeAssetUpdate.Descriptor()
	require.True(t, ok)
	assert.Equal(t, CapabilityAssetUpdate, d.Capability)
	assert.Equal(t, StepUpdateAsset, d.MutationStep)
	assert.Equal(t, EventAssetUpdated, d.Event)

	assert.Equal(t, []string{StepPermissionValidation, StepDeleteAsset, StepPublishEvent},
		SagaTypeAssetDeletion.StepSequence())

	_, ok = SagaType("AssetTransfer").Descriptor()
	assert.False(t, ok)
	assert.Nil(t, SagaType("AssetTransfer").StepSequence())
	assert.False(t, SagaType("AssetTransfer").Valid())
}

func TestSagaRecord_ApplyStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	rec := &SagaRecord{Status: RecordStatusPending}

	require.NoError(t, rec.ApplyStatus(RecordStatusInProgress, now))
	assert.Nil(t, rec.CompletedAt)
	assert.Equal(t, now, rec.UpdatedAt)

	require.NoError(t, rec.ApplyStatus(RecordStatusFailed, now.Add(time.Second)))
	require.NotNil(t, rec.CompletedAt)
	assert.Equal(t, now.Add(time.Second), *rec.CompletedAt)

	assert.ErrorIs(t, rec.ApplyStatus(RecordStatusInProgress, now), ErrInvalidStatusTransition)
	assert.Equal(t, RecordStatusFailed, rec.Status)

	require.NoError(t, rec.ApplyStatus(RecordStatusCompensated, now.Add(2*time.Second)))
	assert.Equal(t, now.Add(2*time.Second), *rec.CompletedAt)
}

func TestSagaRecord_DueForRetry(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	assert.True(t, (&SagaRecord{Status: RecordStatusFailed, MaxRetries: 3}).DueForRetry(now))
	assert.True(t, (&SagaRecord{Status: RecordStatusFailed, MaxRetries: 3, NextRetryAt: &past}).DueForRetry(now))
	assert.True(t, (&SagaRecord{Status: RecordStatusFailed, MaxRetries: 3, NextRetryAt: &now}).DueForRetry(now))
	assert.False(t, (&SagaRecord{Status: RecordStatusFailed, MaxRetries: 3, NextRetryAt: &future}).DueForRetry(now))
	assert.False(t, (&SagaRecord{Status: RecordStatusFailed, MaxRetries: 3, RetryCount: 3}).DueForRetry(now))
	assert.False(t, (&SagaRecord{Status: RecordStatusCompensated, MaxRetries: 3}).DueForRetry(now))
}

func TestSagaRecord_CloneIsDeep(t *testing.T) {
	next := time.Now()
	rec := &SagaRecord{StatePayload: []byte(`{"a":1}`), NextRetryAt: &next}

	c := rec.Clone()
	c.StatePayload[0] = 'X'
	*c.NextRetryAt = next.Add(time.Hour)

	assert.Equal(t, byte('{'), rec.StatePayload[0])
	assert.Equal(t, next, *rec.NextRetryAt)
}

func TestAssetFields_Apply(t *testing.T) {
	warranty := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	dst := AssetFields{Name: "Old", AssetType: "Laptop", Location: "HQ", Status: "Active", WarrantyExpiry: &warranty}
	src := AssetFields{Name: "New", AssetType: "Server", Location: "DC-2", Status: "Retired"}

	dst.Apply(src, []string{FieldName, FieldLocation, FieldWarrantyExpiry, "unknown"})

	assert.Equal(t, "New", dst.Name)
	assert.Equal(t, "Laptop", dst.AssetType)
	assert.Equal(t, "DC-2", dst.Location)
	assert.Equal(t, "Active", dst.Status)
	assert.Nil(t, dst.WarrantyExpiry)
	assert.True(t, IsAssetField(FieldManufacturer))
	assert.False(t, IsAssetField("colour"))
}
