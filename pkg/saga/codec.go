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
	"bytes"
	"encoding/json"
	"fmt"
)

// StateSchemaVersion is written into every encoded state payload.
// Bump it when a state shape changes incompatibly and teach DecodeState the old layout.
const StateSchemaVersion = 1

// stateEnvelope is the self-describing wrapper stored in SagaRecord.StatePayload.
type stateEnvelope struct {
	SchemaVersion int             `json:"schemaVersion"`
	SagaType      SagaType        `json:"sagaType"`
	State         json.RawMessage `json:"state"`
}

// EncodeState serializes s into a versioned envelope.
func EncodeState(s State) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: nil state", ErrMalformedStatePayload)
	}
	body, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s state: %w", s.SagaType(), err)
	}
	return json.Marshal(stateEnvelope{
		SchemaVersion: StateSchemaVersion,
		SagaType:      s.SagaType(),
		State:         body,
	})
}

// DecodeState turns a payload back into the concrete state selected by sagaType.
// The envelope's own tag must agree with sagaType.
func DecodeState(sagaType SagaType, payload []byte) (State, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrMalformedStatePayload)
	}

	var env stateEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStatePayload, err)
	}
	if env.SchemaVersion < 1 || env.SchemaVersion > StateSchemaVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedSchemaVersion, env.SchemaVersion)
	}
	if env.SagaType != sagaType {
		return nil, fmt.Errorf("%w: payload tagged %q but record is %q", ErrMalformedStatePayload, env.SagaType, sagaType)
	}
	if len(env.State) == 0 || bytes.Equal(bytes.TrimSpace(env.State), []byte("null")) {
		return nil, fmt.Errorf("%w: missing state body", ErrMalformedStatePayload)
	}

	var s State
	switch sagaType {
	case SagaTypeAssetCreation:
		s = &AssetCreationState{}
	case SagaTypeAssetUpdate:
		s = &AssetUpdateState{}
	case SagaTypeAssetDeletion:
		s = &AssetDeletionState{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSagaType, sagaType)
	}
	if err := json.Unmarshal(env.State, s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedStatePayload, err)
	}
	return s, nil
}
