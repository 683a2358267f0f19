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

// SagaStepResult reports the execution of one step.
type SagaStepResult struct {
	StepName    string        `json:"stepName"`
	IsSuccess   bool          `json:"isSuccess"`
	Message     string        `json:"message"`
	ExecutedAt  time.Time     `json:"executedAt"`
	CompletedAt time.Time     `json:"completedAt"`
	Duration    time.Duration `json:"duration"`
}

// SagaResult is returned to callers of the orchestrator.
type SagaResult struct {
	IsSuccess   bool             `json:"isSuccess"`
	SagaID      string           `json:"sagaId"`
	Outcome     Outcome          `json:"outcome"`
	Message     string           `json:"message"`
	Steps       []SagaStepResult `json:"steps"`
	CompletedAt time.Time        `json:"completedAt"`
}

// StepNames returns the names of the reported steps in order.
func (r *SagaResult) StepNames() []string {
	names := make([]string, 0, len(r.Steps))
	for _, s := range r.Steps {
		names = append(names, s.StepName)
	}
	return names
}
