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

package cmd

import (
	"encoding/json"
	"errors"

	"github.com/spf13/cobra"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// recordView prints the state payload as JSON instead of base64.
type recordView struct {
	*saga.SagaRecord
	StatePayload json.RawMessage `json:"statePayload,omitempty"`
}

func newRecordView(rec *saga.SagaRecord) recordView {
	return recordView{SagaRecord: rec, StatePayload: json.RawMessage(rec.StatePayload)}
}

func newRecordsCmd(a *app) *cobra.Command {
	var (
		sagaID        string
		correlationID string
		status        string
		sagaType      string
	)
	cmd := &cobra.Command{
		Use:   "records",
		Short: "Look up saga records",
		Long:  "Look up one record by --saga-id or --correlation-id, or list records by --status or --type (newest first).",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			ctx := cmd.Context()

			var records []*saga.SagaRecord
			switch {
			case sagaID != "":
				rec, err := d.Records.GetBySagaID(ctx, sagaID)
				if err != nil {
					return err
				}
				records = []*saga.SagaRecord{rec}
			case correlationID != "":
				rec, err := d.Records.GetByCorrelationID(ctx, correlationID)
				if err != nil {
					return err
				}
				records = []*saga.SagaRecord{rec}
			case status != "":
				s := saga.RecordStatus(status)
				if !s.Valid() {
					return errors.New("unknown --status " + status)
				}
				if records, err = d.Records.ListByStatus(ctx, s); err != nil {
					return err
				}
			case sagaType != "":
				st := saga.SagaType(sagaType)
				if !st.Valid() {
					return errors.New("unknown --type " + sagaType)
				}
				if records, err = d.Records.ListBySagaType(ctx, st); err != nil {
					return err
				}
			default:
				return errors.New("one of --saga-id, --correlation-id, --status or --type is required")
			}

			views := make([]recordView, 0, len(records))
			for _, rec := range records {
				views = append(views, newRecordView(rec))
			}
			return a.print(cmd, views)
		},
	}
	cmd.Flags().StringVar(&sagaID, "saga-id", "", "saga id")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id")
	cmd.Flags().StringVar(&status, "status", "", "record status (Pending, InProgress, Completed, Failed, Compensated)")
	cmd.Flags().StringVar(&sagaType, "type", "", "saga type (AssetCreation, AssetUpdate, AssetDeletion)")
	return cmd
}
