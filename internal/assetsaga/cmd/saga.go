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
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// fieldFlags binds the asset field flags shared by create and update.
type fieldFlags struct {
	name           string
	assetType      string
	manufacturer   string
	location       string
	status         string
	warrantyExpiry string
}

var fieldFlagNames = map[string]string{
	"name":            saga.FieldName,
	"type":            saga.FieldType,
	"manufacturer":    saga.FieldManufacturer,
	"location":        saga.FieldLocation,
	"status":          saga.FieldStatus,
	"warranty-expiry": saga.FieldWarrantyExpiry,
}

func (f *fieldFlags) bind(fs *pflag.FlagSet) {
	fs.StringVar(&f.name, "name", "", "asset name")
	fs.StringVar(&f.assetType, "type", "", "asset type")
	fs.StringVar(&f.manufacturer, "manufacturer", "", "manufacturer")
	fs.StringVar(&f.location, "location", "", "location")
	fs.StringVar(&f.status, "status", "", "asset status")
	fs.StringVar(&f.warrantyExpiry, "warranty-expiry", "", "warranty expiry date (YYYY-MM-DD or RFC3339, empty clears it)")
}

func (f *fieldFlags) fields() (saga.AssetFields, error) {
	out := saga.AssetFields{
		Name:         f.name,
		AssetType:    f.assetType,
		Manufacturer: f.manufacturer,
		Location:     f.location,
		Status:       f.status,
	}
	if f.warrantyExpiry != "" {
		t, err := parseDate(f.warrantyExpiry)
		if err != nil {
			return out, err
		}
		out.WarrantyExpiry = &t
	}
	return out, nil
}

// mask lists the fields whose flags were set explicitly, in canonical order.
func (f *fieldFlags) mask(fs *pflag.FlagSet) []string {
	changed := map[string]bool{}
	fs.Visit(func(fl *pflag.Flag) {
		if field, ok := fieldFlagNames[fl.Name]; ok {
			changed[field] = true
		}
	})
	var mask []string
	for _, field := range saga.AllAssetFields {
		if changed[field] {
			mask = append(mask, field)
		}
	}
	return mask
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: use YYYY-MM-DD or RFC3339", s)
	}
	return t, nil
}

// finish prints the result and turns an unsuccessful saga into a command error.
func (a *app) finish(cmd *cobra.Command, result *saga.SagaResult) error {
	if err := a.print(cmd, result); err != nil {
		return err
	}
	summarize(cmd, result)
	if !result.IsSuccess {
		return fmt.Errorf("saga %s: %s", result.Outcome, result.Message)
	}
	return nil
}

func newCreateCmd(a *app) *cobra.Command {
	var (
		fields        fieldFlags
		token         string
		correlationID string
	)
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an asset through the AssetCreation saga",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := resolveToken(token)
			if err != nil {
				return err
			}
			f, err := fields.fields()
			if err != nil {
				return err
			}
			d, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			return a.finish(cmd, d.Orchestrator.ExecuteCreateSaga(cmd.Context(), &saga.CreateAssetRequest{
				IdentityToken: tok,
				CorrelationID: correlationID,
				Fields:        f,
			}))
		},
	}
	fields.bind(cmd.Flags())
	cmd.Flags().StringVar(&token, "token", "", "identity token (default $"+TokenEnv+")")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id (generated when empty)")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		fields        fieldFlags
		token         string
		correlationID string
	)
	cmd := &cobra.Command{
		Use:   "update <assetId>",
		Short: "Update the given fields of an asset through the AssetUpdate saga",
		Long:  "Update an asset. Only the field flags that are set are written; with none set every field is written.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := resolveToken(token)
			if err != nil {
				return err
			}
			f, err := fields.fields()
			if err != nil {
				return err
			}
			d, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			return a.finish(cmd, d.Orchestrator.ExecuteUpdateSaga(cmd.Context(), &saga.UpdateAssetRequest{
				IdentityToken: tok,
				CorrelationID: correlationID,
				AssetID:       args[0],
				Fields:        f,
				ChangedFields: fields.mask(cmd.Flags()),
			}))
		},
	}
	fields.bind(cmd.Flags())
	cmd.Flags().StringVar(&token, "token", "", "identity token (default $"+TokenEnv+")")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id (generated when empty)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	var (
		token         string
		correlationID string
	)
	cmd := &cobra.Command{
		Use:   "delete <assetId>",
		Short: "Delete an asset through the AssetDeletion saga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok, err := resolveToken(token)
			if err != nil {
				return err
			}
			d, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			return a.finish(cmd, d.Orchestrator.ExecuteDeleteSaga(cmd.Context(), &saga.DeleteAssetRequest{
				IdentityToken: tok,
				CorrelationID: correlationID,
				AssetID:       args[0],
			}))
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "identity token (default $"+TokenEnv+")")
	cmd.Flags().StringVar(&correlationID, "correlation-id", "", "correlation id (generated when empty)")
	return cmd
}

func newCompensateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "compensate <sagaId>",
		Short: "Undo the committed work of a saga",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			result, err := d.Orchestrator.Compensate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.finish(cmd, result)
		},
	}
}
