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
	"context"

	"github.com/spf13/cobra"

	"github.com/innovationmech/assetsaga/pkg/logger"
)

// schemaMigrator is implemented by record stores that own a schema.
type schemaMigrator interface {
	Migrate(ctx context.Context) error
}

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the assets table and the saga record schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			if err := d.Assets.Migrate(cmd.Context()); err != nil {
				return err
			}
			logger.GetLogger().Info("assets table migrated")

			if m, ok := d.Records.(schemaMigrator); ok {
				if err := m.Migrate(cmd.Context()); err != nil {
					return err
				}
				logger.GetLogger().Info("saga record schema migrated")
			}
			return nil
		},
	}
}
