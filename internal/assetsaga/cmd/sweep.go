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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/pkg/logger"
)

func newSweepCmd(a *app) *cobra.Command {
	var (
		once        bool
		metricsAddr string
	)
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Compensate failed sagas that are due for retry",
		Long:  "Run the compensation sweeper on its cron schedule and serve Prometheus metrics until interrupted, or run a single sweep with --once.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dependencies(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close(cmd.Context())
			sweeper, err := d.NewSweeper()
			if err != nil {
				return err
			}

			if once {
				report, err := sweeper.RunOnce(cmd.Context())
				if err != nil {
					return err
				}
				return a.print(cmd, report)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := metricsAddr
			if addr == "" {
				addr = d.Config.Metrics.Addr
			}
			serveErr := make(chan error, 1)
			go func() {
				serveErr <- d.MetricsExporter().Serve(ctx, addr)
			}()

			sweeper.Start(ctx)
			logger.GetLogger().Info("sweeper started",
				zap.String("schedule", d.Config.Retry.Schedule),
				zap.String("metrics_addr", addr))

			select {
			case <-ctx.Done():
			case err = <-serveErr:
			}
			sweeper.Stop()
			stop()
			if err == nil {
				err = <-serveErr
			}
			logger.GetLogger().Info("sweeper stopped")
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single sweep and print the report")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "metrics listen address (default metrics.addr)")
	return cmd
}
