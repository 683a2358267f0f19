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

// Package cmd holds the cobra commands of the asset-saga binary.
package cmd

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/innovationmech/assetsaga/internal/assetsaga/config"
	"github.com/innovationmech/assetsaga/internal/assetsaga/deps"
	"github.com/innovationmech/assetsaga/pkg/logger"
)

// TokenEnv is read when --token is not given.
const TokenEnv = "ASSETSAGA_TOKEN"

// app carries the state shared by the subcommands of one invocation.
type app struct {
	configFile string
	output     string
	depOpts    []deps.Option

	once sync.Once
	deps *deps.Dependencies
	err  error
}

// NewAssetSagaCmd creates the root command. opts are forwarded to
// deps.NewDependencies.
func NewAssetSagaCmd(opts ...deps.Option) *cobra.Command {
	a := &app{depOpts: opts}

	cmd := &cobra.Command{
		Use:           "asset-saga",
		Short:         "Run and inspect asset sagas",
		Long:          "Run the asset create, update and delete sagas, compensate failed ones and sweep for retries.",
		Version:       "0.1.0",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&a.configFile, "config", "c", "", "config file (default ./assetsaga.yaml or /etc/assetsaga/assetsaga.yaml)")
	cmd.PersistentFlags().StringVarP(&a.output, "output", "o", OutputJSON, "output format: json or yaml")
	cmd.PersistentPreRunE = func(*cobra.Command, []string) error {
		return validateOutput(a.output)
	}

	cmd.AddCommand(
		newCreateCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newCompensateCmd(a),
		newRecordsCmd(a),
		newSweepCmd(a),
		newMigrateCmd(a),
	)
	return cmd
}

// dependencies loads the configuration and builds the object graph once.
func (a *app) dependencies(ctx context.Context) (*deps.Dependencies, error) {
	a.once.Do(func() {
		cfg, err := config.Load(a.configFile)
		if err != nil {
			a.err = err
			return
		}
		logger.InitLoggerWithLevel(cfg.Log.Level, cfg.Log.Development)
		a.deps, a.err = deps.NewDependencies(ctx, cfg, a.depOpts...)
	})
	return a.deps, a.err
}

// close releases the dependencies; failures are only logged.
func (a *app) close(ctx context.Context) {
	if a.deps == nil {
		return
	}
	if err := a.deps.Close(context.WithoutCancel(ctx)); err != nil {
		logger.GetLogger().Warn("failed to close dependencies", zap.Error(err))
	}
}

func resolveToken(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	if env := os.Getenv(TokenEnv); env != "" {
		return env, nil
	}
	return "", fmt.Errorf("an identity token is required: pass --token or set %s", TokenEnv)
}
