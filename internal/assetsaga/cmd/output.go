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
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/innovationmech/assetsaga/pkg/saga"
)

// Output formats accepted by --output.
const (
	OutputJSON = "json"
	OutputYAML = "yaml"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	failureColor = color.New(color.FgRed, color.Bold)
)

func validateOutput(format string) error {
	switch format {
	case OutputJSON, OutputYAML:
		return nil
	}
	return fmt.Errorf("unsupported output format %q (want %s or %s)", format, OutputJSON, OutputYAML)
}

// print writes v to stdout in the selected format.
func (a *app) print(cmd *cobra.Command, v interface{}) error {
	switch a.output {
	case OutputYAML:
		// Round-trip through JSON so both formats share the json tags.
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		var doc interface{}
		if err := json.Unmarshal(raw, &doc); err != nil {
			return err
		}
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return err
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
}

// summarize writes a one-line, colored outcome to stderr.
func summarize(cmd *cobra.Command, result *saga.SagaResult) {
	c := failureColor
	switch result.Outcome {
	case saga.OutcomeSucceeded:
		c = successColor
	case saga.OutcomeFailedClean, saga.OutcomeFailedCompensated:
		c = warningColor
	}
	sagaID := result.SagaID
	if sagaID == "" {
		sagaID = "-"
	}
	_, _ = c.Fprintf(cmd.ErrOrStderr(), "%s", result.Outcome)
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), " saga=%s %s\n", sagaID, result.Message)
}
