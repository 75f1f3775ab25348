// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tombee/baton/internal/commands/shared"
)

// runOptions holds the flag values for one run invocation.
type runOptions struct {
	inputs        []string
	inputFile     string
	setVars       []string
	provider      string
	resume        string
	watch         bool
	dryRun        bool
	output        string
	noInteractive bool
	helpInputs    bool
	timeout       time.Duration
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <pipeline>",
		Short: "Execute a pipeline",
		Long: `Run executes a Baton pipeline from a YAML file.

Inputs:
  --input, -i key=value    Provide a declared input (repeatable)
  --input-file file.json   Provide inputs as JSON ('-' reads stdin)
  Missing required inputs are prompted for on an interactive terminal.

Resume:
  --resume <run-id>        Continue an interrupted run from its checkpoint
  --resume latest          Continue the most recently checkpointed run

Watch mode:
  --watch                  Re-run the pipeline whenever its file changes

Verbosity levels:
  --verbose  Show debug logs for each step
  (default)  Show step progress and results
  --quiet    Suppress non-error output`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// --json implies --no-interactive and JSON result output
			if shared.GetJSON() {
				opts.noInteractive = true
				opts.output = "json"
			}

			switch opts.output {
			case "", "text", "json":
			default:
				return fmt.Errorf("invalid output format %q (expected text or json)", opts.output)
			}

			if opts.resume != "" && opts.watch {
				return fmt.Errorf("--resume and --watch cannot be combined")
			}

			return runPipeline(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.inputs, "input", "i", nil, "Pipeline input in key=value format")
	cmd.Flags().StringVar(&opts.inputFile, "input-file", "", "JSON file with inputs (use '-' for stdin)")
	cmd.Flags().StringSliceVar(&opts.setVars, "set", nil, "Global variable override in key=value format")
	cmd.Flags().StringVar(&opts.provider, "provider", "", "Override provider for all agent steps")
	cmd.Flags().StringVar(&opts.resume, "resume", "", "Resume an interrupted run ('latest' or a run ID)")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "Re-run the pipeline when its file changes")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "Show execution plan without running")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Result format (text, json)")
	cmd.Flags().BoolVar(&opts.noInteractive, "no-interactive", false, "Disable interactive prompts for missing inputs")
	cmd.Flags().BoolVar(&opts.helpInputs, "help-inputs", false, "List all pipeline inputs without running")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Override the run timeout (e.g. 10m)")

	return cmd
}
