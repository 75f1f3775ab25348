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

package cli

import (
	"github.com/spf13/cobra"
	"github.com/tombee/baton/internal/commands/shared"
)

// SetVersion records the build-time version triple for the version
// command and provider user agents.
func SetVersion(v, c, b string) {
	shared.SetVersion(v, c, b)
}

// GetVersion returns the recorded version triple.
func GetVersion() (string, string, string) {
	return shared.GetVersion()
}

// NewRootCommand creates the baton root command. Errors and usage are
// silenced here; HandleExitError prints them with the right exit code.
func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "baton",
		Short: "Baton - LLM pipeline orchestration",
		Long: `Baton is a command-line tool for orchestrating multi-step LLM
pipelines. Pipelines are declared in YAML and can chain agent calls,
jq transforms, loops, parallel branches, and nested pipelines across
different LLM providers.

Run 'baton init' to scaffold a pipeline interactively.
Run 'baton run <pipeline.yaml>' to execute one.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	verbose, quiet, json, config := shared.RegisterFlagPointers()
	cmd.PersistentFlags().BoolVarP(verbose, "verbose", "v", false, "Enable verbose output")
	cmd.PersistentFlags().BoolVarP(quiet, "quiet", "q", false, "Suppress non-error output")
	cmd.PersistentFlags().BoolVar(json, "json", false, "Output in JSON format")
	cmd.PersistentFlags().StringVar(config, "config", "", "Path to config file (default: ~/.config/baton/config.yaml)")

	return cmd
}

// HandleExitError prints err and exits with its mapped code.
func HandleExitError(err error) {
	shared.HandleExitError(err)
}
