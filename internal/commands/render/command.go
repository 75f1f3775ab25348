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

package render

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/baton/internal/checkpoint"
	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/pkg/state"
)

type renderOptions struct {
	statePath string
}

// NewCommand creates the render command
func NewCommand() *cobra.Command {
	opts := &renderOptions{}

	cmd := &cobra.Command{
		Use:   "render <template>",
		Short: "Render a template expression against saved state",
		Long: `Render evaluates template expressions the way a running pipeline
would, which makes it a quick way to debug interpolation without
executing any steps.

The argument is read as a file when one exists at that path, otherwise
it is treated as a literal template string. With --state, variables,
inputs, and step results come from a checkpoint written by a previous
run:

  baton render 'Hello {{name}}'
  baton render prompt.txt --state run-20250114-abc123.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRender(cmd, args[0], opts)
		},
	}

	cmd.Flags().StringVar(&opts.statePath, "state", "", "checkpoint file providing variables and step results")

	return cmd
}

func runRender(cmd *cobra.Command, arg string, opts *renderOptions) error {
	template, err := loadTemplate(arg)
	if err != nil {
		return err
	}

	st := state.New()
	var ec *state.ExecContext
	if opts.statePath != "" {
		st, ec, err = loadCheckpointState(opts.statePath)
		if err != nil {
			return err
		}
	}

	rendered := state.InterpolateWithContext(template, st, ec)

	if shared.GetJSON() {
		type renderResponse struct {
			shared.JSONResponse
			Template string `json:"template"`
			Rendered string `json:"rendered"`
		}
		return shared.EmitJSON(renderResponse{
			JSONResponse: shared.NewJSONResponse("render", true),
			Template: template,
			Rendered: rendered,
		})
	}

	if !strings.HasSuffix(rendered, "\n") {
		rendered += "\n"
	}
	cmd.Print(rendered)
	return nil
}

// loadTemplate reads the argument as a file when one exists at that
// path; anything else is a literal template string.
func loadTemplate(arg string) (string, error) {
	info, err := os.Stat(arg)
	if err != nil || info.IsDir() {
		return arg, nil
	}
	data, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("failed to read template file: %w", err)
	}
	return string(data), nil
}

// loadCheckpointState rebuilds interpolation state from a checkpoint
// file: scoped variables from the serialized state, step results and
// inputs as the execution context.
func loadCheckpointState(path string) (state.State, *state.ExecContext, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return state.State{}, nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var cp checkpoint.Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return state.State{}, nil, fmt.Errorf("invalid checkpoint file %s: %w", path, err)
	}

	st := state.Deserialize(cp.State)
	ec := &state.ExecContext{
		Results: state.FromAnyMap(cp.Results),
		Inputs:  state.FromAnyMap(cp.Inputs),
	}
	return st, ec, nil
}
