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

// Package statecmd provides CLI commands for inspecting run checkpoints.
package statecmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tombee/baton/internal/checkpoint"
	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/pkg/state"
)

var scopeTitle = cases.Title(language.English)

// NewCommand creates the state command for checkpoint inspection.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect and manage run checkpoints",
		Long: `Inspect the checkpoints left behind by interrupted runs.

A checkpoint records the scoped variables, step results, and position of
a run at its last completed step. Interrupted runs keep their checkpoint
until they are resumed to completion or cleared.

Commands:
  show     Show the saved state of a run
  list     List interrupted runs
  clear    Remove checkpoints

Examples:
  baton state list
  baton state show run-20250114-abc123
  baton state show latest
  baton state clear run-20250114-abc123`,
	}

	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newClearCommand())

	return cmd
}

// openManager loads configuration and opens the checkpoint store.
func openManager() (*checkpoint.Manager, error) {
	cfg, err := config.Load(shared.ResolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	mgr, err := checkpoint.NewManager(cfg.CheckpointDir())
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint store: %w", err)
	}
	return mgr, nil
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the saved state of a run",
		Long: `Show the checkpoint of an interrupted run: where it stopped, the
variables in each scope, and which steps already have results.

Use "latest" as the run ID to show the most recent checkpoint.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0])
		},
	}
}

func runShow(cmd *cobra.Command, runID string) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	var cp *checkpoint.Checkpoint
	if runID == "latest" {
		cp, err = mgr.Latest(ctx)
	} else {
		cp, err = mgr.Load(ctx, runID)
	}
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint found for run %s", runID)
	}

	if shared.GetJSON() {
		type showResponse struct {
			shared.JSONResponse
			Checkpoint *checkpoint.Checkpoint `json:"checkpoint"`
		}
		return shared.EmitJSON(showResponse{
			JSONResponse: shared.NewJSONResponse("state show", true),
			Checkpoint: cp,
		})
	}

	printCheckpoint(cmd, cp)
	return nil
}

func printCheckpoint(cmd *cobra.Command, cp *checkpoint.Checkpoint) {
	cmd.Printf("%s %s\n", shared.RenderLabel("Run ID:"), cp.RunID)
	cmd.Printf("%s %s\n", shared.RenderLabel("Pipeline:"), cp.Pipeline)
	cmd.Printf("%s %s (step %d)\n", shared.RenderLabel("Stopped after:"), cp.StepID, cp.StepIndex)
	cmd.Printf("%s %s\n", shared.RenderLabel("Saved:"), cp.CreatedAt.Local().Format(time.RFC3339))

	st := state.Deserialize(cp.State)
	for _, scope := range []state.Scope{state.ScopeGlobal, state.ScopeSession, state.ScopeLoop} {
		vars := st.ScopeVars(scope)
		if len(vars) == 0 {
			continue
		}
		cmd.Printf("\n%s\n", shared.Bold.Render(fmt.Sprintf("%s variables:", titleCase(string(scope)))))
		for _, name := range sortedKeys(vars) {
			cmd.Printf("  %s = %s\n", name, vars[name].Text())
		}
	}

	if len(cp.Inputs) > 0 {
		cmd.Printf("\n%s\n", shared.Bold.Render("Inputs:"))
		inputs := state.FromAnyMap(cp.Inputs)
		for _, name := range sortedKeys(inputs) {
			cmd.Printf("  %s = %s\n", name, inputs[name].Text())
		}
	}

	if len(cp.Results) > 0 {
		cmd.Printf("\n%s\n", shared.Bold.Render("Completed steps:"))
		results := state.FromAnyMap(cp.Results)
		for _, name := range sortedKeys(results) {
			cmd.Printf("  %s\n", name)
		}
	}
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List interrupted runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
}

// listEntry is one interrupted run in list output.
type listEntry struct {
	RunID     string    `json:"run_id"`
	Pipeline  string    `json:"pipeline"`
	StepID    string    `json:"step_id"`
	CreatedAt time.Time `json:"created_at"`
}

func runList(cmd *cobra.Command) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runIDs, err := mgr.ListInterrupted(ctx)
	if err != nil {
		return err
	}

	entries := make([]listEntry, 0, len(runIDs))
	for _, runID := range runIDs {
		cp, err := mgr.Load(ctx, runID)
		if err != nil || cp == nil {
			continue
		}
		entries = append(entries, listEntry{
			RunID:     cp.RunID,
			Pipeline:  cp.Pipeline,
			StepID:    cp.StepID,
			CreatedAt: cp.CreatedAt,
		})
	}

	if shared.GetJSON() {
		type listResponse struct {
			shared.JSONResponse
			Runs []listEntry `json:"runs"`
		}
		return shared.EmitJSON(listResponse{
			JSONResponse: shared.NewJSONResponse("state list", true),
			Runs: entries,
		})
	}

	if len(entries) == 0 {
		cmd.Println("No interrupted runs.")
		return nil
	}

	for _, e := range entries {
		age := shared.Muted.Render(formatAge(time.Since(e.CreatedAt)))
		cmd.Printf("%-28s %-20s %-16s %s\n", e.RunID, e.Pipeline, e.StepID, age)
	}
	cmd.Printf("\nResume with: baton run <pipeline> --resume <run-id>\n")
	return nil
}

func newClearCommand() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "clear [run-id]",
		Short: "Remove checkpoints",
		Long: `Remove the checkpoint of a run, or every checkpoint with --all.

A cleared run can no longer be resumed.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return fmt.Errorf("specify a run ID or --all")
			}
			if len(args) > 0 && all {
				return fmt.Errorf("--all cannot be combined with a run ID")
			}
			if all {
				return runClearAll(cmd)
			}
			return runClear(cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "remove every checkpoint")

	return cmd
}

func runClear(cmd *cobra.Command, runID string) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	cp, err := mgr.Load(ctx, runID)
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint found for run %s", runID)
	}
	if err := mgr.Delete(ctx, runID); err != nil {
		return err
	}

	if !shared.GetQuiet() {
		cmd.Println(shared.RenderOK(fmt.Sprintf("Removed checkpoint for run %s", runID)))
	}
	return nil
}

func runClearAll(cmd *cobra.Command) error {
	mgr, err := openManager()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	runIDs, err := mgr.ListInterrupted(ctx)
	if err != nil {
		return err
	}
	for _, runID := range runIDs {
		if err := mgr.Delete(ctx, runID); err != nil {
			return err
		}
	}

	if !shared.GetQuiet() {
		cmd.Println(shared.RenderOK(fmt.Sprintf("Removed %d checkpoint(s)", len(runIDs))))
	}
	return nil
}

// formatAge renders a duration as a coarse human age like "5m ago".
func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func sortedKeys(m map[string]state.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func titleCase(s string) string {
	return scopeTitle.String(s)
}
