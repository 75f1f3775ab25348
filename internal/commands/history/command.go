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

// Package history provides CLI commands for browsing recorded runs.
package history

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	historystore "github.com/tombee/baton/internal/history"
)

// NewCommand creates the history command for run history inspection.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Browse and manage run history",
		Long: `Browse the runs recorded in the history database.

Every run executed with history enabled is recorded with its status,
duration, token usage, and per-step outcomes.

Commands:
  list     List recent runs
  show     Show one run with its steps
  prune    Delete old runs

Examples:
  baton history list
  baton history list --pipeline release-notes --status failed
  baton history show run-20250114-abc123
  baton history prune --older-than 720h`,
	}

	cmd.AddCommand(newListCommand())
	cmd.AddCommand(newShowCommand())
	cmd.AddCommand(newPruneCommand())

	return cmd
}

// openStore opens the history database, or reports that none exists yet.
func openStore() (*historystore.Store, error) {
	cfg, err := config.Load(shared.ResolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	path := cfg.HistoryPath()
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("no run history at %s", path)
	}

	store, err := historystore.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return store, nil
}

func newListCommand() *cobra.Command {
	var (
		pipeline string
		status   string
		since    time.Duration
		limit    int
	)

	cmd := &cobra.Command{
		Use:           "list",
		Short:         "List recent runs",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := historystore.Filter{
				Pipeline: pipeline,
				Status:   historystore.Status(status),
				Limit:    limit,
			}
			if since > 0 {
				cutoff := time.Now().Add(-since)
				filter.Since = &cutoff
			}
			return runList(cmd, filter)
		},
	}

	cmd.Flags().StringVar(&pipeline, "pipeline", "", "only runs of this pipeline")
	cmd.Flags().StringVar(&status, "status", "", "only runs with this status (running, completed, failed, canceled)")
	cmd.Flags().DurationVar(&since, "since", 0, "only runs started within this duration (e.g. 24h)")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to list")

	return cmd
}

// runEntry is one run in JSON list output.
type runEntry struct {
	RunID      string `json:"run_id"`
	Pipeline   string `json:"pipeline"`
	Status     string `json:"status"`
	Provider   string `json:"provider,omitempty"`
	StartedAt  string `json:"started_at"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runList(cmd *cobra.Command, filter historystore.Filter) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.List(cmd.Context(), filter)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type listResponse struct {
			shared.JSONResponse
			Runs []runEntry `json:"runs"`
		}
		entries := make([]runEntry, len(runs))
		for i, r := range runs {
			entries[i] = toEntry(r)
		}
		return shared.EmitJSON(listResponse{
			JSONResponse: shared.NewJSONResponse("history list", true),
			Runs: entries,
		})
	}

	if len(runs) == 0 {
		cmd.Println("No runs recorded.")
		return nil
	}

	for _, r := range runs {
		age := shared.Muted.Render(formatAge(time.Since(r.StartedAt)))
		cmd.Printf("%-28s %-20s %-10s %-10s %s\n",
			r.ID, r.Pipeline, renderStatus(r.Status), formatDuration(r.Duration), age)
	}
	return nil
}

func toEntry(r historystore.Run) runEntry {
	return runEntry{
		RunID:      r.ID,
		Pipeline:   r.Pipeline,
		Status:     string(r.Status),
		Provider:   r.Provider,
		StartedAt:  r.StartedAt.Format(time.RFC3339),
		DurationMS: r.Duration.Milliseconds(),
		Error:      r.Error,
	}
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-id>",
		Short:         "Show one run with its steps",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0])
		},
	}
}

// stepEntry is one step in JSON show output.
type stepEntry struct {
	Name       string `json:"name"`
	Index      int    `json:"index"`
	Status     string `json:"status"`
	DurationMS int64  `json:"duration_ms,omitempty"`
	TokensIn   int    `json:"tokens_in,omitempty"`
	TokensOut  int    `json:"tokens_out,omitempty"`
	Error      string `json:"error,omitempty"`
}

func runShow(cmd *cobra.Command, runID string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx := cmd.Context()
	run, err := store.Get(ctx, runID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("no run found with ID %s", runID)
	}

	steps, err := store.GetSteps(ctx, runID)
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type showResponse struct {
			shared.JSONResponse
			Run   runEntry    `json:"run"`
			Steps []stepEntry `json:"steps"`
		}
		entries := make([]stepEntry, len(steps))
		for i, s := range steps {
			entries[i] = stepEntry{
				Name:       s.Name,
				Index:      s.Index,
				Status:     string(s.Status),
				DurationMS: s.Duration.Milliseconds(),
				TokensIn:   s.TokensIn,
				TokensOut:  s.TokensOut,
				Error:      s.Error,
			}
		}
		return shared.EmitJSON(showResponse{
			JSONResponse: shared.NewJSONResponse("history show", true),
			Run:   toEntry(*run),
			Steps: entries,
		})
	}

	printRun(cmd, run, steps)
	return nil
}

func printRun(cmd *cobra.Command, run *historystore.Run, steps []historystore.Step) {
	cmd.Printf("%s %s\n", shared.RenderLabel("Run ID:"), run.ID)
	cmd.Printf("%s %s\n", shared.RenderLabel("Pipeline:"), run.Pipeline)
	cmd.Printf("%s %s\n", shared.RenderLabel("Status:"), renderStatus(run.Status))
	if run.Provider != "" {
		cmd.Printf("%s %s\n", shared.RenderLabel("Provider:"), run.Provider)
	}
	cmd.Printf("%s %s\n", shared.RenderLabel("Started:"), run.StartedAt.Local().Format(time.RFC3339))
	if run.Duration > 0 {
		cmd.Printf("%s %s\n", shared.RenderLabel("Duration:"), formatDuration(run.Duration))
	}
	if run.Error != "" {
		cmd.Printf("%s %s\n", shared.RenderLabel("Error:"), run.Error)
	}

	if len(run.Inputs) > 0 {
		cmd.Printf("\n%s\n", shared.Bold.Render("Inputs:"))
		names := make([]string, 0, len(run.Inputs))
		for name := range run.Inputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			cmd.Printf("  %s = %v\n", name, run.Inputs[name])
		}
	}

	if len(steps) == 0 {
		return
	}
	cmd.Printf("\n%s\n", shared.Bold.Render("Steps:"))
	var tokensIn, tokensOut int
	for _, s := range steps {
		marker := shared.StatusOK.Render(shared.SymbolOK)
		switch s.Status {
		case historystore.StatusFailed:
			marker = shared.StatusError.Render(shared.SymbolError)
		case historystore.StatusRunning:
			marker = shared.StatusInfo.Render(shared.SymbolInfo)
		}
		cmd.Printf("  %s %-24s %s\n", marker, s.Name, shared.Muted.Render(formatDuration(s.Duration)))
		if s.Error != "" {
			cmd.Printf("      %s\n", s.Error)
		}
		tokensIn += s.TokensIn
		tokensOut += s.TokensOut
	}
	if tokensIn > 0 || tokensOut > 0 {
		cmd.Printf("\nToken usage: %d in / %d out\n", tokensIn, tokensOut)
	}
}

func newPruneCommand() *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs",
		Long: `Delete runs that started more than --older-than ago, along with
their step records. Without --older-than, the configured retention
period applies.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, olderThan)
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "delete runs older than this duration (e.g. 720h)")

	return cmd
}

func runPrune(cmd *cobra.Command, olderThan time.Duration) error {
	cfg, err := config.Load(shared.ResolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if olderThan <= 0 {
		if cfg.History.RetentionDays <= 0 {
			return fmt.Errorf("specify --older-than or set history.retention_days in config")
		}
		olderThan = time.Duration(cfg.History.RetentionDays) * 24 * time.Hour
	}

	path := cfg.HistoryPath()
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("no run history at %s", path)
	}
	store, err := historystore.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open history database: %w", err)
	}
	defer store.Close()

	count, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
	if err != nil {
		return err
	}

	if shared.GetJSON() {
		type pruneResponse struct {
			shared.JSONResponse
			Deleted int64 `json:"deleted"`
		}
		return shared.EmitJSON(pruneResponse{
			JSONResponse: shared.NewJSONResponse("history prune", true),
			Deleted: count,
		})
	}

	if !shared.GetQuiet() {
		cmd.Println(shared.RenderOK(fmt.Sprintf("Deleted %d run(s)", count)))
	}
	return nil
}

// renderStatus colors a run status for terminal output.
func renderStatus(status historystore.Status) string {
	s := string(status)
	switch status {
	case historystore.StatusCompleted:
		return shared.StatusOK.Render(s)
	case historystore.StatusFailed:
		return shared.StatusError.Render(s)
	case historystore.StatusRunning:
		return shared.StatusInfo.Render(s)
	case historystore.StatusCanceled:
		return shared.Muted.Render(s)
	default:
		return s
	}
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

// formatDuration trims a duration to a readable precision.
func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	return d.Round(100 * time.Millisecond).String()
}
