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
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/pkg/pipeline"
)

// printPlan renders the execution plan for --dry-run.
func printPlan(def *pipeline.Definition, cfg *config.Config, opts *runOptions) error {
	if opts.output == "json" {
		type planResponse struct {
			shared.JSONResponse
			Pipeline string `json:"pipeline"`
			Plan     struct {
				Steps int `json:"steps"`
			} `json:"plan"`
		}

		resp := planResponse{
			JSONResponse: shared.NewJSONResponse("run", true),
			Pipeline: def.Name,
		}
		resp.Plan.Steps = countSteps(def.Steps)

		return shared.EmitJSON(resp)
	}

	fmt.Printf("Pipeline: %s\n", def.Name)
	if def.Description != "" {
		fmt.Printf("  %s\n", def.Description)
	}
	fmt.Println()
	fmt.Println("Execution Plan:")
	printPlanSteps(def.Steps, cfg, opts.provider, "  ")
	fmt.Println()
	fmt.Println("Dry run complete. No pipeline executed.")
	return nil
}

// printPlanSteps renders one level of the step tree, recursing into
// loop and parallel children.
func printPlanSteps(steps []pipeline.StepDefinition, cfg *config.Config, providerOverride, indent string) {
	for i, step := range steps {
		fmt.Printf("%s%d. %s (%s)\n", indent, i+1, step.ID, step.Type)

		switch step.Type {
		case pipeline.StepTypeAgent:
			name, typ := planProvider(&step, cfg, providerOverride)
			if name != "" {
				if typ != "" {
					fmt.Printf("%s   Provider: %s (%s)\n", indent, name, typ)
				} else {
					fmt.Printf("%s   Provider: %s\n", indent, name)
				}
			}
			model := step.Model
			if model == "" {
				model = "balanced"
			}
			fmt.Printf("%s   Model: %s\n", indent, model)

		case pipeline.StepTypeTransform:
			fmt.Printf("%s   Query: %s\n", indent, step.Query)

		case pipeline.StepTypePipeline:
			fmt.Printf("%s   Pipeline: %s\n", indent, step.Pipeline)

		case pipeline.StepTypeCondition:
			fmt.Printf("%s   Condition: %s\n", indent, step.Condition)

		case pipeline.StepTypeLoop, pipeline.StepTypeParallel:
			printPlanSteps(step.Steps, cfg, providerOverride, indent+"   ")
		}
	}
}

// planProvider resolves which provider an agent step would use, for
// display only. Override beats the step's own choice beats the default.
func planProvider(step *pipeline.StepDefinition, cfg *config.Config, override string) (name, typ string) {
	name = override
	if name == "" {
		name = step.Provider
	}
	if name == "" {
		name = cfg.DefaultProvider
	}
	if pcfg, ok := cfg.Providers[name]; ok {
		typ = pcfg.Type
	}
	return name, typ
}

// countSteps counts all steps including loop and parallel children.
func countSteps(steps []pipeline.StepDefinition) int {
	n := 0
	for _, step := range steps {
		n++
		n += countSteps(step.Steps)
	}
	return n
}

// stepResponse is one step outcome in JSON output.
type stepResponse struct {
	ID         string `json:"id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	Attempts   int    `json:"attempts,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	TokensIn   int    `json:"tokens_in,omitempty"`
	TokensOut  int    `json:"tokens_out,omitempty"`
}

// runResponse is the JSON result envelope for a completed run.
type runResponse struct {
	shared.JSONResponse
	RunID    string                 `json:"run_id"`
	Pipeline string                 `json:"pipeline"`
	Status   string                 `json:"status"`
	Outputs  map[string]interface{} `json:"outputs,omitempty"`
	Steps    []stepResponse         `json:"steps"`
	Warnings []string               `json:"warnings,omitempty"`
	Error    string                 `json:"error,omitempty"`
	Stats    struct {
		DurationMS int64 `json:"duration_ms"`
		TokensIn   int   `json:"tokens_in"`
		TokensOut  int   `json:"tokens_out"`
	} `json:"stats"`
}

// printResult renders a run result in the selected format. A nil
// result means the run never started; the error alone reports that.
func printResult(result *pipeline.Result, runErr error, opts *runOptions) error {
	if result == nil {
		return nil
	}

	if opts.output == "json" {
		return emitRunJSON(result, runErr)
	}

	if shared.GetQuiet() {
		return nil
	}

	printResultText(result)
	return nil
}

func emitRunJSON(result *pipeline.Result, runErr error) error {
	resp := runResponse{
		JSONResponse: shared.NewJSONResponse("run", runErr == nil),
		RunID:    result.RunID,
		Pipeline: result.Pipeline,
		Status:   string(result.Status),
		Outputs:  result.Outputs,
		Warnings: result.Warnings,
	}
	if runErr != nil {
		resp.Error = runErr.Error()
	}

	resp.Steps = make([]stepResponse, 0, len(result.Steps))
	for _, s := range result.Steps {
		resp.Steps = append(resp.Steps, stepResponse{
			ID:         s.ID,
			Type:       string(s.Type),
			Status:     string(s.Status),
			Attempts:   s.Attempts,
			Error:      s.Error,
			DurationMS: s.Duration.Milliseconds(),
			TokensIn:   s.TokensIn,
			TokensOut:  s.TokensOut,
		})
	}

	resp.Stats.DurationMS = result.Duration.Milliseconds()
	resp.Stats.TokensIn = result.Usage.InputTokens
	resp.Stats.TokensOut = result.Usage.OutputTokens

	return shared.EmitJSON(resp)
}

func printResultText(result *pipeline.Result) {
	duration := result.Duration.Round(time.Millisecond)

	fmt.Println()
	if result.Status == pipeline.RunStatusCompleted {
		fmt.Println(shared.RenderOK(fmt.Sprintf("Pipeline %s completed in %s", result.Pipeline, duration)))
	} else {
		fmt.Println(shared.RenderError(fmt.Sprintf("Pipeline %s failed after %s", result.Pipeline, duration)))
	}

	if len(result.Steps) > 0 {
		fmt.Println()
		for _, s := range result.Steps {
			printStepOutcome(s)
		}
	}

	for _, w := range result.Warnings {
		fmt.Println(shared.RenderWarn(w))
	}

	if len(result.Outputs) > 0 {
		fmt.Println()
		fmt.Println("Outputs:")
		names := make([]string, 0, len(result.Outputs))
		for name := range result.Outputs {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("%s:\n", name)
			fmt.Println(formatOutputValue(result.Outputs[name]))
		}
	}

	if result.Usage.Total() > 0 {
		fmt.Println()
		fmt.Printf("Token usage: %d in / %d out (%d total)\n",
			result.Usage.InputTokens, result.Usage.OutputTokens, result.Usage.Total())
		if len(result.UsageByProvider) > 1 {
			providers := make([]string, 0, len(result.UsageByProvider))
			for name := range result.UsageByProvider {
				providers = append(providers, name)
			}
			sort.Strings(providers)
			for _, name := range providers {
				u := result.UsageByProvider[name]
				fmt.Printf("  %s: %d in / %d out\n", name, u.InputTokens, u.OutputTokens)
			}
		}
	}

	fmt.Println()
	fmt.Println(shared.RenderLabel("Run ID: ") + result.RunID)
}

func printStepOutcome(s pipeline.StepOutcome) {
	duration := shared.Muted.Render(s.Duration.Round(time.Millisecond).String())

	switch s.Status {
	case pipeline.StepStatusSuccess:
		line := fmt.Sprintf("  %s %s (%s) %s", shared.StatusOK.Render(shared.SymbolOK), s.ID, s.Type, duration)
		if s.Attempts > 1 {
			line += shared.Muted.Render(fmt.Sprintf(" after %d attempts", s.Attempts))
		}
		fmt.Println(line)

	case pipeline.StepStatusSkipped:
		fmt.Printf("  %s %s (%s) %s\n", shared.Muted.Render("-"), s.ID, s.Type, shared.Muted.Render("skipped"))

	case pipeline.StepStatusFailed:
		fmt.Printf("  %s %s (%s) %s\n", shared.StatusError.Render(shared.SymbolError), s.ID, s.Type, duration)
		if s.Error != "" {
			fmt.Printf("      %s\n", s.Error)
		}
	}
}

// formatOutputValue renders an output for the text display: strings
// print raw, everything else as indented JSON.
func formatOutputValue(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
