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

package mcp

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/baton/pkg/errors"
	"github.com/tombee/baton/pkg/pipeline"
)

// executionTimeout bounds a real run started over MCP. Clients that need
// longer runs should use the CLI, which has no fixed ceiling.
const executionTimeout = 30 * time.Minute

// RunResult is the JSON payload returned by baton_run_pipeline.
type RunResult struct {
	Success       bool                   `json:"success"`
	Mode          string                 `json:"mode"`
	ExecutionPlan []StepPlan             `json:"execution_plan,omitempty"`
	Outputs       map[string]interface{} `json:"outputs,omitempty"`
	Warnings      []string               `json:"warnings,omitempty"`
	Error         *RunError              `json:"error,omitempty"`
}

// StepPlan is one entry in a dry-run execution plan.
type StepPlan struct {
	StepID string `json:"step_id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// RunError describes an execution failure.
type RunError struct {
	StepID  string `json:"step_id,omitempty"`
	Message string `json:"message"`
}

// handleRunPipeline implements the baton_run_pipeline tool.
func (s *Server) handleRunPipeline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	pipelinePath, err := request.RequireString("pipeline_path")
	if err != nil {
		return errorResponse("Missing required parameter: pipeline_path"), nil
	}

	// dry_run defaults to true: executing is the explicit choice.
	dryRun := request.GetBool("dry_run", true)
	if !dryRun {
		if s.executor == nil {
			return errorResponse("Pipeline execution is not configured on this server. Use dry_run=true to inspect the plan, or run the pipeline with the baton CLI."), nil
		}
		if !s.rateLimiter.AllowRun() {
			return errorResponse("Run rate limit exceeded. Please try again later."), nil
		}
	}

	if err := ValidatePath(pipelinePath); err != nil {
		return errorResponse(fmt.Sprintf("Invalid pipeline path: %v", err)), nil
	}

	var inputs map[string]interface{}
	if raw, ok := request.GetArguments()["inputs"]; ok {
		inputs, ok = raw.(map[string]interface{})
		if !ok {
			return errorResponse("Parameter 'inputs' must be an object"), nil
		}
	}

	data, err := os.ReadFile(pipelinePath)
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to read pipeline file: %v", err)), nil
	}

	def, err := pipeline.Parse(data)
	if err != nil {
		return errorResponse(fmt.Sprintf("Invalid pipeline: %v", err)), nil
	}

	var result RunResult
	if dryRun {
		result = RunResult{
			Success:       true,
			Mode:          "dry_run",
			ExecutionPlan: buildExecutionPlan(def),
		}
	} else {
		s.logger.Info("executing pipeline",
			"pipeline", def.Name,
			"path", pipelinePath)
		result = s.executePipeline(ctx, def, pipelinePath, inputs)
	}

	resultJSON, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode run result: %v", err)), nil
	}

	return textResponse(string(resultJSON)), nil
}

func (s *Server) executePipeline(ctx context.Context, def *pipeline.Definition, path string, inputs map[string]interface{}) RunResult {
	ctx, cancel := context.WithTimeout(ctx, executionTimeout)
	defer cancel()

	res, err := s.executor.Run(ctx, def, inputs, pipeline.RunOptions{
		BaseDir: filepath.Dir(path),
	})

	result := RunResult{Mode: "executed"}
	if res != nil {
		result.Warnings = res.Warnings
	}

	if err != nil {
		runErr := &RunError{Message: err.Error()}
		var stepErr *errors.StepError
		if stderrors.As(err, &stepErr) {
			runErr.StepID = stepErr.Step
		}
		result.Error = runErr
		return result
	}

	result.Success = true
	result.Outputs = res.Outputs
	return result
}

// buildExecutionPlan flattens the step tree into plan entries. Steps
// gated by a condition, and steps enabled only by a condition branch,
// are marked conditional.
func buildExecutionPlan(def *pipeline.Definition) []StepPlan {
	branched := make(map[string]bool)
	var collect func(steps []pipeline.StepDefinition)
	collect = func(steps []pipeline.StepDefinition) {
		for i := range steps {
			step := &steps[i]
			for _, id := range step.Then {
				branched[id] = true
			}
			for _, id := range step.Else {
				branched[id] = true
			}
			collect(step.Steps)
		}
	}
	collect(def.Steps)

	var plan []StepPlan
	var walk func(steps []pipeline.StepDefinition)
	walk = func(steps []pipeline.StepDefinition) {
		for i := range steps {
			step := &steps[i]
			status := "pending"
			// On a condition step the expression is the branch selector,
			// not a gate; the step itself always runs.
			gated := step.Condition != "" && step.Type != pipeline.StepTypeCondition
			if gated || branched[step.ID] {
				status = "conditional"
			}
			plan = append(plan, StepPlan{
				StepID: step.ID,
				Type:   string(step.Type),
				Status: status,
			})
			walk(step.Steps)
		}
	}
	walk(def.Steps)
	return plan
}
