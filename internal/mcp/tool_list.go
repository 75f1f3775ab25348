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
	"fmt"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/tombee/baton/pkg/pipeline"
)

// PipelineList is the JSON payload returned by baton_list_pipelines.
type PipelineList struct {
	Pipelines []PipelineInfo `json:"pipelines"`
}

// PipelineInfo summarizes one pipeline file. Files that fail to parse
// are still listed, with Error set instead of the metadata fields.
type PipelineInfo struct {
	Path        string      `json:"path"`
	Name        string      `json:"name,omitempty"`
	Description string      `json:"description,omitempty"`
	Steps       int         `json:"steps,omitempty"`
	Inputs      []InputInfo `json:"inputs,omitempty"`
	Error       string      `json:"error,omitempty"`
}

// InputInfo describes a declared pipeline input.
type InputInfo struct {
	Name        string      `json:"name"`
	Type        string      `json:"type"`
	Required    bool        `json:"required"`
	Default     interface{} `json:"default,omitempty"`
	Description string      `json:"description,omitempty"`
}

// handleListPipelines implements the baton_list_pipelines tool.
func (s *Server) handleListPipelines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if !s.rateLimiter.AllowCall() {
		return errorResponse("Rate limit exceeded. Please try again later."), nil
	}

	dir := request.GetString("directory", s.dir)
	if err := ValidatePath(dir); err != nil {
		return errorResponse(fmt.Sprintf("Invalid directory: %v", err)), nil
	}

	infos, err := collectPipelines(dir)
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to list pipelines: %v", err)), nil
	}

	resultJSON, err := json.MarshalIndent(PipelineList{Pipelines: infos}, "", "  ")
	if err != nil {
		return errorResponse(fmt.Sprintf("Failed to encode pipeline list: %v", err)), nil
	}

	return textResponse(string(resultJSON)), nil
}

// collectPipelines finds YAML files under dir and summarizes each one.
func collectPipelines(dir string) ([]PipelineInfo, error) {
	pattern := filepath.Join(dir, "**", "*.{yaml,yml}")
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %s: %w", pattern, err)
	}

	infos := make([]PipelineInfo, 0, len(matches))
	for _, path := range matches {
		infos = append(infos, summarizePipeline(path))
	}
	return infos, nil
}

func summarizePipeline(path string) PipelineInfo {
	info := PipelineInfo{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		info.Error = err.Error()
		return info
	}

	def, err := pipeline.Parse(data)
	if err != nil {
		info.Error = err.Error()
		return info
	}

	info.Name = def.Name
	info.Description = def.Description
	info.Steps = len(def.Steps)
	for i := range def.Inputs {
		input := &def.Inputs[i]
		info.Inputs = append(info.Inputs, InputInfo{
			Name:        input.Name,
			Type:        input.Type,
			Required:    input.Required(),
			Default:     input.Default,
			Description: input.Description,
		})
	}
	return info
}
