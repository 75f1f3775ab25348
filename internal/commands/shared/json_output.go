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

package shared

import (
	"encoding/json"
	"os"
)

// JSONVersion is the schema version stamped on every JSON envelope.
const JSONVersion = "1.0"

// JSONResponse is the envelope embedded in every command's JSON output.
// Build it with NewJSONResponse so the version stays consistent.
type JSONResponse struct {
	Version string `json:"@version"`
	Command string `json:"command"`
	Success bool   `json:"success"`
}

// NewJSONResponse builds the envelope for a command's JSON output.
func NewJSONResponse(command string, success bool) JSONResponse {
	return JSONResponse{
		Version: JSONVersion,
		Command: command,
		Success: success,
	}
}

// JSONError is a machine-readable error entry. Location and StepID are
// optional and appear only when the failure can be pinned to a file
// position or a pipeline step.
type JSONError struct {
	Code       string        `json:"code"`
	Message    string        `json:"message"`
	Location   *JSONLocation `json:"location,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
	StepID     string        `json:"step_id,omitempty"`
}

// JSONLocation is a line and column within a pipeline file.
type JSONLocation struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// EmitJSON marshals a response to indented JSON on stdout. Using one
// encoder for every command keeps formatting consistent.
func EmitJSON(response interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// EmitJSONError emits a failure envelope carrying the given errors.
func EmitJSONError(command string, errors []JSONError) error {
	resp := struct {
		JSONResponse
		Errors []JSONError `json:"errors"`
	}{
		JSONResponse: NewJSONResponse(command, false),
		Errors:       errors,
	}
	return EmitJSON(resp)
}
