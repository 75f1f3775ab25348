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

// Package mcp exposes baton over the Model Context Protocol so that
// MCP-capable assistants can validate, inspect, and run pipelines.
// The server speaks the stdio transport, which means all logging goes
// to stderr; stdout belongs to the protocol.
package mcp

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/tombee/baton/pkg/pipeline"
)

// Config configures the MCP server.
type Config struct {
	// Name is the server name advertised to clients. Defaults to "baton".
	Name string
	// Version is the server version advertised to clients. Defaults to "dev".
	Version string
	// LogLevel controls stderr logging: debug, info, warn, or error.
	LogLevel string
	// Dir is the directory searched by baton_list_pipelines. Defaults to
	// the current working directory.
	Dir string
	// Executor runs pipelines for baton_run_pipeline. When nil the tool
	// only supports dry runs.
	Executor *pipeline.Executor
}

// Server is a baton MCP server over stdio.
type Server struct {
	mcpServer   *server.MCPServer
	name        string
	version     string
	dir         string
	executor    *pipeline.Executor
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// NewServer creates an MCP server with the baton tools registered.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Name == "" {
		cfg.Name = "baton"
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}
	if cfg.Dir == "" {
		cfg.Dir = "."
	}

	logger, err := createLogger(cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	s := &Server{
		mcpServer:   server.NewMCPServer(cfg.Name, cfg.Version),
		name:        cfg.Name,
		version:     cfg.Version,
		dir:         cfg.Dir,
		executor:    cfg.Executor,
		rateLimiter: NewRateLimiter(defaultRunsPerMinute, defaultCallsPerMinute),
		logger:      logger,
	}
	s.registerTools()
	return s, nil
}

// createLogger builds a stderr logger at the requested level. The stdio
// transport owns stdout, so nothing may ever log there.
func createLogger(level string) (*slog.Logger, error) {
	var l slog.Level
	switch level {
	case "debug":
		l = slog.LevelDebug
	case "info", "":
		l = slog.LevelInfo
	case "warn":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q (expected debug, info, warn, or error)", level)
	}

	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})
	return slog.New(handler), nil
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "baton_validate",
		Description: "Validate pipeline YAML content without executing it. Returns structured errors with suggestions.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pipeline_yaml": map[string]interface{}{
					"type":        "string",
					"description": "The complete YAML content of the pipeline to validate",
				},
			},
			Required: []string{"pipeline_yaml"},
		},
	}, s.handleValidate)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "baton_list_pipelines",
		Description: "List pipeline files under a directory with their names, descriptions, and declared inputs.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"directory": map[string]interface{}{
					"type":        "string",
					"description": "Directory to search (defaults to the server's working directory)",
				},
			},
		},
	}, s.handleListPipelines)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "baton_run_pipeline",
		Description: "Run a pipeline file with optional dry-run mode. IMPORTANT: dry_run defaults to true for safety. Set dry_run=false explicitly to execute.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"pipeline_path": map[string]interface{}{
					"type":        "string",
					"description": "Path to the pipeline YAML file",
				},
				"inputs": map[string]interface{}{
					"type":        "object",
					"description": "Input values for pipeline parameters",
				},
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "Show the execution plan without running steps (default: true)",
				},
			},
			Required: []string{"pipeline_path"},
		},
	}, s.handleRunPipeline)
}

// Run serves MCP over stdin/stdout until the client disconnects.
func (s *Server) Run() error {
	s.logger.Info("starting MCP server",
		slog.String("name", s.name),
		slog.String("version", s.version))
	return server.ServeStdio(s.mcpServer)
}

func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
