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

// Package mcpcmd starts the MCP server over stdio.
package mcpcmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/internal/log"
	"github.com/tombee/baton/internal/mcp"
	"github.com/tombee/baton/pkg/llm"
	"github.com/tombee/baton/pkg/pipeline"
)

// NewCommand creates the mcp command
func NewCommand() *cobra.Command {
	var (
		logLevel string
		dir      string
	)

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server",
		Long: `Start the baton MCP (Model Context Protocol) server.

The MCP server exposes baton functionality as tools that AI coding assistants
(Claude Code, Cursor, Gemini CLI) can use to validate pipelines, run them, and
list pipeline files. It runs in stdio mode, which is suitable for integration
with AI assistants via their MCP configuration.

Configuration example for an MCP client:
  {
    "mcpServers": {
      "baton": {
        "command": "baton",
        "args": ["mcp"]
      }
    }
  }

The server exposes these tools:
  - baton_validate: Validate pipeline YAML
  - baton_list_pipelines: List pipeline files with their inputs
  - baton_run_pipeline: Execute a pipeline (dry-run default)

For safety, the baton_run_pipeline tool defaults to dry_run=true. AI assistants
must explicitly set dry_run=false to execute pipelines. The stdio transport owns
stdout, so all logging goes to stderr.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(logLevel, dir)
		},
	}

	cmd.Flags().StringVar(&logLevel, "log-level", "info", "logging verbosity (debug, info, warn, error)")
	cmd.Flags().StringVar(&dir, "dir", "", "directory searched for pipeline files (default: pipelines_dir from config)")

	return cmd
}

func runServer(logLevel, dir string) error {
	cfg, warnings, err := config.LoadWithSecrets(shared.ResolveConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	for _, w := range warnings {
		fmt.Fprintln(os.Stderr, shared.RenderWarn(w))
	}

	if dir == "" {
		dir = cfg.PipelinesDir
	}

	versionStr, _, _ := shared.GetVersion()
	srv, err := mcp.NewServer(mcp.Config{
		Name:     "baton",
		Version:  versionStr,
		LogLevel: logLevel,
		Dir:      dir,
		Executor: buildExecutor(cfg, logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}

	return srv.Run()
}

// buildExecutor wires a pipeline executor when providers are
// configured. Without one the run tool still works for dry runs.
func buildExecutor(cfg *config.Config, logLevel string) *pipeline.Executor {
	if len(cfg.Providers) == 0 {
		fmt.Fprintln(os.Stderr, shared.RenderWarn("no providers configured; pipeline execution limited to dry runs"))
		return nil
	}

	reg := llm.DefaultRegistry()
	if err := shared.ActivateProviders(cfg, reg); err != nil {
		fmt.Fprintln(os.Stderr, shared.RenderWarn(fmt.Sprintf("provider setup failed, pipeline execution limited to dry runs: %v", err)))
		return nil
	}

	logger := log.New(&log.Config{
		Level:  logLevel,
		Format: log.Format(cfg.Log.Format),
		Output: os.Stderr,
	})

	limits := pipeline.DefaultLimits()
	if cfg.Run.MaxParallel > 0 {
		limits.MaxParallel = cfg.Run.MaxParallel
	}
	if cfg.Run.DefaultTimeout > 0 {
		limits.RunTimeout = cfg.Run.DefaultTimeout
	}

	return pipeline.NewExecutor(reg).WithLogger(logger).WithLimits(limits)
}
