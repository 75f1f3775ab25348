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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/tombee/baton/internal/checkpoint"
	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/internal/history"
	"github.com/tombee/baton/internal/log"
	"github.com/tombee/baton/internal/telemetry"
	"github.com/tombee/baton/pkg/llm"
	"github.com/tombee/baton/pkg/pipeline"
)

// runPipeline executes a pipeline file end to end: parse, collect
// inputs, activate providers, run, and render the result.
func runPipeline(ctx context.Context, path string, opts *runOptions) error {
	quiet := shared.GetQuiet()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	def, err := loadPipeline(path)
	if err != nil {
		return err
	}

	// Handle --help-inputs flag
	if opts.helpInputs {
		showPipelineInputs(def)
		return nil
	}

	cfg, warnings, err := config.LoadWithSecrets(shared.ResolveConfigPath())
	if err != nil {
		return shared.NewProviderError("failed to load config", err)
	}
	if !quiet {
		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", w)
		}
	}

	inputs, err := parseInputs(opts.inputs, opts.inputFile)
	if err != nil {
		return shared.NewMissingInputError("failed to parse inputs", err)
	}
	inputs = coerceInputs(def, inputs)

	globals, err := parseGlobalVars(opts.setVars)
	if err != nil {
		return shared.NewMissingInputError("failed to parse variables", err)
	}

	// A resumed run reuses the checkpointed inputs, so only fresh runs
	// prompt for what is missing.
	resuming := opts.resume != ""
	if !resuming {
		if missing := def.MissingInputs(inputs); len(missing) > 0 {
			if opts.noInteractive || shared.IsNonInteractive() {
				return shared.NewMissingInputNonInteractiveError(formatMissingInputsError(missing), nil)
			}

			collected, err := collectMissingInputs(ctx, missing, quiet)
			if err != nil {
				return shared.NewMissingInputError("failed to collect inputs", err)
			}
			for k, v := range collected {
				inputs[k] = v
			}
		}
	}

	if opts.dryRun {
		return printPlan(def, cfg, opts)
	}

	logger := buildLogger(cfg)

	reg := llm.DefaultRegistry()
	if err := shared.ActivateProviders(cfg, reg); err != nil {
		return shared.NewProviderError("provider activation failed", err)
	}
	if opts.provider != "" {
		if _, err := reg.Get(opts.provider); err != nil {
			return shared.NewProviderError(fmt.Sprintf("provider %q is not configured", opts.provider), err)
		}
	}

	exec, cleanup, err := buildExecutor(ctx, cfg, reg, logger, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	runOpts := pipeline.RunOptions{
		Provider:   opts.provider,
		BaseDir:    filepath.Dir(path),
		GlobalVars: globals,
	}
	if resuming {
		runOpts.Resume = true
		if opts.resume != "latest" {
			runOpts.RunID = opts.resume
		}
	}

	if opts.watch {
		return watchAndRun(ctx, path, cfg, logger, func(ctx context.Context) error {
			def, err := loadPipeline(path)
			if err != nil {
				return err
			}
			return executeRun(ctx, exec, def, coerceInputs(def, inputs), runOpts, opts)
		})
	}

	return executeRun(ctx, exec, def, inputs, runOpts, opts)
}

// loadPipeline reads and parses a pipeline definition file.
func loadPipeline(path string) (*pipeline.Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, shared.NewInvalidPipelineError("failed to read pipeline file", err)
	}

	def, err := pipeline.Parse(data)
	if err != nil {
		return nil, shared.NewInvalidPipelineError("failed to parse pipeline", err)
	}

	return def, nil
}

// executeRun performs a single pipeline run and renders the outcome.
// The executor reports step failures through the result as well as the
// error, so the summary prints before the error propagates.
func executeRun(ctx context.Context, exec *pipeline.Executor, def *pipeline.Definition, inputs map[string]interface{}, runOpts pipeline.RunOptions, opts *runOptions) error {
	quiet := shared.GetQuiet()
	showSpinner := !quiet && !shared.GetVerbose() && opts.output != "json" && shared.ColorEnabled()

	var spinner *shared.Spinner
	if showSpinner {
		spinner = shared.NewSpinner()
		spinner.Start(fmt.Sprintf("Running pipeline: %s", def.Name))
	} else if !quiet && opts.output != "json" {
		fmt.Printf("Running pipeline: %s\n", def.Name)
	}

	result, runErr := exec.Run(ctx, def, inputs, runOpts)

	if spinner != nil {
		spinner.Stop()
	}

	if renderErr := printResult(result, runErr, opts); renderErr != nil {
		return renderErr
	}

	if runErr != nil {
		return shared.NewExecutionError("pipeline failed", runErr)
	}
	return nil
}

// buildLogger derives the CLI logger from config and verbosity flags.
func buildLogger(cfg *config.Config) *slog.Logger {
	logCfg := &log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		AddSource: cfg.Log.AddSource,
	}
	switch {
	case shared.GetVerbose():
		logCfg.Level = "debug"
	case shared.GetQuiet():
		logCfg.Level = "error"
	}
	return log.New(logCfg)
}

// buildExecutor wires the executor with history, checkpoints, and
// telemetry per configuration. The returned cleanup closes whatever
// was opened and must run after the pipeline finishes.
func buildExecutor(ctx context.Context, cfg *config.Config, reg *llm.Registry, logger *slog.Logger, opts *runOptions) (*pipeline.Executor, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	exec := pipeline.NewExecutor(reg).WithLogger(logger)

	limits := pipeline.DefaultLimits()
	if cfg.Run.MaxParallel > 0 {
		limits.MaxParallel = cfg.Run.MaxParallel
	}
	if cfg.Run.DefaultTimeout > 0 {
		limits.RunTimeout = cfg.Run.DefaultTimeout
	}
	if opts.timeout > 0 {
		limits.RunTimeout = opts.timeout
	}
	exec = exec.WithLimits(limits)

	if cfg.Run.CheckpointsEnabled || opts.resume != "" {
		mgr, err := checkpoint.NewManager(cfg.CheckpointDir())
		if err != nil {
			cleanup()
			return nil, nil, shared.NewExecutionError("failed to set up checkpoints", err)
		}
		exec = exec.WithCheckpoints(mgr)
	}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.HistoryPath())
		if err != nil {
			cleanup()
			return nil, nil, shared.NewExecutionError("failed to open run history", err)
		}
		closers = append(closers, func() { store.Close() })
		exec = exec.WithHistory(store)
	}

	if cfg.Telemetry.Enabled {
		versionStr, _, _ := shared.GetVersion()
		tcfg := telemetry.Config{
			Enabled:        true,
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: versionStr,
			Endpoint:       cfg.Telemetry.OTLPEndpoint,
			Insecure:       cfg.Telemetry.OTLPInsecure,
			MetricsAddr:    cfg.Telemetry.MetricsAddr,
		}
		if tcfg.Endpoint != "" {
			tcfg.Exporter = "otlp-grpc"
		}
		provider, err := telemetry.Setup(ctx, tcfg)
		if err != nil {
			cleanup()
			return nil, nil, shared.NewExecutionError("failed to set up telemetry", err)
		}
		closers = append(closers, func() {
			if err := provider.Shutdown(context.Background()); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		})
		exec = exec.WithTracer(provider.Tracer("baton/pipeline")).WithMetrics(provider.Metrics())
	}

	return exec, cleanup, nil
}
