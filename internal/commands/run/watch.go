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
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tombee/baton/internal/commands/shared"
	"github.com/tombee/baton/internal/config"
	"github.com/tombee/baton/internal/watch"
)

// watchAndRun executes the pipeline once, then re-executes it whenever
// the file changes. Run failures are reported but keep the watch alive;
// only watcher failures or cancellation end the loop.
func watchAndRun(ctx context.Context, path string, cfg *config.Config, logger *slog.Logger, execute func(context.Context) error) error {
	quiet := shared.GetQuiet()

	watcher, err := watch.New(watch.Config{
		Paths:    []string{path},
		Debounce: cfg.Run.WatchDebounce,
		Logger:   logger,
	})
	if err != nil {
		return shared.NewExecutionError("failed to watch pipeline file", err)
	}
	defer watcher.Close()

	if !quiet {
		fmt.Fprintf(os.Stderr, "Watching %s for changes (Ctrl+C to stop)\n\n", path)
	}

	reportRun(execute(ctx), quiet)

	for {
		select {
		case <-ctx.Done():
			if !quiet {
				fmt.Fprintln(os.Stderr, "\nWatch stopped.")
			}
			return nil

		case _, ok := <-watcher.Changes():
			if !ok {
				return nil
			}
			if !quiet {
				fmt.Fprintf(os.Stderr, "\nPipeline changed, re-running...\n\n")
			}
			reportRun(execute(ctx), quiet)
		}
	}
}

// reportRun surfaces a run failure without breaking the watch loop.
// Exit codes only matter for the final run, which cancellation ends.
func reportRun(err error, quiet bool) {
	if err == nil || quiet {
		return
	}
	var exitErr *shared.ExitError
	if errors.As(err, &exitErr) {
		fmt.Fprintln(os.Stderr, shared.RenderError(exitErr.Message))
		return
	}
	fmt.Fprintln(os.Stderr, shared.RenderError(err.Error()))
}
