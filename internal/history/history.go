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

// Package history provides SQLite-backed storage for pipeline run history.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/baton/pkg/errors"
)

// Status describes the lifecycle state of a recorded run or step.
type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCanceled  Status = "canceled"
)

// Run is one recorded pipeline execution.
type Run struct {
	ID         string
	Pipeline   string
	Status     Status
	Provider   string
	Inputs     map[string]any
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time // zero while running
	Duration   time.Duration
}

// Step is one recorded step within a run.
type Step struct {
	RunID     string
	Name      string
	Index     int
	Status    Status
	Output    any
	Error     string
	TokensIn  int
	TokensOut int
	StartedAt time.Time
	Duration  time.Duration
}

// Filter narrows List results.
type Filter struct {
	Pipeline string
	Status   Status
	Since    *time.Time
	Limit    int
	Offset   int
}

// Store provides SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
// The special path ":memory:" creates an in-memory database.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	connStr := path
	if path != ":memory:" {
		// WAL for concurrent reads while a run is writing
		connStr += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == ":memory:" {
		// Each connection gets its own in-memory database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// migrate creates the database schema.
func (s *Store) migrate(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id TEXT PRIMARY KEY,
			pipeline TEXT NOT NULL,
			status TEXT NOT NULL,
			provider TEXT,
			inputs TEXT,
			error TEXT,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			duration_ms INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_pipeline ON runs(pipeline)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at)`,

		`CREATE TABLE IF NOT EXISTS run_steps (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id TEXT NOT NULL,
			step TEXT NOT NULL,
			step_index INTEGER NOT NULL,
			status TEXT NOT NULL,
			output TEXT,
			error TEXT,
			tokens_in INTEGER DEFAULT 0,
			tokens_out INTEGER DEFAULT 0,
			started_at INTEGER NOT NULL,
			duration_ms INTEGER,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_run_steps_run ON run_steps(run_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// RecordStart inserts a run in the running state.
func (s *Store) RecordStart(ctx context.Context, run *Run) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("run id is required")
	}

	inputsJSON, err := json.Marshal(run.Inputs)
	if err != nil {
		return fmt.Errorf("failed to marshal inputs: %w", err)
	}

	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	now := time.Now().UnixNano()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, pipeline, status, provider, inputs, error,
			started_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Pipeline, run.Status, run.Provider, string(inputsJSON), run.Error,
		run.StartedAt.UnixNano(), now, now)
	if err != nil {
		return fmt.Errorf("failed to record run start: %w", err)
	}

	return nil
}

// RecordFinish marks a run finished with the given status.
// Duration is derived from the recorded start time.
func (s *Store) RecordFinish(ctx context.Context, runID string, status Status, runErr error) error {
	errMsg := ""
	if runErr != nil {
		errMsg = runErr.Error()
	}

	now := time.Now().UnixNano()
	result, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, error = ?, finished_at = ?,
			duration_ms = (? - started_at) / 1000000, updated_at = ?
		WHERE run_id = ?
	`, status, errMsg, now, now, now, runID)
	if err != nil {
		return fmt.Errorf("failed to record run finish: %w", err)
	}

	affected, _ := result.RowsAffected()
	if affected == 0 {
		return &errors.NotFoundError{Resource: "run", ID: runID}
	}

	return nil
}

// RecordStep appends a step record to a run.
func (s *Store) RecordStep(ctx context.Context, step *Step) error {
	if step == nil || step.RunID == "" {
		return fmt.Errorf("step run id is required")
	}

	outputJSON, err := json.Marshal(step.Output)
	if err != nil {
		return fmt.Errorf("failed to marshal step output: %w", err)
	}

	if step.StartedAt.IsZero() {
		step.StartedAt = time.Now()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_steps (run_id, step, step_index, status, output, error,
			tokens_in, tokens_out, started_at, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, step.RunID, step.Name, step.Index, step.Status, string(outputJSON), step.Error,
		step.TokensIn, step.TokensOut, step.StartedAt.UnixNano(),
		step.Duration.Milliseconds(), time.Now().UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record step: %w", err)
	}

	return nil
}

// Get retrieves a run by ID.
func (s *Store) Get(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, pipeline, status, provider, inputs, error,
			started_at, finished_at, duration_ms
		FROM runs WHERE run_id = ?
	`, runID)

	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, &errors.NotFoundError{Resource: "run", ID: runID}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return run, nil
}

// GetSteps retrieves the step records for a run in execution order.
func (s *Store) GetSteps(ctx context.Context, runID string) ([]Step, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, step, step_index, status, output, error,
			tokens_in, tokens_out, started_at, duration_ms
		FROM run_steps WHERE run_id = ?
		ORDER BY id ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query steps: %w", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		var step Step
		var outputJSON, errMsg string
		var startedAt int64
		var durationMs sql.NullInt64

		if err := rows.Scan(&step.RunID, &step.Name, &step.Index, &step.Status,
			&outputJSON, &errMsg, &step.TokensIn, &step.TokensOut,
			&startedAt, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan step: %w", err)
		}

		step.Error = errMsg
		step.StartedAt = time.Unix(0, startedAt)
		if durationMs.Valid {
			step.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		}
		if outputJSON != "" && outputJSON != "null" {
			if err := json.Unmarshal([]byte(outputJSON), &step.Output); err != nil {
				return nil, fmt.Errorf("failed to unmarshal step output: %w", err)
			}
		}

		steps = append(steps, step)
	}

	return steps, rows.Err()
}

// List returns runs matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter Filter) ([]Run, error) {
	query := `
		SELECT run_id, pipeline, status, provider, inputs, error,
			started_at, finished_at, duration_ms
		FROM runs WHERE 1=1`
	args := []any{}

	if filter.Pipeline != "" {
		query += " AND pipeline = ?"
		args = append(args, filter.Pipeline)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, filter.Status)
	}
	if filter.Since != nil {
		query += " AND started_at >= ?"
		args = append(args, filter.Since.UnixNano())
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// Prune deletes runs that started before the given time, along with their
// step records. Returns the number of runs deleted.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM runs WHERE started_at < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}

	count, _ := result.RowsAffected()

	_, err = s.db.ExecContext(ctx,
		"DELETE FROM run_steps WHERE run_id NOT IN (SELECT run_id FROM runs)")
	if err != nil {
		return count, fmt.Errorf("failed to prune orphaned steps: %w", err)
	}

	return count, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying database connection for advanced queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var run Run
	var inputsJSON, errMsg string
	var startedAt int64
	var finishedAt, durationMs sql.NullInt64

	err := row.Scan(&run.ID, &run.Pipeline, &run.Status, &run.Provider,
		&inputsJSON, &errMsg, &startedAt, &finishedAt, &durationMs)
	if err != nil {
		return nil, err
	}

	run.Error = errMsg
	run.StartedAt = time.Unix(0, startedAt)
	if finishedAt.Valid {
		run.FinishedAt = time.Unix(0, finishedAt.Int64)
	}
	if durationMs.Valid {
		run.Duration = time.Duration(durationMs.Int64) * time.Millisecond
	}
	if inputsJSON != "" && inputsJSON != "null" {
		if err := json.Unmarshal([]byte(inputsJSON), &run.Inputs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal inputs: %w", err)
		}
	}

	return &run, nil
}
