package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, tool_version, vars, started_at, ended_at, status
		FROM runs
		WHERE id = ?
	`, id)
	return scanRun(row)
}

// ListRuns returns every run, oldest first.
// Runs started in the same instant are ordered by ID.
//
// Returns an empty slice (not nil) if there are no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source, tool_version, vars, started_at, ended_at, status
		FROM runs
		ORDER BY started_at ASC, id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LatestRun returns the most recently started run.
// Returns sql.ErrNoRows if the store is empty.
func (s *Store) LatestRun(ctx context.Context) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, source, tool_version, vars, started_at, ended_at, status
		FROM runs
		ORDER BY started_at DESC, id COLLATE BINARY DESC
		LIMIT 1
	`)
	return scanRun(row)
}

// ReadSteps returns the step executions of a run in seq order.
//
// Returns an empty slice (not nil) if the run has no steps.
func (s *Store) ReadSteps(ctx context.Context, runID string) ([]StepExecution, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, step, source, started_at, ended_at, elapsed_ns, error
		FROM step_executions
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	steps := []StepExecution{}
	for rows.Next() {
		exec, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, exec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate steps: %w", err)
	}
	return steps, nil
}

// LastSeq returns the highest recorded seq of a run, 0 if none.
func (s *Store) LastSeq(ctx context.Context, runID string) (int64, error) {
	var seq sql.NullInt64
	err := s.db.QueryRowContext(ctx, `
		SELECT MAX(seq) FROM step_executions WHERE run_id = ?
	`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq.Int64, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run           Run
		vars, started string
		ended         sql.NullString
	)
	if err := sc.Scan(&run.ID, &run.Source, &run.ToolVersion, &vars, &started, &ended, &run.Status); err != nil {
		if err == sql.ErrNoRows {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	var err error
	if run.Vars, err = unmarshalVars(vars); err != nil {
		return Run{}, err
	}
	if run.StartedAt, err = unmarshalTime(started); err != nil {
		return Run{}, err
	}
	if ended.Valid {
		if run.EndedAt, err = unmarshalTime(ended.String); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func scanStep(sc scanner) (StepExecution, error) {
	var (
		exec           StepExecution
		started, ended string
		elapsed        int64
	)
	if err := sc.Scan(&exec.RunID, &exec.Seq, &exec.Step, &exec.Source, &started, &ended, &elapsed, &exec.Error); err != nil {
		return StepExecution{}, fmt.Errorf("scan step: %w", err)
	}

	var err error
	if exec.StartedAt, err = unmarshalTime(started); err != nil {
		return StepExecution{}, err
	}
	if exec.EndedAt, err = unmarshalTime(ended); err != nil {
		return StepExecution{}, err
	}
	exec.Elapsed = time.Duration(elapsed)
	return exec, nil
}
