package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// BeginRun inserts a run record.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a duplicate ID is
// silently ignored.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	vars, err := marshalVars(run.Vars)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	status := run.Status
	if status == "" {
		status = StatusRunning
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, source, tool_version, vars, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		run.Source,
		run.ToolVersion,
		vars,
		marshalTime(run.StartedAt),
		status,
	)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	return nil
}

// EndRun records the end time and final status of a run.
// Returns sql.ErrNoRows if the run does not exist.
func (s *Store) EndRun(ctx context.Context, runID string, ended time.Time, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET ended_at = ?, status = ? WHERE id = ?
	`, marshalTime(ended), status, runID)
	if err != nil {
		return fmt.Errorf("end run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("end run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("end run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// RecordStep inserts a step execution record.
// Uses ON CONFLICT DO NOTHING: a second write for the same (run, seq) is
// silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) RecordStep(ctx context.Context, exec StepExecution) error {
	if exec.RunID == "" {
		return errors.New("record step: missing run id")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO step_executions
		(run_id, seq, step, source, started_at, ended_at, elapsed_ns, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		exec.RunID,
		exec.Seq,
		exec.Step,
		exec.Source,
		marshalTime(exec.StartedAt),
		marshalTime(exec.EndedAt),
		int64(exec.Elapsed),
		exec.Error,
	)
	if err != nil {
		return fmt.Errorf("record step %d: %w", exec.Seq, err)
	}
	return nil
}
