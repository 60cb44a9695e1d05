package store

import (
	"path/filepath"
	"testing"
	"time"
)

var testEpoch = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// createTestStore creates a new temp-file store for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun creates a run record with minimal required fields.
func createTestRun(id string, offset time.Duration) Run {
	return Run{
		ID:          id,
		Source:      "steps.txt",
		ToolVersion: "test",
		StartedAt:   testEpoch.Add(offset),
	}
}

// createTestStep creates a step execution lasting elapsed.
func createTestStep(runID string, seq int64, step string, elapsed time.Duration) StepExecution {
	start := testEpoch.Add(time.Duration(seq) * time.Minute)
	return StepExecution{
		RunID:     runID,
		Seq:       seq,
		Step:      step,
		Source:    "cli",
		StartedAt: start,
		EndedAt:   start.Add(elapsed),
		Elapsed:   elapsed,
	}
}
