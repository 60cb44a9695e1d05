package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBeginRun_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	run := createTestRun("run-1", 0)
	run.Vars = map[string]string{"target": "sut01", "build": "2026.03"}
	require.NoError(t, s.BeginRun(ctx, run))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", got.ID)
	assert.Equal(t, StatusRunning, got.Status)
	assert.Equal(t, run.Vars, got.Vars)
	assert.True(t, got.StartedAt.Equal(run.StartedAt))
	assert.True(t, got.EndedAt.IsZero())

	var vars string
	require.NoError(t, s.db.QueryRow("SELECT vars FROM runs WHERE id = ?", "run-1").Scan(&vars))
	assert.Equal(t, `{"build":"2026.03","target":"sut01"}`, vars)
}

func TestBeginRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, createTestRun("run-1", 0)))
	require.NoError(t, s.BeginRun(ctx, createTestRun("run-1", time.Hour)))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.True(t, runs[0].StartedAt.Equal(testEpoch))
}

func TestEndRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, createTestRun("run-1", 0)))
	ended := testEpoch.Add(90 * time.Second)
	require.NoError(t, s.EndRun(ctx, "run-1", ended, StatusCompleted))

	got, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, got.Status)
	assert.True(t, got.EndedAt.Equal(ended))

	err = s.EndRun(ctx, "missing", ended, StatusCompleted)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestRecordStep_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginRun(ctx, createTestRun("run-1", 0)))
	first := createTestStep("run-1", 1, "Wait: 5", 5*time.Second)
	require.NoError(t, s.RecordStep(ctx, first))

	retry := first
	retry.Error = "changed"
	require.NoError(t, s.RecordStep(ctx, retry))

	steps, err := s.ReadSteps(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Empty(t, steps[0].Error)
}

func TestRecordStep_ForeignKeyViolation(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordStep(context.Background(), createTestStep("missing", 1, "Wait: 1", time.Second))
	assert.Error(t, err)
}

func TestRecordStep_MissingRunID(t *testing.T) {
	s := createTestStore(t)
	err := s.RecordStep(context.Background(), StepExecution{Seq: 1})
	assert.ErrorContains(t, err, "missing run id")
}
