package store

import "time"

// Run statuses.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusStopped   = "stopped"
)

// Run is one queue worker session.
type Run struct {
	ID          string
	Source      string // what fed the queue: a step file, an inbox directory
	ToolVersion string
	Vars        map[string]string // interpolation variables in effect
	StartedAt   time.Time
	EndedAt     time.Time // zero while running
	Status      string
}

// StepExecution is one executed queue step.
type StepExecution struct {
	RunID     string
	Seq       int64
	Step      string
	Source    string
	StartedAt time.Time
	EndedAt   time.Time
	Elapsed   time.Duration
	Error     string // empty on success
}

// Failed reports whether the step ended with an error.
func (e StepExecution) Failed() bool {
	return e.Error != ""
}
