package orchestrator

import (
	"sync"
	"time"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// EventType represents the type of run event.
type EventType string

const (
	// EventRunStarted indicates a run has started.
	EventRunStarted EventType = "run_started"
	// EventPlanReady indicates decomposition succeeded and subtasks are queued.
	EventPlanReady EventType = "plan_ready"
	// EventTaskStarted indicates a subtask has started execution.
	EventTaskStarted EventType = "task_started"
	// EventTaskCompleted indicates a subtask completed successfully.
	EventTaskCompleted EventType = "task_completed"
	// EventTaskRetrying indicates a subtask failed an attempt and remains
	// eligible for re-selection.
	EventTaskRetrying EventType = "task_retrying"
	// EventTaskFailed indicates a subtask exhausted its retry budget and is
	// frozen as permanently failed.
	EventTaskFailed EventType = "task_failed"
	// EventTaskBlocked indicates a pending subtask can never become ready
	// because a dependency is permanently failed.
	EventTaskBlocked EventType = "task_blocked"
	// EventRunDone indicates the run has finished.
	EventRunDone EventType = "run_done"
)

// RunEvent is one event emitted during a run. Events feed the TUI and the
// project's append-only event log.
type RunEvent struct {
	// Type is the kind of event.
	Type EventType
	// SubtaskID is the ID of the related subtask, if applicable.
	SubtaskID string
	// Description is the related subtask's description, if applicable.
	Description string
	// ExecutorID identifies the executor involved, if applicable.
	ExecutorID string
	// Message provides additional context about the event.
	Message string
	// Attempts is the subtask's failed-attempt count at emission time.
	Attempts int
	// Timestamp is when the event occurred.
	Timestamp time.Time
}

// ProjectState aggregates the observable state of a run: the latest
// outcome per executor and the append-only event log.
type ProjectState struct {
	mu       sync.Mutex
	statuses map[string]models.Outcome
	eventLog []models.Event
}

// NewProjectState creates an empty project state.
func NewProjectState() *ProjectState {
	return &ProjectState{
		statuses: make(map[string]models.Outcome),
	}
}

// RecordOutcome stores the latest outcome for an executor and appends a
// matching entry to the event log.
func (ps *ProjectState) RecordOutcome(executorID string, outcome models.Outcome) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.statuses[executorID] = outcome
	ps.eventLog = append(ps.eventLog, models.Event{
		Type:      "outcome",
		Data:      models.TaskResult{ExecutorID: executorID, Outcome: outcome},
		Timestamp: time.Now(),
	})
}

// AppendEvent adds an arbitrary entry to the event log.
func (ps *ProjectState) AppendEvent(eventType string, data any) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.eventLog = append(ps.eventLog, models.Event{
		Type:      eventType,
		Data:      data,
		Timestamp: time.Now(),
	})
}

// Statuses returns a copy of the latest outcome per executor.
func (ps *ProjectState) Statuses() map[string]models.Outcome {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	out := make(map[string]models.Outcome, len(ps.statuses))
	for k, v := range ps.statuses {
		out[k] = v
	}
	return out
}

// Events returns a copy of the event log.
func (ps *ProjectState) Events() []models.Event {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	out := make([]models.Event, len(ps.eventLog))
	copy(out, ps.eventLog)
	return out
}
