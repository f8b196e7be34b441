package models

import "time"

// SubtaskStatus represents the current state of a subtask.
type SubtaskStatus string

const (
	// SubtaskPending indicates the subtask has not succeeded yet and is
	// still eligible for dispatch.
	SubtaskPending SubtaskStatus = "pending"
	// SubtaskCompleted indicates the subtask succeeded.
	SubtaskCompleted SubtaskStatus = "completed"
	// SubtaskFailed indicates the subtask exhausted its retry budget.
	// This state is terminal.
	SubtaskFailed SubtaskStatus = "failed"
)

// Valid returns true if the status is a known value.
func (s SubtaskStatus) Valid() bool {
	switch s {
	case SubtaskPending, SubtaskCompleted, SubtaskFailed:
		return true
	default:
		return false
	}
}

// Subtask is an atomic unit of work produced by decomposition.
type Subtask struct {
	// ID is the stable generated identifier for this subtask.
	// Dependencies declared by description are translated to IDs at
	// decomposition time, once all siblings are known.
	ID string `json:"id"`
	// Description is the human-readable statement of the work.
	Description string `json:"description"`
	// Role is the executor category responsible for this subtask.
	Role Role `json:"role"`
	// Workspace names the working area this subtask targets, if any.
	Workspace string `json:"workspace,omitempty"`
	// DependsOn lists subtask IDs that must complete before this one.
	DependsOn []string `json:"depends_on,omitempty"`
	// Status is the current state of the subtask.
	Status SubtaskStatus `json:"status"`
	// Attempts is the number of failed executions so far.
	// It never changes on success.
	Attempts int `json:"attempts"`
	// CreatedAt is when the subtask was created.
	CreatedAt time.Time `json:"created_at"`
	// CompletedAt is when the subtask completed, if it did.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error holds the most recent failure message, if any.
	Error string `json:"error,omitempty"`
}

// TaskRequest is the unit of work handed to an executor.
type TaskRequest struct {
	// Description is the subtask description being executed.
	Description string `json:"description"`
	// RequiredContext lists context references the executor should gather.
	RequiredContext []string `json:"required_context,omitempty"`
	// Priority is declared by callers but never consulted by the
	// dispatcher. It is preserved for compatibility with existing
	// decomposition collaborators.
	Priority int `json:"priority,omitempty"`
	// Binding is the binding context for implementation executors.
	Binding *BindingContext `json:"binding,omitempty"`
}
