// Package models defines the core types shared across the orchestration
// engine: subtasks, roles, executor outcomes, and run-level results.
package models

import "time"

// ErrorKind classifies the failure mode of an executor pipeline stage.
type ErrorKind string

const (
	// ErrKindNone means the outcome was a success.
	ErrKindNone ErrorKind = ""
	// ErrKindContextGather indicates the context-gathering stage failed.
	ErrKindContextGather ErrorKind = "context_gather"
	// ErrKindValidation indicates a requirements-validation failure.
	ErrKindValidation ErrorKind = "requirements_validation"
	// ErrKindImplementation indicates the implementation stage failed.
	ErrKindImplementation ErrorKind = "implementation"
	// ErrKindTestFailure indicates the test stage failed.
	ErrKindTestFailure ErrorKind = "test_failure"
	// ErrKindPlanning indicates objective decomposition failed.
	ErrKindPlanning ErrorKind = "planning"
	// ErrKindUnknownTask indicates the librarian received an
	// unrecognized task kind.
	ErrKindUnknownTask ErrorKind = "unknown_task"
	// ErrKindGeneric wraps any unexpected fault recovered during dispatch.
	ErrKindGeneric ErrorKind = "generic"
)

// Outcome statuses. Every pipeline invocation produces exactly one of these.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Outcome is the immutable result of one executor pipeline invocation.
type Outcome struct {
	// Role is the executor category that produced this outcome.
	Role Role `json:"role"`
	// Status is either StatusSuccess or StatusError.
	Status string `json:"status"`
	// Kind classifies the failure when Status is StatusError.
	Kind ErrorKind `json:"kind,omitempty"`
	// OutputFiles lists artifact identifiers produced by the task, if any.
	OutputFiles []string `json:"output_files,omitempty"`
	// ErrorMessage describes the failure when Status is StatusError.
	ErrorMessage string `json:"error_message,omitempty"`
}

// Success returns true if the outcome reports a successful execution.
func (o Outcome) Success() bool {
	return o.Status == StatusSuccess
}

// SuccessOutcome builds a success outcome for the given role.
func SuccessOutcome(role Role, outputFiles []string) Outcome {
	return Outcome{
		Role:        role,
		Status:      StatusSuccess,
		OutputFiles: outputFiles,
	}
}

// ErrorOutcome builds an error outcome for the given role.
func ErrorOutcome(role Role, kind ErrorKind, message string) Outcome {
	return Outcome{
		Role:         role,
		Status:       StatusError,
		Kind:         kind,
		ErrorMessage: message,
	}
}

// Event is one entry in the project's append-only event log.
type Event struct {
	// Type names the kind of event.
	Type string `json:"type"`
	// Data is the event payload.
	Data any `json:"data"`
	// Timestamp is when the event was recorded.
	Timestamp time.Time `json:"timestamp"`
}

// ProjectSnapshot is the aggregated, reportable view of a run.
type ProjectSnapshot struct {
	// DirectoryStructure is the most recent directory snapshot taken by
	// the librarian, if one was requested.
	DirectoryStructure map[string]any `json:"directory_structure,omitempty"`
	// AgentStatuses maps each role (qualified by working area for
	// implementation executors) to its latest outcome.
	AgentStatuses map[string]Outcome `json:"agent_statuses"`
	// EventLog is the append-only log of outcome-producing events.
	EventLog []Event `json:"event_log"`
	// Completed is the number of subtasks that succeeded.
	Completed int `json:"completed_tasks"`
	// Failed is the number of subtasks frozen as permanently failed.
	Failed int `json:"failed_tasks"`
	// Pending is the number of subtasks still awaiting dispatch.
	Pending int `json:"pending_tasks"`
	// Subtasks is the final state of every subtask in the run.
	Subtasks []*Subtask `json:"subtasks,omitempty"`
}

// TaskResult records the outcome of one dispatched subtask.
type TaskResult struct {
	// ExecutorID identifies the executor that ran the subtask, qualified
	// by working area for implementation executors.
	ExecutorID string `json:"executor_id"`
	// SubtaskID is the stable identifier of the subtask.
	SubtaskID string `json:"subtask_id"`
	// Description is the subtask description.
	Description string `json:"description"`
	// Outcome is the pipeline result.
	Outcome Outcome `json:"outcome"`
}

// RunResult is the document returned by a full orchestration run.
type RunResult struct {
	// Status is StatusSuccess unless planning itself failed.
	// A permanently failed subtask does not flip the run-level status;
	// callers that want stricter policy should inspect the snapshot's
	// Failed count.
	Status string `json:"status"`
	// Error describes the planning failure when Status is StatusError.
	Error string `json:"error,omitempty"`
	// Results lists per-subtask outcomes in dispatch order.
	Results []TaskResult `json:"results"`
	// ProjectStatus is the final project snapshot.
	ProjectStatus *ProjectSnapshot `json:"project_status"`
}
