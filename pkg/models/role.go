package models

// Role identifies the category of executor responsible for a subtask.
type Role string

const (
	// RolePlanner decomposes objectives into subtasks.
	RolePlanner Role = "planner"
	// RoleLibrarian answers read-only knowledge requests.
	RoleLibrarian Role = "librarian"
	// RoleImplementation performs the actual implementation work.
	RoleImplementation Role = "implementation"
)

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RolePlanner, RoleLibrarian, RoleImplementation:
		return true
	default:
		return false
	}
}

// BindingContext is the working-directory-scoped state owned by exactly one
// implementation executor. Two executors must never share a binding context.
type BindingContext struct {
	// WorkingDirectory is the working area this context is bound to.
	WorkingDirectory string `json:"working_directory"`
	// DefinitionFile is the path to the persisted agent definition document.
	DefinitionFile string `json:"definition_file"`
	// HistoryFile is the path to the persisted agent history document.
	HistoryFile string `json:"history_file"`
}
