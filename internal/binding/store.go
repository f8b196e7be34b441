// Package binding persists the working-directory-scoped documents owned by
// implementation executors: the agent definition and the task history.
package binding

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// Definition describes an implementation executor's remit within its
// working area. It is externally owned and read-only from this side.
type Definition struct {
	// Role is the executor role, always "implementation" in practice.
	Role string `json:"role"`
	// Responsibilities lists what this executor is accountable for.
	Responsibilities []string `json:"responsibilities,omitempty"`
	// WorkingDirectory is the working area this definition applies to.
	WorkingDirectory string `json:"working_directory"`
	// FilePatterns lists glob patterns the executor may touch.
	FilePatterns []string `json:"file_patterns,omitempty"`
}

// CompletedTask is one history entry recorded after a processed task.
type CompletedTask struct {
	Timestamp     string   `json:"timestamp"`
	Task          string   `json:"task"`
	FilesModified []string `json:"files_modified"`
	Status        string   `json:"status"`
}

// History is the append-only task record for one binding context.
// The read-modify-write cycle is not transactional: callers must serialize
// access per context.
type History struct {
	CompletedTasks []CompletedTask `json:"completed_tasks"`
	CurrentContext map[string]any  `json:"current_context"`
}

// NewContext builds a binding context rooted at the given working directory,
// using the conventional document file names.
func NewContext(workingDirectory string) *models.BindingContext {
	return &models.BindingContext{
		WorkingDirectory: workingDirectory,
		DefinitionFile:   filepath.Join(workingDirectory, "agent_definition.json"),
		HistoryFile:      filepath.Join(workingDirectory, "agent_history.json"),
	}
}

// LoadDefinition reads the definition document for a context.
// A missing file yields an empty definition, not an error.
func LoadDefinition(ctx *models.BindingContext) (*Definition, error) {
	def := &Definition{}
	if err := loadJSON(ctx.DefinitionFile, def); err != nil {
		return nil, fmt.Errorf("load definition %s: %w", ctx.DefinitionFile, err)
	}
	return def, nil
}

// LoadHistory reads the history document for a context.
// A missing file yields an empty history, not an error.
func LoadHistory(ctx *models.BindingContext) (*History, error) {
	h := &History{}
	if err := loadJSON(ctx.HistoryFile, h); err != nil {
		return nil, fmt.Errorf("load history %s: %w", ctx.HistoryFile, err)
	}
	if h.CurrentContext == nil {
		h.CurrentContext = make(map[string]any)
	}
	return h, nil
}

// SaveHistory writes the history document for a context, creating parent
// directories as needed.
func SaveHistory(ctx *models.BindingContext, h *History) error {
	if err := saveJSON(ctx.HistoryFile, h); err != nil {
		return fmt.Errorf("save history %s: %w", ctx.HistoryFile, err)
	}
	return nil
}

// SaveDefinition writes the definition document for a context.
// It exists for bootstrap tooling; the engine itself never rewrites
// definitions.
func SaveDefinition(ctx *models.BindingContext, def *Definition) error {
	if err := saveJSON(ctx.DefinitionFile, def); err != nil {
		return fmt.Errorf("save definition %s: %w", ctx.DefinitionFile, err)
	}
	return nil
}

// loadJSON decodes a JSON file into v. Missing files are treated as empty
// documents and leave v untouched.
func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, v)
}

// saveJSON encodes v to a JSON file, creating parent directories.
func saveJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
