// Package decompose turns a high-level objective into subtasks.
//
// The engine only requires the Decomposer contract; the static decomposer
// emits one subtask per workspace, while the Claude decomposer delegates to
// the Anthropic API and may return any acyclic dependency set.
package decompose

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// ErrCycleDetected indicates a circular dependency in a decomposition.
var ErrCycleDetected = errors.New("circular dependency detected")

// Decomposer produces the subtasks for an objective.
type Decomposer interface {
	Decompose(ctx context.Context, objective string) ([]*models.Subtask, error)
}

// Static emits one implementation subtask per configured workspace, each
// with an empty dependency set. It is the default decomposition when no
// external collaborator is configured.
type Static struct {
	workspaces []string
}

// NewStatic creates a static decomposer for the given workspace names.
func NewStatic(workspaces []string) *Static {
	return &Static{workspaces: workspaces}
}

// Decompose emits "Implement <area> for: <objective>" per workspace.
func (s *Static) Decompose(_ context.Context, objective string) ([]*models.Subtask, error) {
	if len(s.workspaces) == 0 {
		return nil, fmt.Errorf("no workspaces configured")
	}

	now := time.Now()
	subtasks := make([]*models.Subtask, 0, len(s.workspaces))
	for _, area := range s.workspaces {
		subtasks = append(subtasks, &models.Subtask{
			ID:          uuid.New().String(),
			Description: fmt.Sprintf("Implement %s for: %s", area, objective),
			Role:        models.RoleImplementation,
			Workspace:   area,
			Status:      models.SubtaskPending,
			CreatedAt:   now,
		})
	}
	return subtasks, nil
}

// decomposedSubtask is the JSON structure an external decomposition
// collaborator returns for a single subtask. Dependencies are declared by
// description; ParseResponse translates them to generated IDs.
type decomposedSubtask struct {
	Description string   `json:"description"`
	Role        string   `json:"role"`
	Workspace   string   `json:"workspace"`
	DependsOn   []string `json:"depends_on"`
	Priority    int      `json:"priority"`
}

// ParseResponse extracts the JSON subtask array from a collaborator
// response, assigns each subtask a stable ID, and translates
// description-declared dependencies into IDs.
//
// Duplicate descriptions are a known weakness of description-keyed
// decompositions: the first-declared sibling wins and a warning is logged.
func ParseResponse(response string) ([]*models.Subtask, error) {
	jsonStart := strings.Index(response, "[")
	jsonEnd := strings.LastIndex(response, "]")
	if jsonStart == -1 || jsonEnd == -1 || jsonEnd <= jsonStart {
		preview := response
		if len(preview) > 500 {
			preview = preview[:500] + "... (truncated)"
		}
		return nil, fmt.Errorf("no JSON array found in response (got %d chars): %q", len(response), preview)
	}

	var decomposed []decomposedSubtask
	if err := json.Unmarshal([]byte(response[jsonStart:jsonEnd+1]), &decomposed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if len(decomposed) == 0 {
		return nil, fmt.Errorf("empty subtask list returned")
	}

	// First pass: assign IDs and build the description -> ID table.
	descToID := make(map[string]string, len(decomposed))
	now := time.Now()
	subtasks := make([]*models.Subtask, len(decomposed))
	for i, d := range decomposed {
		if strings.TrimSpace(d.Description) == "" {
			return nil, fmt.Errorf("subtask %d has an empty description", i)
		}
		id := uuid.New().String()
		if _, dup := descToID[d.Description]; dup {
			log.Printf("[decompose] warning: duplicate subtask description %q, dependencies resolve to the first occurrence", d.Description)
		} else {
			descToID[d.Description] = id
		}

		role := models.Role(strings.ToLower(d.Role))
		if !role.Valid() {
			role = models.RoleImplementation
		}

		subtasks[i] = &models.Subtask{
			ID:          id,
			Description: d.Description,
			Role:        role,
			Workspace:   d.Workspace,
			Status:      models.SubtaskPending,
			CreatedAt:   now,
		}
	}

	// Second pass: translate dependency descriptions to IDs.
	for i, d := range decomposed {
		for _, dep := range d.DependsOn {
			depID, ok := descToID[dep]
			if !ok {
				return nil, fmt.Errorf("subtask %q depends on unknown subtask %q", d.Description, dep)
			}
			subtasks[i].DependsOn = append(subtasks[i].DependsOn, depID)
		}
	}

	return subtasks, nil
}

// ValidateNoCycles rejects decompositions with circular dependencies.
// Uses depth-first search with coloring to detect back edges.
func ValidateNoCycles(subtasks []*models.Subtask) error {
	edges := make(map[string][]string, len(subtasks))
	for _, st := range subtasks {
		edges[st.ID] = st.DependsOn
	}

	// Color states: 0 = unvisited, 1 = in progress, 2 = done.
	colors := make(map[string]int, len(subtasks))

	var visit func(id string) bool
	visit = func(id string) bool {
		colors[id] = 1
		for _, dep := range edges[id] {
			switch colors[dep] {
			case 1:
				return true
			case 0:
				if visit(dep) {
					return true
				}
			}
		}
		colors[id] = 2
		return false
	}

	for id := range edges {
		if colors[id] == 0 {
			if visit(id) {
				return ErrCycleDetected
			}
		}
	}
	return nil
}
