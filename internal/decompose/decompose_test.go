package decompose

import (
	"context"
	"strings"
	"testing"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

func TestStaticDecompose(t *testing.T) {
	d := NewStatic([]string{"frontend", "backend"})
	objective := "Create a hello world app with frontend and backend"

	subtasks, err := d.Decompose(context.Background(), objective)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subtasks))
	}

	wantDescs := []string{
		"Implement frontend for: " + objective,
		"Implement backend for: " + objective,
	}
	for i, st := range subtasks {
		if st.Description != wantDescs[i] {
			t.Errorf("subtask %d: expected %q, got %q", i, wantDescs[i], st.Description)
		}
		if st.Role != models.RoleImplementation {
			t.Errorf("subtask %d: expected implementation role, got %s", i, st.Role)
		}
		if len(st.DependsOn) != 0 {
			t.Errorf("subtask %d: expected empty dependency set, got %v", i, st.DependsOn)
		}
		if st.ID == "" {
			t.Errorf("subtask %d: expected generated ID", i)
		}
		if st.Status != models.SubtaskPending {
			t.Errorf("subtask %d: expected pending, got %s", i, st.Status)
		}
	}

	if subtasks[0].ID == subtasks[1].ID {
		t.Error("expected distinct subtask IDs")
	}
}

func TestStaticDecomposeNoWorkspaces(t *testing.T) {
	d := NewStatic(nil)
	if _, err := d.Decompose(context.Background(), "anything"); err == nil {
		t.Error("expected error with no workspaces configured")
	}
}

func TestParseResponseTranslatesDependencies(t *testing.T) {
	response := `Here is the plan:
[
  {"description": "Create the data model", "role": "implementation", "workspace": "backend", "depends_on": []},
  {"description": "Expose the api", "role": "implementation", "workspace": "backend", "depends_on": ["Create the data model"]}
]`

	subtasks, err := ParseResponse(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subtasks))
	}

	if len(subtasks[0].DependsOn) != 0 {
		t.Errorf("expected no dependencies on first subtask, got %v", subtasks[0].DependsOn)
	}
	if len(subtasks[1].DependsOn) != 1 {
		t.Fatalf("expected 1 dependency, got %v", subtasks[1].DependsOn)
	}
	if subtasks[1].DependsOn[0] != subtasks[0].ID {
		t.Errorf("expected dependency translated to first subtask's ID %s, got %s",
			subtasks[0].ID, subtasks[1].DependsOn[0])
	}
}

func TestParseResponseUnknownDependency(t *testing.T) {
	response := `[{"description": "Build it", "role": "implementation", "depends_on": ["does not exist"]}]`
	if _, err := ParseResponse(response); err == nil {
		t.Error("expected error for unknown dependency description")
	}
}

func TestParseResponseNoJSON(t *testing.T) {
	if _, err := ParseResponse("sorry, I cannot help with that"); err == nil {
		t.Error("expected error for response without JSON array")
	}
}

func TestParseResponseEmptyList(t *testing.T) {
	if _, err := ParseResponse("[]"); err == nil {
		t.Error("expected error for empty subtask list")
	}
}

func TestParseResponseInvalidRoleDefaultsToImplementation(t *testing.T) {
	response := `[{"description": "Do something", "role": "wizard", "depends_on": []}]`
	subtasks, err := ParseResponse(response)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if subtasks[0].Role != models.RoleImplementation {
		t.Errorf("expected fallback to implementation role, got %s", subtasks[0].Role)
	}
}

func TestValidateNoCyclesAccepts(t *testing.T) {
	subtasks, err := ParseResponse(`[
		{"description": "a", "depends_on": []},
		{"description": "b", "depends_on": ["a"]},
		{"description": "c", "depends_on": ["a", "b"]}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateNoCycles(subtasks); err != nil {
		t.Errorf("expected acyclic set to validate, got %v", err)
	}
}

func TestValidateNoCyclesRejects(t *testing.T) {
	subtasks, err := ParseResponse(`[
		{"description": "a", "depends_on": ["b"]},
		{"description": "b", "depends_on": ["a"]}
	]`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err = ValidateNoCycles(subtasks)
	if err == nil || !strings.Contains(err.Error(), "circular") {
		t.Errorf("expected cycle error, got %v", err)
	}
}

func TestValidateNoCyclesSelfLoop(t *testing.T) {
	a := &models.Subtask{ID: "a", Description: "a", DependsOn: []string{"a"}}
	if err := ValidateNoCycles([]*models.Subtask{a}); err == nil {
		t.Error("expected self-loop to be rejected")
	}
}
