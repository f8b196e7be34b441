package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/stagehand-ai/stagehand/internal/decompose"
	"github.com/stagehand-ai/stagehand/pkg/models"
)

// failingGenerator always errors, driving subtasks to permanent failure.
type failingGenerator struct{}

func (failingGenerator) Generate(context.Context, string, string) ([]string, error) {
	return nil, fmt.Errorf("generation failed")
}

// failingDecomposer simulates a planner-side failure.
type failingDecomposer struct{}

func (failingDecomposer) Decompose(context.Context, string) ([]*models.Subtask, error) {
	return nil, fmt.Errorf("model unavailable")
}

// chainDecomposer emits two dependent subtasks in one workspace.
type chainDecomposer struct{}

func (chainDecomposer) Decompose(_ context.Context, objective string) ([]*models.Subtask, error) {
	first := &models.Subtask{
		ID:          uuid.New().String(),
		Description: "Build the api for: " + objective,
		Role:        models.RoleImplementation,
		Workspace:   "backend",
	}
	second := &models.Subtask{
		ID:          uuid.New().String(),
		Description: "Build the model for: " + objective,
		Role:        models.RoleImplementation,
		Workspace:   "backend",
		DependsOn:   []string{first.ID},
	}
	return []*models.Subtask{first, second}, nil
}

func newProjectRoot(t *testing.T, workspaces ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, ws := range workspaces {
		if err := os.MkdirAll(filepath.Join(root, ws), 0755); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func TestProcessHappyPath(t *testing.T) {
	root := newProjectRoot(t, "frontend", "backend")
	o, err := New(Config{
		ProjectRoot: root,
		Decomposer:  decompose.NewStatic([]string{"frontend", "backend"}),
		Workspaces:  []string{"frontend", "backend"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	result := o.Process(context.Background(), "Create a hello world app with frontend and backend")

	if result.Status != models.StatusSuccess {
		t.Fatalf("expected success run, got %s: %s", result.Status, result.Error)
	}
	if len(result.Results) != 2 {
		t.Fatalf("expected 2 task results, got %d", len(result.Results))
	}
	for _, r := range result.Results {
		if !r.Outcome.Success() {
			t.Errorf("subtask %s: expected success, got %s", r.SubtaskID, r.Outcome.ErrorMessage)
		}
	}

	snap := result.ProjectStatus
	if snap.Completed != 2 || snap.Failed != 0 || snap.Pending != 0 {
		t.Errorf("unexpected counts: completed=%d failed=%d pending=%d",
			snap.Completed, snap.Failed, snap.Pending)
	}
	if _, ok := snap.AgentStatuses["planner (core)"]; !ok {
		t.Error("expected planner status in snapshot")
	}
	if len(snap.EventLog) == 0 {
		t.Error("expected populated event log")
	}
}

func TestProcessRetriesThenFreezes(t *testing.T) {
	root := newProjectRoot(t, "backend")
	o, err := New(Config{
		ProjectRoot: root,
		Decomposer:  decompose.NewStatic([]string{"backend"}),
		Workspaces:  []string{"backend"},
		Generator:   failingGenerator{},
		RetryBudget: 3,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	result := o.Process(context.Background(), "Build the service")

	// A permanently failed subtask does not flip the run status.
	if result.Status != models.StatusSuccess {
		t.Fatalf("expected run-level success, got %s: %s", result.Status, result.Error)
	}
	if len(result.Results) != 3 {
		t.Fatalf("expected 3 attempts before freezing, got %d", len(result.Results))
	}

	snap := result.ProjectStatus
	if snap.Failed != 1 {
		t.Errorf("expected 1 permanently failed subtask, got %d", snap.Failed)
	}
	if snap.Pending != 0 {
		t.Errorf("expected no pending subtasks, got %d", snap.Pending)
	}

	for _, st := range snap.Subtasks {
		if st.Status != models.SubtaskFailed {
			t.Errorf("expected failed status, got %s", st.Status)
		}
		if st.Attempts != 3 {
			t.Errorf("expected 3 attempts, got %d", st.Attempts)
		}
		if st.Error == "" {
			t.Error("expected error recorded on frozen subtask")
		}
	}
}

func TestProcessBlockedDependents(t *testing.T) {
	root := newProjectRoot(t, "backend")
	o, err := New(Config{
		ProjectRoot: root,
		Decomposer:  chainDecomposer{},
		Workspaces:  []string{"backend"},
		Generator:   failingGenerator{},
		RetryBudget: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	result := o.Process(context.Background(), "Build the stack")

	if result.Status != models.StatusSuccess {
		t.Fatalf("expected run-level success, got %s", result.Status)
	}

	snap := result.ProjectStatus
	if snap.Failed != 1 {
		t.Errorf("expected 1 permanently failed subtask, got %d", snap.Failed)
	}
	// The dependent never ran: it stays pending, reported as such.
	if snap.Pending != 1 {
		t.Errorf("expected 1 unreachable pending subtask, got %d", snap.Pending)
	}
	// Only the first subtask consumed attempts: budget 2 means 2 results.
	if len(result.Results) != 2 {
		t.Errorf("expected 2 dispatched attempts, got %d", len(result.Results))
	}
}

func TestProcessPlannerFailureAbortsRun(t *testing.T) {
	root := newProjectRoot(t, "backend")
	events := make(chan RunEvent, 32)
	o, err := New(Config{
		ProjectRoot: root,
		Decomposer:  failingDecomposer{},
		Workspaces:  []string{"backend"},
		Events:      events,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	result := o.Process(context.Background(), "Build a spaceship")

	if result.Status != models.StatusError {
		t.Fatalf("expected error run, got %s", result.Status)
	}
	if result.Error == "" {
		t.Error("expected run-level error message")
	}
	if len(result.Results) != 0 {
		t.Errorf("expected zero subtask results, got %d", len(result.Results))
	}

	snap := result.ProjectStatus
	if snap.Completed != 0 || snap.Failed != 0 || snap.Pending != 0 {
		t.Errorf("expected empty graph, got completed=%d failed=%d pending=%d",
			snap.Completed, snap.Failed, snap.Pending)
	}
	if status, ok := snap.AgentStatuses["planner (core)"]; !ok || status.Success() {
		t.Error("expected planner error status in snapshot")
	}
}

func TestProcessUnknownWorkspaceFreezes(t *testing.T) {
	root := newProjectRoot(t, "backend")
	o, err := New(Config{
		ProjectRoot: root,
		Decomposer:  decompose.NewStatic([]string{"mobile"}),
		Workspaces:  []string{"backend"},
		RetryBudget: 2,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer o.Close()

	result := o.Process(context.Background(), "Build the app")

	if result.Status != models.StatusSuccess {
		t.Fatalf("expected run-level success, got %s", result.Status)
	}
	snap := result.ProjectStatus
	if snap.Failed != 1 {
		t.Errorf("expected unroutable subtask frozen as failed, got failed=%d", snap.Failed)
	}
}

func TestNewRequiresDecomposerAndWorkspaces(t *testing.T) {
	if _, err := New(Config{Workspaces: []string{"backend"}}); err == nil {
		t.Error("expected error without decomposer")
	}
	if _, err := New(Config{Decomposer: decompose.NewStatic([]string{"x"})}); err == nil {
		t.Error("expected error without workspaces")
	}
}
