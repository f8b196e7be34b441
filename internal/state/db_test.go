package state

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleRunResult() *models.RunResult {
	now := time.Now()
	return &models.RunResult{
		Status: models.StatusSuccess,
		Results: []models.TaskResult{
			{
				ExecutorID:  "implementation (backend)",
				SubtaskID:   "st-1",
				Description: "Build the api",
				Outcome: models.Outcome{
					Role:        models.RoleImplementation,
					Status:      models.StatusSuccess,
					OutputFiles: []string{"routes.go", "handlers.go"},
				},
			},
			{
				ExecutorID:  "implementation (backend)",
				SubtaskID:   "st-2",
				Description: "Build the model",
				Outcome: models.Outcome{
					Role:         models.RoleImplementation,
					Status:       models.StatusError,
					Kind:         models.ErrKindImplementation,
					ErrorMessage: "generation failed",
				},
			},
		},
		ProjectStatus: &models.ProjectSnapshot{
			Completed: 1,
			Failed:    1,
			Pending:   0,
			Subtasks: []*models.Subtask{
				{
					ID:          "st-1",
					Description: "Build the api",
					Role:        models.RoleImplementation,
					Workspace:   "backend",
					Status:      models.SubtaskCompleted,
					CreatedAt:   now,
					CompletedAt: &now,
				},
				{
					ID:          "st-2",
					Description: "Build the model",
					Role:        models.RoleImplementation,
					Workspace:   "backend",
					DependsOn:   []string{"st-1"},
					Status:      models.SubtaskFailed,
					Attempts:    3,
					Error:       "generation failed",
					CreatedAt:   now,
				},
			},
		},
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}

func TestSaveAndGetRun(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.SaveRun("Build the service", sampleRunResult())
	if err != nil {
		t.Fatalf("save run: %v", err)
	}
	if runID == 0 {
		t.Fatal("expected non-zero run ID")
	}

	run, err := db.GetRun(runID)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if run.Objective != "Build the service" {
		t.Errorf("unexpected objective: %q", run.Objective)
	}
	if run.Status != models.StatusSuccess {
		t.Errorf("unexpected status: %q", run.Status)
	}
	if run.Completed != 1 || run.Failed != 1 || run.Pending != 0 {
		t.Errorf("unexpected counts: completed=%d failed=%d pending=%d",
			run.Completed, run.Failed, run.Pending)
	}
}

func TestRunSubtasksRoundTrip(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.SaveRun("Build the service", sampleRunResult())
	if err != nil {
		t.Fatalf("save run: %v", err)
	}

	subtasks, err := db.RunSubtasks(runID)
	if err != nil {
		t.Fatalf("run subtasks: %v", err)
	}
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subtasks))
	}

	failed := subtasks[1]
	if failed.Status != models.SubtaskFailed {
		t.Errorf("expected failed status, got %s", failed.Status)
	}
	if failed.Attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", failed.Attempts)
	}
	if len(failed.DependsOn) != 1 || failed.DependsOn[0] != "st-1" {
		t.Errorf("unexpected dependencies: %v", failed.DependsOn)
	}
	if subtasks[0].CompletedAt == nil {
		t.Error("expected completion time on succeeded subtask")
	}
}

func TestRunResultsOrdered(t *testing.T) {
	db := newTestDB(t)

	runID, err := db.SaveRun("Build the service", sampleRunResult())
	if err != nil {
		t.Fatalf("save run: %v", err)
	}

	results, err := db.RunResults(runID)
	if err != nil {
		t.Fatalf("run results: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}
	if results[0].SubtaskID != "st-1" || results[1].SubtaskID != "st-2" {
		t.Errorf("results out of order: %s, %s", results[0].SubtaskID, results[1].SubtaskID)
	}
	if len(results[0].Outcome.OutputFiles) != 2 {
		t.Errorf("unexpected output files: %v", results[0].Outcome.OutputFiles)
	}
	if results[1].Outcome.Kind != models.ErrKindImplementation {
		t.Errorf("unexpected kind: %s", results[1].Outcome.Kind)
	}
}

func TestListRunsNewestFirst(t *testing.T) {
	db := newTestDB(t)

	for _, objective := range []string{"first", "second", "third"} {
		if _, err := db.SaveRun(objective, sampleRunResult()); err != nil {
			t.Fatalf("save run: %v", err)
		}
	}

	runs, err := db.ListRuns(2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Objective != "third" || runs[1].Objective != "second" {
		t.Errorf("unexpected order: %q, %q", runs[0].Objective, runs[1].Objective)
	}
}

func TestPurgeOldRuns(t *testing.T) {
	db := newTestDB(t)

	if _, err := db.SaveRun("recent", sampleRunResult()); err != nil {
		t.Fatalf("save run: %v", err)
	}

	// Nothing is older than an hour.
	purged, err := db.PurgeOldRuns(time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 0 {
		t.Errorf("expected no runs purged, got %d", purged)
	}

	// Everything is older than a negative cutoff in the future.
	purged, err = db.PurgeOldRuns(-time.Hour)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if purged != 1 {
		t.Errorf("expected 1 run purged, got %d", purged)
	}
}
