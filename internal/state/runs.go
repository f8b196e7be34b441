package state

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// RunSummary is one row of the run listing.
type RunSummary struct {
	ID         int64
	Objective  string
	Status     string
	Error      string
	Completed  int
	Failed     int
	Pending    int
	FinishedAt time.Time
}

// SaveRun records a finished run with its subtasks and dispatch results.
// Returns the new run's ID.
func (db *DB) SaveRun(objective string, result *models.RunResult) (int64, error) {
	var runID int64

	err := db.Transaction(func(tx *sql.Tx) error {
		snap := result.ProjectStatus
		completed, failed, pending := 0, 0, 0
		if snap != nil {
			completed, failed, pending = snap.Completed, snap.Failed, snap.Pending
		}

		res, err := tx.Exec(`
			INSERT INTO runs (objective, status, error, completed_tasks, failed_tasks, pending_tasks, finished_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, objective, result.Status, result.Error, completed, failed, pending, formatTime(time.Now()))
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		runID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("run id: %w", err)
		}

		if snap != nil {
			for _, st := range snap.Subtasks {
				var completedAt any
				if st.CompletedAt != nil {
					completedAt = formatTime(*st.CompletedAt)
				}
				_, err := tx.Exec(`
					INSERT INTO run_subtasks (run_id, id, description, role, workspace, depends_on, status, attempts, error, created_at, completed_at)
					VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
				`, runID, st.ID, st.Description, string(st.Role), st.Workspace,
					strings.Join(st.DependsOn, ","), string(st.Status), st.Attempts,
					st.Error, formatTime(st.CreatedAt), completedAt)
				if err != nil {
					return fmt.Errorf("insert subtask %s: %w", st.ID, err)
				}
			}
		}

		for seq, r := range result.Results {
			_, err := tx.Exec(`
				INSERT INTO run_results (run_id, seq, executor_id, subtask_id, description, status, kind, error_message, output_files)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, runID, seq, r.ExecutorID, r.SubtaskID, r.Description,
				r.Outcome.Status, string(r.Outcome.Kind), r.Outcome.ErrorMessage,
				strings.Join(r.Outcome.OutputFiles, ","))
			if err != nil {
				return fmt.Errorf("insert result %d: %w", seq, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}
	return runID, nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.Query(`
		SELECT id, objective, status, COALESCE(error, ''), completed_tasks, failed_tasks, pending_tasks, finished_at
		FROM runs ORDER BY id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		var finishedAt string
		if err := rows.Scan(&r.ID, &r.Objective, &r.Status, &r.Error,
			&r.Completed, &r.Failed, &r.Pending, &finishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if t, err := parseTime(finishedAt); err == nil {
			r.FinishedAt = t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun returns one run summary by ID.
func (db *DB) GetRun(id int64) (*RunSummary, error) {
	var r RunSummary
	var finishedAt string
	err := db.QueryRow(`
		SELECT id, objective, status, COALESCE(error, ''), completed_tasks, failed_tasks, pending_tasks, finished_at
		FROM runs WHERE id = ?
	`, id).Scan(&r.ID, &r.Objective, &r.Status, &r.Error,
		&r.Completed, &r.Failed, &r.Pending, &finishedAt)
	if err != nil {
		return nil, fmt.Errorf("get run %d: %w", id, err)
	}
	if t, err := parseTime(finishedAt); err == nil {
		r.FinishedAt = t
	}
	return &r, nil
}

// RunSubtasks returns the recorded subtasks for a run.
func (db *DB) RunSubtasks(runID int64) ([]*models.Subtask, error) {
	rows, err := db.Query(`
		SELECT id, description, role, COALESCE(workspace, ''), COALESCE(depends_on, ''), status, attempts, COALESCE(error, ''), created_at, completed_at
		FROM run_subtasks WHERE run_id = ? ORDER BY rowid
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run subtasks: %w", err)
	}
	defer rows.Close()

	var subtasks []*models.Subtask
	for rows.Next() {
		var st models.Subtask
		var role, status, dependsOn, createdAt string
		var completedAt sql.NullString
		if err := rows.Scan(&st.ID, &st.Description, &role, &st.Workspace,
			&dependsOn, &status, &st.Attempts, &st.Error, &createdAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scan subtask: %w", err)
		}
		st.Role = models.Role(role)
		st.Status = models.SubtaskStatus(status)
		if dependsOn != "" {
			st.DependsOn = strings.Split(dependsOn, ",")
		}
		if t, err := parseTime(createdAt); err == nil {
			st.CreatedAt = t
		}
		st.CompletedAt = parseNullableTime(completedAt)
		subtasks = append(subtasks, &st)
	}
	return subtasks, rows.Err()
}

// RunResults returns the recorded dispatch results for a run in order.
func (db *DB) RunResults(runID int64) ([]models.TaskResult, error) {
	rows, err := db.Query(`
		SELECT executor_id, subtask_id, COALESCE(description, ''), status, COALESCE(kind, ''), COALESCE(error_message, ''), COALESCE(output_files, '')
		FROM run_results WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("run results: %w", err)
	}
	defer rows.Close()

	var results []models.TaskResult
	for rows.Next() {
		var r models.TaskResult
		var status, kind, outputFiles string
		if err := rows.Scan(&r.ExecutorID, &r.SubtaskID, &r.Description,
			&status, &kind, &r.Outcome.ErrorMessage, &outputFiles); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		r.Outcome.Status = status
		r.Outcome.Kind = models.ErrorKind(kind)
		if outputFiles != "" {
			r.Outcome.OutputFiles = strings.Split(outputFiles, ",")
		}
		results = append(results, r)
	}
	return results, rows.Err()
}
