package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stagehand-ai/stagehand/internal/state"
	"github.com/stagehand-ai/stagehand/pkg/models"
)

var (
	statusLimit int
	statusRunID int64
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show recorded runs for this project",
	Long: `Display runs recorded in the project's state database.

Without flags, lists the most recent runs. Use --run to show one run's
subtasks and dispatch results in detail.`,
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().IntVar(&statusLimit, "limit", 10, "Number of runs to list")
	statusCmd.Flags().Int64Var(&statusRunID, "run", 0, "Show details for one run ID")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("get working directory: %w", err)
	}

	dbPath := state.ProjectDBPath(cwd)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No recorded runs. Run 'stagehand run <objective>' to start.")
		return nil
	}

	db, err := state.OpenProject(cwd)
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()

	if statusRunID != 0 {
		return printRunDetail(db, statusRunID)
	}
	return printRunList(db)
}

func printRunList(db *state.DB) error {
	runs, err := db.ListRuns(statusLimit)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Println("No recorded runs.")
		return nil
	}

	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)

	for _, r := range runs {
		status := green.Sprint(r.Status)
		if r.Status != models.StatusSuccess {
			status = red.Sprint(r.Status)
		}
		fmt.Printf("#%d  %s  %s  (completed %d, failed %d, pending %d)\n",
			r.ID, r.FinishedAt.Local().Format("2006-01-02 15:04"), status,
			r.Completed, r.Failed, r.Pending)
		fmt.Printf("    %s\n", r.Objective)
	}
	return nil
}

func printRunDetail(db *state.DB, runID int64) error {
	run, err := db.GetRun(runID)
	if err != nil {
		return err
	}

	fmt.Printf("Run #%d: %s\n", run.ID, run.Objective)
	fmt.Printf("Status: %s", run.Status)
	if run.Error != "" {
		fmt.Printf(" (%s)", run.Error)
	}
	fmt.Println()

	subtasks, err := db.RunSubtasks(runID)
	if err != nil {
		return err
	}
	if len(subtasks) > 0 {
		fmt.Println("\nSubtasks:")
		for _, st := range subtasks {
			line := fmt.Sprintf("  [%s] %s", st.Status, st.Description)
			if st.Attempts > 0 {
				line += fmt.Sprintf(" (%d attempts)", st.Attempts)
			}
			if st.Error != "" {
				line += fmt.Sprintf(" - %s", st.Error)
			}
			fmt.Println(line)
		}
	}

	results, err := db.RunResults(runID)
	if err != nil {
		return err
	}
	if len(results) > 0 {
		fmt.Println("\nDispatch log:")
		for i, r := range results {
			line := fmt.Sprintf("  %2d. %s -> %s", i+1, r.ExecutorID, r.Outcome.Status)
			if r.Outcome.ErrorMessage != "" {
				line += fmt.Sprintf(" (%s)", r.Outcome.ErrorMessage)
			}
			fmt.Println(line)
		}
	}
	return nil
}
