package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/stagehand-ai/stagehand/internal/config"
	"github.com/stagehand-ai/stagehand/internal/decompose"
	"github.com/stagehand-ai/stagehand/internal/orchestrator"
	"github.com/stagehand-ai/stagehand/internal/state"
	"github.com/stagehand-ai/stagehand/internal/tui"
	"github.com/stagehand-ai/stagehand/pkg/models"
)

var (
	runRoot       string
	runDecomposer string
	runHeadless   bool
	runNoPersist  bool
)

var runCmd = &cobra.Command{
	Use:   "run <objective>",
	Short: "Run an objective through the orchestration engine",
	Long: `Run an objective: decompose it into subtasks and dispatch them
across the configured workspace executors.

The objective is first handed to the planner, whose decomposition failure
is the only condition that aborts the run. Each resulting subtask is
dispatched FIFO within its role once its dependencies have completed.
Failed subtasks are retried up to the configured budget and then frozen
as permanently failed; the run still finishes and reports them.

Decomposer selection (--decomposer):
  - static: one subtask per workspace (default, no API key required)
  - claude: Anthropic-backed decomposition into a dependency plan`,
	Args: cobra.MinimumNArgs(1),
	RunE: runObjective,
}

func init() {
	runCmd.Flags().StringVar(&runRoot, "root", "", "Project root (defaults to current directory)")
	runCmd.Flags().StringVar(&runDecomposer, "decomposer", "", "Planning backend: static or claude")
	runCmd.Flags().BoolVar(&runHeadless, "headless", false, "Run without TUI (headless mode)")
	runCmd.Flags().BoolVar(&runNoPersist, "no-persist", false, "Skip recording the run in the state database")
}

func runObjective(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in run: %v", r)
		}
	}()

	objective := strings.Join(args, " ")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	projectRoot := runRoot
	if projectRoot == "" {
		projectRoot, err = os.Getwd()
		if err != nil {
			return fmt.Errorf("get working directory: %w", err)
		}
	}

	manifest, err := config.LoadManifest(projectRoot)
	if err != nil {
		return err
	}

	decomposer, err := buildDecomposer(cfg, manifest.Names())
	if err != nil {
		return err
	}

	var store orchestrator.RunStore
	if !runNoPersist {
		db, err := state.OpenProject(projectRoot)
		if err != nil {
			return fmt.Errorf("open state database: %w", err)
		}
		defer db.Close()
		store = db
	}

	logger := orchestrator.NewDebugLoggerForProject(projectRoot)
	defer logger.Close()

	var events chan orchestrator.RunEvent
	if !runHeadless {
		events = make(chan orchestrator.RunEvent, 256)
	}

	o, err := orchestrator.New(orchestrator.Config{
		ProjectRoot: projectRoot,
		Decomposer:  decomposer,
		Workspaces:  manifest.Names(),
		RetryBudget: cfg.Engine.RetryBudget,
		Timeout:     cfg.Engine.TaskTimeout,
		CacheTTL:    cfg.Engine.CacheTTL,
		Events:      events,
		Logger:      logger,
		Store:       store,
	})
	if err != nil {
		return err
	}
	defer o.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if runHeadless {
		result := o.Process(ctx, objective)
		printResult(result)
		if result.Status == models.StatusError {
			return fmt.Errorf("%s", result.Error)
		}
		return nil
	}

	resultCh := make(chan *models.RunResult, 1)
	go func() {
		resultCh <- o.Process(ctx, objective)
		close(events)
	}()

	program := tea.NewProgram(tui.New(objective, events))
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("run TUI: %w", err)
	}

	result := <-resultCh
	printResult(result)
	if result.Status == models.StatusError {
		return fmt.Errorf("%s", result.Error)
	}
	return nil
}

// buildDecomposer selects the planning backend from config and flags.
func buildDecomposer(cfg *config.Config, workspaces []string) (decompose.Decomposer, error) {
	selected := cfg.Engine.Decomposer
	if runDecomposer != "" {
		selected = runDecomposer
	}

	switch selected {
	case "", "static":
		return decompose.NewStatic(workspaces), nil
	case "claude":
		return decompose.NewClaude(decompose.ClaudeConfig{
			APIKey: cfg.Anthropic.APIKey,
			Model:  anthropic.Model(cfg.Anthropic.Model),
		})
	default:
		return nil, fmt.Errorf("unknown decomposer %q (want static or claude)", selected)
	}
}

// printResult writes the run summary to the terminal.
func printResult(result *models.RunResult) {
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	dim := color.New(color.Faint)

	fmt.Println()
	if result.Status == models.StatusSuccess {
		green.Println("Run finished")
	} else {
		red.Printf("Run failed: %s\n", result.Error)
	}

	snap := result.ProjectStatus
	if snap == nil {
		return
	}
	fmt.Printf("  completed: %d  failed: %d  pending: %d\n", snap.Completed, snap.Failed, snap.Pending)

	for _, st := range snap.Subtasks {
		switch st.Status {
		case models.SubtaskCompleted:
			fmt.Printf("  %s %s\n", green.Sprint("✓"), st.Description)
		case models.SubtaskFailed:
			fmt.Printf("  %s %s %s\n", red.Sprint("✗"), st.Description,
				dim.Sprintf("(%d attempts: %s)", st.Attempts, st.Error))
		default:
			fmt.Printf("  %s %s %s\n", dim.Sprint("·"), st.Description, dim.Sprint("(blocked)"))
		}
	}
}
