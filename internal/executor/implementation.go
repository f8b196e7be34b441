package executor

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/stagehand-ai/stagehand/internal/binding"
	"github.com/stagehand-ai/stagehand/pkg/models"
)

// Generator produces the artifacts for one implementation task. Generators
// are pure with respect to the binding context: history persistence is the
// executor's job.
type Generator interface {
	// Generate returns the artifact identifiers produced for the task.
	Generate(ctx context.Context, workingDirectory, description string) ([]string, error)
}

// Implementation processes tasks within one binding context. Each instance
// owns its context's history document; the load-append-save cycle is
// serialized by the executor's mutex.
type Implementation struct {
	binding   *models.BindingContext
	generator Generator
	timeout   time.Duration

	// historyMu serializes the history read-modify-write cycle.
	historyMu sync.Mutex
}

// NewImplementation creates an implementation executor bound to the given
// context.
func NewImplementation(bc *models.BindingContext, gen Generator, timeout time.Duration) *Implementation {
	return &Implementation{
		binding:   bc,
		generator: gen,
		timeout:   timeout,
	}
}

// Role returns models.RoleImplementation.
func (im *Implementation) Role() models.Role { return models.RoleImplementation }

// ID returns the executor identity qualified by its working area.
func (im *Implementation) ID() string {
	return fmt.Sprintf("implementation (%s)", im.binding.WorkingDirectory)
}

// Binding returns the executor's binding context.
func (im *Implementation) Binding() *models.BindingContext { return im.binding }

// ProcessTask runs the pipeline for one task and records a history entry
// for the attempt regardless of outcome.
func (im *Implementation) ProcessTask(ctx context.Context, req models.TaskRequest) models.Outcome {
	var outputFiles []string

	outcome := runPipeline(ctx, im.Role(), im.timeout, []stage{
		{models.ErrKindContextGather, func(ctx context.Context) ([]string, error) {
			_, err := binding.LoadHistory(im.binding)
			return nil, err
		}},
		{models.ErrKindValidation, func(ctx context.Context) ([]string, error) {
			if im.generator == nil {
				return nil, fmt.Errorf("no generator configured")
			}
			if info, err := os.Stat(im.binding.WorkingDirectory); err != nil {
				return nil, fmt.Errorf("working directory unavailable: %w", err)
			} else if !info.IsDir() {
				return nil, fmt.Errorf("working directory %s is not a directory", im.binding.WorkingDirectory)
			}
			return nil, nil
		}},
		{models.ErrKindImplementation, func(ctx context.Context) ([]string, error) {
			files, err := im.generator.Generate(ctx, im.binding.WorkingDirectory, req.Description)
			if err != nil {
				return nil, err
			}
			outputFiles = files
			return files, nil
		}},
		{models.ErrKindTestFailure, func(ctx context.Context) ([]string, error) {
			for _, f := range outputFiles {
				if strings.TrimSpace(f) == "" {
					return nil, fmt.Errorf("generator produced an empty artifact name")
				}
			}
			return nil, nil
		}},
	})

	if err := im.recordHistory(req.Description, outcome); err != nil {
		// History is advisory; a persistence failure must not change the
		// task's outcome.
		log.Printf("[implementation] record history: %v", err)
	}
	return outcome
}

// recordHistory appends one entry for the processed task under the
// per-context lock.
func (im *Implementation) recordHistory(task string, outcome models.Outcome) error {
	im.historyMu.Lock()
	defer im.historyMu.Unlock()

	h, err := binding.LoadHistory(im.binding)
	if err != nil {
		return err
	}
	h.CompletedTasks = append(h.CompletedTasks, binding.CompletedTask{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Task:          task,
		FilesModified: outcome.OutputFiles,
		Status:        outcome.Status,
	})
	h.CurrentContext["last_task"] = task
	h.CurrentContext["last_status"] = outcome.Status
	return binding.SaveHistory(im.binding, h)
}

// MockGenerator derives artifact names from keywords in the task
// description, scoped by the working area's name. It exists for local runs
// and tests where no code-producing backend is wired.
type MockGenerator struct{}

// Generate maps task keywords to conventional artifact identifiers.
func (MockGenerator) Generate(_ context.Context, workingDirectory, description string) ([]string, error) {
	desc := strings.ToLower(description)
	area := strings.ToLower(workingDirectory)

	switch {
	case strings.Contains(area, "frontend"):
		switch {
		case strings.Contains(desc, "component"):
			return []string{"Component.tsx"}, nil
		case strings.Contains(desc, "page"):
			return []string{"Page.tsx"}, nil
		case strings.Contains(desc, "style"):
			return []string{"styles.css"}, nil
		default:
			return []string{"App.tsx"}, nil
		}
	case strings.Contains(area, "backend"):
		switch {
		case strings.Contains(desc, "api"), strings.Contains(desc, "endpoint"):
			return []string{"routes.go", "handlers.go"}, nil
		case strings.Contains(desc, "database"), strings.Contains(desc, "model"):
			return []string{"models.go"}, nil
		case strings.Contains(desc, "auth"):
			return []string{"auth.go"}, nil
		default:
			return []string{"main.go"}, nil
		}
	default:
		return []string{"output.txt"}, nil
	}
}
