// Package executor implements the role executors that process task
// requests: planner, librarian, and implementation.
//
// Every executor produces exactly one outcome per request by running a
// fixed four-stage pipeline: gather context, validate requirements,
// implement the task, run tests. The pipeline short-circuits on the first
// stage that fails, and any fault recovered during dispatch is normalized
// to a generic error outcome; nothing propagates past the executor
// boundary.
package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// DefaultTimeout bounds a single pipeline invocation. Expiry is reported
// as a stage failure and counts against the subtask's retry budget.
const DefaultTimeout = 5 * time.Minute

// Executor is the contract shared by all role variants.
type Executor interface {
	// Role returns the executor's role.
	Role() models.Role
	// ID returns the executor's identity, qualified by working area for
	// implementation executors (e.g. "implementation (app/frontend)").
	ID() string
	// ProcessTask runs the four-stage pipeline for one task request and
	// returns its outcome. It never panics and never returns more than
	// one outcome per request.
	ProcessTask(ctx context.Context, req models.TaskRequest) models.Outcome
}

// stage is one step of the pipeline. Output files are only meaningful for
// the implement stage; other stages return nil.
type stage struct {
	kind models.ErrorKind
	run  func(ctx context.Context) ([]string, error)
}

// runPipeline executes stages in order under a per-invocation timeout and
// returns the final outcome. The first stage error becomes the task's
// error outcome; later stages are skipped. Recovered panics become generic
// error outcomes carrying the fault's message.
func runPipeline(ctx context.Context, role models.Role, timeout time.Duration, stages []stage) (outcome models.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = models.ErrorOutcome(role, models.ErrKindGeneric, fmt.Sprintf("%v", r))
		}
	}()

	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var outputFiles []string
	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return models.ErrorOutcome(role, s.kind, err.Error())
		}
		files, err := s.run(ctx)
		if err != nil {
			return models.ErrorOutcome(role, s.kind, err.Error())
		}
		if files != nil {
			outputFiles = files
		}
	}

	return models.SuccessOutcome(role, outputFiles)
}
