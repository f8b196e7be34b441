package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/stagehand-ai/stagehand/internal/decompose"
	"github.com/stagehand-ai/stagehand/internal/taskgraph"
	"github.com/stagehand-ai/stagehand/pkg/models"
)

// Planner decomposes an objective into subtasks and queues them on the
// task graph. Its implement stage is decomposition; a planning failure is
// the only condition that aborts a whole run.
type Planner struct {
	decomposer decompose.Decomposer
	graph      *taskgraph.Graph
	timeout    time.Duration
	// scratch holds gathered context references for the current request.
	scratch map[string]bool
}

// NewPlanner creates a planner backed by the given decomposer, queueing
// onto the given graph.
func NewPlanner(decomposer decompose.Decomposer, graph *taskgraph.Graph, timeout time.Duration) *Planner {
	return &Planner{
		decomposer: decomposer,
		graph:      graph,
		timeout:    timeout,
		scratch:    make(map[string]bool),
	}
}

// Role returns models.RolePlanner.
func (p *Planner) Role() models.Role { return models.RolePlanner }

// ID returns the planner's identity.
func (p *Planner) ID() string { return "planner (core)" }

// ProcessTask decomposes the request's description (the objective) and
// adds the resulting subtasks to the task graph. Nothing is queued unless
// every stage succeeds.
func (p *Planner) ProcessTask(ctx context.Context, req models.TaskRequest) models.Outcome {
	return runPipeline(ctx, p.Role(), p.timeout, []stage{
		{models.ErrKindContextGather, func(ctx context.Context) ([]string, error) {
			return nil, p.gatherContext(req.RequiredContext)
		}},
		{models.ErrKindValidation, func(ctx context.Context) ([]string, error) {
			return nil, p.validateRequirements()
		}},
		{models.ErrKindPlanning, func(ctx context.Context) ([]string, error) {
			return nil, p.decomposeObjective(ctx, req.Description)
		}},
		{models.ErrKindTestFailure, func(ctx context.Context) ([]string, error) {
			// Planning has no post-condition check beyond the cycle
			// validation performed during decomposition.
			return nil, nil
		}},
	})
}

// gatherContext resets the planner's scratch state and records the
// requested context references.
func (p *Planner) gatherContext(required []string) error {
	p.scratch = make(map[string]bool)
	for _, ref := range required {
		p.scratch[ref] = true
	}
	return nil
}

// validateRequirements checks the planner's collaborators are wired.
func (p *Planner) validateRequirements() error {
	if p.decomposer == nil {
		return fmt.Errorf("no decomposer configured")
	}
	if p.graph == nil {
		return fmt.Errorf("no task graph configured")
	}
	return nil
}

// decomposeObjective runs the decomposer and queues its output. The graph
// is only touched after the full decomposition validates, so a failed
// planning stage leaves zero subtasks queued.
func (p *Planner) decomposeObjective(ctx context.Context, objective string) error {
	subtasks, err := p.decomposer.Decompose(ctx, objective)
	if err != nil {
		return err
	}
	if len(subtasks) == 0 {
		return fmt.Errorf("decomposition produced no subtasks")
	}
	if err := decompose.ValidateNoCycles(subtasks); err != nil {
		return err
	}
	for _, st := range subtasks {
		p.graph.Add(st)
	}
	return nil
}
