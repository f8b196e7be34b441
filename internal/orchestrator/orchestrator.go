package orchestrator

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/stagehand-ai/stagehand/internal/binding"
	"github.com/stagehand-ai/stagehand/internal/decompose"
	"github.com/stagehand-ai/stagehand/internal/executor"
	"github.com/stagehand-ai/stagehand/internal/taskgraph"
	"github.com/stagehand-ai/stagehand/pkg/models"
)

// RunStore persists finished runs. Implemented by state.Store; nil disables
// persistence.
type RunStore interface {
	SaveRun(objective string, result *models.RunResult) (int64, error)
}

// Config contains configuration options for the Orchestrator.
type Config struct {
	// ProjectRoot is the directory the run operates on.
	ProjectRoot string
	// Decomposer produces the subtask plan for the objective.
	Decomposer decompose.Decomposer
	// Workspaces names the working areas, each served by one implementation
	// executor rooted at ProjectRoot/<workspace>.
	Workspaces []string
	// Generator produces artifacts for implementation tasks.
	// If nil, executor.MockGenerator is used.
	Generator executor.Generator
	// RetryBudget is the per-subtask failed-attempt budget.
	// If 0, taskgraph.DefaultRetryBudget is used.
	RetryBudget int
	// Timeout bounds each executor pipeline invocation.
	// If 0, executor.DefaultTimeout is used.
	Timeout time.Duration
	// CacheTTL bounds the librarian's cached reads.
	// If 0, executor.DefaultCacheTTL is used.
	CacheTTL time.Duration
	// Events receives run events if non-nil. Sends never block; events are
	// dropped when the receiver falls behind.
	Events chan<- RunEvent
	// Logger is the debug logger. If nil, a no-op logger is used.
	Logger *DebugLogger
	// Store persists the finished run. If nil, persistence is disabled.
	Store RunStore
}

// Orchestrator coordinates one run: planner -> graph -> dispatch loop.
type Orchestrator struct {
	planner         *executor.Planner
	librarian       *executor.Librarian
	implementations []*executor.Implementation
	byWorkspace     map[string]*executor.Implementation
	graph           *taskgraph.Graph
	state           *ProjectState
	projectRoot     string
	events          chan<- RunEvent
	logger          *DebugLogger
	store           RunStore
}

// New wires an orchestrator from the given config.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Decomposer == nil {
		return nil, fmt.Errorf("no decomposer configured")
	}
	if len(cfg.Workspaces) == 0 {
		return nil, fmt.Errorf("no workspaces configured")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = NopLogger()
	}
	gen := cfg.Generator
	if gen == nil {
		gen = executor.MockGenerator{}
	}

	graph := taskgraph.New(cfg.RetryBudget)
	graph.SetDebugLog(logger.Log)

	o := &Orchestrator{
		planner:     executor.NewPlanner(cfg.Decomposer, graph, cfg.Timeout),
		librarian:   executor.NewLibrarian(cfg.ProjectRoot, cfg.Timeout, cfg.CacheTTL),
		byWorkspace: make(map[string]*executor.Implementation),
		graph:       graph,
		state:       NewProjectState(),
		projectRoot: cfg.ProjectRoot,
		events:      cfg.Events,
		logger:      logger,
		store:       cfg.Store,
	}

	for _, ws := range cfg.Workspaces {
		bc := binding.NewContext(filepath.Join(cfg.ProjectRoot, ws))
		im := executor.NewImplementation(bc, gen, cfg.Timeout)
		o.implementations = append(o.implementations, im)
		o.byWorkspace[ws] = im
	}

	return o, nil
}

// Close releases executor resources.
func (o *Orchestrator) Close() error {
	return o.librarian.Close()
}

// State returns the run's observable project state.
func (o *Orchestrator) State() *ProjectState { return o.state }

// Process runs the full workflow for one objective: decompose, then
// dispatch subtasks until every one is terminal or unreachable.
//
// A planning failure is the only run-aborting condition. Permanently failed
// subtasks are reported in the snapshot but do not flip the run status.
func (o *Orchestrator) Process(ctx context.Context, objective string) *models.RunResult {
	o.logger.Log("[orchestrator] run started: %q", objective)
	o.emit(RunEvent{Type: EventRunStarted, Message: objective})
	o.state.AppendEvent(string(EventRunStarted), objective)

	plannerOutcome := o.planner.ProcessTask(ctx, models.TaskRequest{Description: objective})
	o.state.RecordOutcome(o.planner.ID(), plannerOutcome)

	if !plannerOutcome.Success() {
		o.logger.Log("[orchestrator] planning failed: %s", plannerOutcome.ErrorMessage)
		o.emit(RunEvent{Type: EventRunDone, Message: plannerOutcome.ErrorMessage})
		result := &models.RunResult{
			Status:        models.StatusError,
			Error:         fmt.Sprintf("Task decomposition failed: %s", plannerOutcome.ErrorMessage),
			ProjectStatus: o.snapshot(),
		}
		o.persist(objective, result)
		return result
	}

	_, _, queued := o.graph.Counts()
	o.logger.Log("[orchestrator] plan ready, %d subtasks queued", queued)
	o.emit(RunEvent{Type: EventPlanReady, Message: fmt.Sprintf("%d subtasks queued", queued)})

	results := o.dispatch(ctx)

	result := &models.RunResult{
		Status:        models.StatusSuccess,
		Results:       results,
		ProjectStatus: o.snapshot(),
	}
	o.emit(RunEvent{Type: EventRunDone})
	o.state.AppendEvent(string(EventRunDone), nil)
	o.persist(objective, result)
	return result
}

// dispatch drains the graph: FIFO within each role, immediate retry on
// failure until the budget freezes the subtask. The loop ends when nothing
// is pending or when a full pass dispatches nothing, which means every
// remaining pending subtask sits behind a permanently failed dependency.
func (o *Orchestrator) dispatch(ctx context.Context) []models.TaskResult {
	var results []models.TaskResult

	for o.graph.HasPending() {
		if ctx.Err() != nil {
			o.logger.Log("[orchestrator] dispatch cancelled: %v", ctx.Err())
			break
		}

		progress := false
		for _, role := range []models.Role{models.RoleLibrarian, models.RoleImplementation} {
			for {
				st := o.graph.NextReady(role)
				if st == nil {
					break
				}
				results = append(results, o.runSubtask(ctx, st))
				progress = true
				if ctx.Err() != nil {
					return results
				}
			}
		}

		if !progress {
			o.markBlocked()
			break
		}
	}

	return results
}

// runSubtask dispatches one ready subtask to its executor and records the
// attempt on the graph.
func (o *Orchestrator) runSubtask(ctx context.Context, st *models.Subtask) models.TaskResult {
	exec := o.executorFor(st)

	var outcome models.Outcome
	var executorID string
	if exec == nil {
		executorID = fmt.Sprintf("implementation (%s)", st.Workspace)
		outcome = models.ErrorOutcome(st.Role, models.ErrKindGeneric,
			fmt.Sprintf("no executor for workspace %q", st.Workspace))
	} else {
		executorID = exec.ID()
		o.emit(RunEvent{Type: EventTaskStarted, SubtaskID: st.ID, Description: st.Description, ExecutorID: executorID})
		outcome = exec.ProcessTask(ctx, o.taskRequestFor(st))
	}

	if err := o.graph.MarkComplete(st.ID, outcome.Success()); err != nil {
		log.Printf("[orchestrator] mark complete %s: %v", st.ID, err)
	}
	o.state.RecordOutcome(executorID, outcome)

	switch {
	case outcome.Success():
		o.emit(RunEvent{Type: EventTaskCompleted, SubtaskID: st.ID, Description: st.Description, ExecutorID: executorID})
	case st.Status == models.SubtaskFailed:
		st.Error = outcome.ErrorMessage
		o.logger.Log("[orchestrator] subtask %s permanently failed: %s", st.ID, outcome.ErrorMessage)
		o.emit(RunEvent{Type: EventTaskFailed, SubtaskID: st.ID, Description: st.Description,
			ExecutorID: executorID, Message: outcome.ErrorMessage, Attempts: st.Attempts})
	default:
		o.emit(RunEvent{Type: EventTaskRetrying, SubtaskID: st.ID, Description: st.Description,
			ExecutorID: executorID, Message: outcome.ErrorMessage, Attempts: st.Attempts})
	}

	return models.TaskResult{
		ExecutorID:  executorID,
		SubtaskID:   st.ID,
		Description: st.Description,
		Outcome:     outcome,
	}
}

// executorFor routes a subtask to its executor. Implementation subtasks are
// matched by workspace name; an unknown workspace yields nil and counts as
// a failed attempt.
func (o *Orchestrator) executorFor(st *models.Subtask) executor.Executor {
	switch st.Role {
	case models.RoleLibrarian:
		return o.librarian
	case models.RoleImplementation:
		if im, ok := o.byWorkspace[st.Workspace]; ok {
			return im
		}
		// A plan targeting a single unnamed area falls back to the first
		// configured workspace.
		if st.Workspace == "" && len(o.implementations) > 0 {
			return o.implementations[0]
		}
		return nil
	default:
		return nil
	}
}

// taskRequestFor builds the task request for a subtask. Librarian read
// requests carry the target path as required context.
func (o *Orchestrator) taskRequestFor(st *models.Subtask) models.TaskRequest {
	req := models.TaskRequest{Description: st.Description}
	if st.Role == models.RoleLibrarian {
		if rest, ok := strings.CutPrefix(st.Description, "read_file"); ok {
			if path := strings.TrimSpace(rest); path != "" {
				req.Description = "read_file"
				req.RequiredContext = []string{path}
			}
		}
	}
	return req
}

// markBlocked emits a blocked event for every pending subtask left behind
// a permanently failed dependency.
func (o *Orchestrator) markBlocked() {
	for _, st := range o.graph.Subtasks() {
		if st.Status != models.SubtaskPending {
			continue
		}
		o.logger.Log("[orchestrator] subtask %s unreachable, blocked on failed dependency", st.ID)
		o.emit(RunEvent{Type: EventTaskBlocked, SubtaskID: st.ID, Description: st.Description,
			Message: "dependency permanently failed"})
		o.state.AppendEvent(string(EventTaskBlocked), st.ID)
	}
}

// snapshot builds the reportable project view.
func (o *Orchestrator) snapshot() *models.ProjectSnapshot {
	completed, failed, pending := o.graph.Counts()

	snap := &models.ProjectSnapshot{
		AgentStatuses: o.state.Statuses(),
		EventLog:      o.state.Events(),
		Completed:     completed,
		Failed:        failed,
		Pending:       pending,
		Subtasks:      o.graph.Subtasks(),
	}
	if listing := o.librarian.Snapshot(); listing != "" {
		snap.DirectoryStructure = map[string]any{
			"root":    o.projectRoot,
			"entries": strings.Split(listing, "\n"),
		}
	}
	return snap
}

// persist saves the finished run when a store is configured.
func (o *Orchestrator) persist(objective string, result *models.RunResult) {
	if o.store == nil {
		return
	}
	if _, err := o.store.SaveRun(objective, result); err != nil {
		log.Printf("[orchestrator] persist run: %v", err)
	}
}

// emit sends an event without blocking the dispatch loop.
func (o *Orchestrator) emit(ev RunEvent) {
	if o.events == nil {
		return
	}
	ev.Timestamp = time.Now()
	select {
	case o.events <- ev:
	default:
		o.logger.Log("[orchestrator] event channel full, dropped %s", ev.Type)
	}
}
