// Package taskgraph provides the dependency-gated task queue that owns
// subtask state, completion bookkeeping, and the retry budget.
package taskgraph

import (
	"fmt"
	"sync"
	"time"

	"github.com/stagehand-ai/stagehand/pkg/models"
)

// DefaultRetryBudget is the maximum number of failed attempts before a
// subtask is frozen as permanently failed.
const DefaultRetryBudget = 3

// Graph owns the set of subtasks, their dependency edges, and the
// completed set used as the dependency-satisfaction oracle.
//
// All mutation happens under a single mutex: NextReady and MarkComplete
// must never run concurrently against the same subtask.
type Graph struct {
	mu sync.Mutex
	// pool holds subtasks in insertion order. Terminally failed subtasks
	// stay in the pool for reporting but are skipped by NextReady.
	pool []*models.Subtask
	// completed holds succeeded subtasks in completion order.
	completed []*models.Subtask
	// completedIDs is the membership oracle for dependency checks.
	completedIDs map[string]bool
	// retryBudget is the maximum failed attempts per subtask.
	retryBudget int
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates an empty graph with the given retry budget.
// A budget of zero or less falls back to DefaultRetryBudget.
func New(retryBudget int) *Graph {
	if retryBudget <= 0 {
		retryBudget = DefaultRetryBudget
	}
	return &Graph{
		completedIDs: make(map[string]bool),
		retryBudget:  retryBudget,
		debugLog:     func(format string, args ...interface{}) {},
	}
}

// SetDebugLog sets the debug logging function.
func (g *Graph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// RetryBudget returns the configured retry budget.
func (g *Graph) RetryBudget() int {
	return g.retryBudget
}

// Add appends a subtask to the pool in insertion order.
// No cycle check is performed here; decomposers are expected to validate
// their output before queueing (see decompose.ValidateNoCycles).
func (g *Graph) Add(st *models.Subtask) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if st.Status == "" {
		st.Status = models.SubtaskPending
	}
	if st.CreatedAt.IsZero() {
		st.CreatedAt = time.Now()
	}
	g.pool = append(g.pool, st)
	g.debugLog("[taskgraph.Add] queued subtask id=%s role=%s deps=%v desc=%q",
		st.ID, st.Role, st.DependsOn, st.Description)
}

// NextReady scans the pool in insertion order and returns the first pending
// subtask whose role matches and whose full dependency set is satisfied by
// the completed set. Returns nil when no subtask is ready.
//
// Selection is FIFO within a role and deterministic for a fixed insertion
// order and completed set.
func (g *Graph) NextReady(role models.Role) *models.Subtask {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, st := range g.pool {
		if st.Status != models.SubtaskPending {
			continue
		}
		if st.Role != role {
			continue
		}
		if !g.depsSatisfiedLocked(st) {
			g.debugLog("[taskgraph.NextReady] subtask %s not ready, unmet deps", st.ID)
			continue
		}
		g.debugLog("[taskgraph.NextReady] subtask %s ready for role %s", st.ID, role)
		return st
	}
	return nil
}

// depsSatisfiedLocked reports whether every dependency of st is in the
// completed set. Caller must hold g.mu.
func (g *Graph) depsSatisfiedLocked(st *models.Subtask) bool {
	for _, dep := range st.DependsOn {
		if !g.completedIDs[dep] {
			return false
		}
	}
	return true
}

// MarkComplete records the result of one execution attempt for the subtask
// with the given ID.
//
// On success the subtask moves from the pool to the completed set. On
// failure its attempt count increases by one; when the count reaches the
// retry budget the subtask is frozen as permanently failed, otherwise it
// stays pending and is immediately eligible for re-selection.
func (g *Graph) MarkComplete(id string, success bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i, st := range g.pool {
		if st.ID != id {
			continue
		}
		if st.Status != models.SubtaskPending {
			return fmt.Errorf("subtask %s is %s, not pending", id, st.Status)
		}

		if success {
			st.Status = models.SubtaskCompleted
			now := time.Now()
			st.CompletedAt = &now
			g.pool = append(g.pool[:i], g.pool[i+1:]...)
			g.completed = append(g.completed, st)
			g.completedIDs[st.ID] = true
			g.debugLog("[taskgraph.MarkComplete] subtask %s completed after %d failed attempts",
				id, st.Attempts)
			return nil
		}

		st.Attempts++
		if st.Attempts >= g.retryBudget {
			st.Status = models.SubtaskFailed
			g.debugLog("[taskgraph.MarkComplete] subtask %s exhausted retry budget (%d), frozen as failed",
				id, g.retryBudget)
		} else {
			g.debugLog("[taskgraph.MarkComplete] subtask %s failed attempt %d/%d, still pending",
				id, st.Attempts, g.retryBudget)
		}
		return nil
	}

	return fmt.Errorf("subtask not found: %s", id)
}

// HasPending returns true iff any subtask is still pending: not completed
// and not permanently failed. This drives the dispatcher's termination test.
func (g *Graph) HasPending() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, st := range g.pool {
		if st.Status == models.SubtaskPending {
			return true
		}
	}
	return false
}

// Get returns the subtask with the given ID from either the pool or the
// completed set, or nil if unknown.
func (g *Graph) Get(id string) *models.Subtask {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, st := range g.pool {
		if st.ID == id {
			return st
		}
	}
	for _, st := range g.completed {
		if st.ID == id {
			return st
		}
	}
	return nil
}

// Subtasks returns every subtask known to the graph: completed first, then
// the remaining pool in insertion order.
func (g *Graph) Subtasks() []*models.Subtask {
	g.mu.Lock()
	defer g.mu.Unlock()

	out := make([]*models.Subtask, 0, len(g.completed)+len(g.pool))
	out = append(out, g.completed...)
	out = append(out, g.pool...)
	return out
}

// Counts returns the number of completed, permanently failed, and pending
// subtasks.
func (g *Graph) Counts() (completed, failed, pending int) {
	g.mu.Lock()
	defer g.mu.Unlock()

	completed = len(g.completed)
	for _, st := range g.pool {
		switch st.Status {
		case models.SubtaskFailed:
			failed++
		case models.SubtaskPending:
			pending++
		}
	}
	return completed, failed, pending
}

// CompletedIDs returns the IDs of all succeeded subtasks.
func (g *Graph) CompletedIDs() []string {
	g.mu.Lock()
	defer g.mu.Unlock()

	ids := make([]string, 0, len(g.completed))
	for _, st := range g.completed {
		ids = append(ids, st.ID)
	}
	return ids
}
