package tui

import (
	"strings"
	"testing"
	"time"

	"github.com/stagehand-ai/stagehand/internal/orchestrator"
)

func event(t orchestrator.EventType, id, desc string) orchestrator.RunEvent {
	return orchestrator.RunEvent{
		Type:        t,
		SubtaskID:   id,
		Description: desc,
		Timestamp:   time.Now(),
	}
}

func TestHandleEventTracksTaskLifecycle(t *testing.T) {
	a := New("Build the app", nil)

	a.handleEvent(event(orchestrator.EventTaskStarted, "st-1", "Build the api"))
	a.handleEvent(event(orchestrator.EventTaskCompleted, "st-1", "Build the api"))

	if len(a.tasks) != 1 {
		t.Fatalf("expected 1 task row, got %d", len(a.tasks))
	}
	if a.tasks[0].status != "completed" {
		t.Errorf("expected completed, got %q", a.tasks[0].status)
	}
}

func TestHandleEventRetryAttempts(t *testing.T) {
	a := New("Build the app", nil)

	ev := event(orchestrator.EventTaskRetrying, "st-1", "Build the api")
	ev.Attempts = 2
	a.handleEvent(ev)

	if a.tasks[0].status != "retrying" || a.tasks[0].attempts != 2 {
		t.Errorf("unexpected row state: %+v", a.tasks[0])
	}
}

func TestHandleEventRunDone(t *testing.T) {
	a := New("Build the app", nil)

	a.handleEvent(event(orchestrator.EventRunDone, "", ""))
	if !a.done {
		t.Error("expected done after run_done event")
	}
}

func TestViewShowsTasksAndLogs(t *testing.T) {
	a := New("Build the app", nil)
	a.handleEvent(event(orchestrator.EventTaskStarted, "st-1", "Build the api"))
	a.handleEvent(event(orchestrator.EventTaskFailed, "st-1", "Build the api"))

	view := a.View()
	if !strings.Contains(view, "Build the api") {
		t.Error("expected task description in view")
	}
	if !strings.Contains(view, "Build the app") {
		t.Error("expected objective in view")
	}
}

func TestLogKeepsBoundedTail(t *testing.T) {
	a := New("Build the app", nil)
	for i := 0; i < 80; i++ {
		a.handleEvent(event(orchestrator.EventTaskStarted, "st-1", "Build the api"))
	}
	if len(a.logs) != 50 {
		t.Errorf("expected bounded log of 50 entries, got %d", len(a.logs))
	}
}
