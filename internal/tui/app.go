// Package tui provides the terminal user interface for a Stagehand run.
package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/stagehand-ai/stagehand/internal/orchestrator"
)

// RunEventMsg wraps an orchestrator event for the TUI.
type RunEventMsg orchestrator.RunEvent

// RunDoneMsg signals that the run has completed.
type RunDoneMsg struct {
	Success bool
	Message string
}

// taskRow is the display state of one subtask.
type taskRow struct {
	id          string
	description string
	executorID  string
	status      string
	attempts    int
}

// LogEntry represents a log message displayed under the task list.
type LogEntry struct {
	Timestamp time.Time
	Message   string
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("160"))
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	logStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// App is the main bubbletea model for the run TUI.
type App struct {
	// objective is the run's objective.
	objective string
	// events receives run events from the orchestrator.
	events <-chan orchestrator.RunEvent
	// spinner animates while the run is in flight.
	spinner spinner.Model
	// tasks is the display order of subtask rows.
	tasks []*taskRow
	// byID indexes rows by subtask ID.
	byID map[string]*taskRow
	// logs is the rolling event log.
	logs []LogEntry
	// width is the terminal width.
	width int
	// done indicates the run has finished.
	done bool
	// doneMessage holds the final run message.
	doneMessage string
	// quitting indicates the app is shutting down.
	quitting bool
}

// New creates a TUI app consuming events for one run.
func New(objective string, events <-chan orchestrator.RunEvent) *App {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	return &App{
		objective: objective,
		events:    events,
		spinner:   sp,
		byID:      make(map[string]*taskRow),
	}
}

// Init implements tea.Model.
func (a *App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.waitForEvent())
}

// waitForEvent blocks on the next orchestrator event.
func (a *App) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-a.events
		if !ok {
			return RunDoneMsg{Success: true}
		}
		return RunEventMsg(ev)
	}
}

// Update implements tea.Model.
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = true
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width

	case RunEventMsg:
		a.handleEvent(orchestrator.RunEvent(msg))
		if a.done {
			return a, tea.Quit
		}
		return a, a.waitForEvent()

	case RunDoneMsg:
		a.done = true
		a.doneMessage = msg.Message
		return a, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}

	return a, nil
}

// handleEvent folds one orchestrator event into the display state.
func (a *App) handleEvent(ev orchestrator.RunEvent) {
	a.log(ev)

	switch ev.Type {
	case orchestrator.EventTaskStarted:
		row := a.row(ev)
		row.status = "running"
		row.executorID = ev.ExecutorID
	case orchestrator.EventTaskCompleted:
		a.row(ev).status = "completed"
	case orchestrator.EventTaskRetrying:
		row := a.row(ev)
		row.status = "retrying"
		row.attempts = ev.Attempts
	case orchestrator.EventTaskFailed:
		row := a.row(ev)
		row.status = "failed"
		row.attempts = ev.Attempts
	case orchestrator.EventTaskBlocked:
		a.row(ev).status = "blocked"
	case orchestrator.EventRunDone:
		a.done = true
		a.doneMessage = ev.Message
	}
}

// row returns the display row for an event's subtask, creating it on first
// sight.
func (a *App) row(ev orchestrator.RunEvent) *taskRow {
	if row, ok := a.byID[ev.SubtaskID]; ok {
		return row
	}
	row := &taskRow{
		id:          ev.SubtaskID,
		description: ev.Description,
		status:      "pending",
	}
	a.byID[ev.SubtaskID] = row
	a.tasks = append(a.tasks, row)
	return row
}

// log appends an event to the rolling log, keeping the last 50 entries.
func (a *App) log(ev orchestrator.RunEvent) {
	msg := string(ev.Type)
	if ev.Message != "" {
		msg += ": " + ev.Message
	} else if ev.Description != "" {
		msg += ": " + ev.Description
	}
	a.logs = append(a.logs, LogEntry{Timestamp: ev.Timestamp, Message: msg})
	if len(a.logs) > 50 {
		a.logs = a.logs[len(a.logs)-50:]
	}
}

// View implements tea.Model.
func (a *App) View() string {
	if a.quitting {
		return ""
	}

	out := titleStyle.Render("stagehand") + "  " + a.objective + "\n\n"

	for _, row := range a.tasks {
		var marker string
		switch row.status {
		case "completed":
			marker = successStyle.Render("✓")
		case "failed":
			marker = errorStyle.Render("✗")
		case "blocked":
			marker = errorStyle.Render("⊘")
		case "running", "retrying":
			marker = a.spinner.View()
		default:
			marker = pendingStyle.Render("·")
		}

		line := fmt.Sprintf("%s %s", marker, row.description)
		if row.attempts > 0 {
			line += pendingStyle.Render(fmt.Sprintf(" (attempt %d)", row.attempts))
		}
		out += line + "\n"
	}

	out += "\n"
	tail := a.logs
	if len(tail) > 8 {
		tail = tail[len(tail)-8:]
	}
	for _, entry := range tail {
		out += logStyle.Render(fmt.Sprintf("%s %s", entry.Timestamp.Format("15:04:05"), entry.Message)) + "\n"
	}

	if a.done {
		out += "\n" + successStyle.Render("run finished")
		if a.doneMessage != "" {
			out += " " + a.doneMessage
		}
		out += "\n"
	} else {
		out += "\n" + pendingStyle.Render("q to quit") + "\n"
	}
	return out
}
