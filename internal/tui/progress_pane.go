package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agentorch/internal/events"
)

// ProgressPaneModel shows the session and batch counters.
type ProgressPaneModel struct {
	query     string
	fallback  bool
	batch     int
	total     int
	completed int
	running   int
	failed    int
	pending   int
	status    string // empty until the session finishes
	err       string
	width     int
	height    int
	focused   bool
}

func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update handles messages for the progress pane.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.SessionCreatedEvent:
		m.query = msg.Query

	case events.SubtasksPlannedEvent:
		m.fallback = msg.UsedFallback
		m.total = len(msg.Subtasks)
		m.pending = 0
		m.failed = 0
		for _, p := range msg.Subtasks {
			if p.AgentID == "" {
				m.failed++
			} else {
				m.pending++
			}
		}

	case events.BatchProgressEvent:
		m.batch = msg.Batch
		m.total = msg.Total
		m.completed = msg.Completed
		m.running = msg.Running
		m.failed = msg.Failed
		m.pending = msg.Pending

	case events.SessionFinishedEvent:
		m.status = msg.Status
		m.err = msg.Err
		m.running = 0
	}

	return m, nil
}

func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder

	title := StyleTitle.Render("Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	if m.query != "" {
		fmt.Fprintf(&b, "Query:     %s\n", truncate(m.query, max(m.width-16, 10)))
	}
	if m.fallback {
		b.WriteString(StyleStatusPending.Render("(single-subtask fallback plan)"))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Batch:     %d\n", m.batch)
	fmt.Fprintf(&b, "Total:     %d\n", m.total)
	fmt.Fprintf(&b, "Completed: %s\n", StyleStatusComplete.Render(fmt.Sprintf("%d", m.completed)))
	fmt.Fprintf(&b, "Running:   %s\n", StyleStatusRunning.Render(fmt.Sprintf("%d", m.running)))
	fmt.Fprintf(&b, "Failed:    %s\n", StyleStatusFailed.Render(fmt.Sprintf("%d", m.failed)))
	fmt.Fprintf(&b, "Pending:   %s\n", StyleStatusPending.Render(fmt.Sprintf("%d", m.pending)))
	b.WriteString("\n")

	if m.total > 0 {
		barWidth := min(m.width-4, 40)
		completedWidth := (m.completed * barWidth) / m.total
		failedWidth := (m.failed * barWidth) / m.total
		runningWidth := (m.running * barWidth) / m.total
		pendingWidth := barWidth - completedWidth - failedWidth - runningWidth

		bar := StyleStatusComplete.Render(strings.Repeat("=", max(0, completedWidth)))
		bar += StyleStatusFailed.Render(strings.Repeat("!", max(0, failedWidth)))
		bar += StyleStatusRunning.Render(strings.Repeat("-", max(0, runningWidth)))
		bar += StyleStatusPending.Render(strings.Repeat(".", max(0, pendingWidth)))
		fmt.Fprintf(&b, "[%s]  %d/%d\n", bar, m.completed+m.failed, m.total)
	}

	switch {
	case m.err != "":
		fmt.Fprintf(&b, "\n%s %s\n", StyleStatusFailed.Render("Session "+m.status+":"), m.err)
	case m.status != "":
		fmt.Fprintf(&b, "\n%s\n", StyleStatusComplete.Render("Session "+m.status+". Press q to see the answer."))
	}

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(b.String())
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
