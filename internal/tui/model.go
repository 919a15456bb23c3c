// Package tui renders a live view of one orchestration session from the
// event bus.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agentorch/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneSubtasks PaneID = iota
	PaneProgress
	paneCount
)

// Model is the root Bubble Tea model for the watch view.
type Model struct {
	subtaskPane  SubtaskPaneModel
	progressPane ProgressPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
	finished     bool
}

// New creates a watch view fed by sub. The caller owns the subscription.
func New(sub <-chan events.Event) Model {
	m := Model{
		subtaskPane:  NewSubtaskPaneModel(),
		progressPane: NewProgressPaneModel(),
		focusedPane:  PaneSubtasks,
		eventSub:     sub,
	}
	m.updateFocusStates()
	return m
}

func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// busClosedMsg reports that the subscription ended.
type busClosedMsg struct{}

// waitForEvent returns a command that waits for the next event from the bus.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return busClosedMsg{}
		}
		return event
	}
}

// Finished reports whether the session ended while the view was open.
func (m Model) Finished() bool {
	return m.finished
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeyTab, KeyShiftTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneSubtasks
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneSubtasks {
				var cmd tea.Cmd
				m.subtaskPane, cmd = m.subtaskPane.Update(msg)
				cmds = append(cmds, cmd)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()

	case events.SubtasksPlannedEvent, events.SubtaskStartedEvent,
		events.SubtaskCompletedEvent, events.SubtaskFailedEvent:
		var cmd tea.Cmd
		m.subtaskPane, cmd = m.subtaskPane.Update(msg)
		cmds = append(cmds, cmd)
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.SessionCreatedEvent, events.BatchProgressEvent:
		var cmd tea.Cmd
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case events.SessionFinishedEvent:
		m.finished = true
		var cmd tea.Cmd
		m.progressPane, cmd = m.progressPane.Update(msg)
		cmds = append(cmds, cmd, waitForEvent(m.eventSub))

	case busClosedMsg:
		// Nothing more will arrive; leave the final state on screen.
	}

	return m, tea.Batch(cmds...)
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	main := lipgloss.JoinHorizontal(lipgloss.Top, m.subtaskPane.View(), m.progressPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, main, HelpView())
}

// computeLayout gives the subtask pane 65% of the width.
func (m *Model) computeLayout() {
	leftWidth := (m.width * 65) / 100
	availableHeight := m.height - 1 // help bar

	m.subtaskPane.SetSize(leftWidth, availableHeight)
	m.progressPane.SetSize(m.width-leftWidth, availableHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.subtaskPane.SetFocused(m.focusedPane == PaneSubtasks)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
