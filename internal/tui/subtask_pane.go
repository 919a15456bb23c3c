package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/agentorch/internal/events"
)

// Subtask display states.
const (
	statePending   = "pending"
	stateRunning   = "running"
	stateCompleted = "completed"
	stateFailed    = "failed"
)

// SubtaskState is what the pane knows about one subtask.
type SubtaskState struct {
	ID           string
	Description  string
	AgentID      string
	Dependencies []string
	Status       string
	Batch        int
	Output       []string
	Duration     time.Duration
}

// SubtaskPaneModel lists the planned subtasks next to the selected one's output.
type SubtaskPaneModel struct {
	subtasks    map[string]*SubtaskState
	order       []string // plan order
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
}

func NewSubtaskPaneModel() SubtaskPaneModel {
	return SubtaskPaneModel{
		subtasks: make(map[string]*SubtaskState),
		viewport: viewport.New(0, 0),
	}
}

const listWidth = 28

// Update handles messages for the subtask pane.
func (m SubtaskPaneModel) Update(msg tea.Msg) (SubtaskPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.updateViewportContent()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.updateViewportContent()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.SubtasksPlannedEvent:
		for _, p := range msg.Subtasks {
			if _, exists := m.subtasks[p.ID]; exists {
				continue
			}
			st := &SubtaskState{
				ID:           p.ID,
				Description:  p.Description,
				AgentID:      p.AgentID,
				Dependencies: p.Dependencies,
				Status:       statePending,
			}
			if p.AgentID == "" {
				st.Status = stateFailed
				st.Output = append(st.Output, "[No suitable agent]")
			}
			m.subtasks[p.ID] = st
			m.order = append(m.order, p.ID)
		}
		m.updateViewportContent()

	case events.SubtaskStartedEvent:
		if st, ok := m.subtasks[msg.ID]; ok {
			st.Status = stateRunning
			st.Batch = msg.Batch
			st.Output = append(st.Output, fmt.Sprintf("[Batch %d: started on %s]", msg.Batch, msg.AgentID))
			m.refreshIfSelected(msg.ID)
		}

	case events.SubtaskCompletedEvent:
		if st, ok := m.subtasks[msg.ID]; ok {
			st.Status = stateCompleted
			st.Duration = msg.Duration
			st.Output = append(st.Output, msg.Result, fmt.Sprintf("\n[Completed in %v]", msg.Duration.Round(time.Millisecond)))
			m.refreshIfSelected(msg.ID)
		}

	case events.SubtaskFailedEvent:
		if st, ok := m.subtasks[msg.ID]; ok {
			st.Status = stateFailed
			st.Duration = msg.Duration
			st.Output = append(st.Output, fmt.Sprintf("\n[Failed: %s]", msg.Err))
			m.refreshIfSelected(msg.ID)
		}
	}

	return m, cmd
}

// Subtask returns the pane's state for id.
func (m SubtaskPaneModel) Subtask(id string) (SubtaskState, bool) {
	st, ok := m.subtasks[id]
	if !ok {
		return SubtaskState{}, false
	}
	return *st, true
}

func (m SubtaskPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	viewportWidth := m.width - listWidth - 4
	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(),
		lipgloss.NewStyle().
			Width(viewportWidth).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	style := StyleUnfocusedBorder
	if m.focused {
		style = StyleFocusedBorder
	}
	return style.
		Width(m.width - 2).
		Height(m.height - 2).
		Render(content)
}

func (m SubtaskPaneModel) renderList() string {
	var b strings.Builder

	title := StyleTitle.Render("Subtasks")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(listWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleStatusPending.Render("Planning..."))
	}
	for i, id := range m.order {
		st := m.subtasks[id]
		line := fmt.Sprintf("%s %s", StatusIcon(st.Status), truncate(st.Description, listWidth-4))
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().
		Width(listWidth).
		Height(m.height - 2).
		Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case stateRunning:
		return StyleStatusRunning.Render("●")
	case stateCompleted:
		return StyleStatusComplete.Render("✓")
	case stateFailed:
		return StyleStatusFailed.Render("✗")
	default:
		return StyleStatusPending.Render("○")
	}
}

func truncate(s string, width int) string {
	r := []rune(s)
	if width < 4 || len(r) <= width {
		return s
	}
	return string(r[:width-3]) + "..."
}

func (m SubtaskPaneModel) selectedID() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

func (m *SubtaskPaneModel) refreshIfSelected(id string) {
	if m.selectedID() == id {
		m.updateViewportContent()
	}
}

func (m *SubtaskPaneModel) updateViewportContent() {
	st, ok := m.subtasks[m.selectedID()]
	if !ok {
		m.viewport.SetContent("Waiting for the plan...")
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", st.Description)
	agent := st.AgentID
	if agent == "" {
		agent = "-"
	}
	fmt.Fprintf(&b, "agent: %s\n", agent)
	if len(st.Dependencies) > 0 {
		fmt.Fprintf(&b, "after: %s\n", strings.Join(st.Dependencies, ", "))
	}
	b.WriteString("\n")
	b.WriteString(strings.Join(st.Output, "\n"))

	m.viewport.SetContent(b.String())
	m.viewport.GotoBottom()
}

func (m *SubtaskPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *SubtaskPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

func (m *SubtaskPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
