package cli

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/depsolve/pkg/resolve"
)

var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// ConflictListModel is the bubbletea model for browsing conflicts: a
// scrollable list with a detail pane for the selected entry.
type ConflictListModel struct {
	Conflicts []resolve.Conflict
	Cursor    int
	Height    int
	Offset    int
	ShowAll   bool // include resolved conflicts
}

// NewConflictListModel creates a conflict browser over the given conflicts.
func NewConflictListModel(conflicts []resolve.Conflict) ConflictListModel {
	return ConflictListModel{
		Conflicts: conflicts,
		Height:    12,
	}
}

func (m ConflictListModel) Init() tea.Cmd {
	return nil
}

func (m ConflictListModel) visible() []resolve.Conflict {
	if m.ShowAll {
		return m.Conflicts
	}
	var out []resolve.Conflict
	for _, c := range m.Conflicts {
		if !c.Resolved {
			out = append(out, c)
		}
	}
	return out
}

func (m ConflictListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.visible())-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "a":
			m.ShowAll = !m.ShowAll
			m.Cursor = 0
			m.Offset = 0
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 10
		if m.Height < 5 {
			m.Height = 5
		}
	}
	return m, nil
}

func (m ConflictListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Conflicts"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  a toggle resolved  q quit"))
	b.WriteString("\n\n")

	visible := m.visible()
	if len(visible) == 0 {
		b.WriteString(StyleSuccess.Render("No unresolved conflicts"))
		b.WriteString("\n")
		return b.String()
	}

	end := m.Offset + m.Height
	if end > len(visible) {
		end = len(visible)
	}

	for i := m.Offset; i < end; i++ {
		c := visible[i]

		cursor := "  "
		line := listLine(c)
		if i == m.Cursor {
			cursor = "▸ "
			line = listSelectedStyle.Render(line)
		}
		b.WriteString(cursor + line + "\n")
	}

	if m.Cursor < len(visible) {
		b.WriteString("\n")
		b.WriteString(detailView(visible[m.Cursor]))
	}
	return b.String()
}

func listLine(c resolve.Conflict) string {
	state := StyleWarning.Render("unresolved")
	if c.Resolved {
		state = StyleSuccess.Render("resolved")
	}
	return fmt.Sprintf("[%s] %s  %s", c.Kind, state, listDimStyle.Render(conflictSubjectLabel(c)))
}

func conflictSubjectLabel(c resolve.Conflict) string {
	switch c.Kind {
	case resolve.KindVersion:
		return c.Module.String()
	case resolve.KindCapability:
		return c.Capability.String()
	case resolve.KindSelector:
		return c.Selector.String()
	default:
		return fmt.Sprintf("%d participants", len(c.Participants))
	}
}

func detailView(c resolve.Conflict) string {
	var b strings.Builder
	b.WriteString(StyleValue.Render(c.Description()))
	b.WriteString("\n")
	for _, p := range c.Participants {
		b.WriteString(listDimStyle.Render("  - " + p))
		b.WriteString("\n")
	}
	if c.Resolved && c.Winner != "" {
		b.WriteString(StyleSuccess.Render("  winner: " + c.Winner))
		b.WriteString("\n")
	}
	return b.String()
}

// browseConflicts runs the interactive conflict browser.
func browseConflicts(conflicts []resolve.Conflict) error {
	_, err := tea.NewProgram(NewConflictListModel(conflicts)).Run()
	return err
}
