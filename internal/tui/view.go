package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Saving...\n"
	}
	if m.width == 0 {
		return "Loading..."
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top, m.viewSidebar(), m.viewEditor())
	return lipgloss.JoinVertical(lipgloss.Left, body, m.viewFooter())
}

func (m Model) viewSidebar() string {
	width := m.sidebarWidth()
	height := m.height - 4
	if height < 3 {
		height = 3
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Notes"))
	b.WriteString("\n")
	if len(m.list) == 0 {
		b.WriteString(mutedStyle.Render("No notes yet"))
	}
	for i, it := range m.list {
		if i >= height-1 {
			break
		}
		label := truncate(it.Title, width-4)
		mark := " "
		if it.Path == m.activePath {
			mark = activeMark
		}
		if i == m.cursor && m.focus == focusList && m.mode == modeBrowse {
			label = selectedStyle.Render(label)
		}
		b.WriteString(mark + " " + label + "\n")
	}

	style := sidebarStyle
	if m.focus == focusList && m.mode == modeBrowse {
		style = focusedBorder
	}
	return style.Width(width).Height(height).Render(b.String())
}

func (m Model) viewEditor() string {
	var header, content string
	switch {
	case m.mode == modeTitle:
		header = titleStyle.Render("New note")
		content = m.title.View()
	case m.activePath != "":
		header = titleStyle.Render(m.activeTitle)
		if m.dirty {
			header += mutedStyle.Render(" (editing)")
		}
		content = m.editor.View()
	default:
		header = titleStyle.Render("QuickNote")
		content = mutedStyle.Render("Select a note or press ctrl+n")
	}

	style := sidebarStyle
	if m.focus == focusEditor || m.mode == modeTitle {
		style = focusedBorder
	}
	return style.Render(header + "\n" + content)
}

func (m Model) viewFooter() string {
	if m.mode == modeConfirmDelete && m.deleteTarget != nil {
		return promptStyle.Render(fmt.Sprintf("Delete %q permanently? [y/N]", m.deleteTarget.Title))
	}
	line := m.help.View(m.keys)
	if m.status != "" {
		st := mutedStyle
		if m.statusErr {
			st = errorStyle
		}
		line = st.Render(m.status) + "  " + line
	}
	return line
}

func truncate(s string, n int) string {
	if n <= 1 {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
