package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"grannypad/internal/capture"
	"grannypad/internal/config"
	"grannypad/internal/todo"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5c2a2a"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#B0B7C3"})
	doneStyle  = lipgloss.NewStyle().Strikethrough(true).Faint(true)
	goneStyle  = lipgloss.NewStyle().Strikethrough(true).Faint(true).Italic(true)
	dueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#c0392b"))
	tabStyle   = lipgloss.NewStyle().Padding(0, 1)
	activeTab  = tabStyle.Bold(true).Underline(true).Foreground(lipgloss.Color("#c0392b"))
	noteStyle  = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#e5b3b3")).
			Background(lipgloss.Color("#fde4e4")).
			Foreground(lipgloss.Color("#5c2a2a")).
			Padding(0, 2).
			MarginTop(1)
)

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("grannypad"))
	b.WriteString(mutedStyle.Render("  (" + m.view.String() + ")"))
	b.WriteString("\n\n")

	if len(m.items) == 0 {
		b.WriteString(mutedStyle.Render(fmt.Sprintf("Your list is empty, dear. Press '%s' to add something.", m.cfg.Keys.Compose)))
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderTaskList())
	}

	b.WriteString("\n")
	if m.mode == modePicker {
		b.WriteString(m.picker.View())
		b.WriteString("\n")
	} else {
		b.WriteString(m.renderCapture())
	}

	if c := m.capture.Commentary(); c != "" {
		b.WriteString(renderCommentary(c, m.width))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if m.busy {
		b.WriteString(m.spin.View())
		b.WriteString(" ")
	}
	b.WriteString(m.status)
	b.WriteString("\n")
	b.WriteString(mutedStyle.Render(renderHelp(m.cfg.Keys)))

	return b.String()
}

func renderHelp(k config.Keymap) string {
	return fmt.Sprintf("%s/%s move • %s write • %s dictate • %s picture • %s send • %s toggle • %s delete • %s sort • %s reorder • %s dismiss • %s quit",
		k.Up, k.Down, k.Compose, k.Voice, k.Upload, k.Submit, keyLabel(k.Toggle), k.Delete, k.SortView, k.Move, k.Dismiss, k.Quit)
}

func keyLabel(k string) string {
	if k == " " {
		return "space"
	}
	return k
}

func (m Model) renderTaskList() string {
	var b strings.Builder
	for i, it := range m.items {
		cursor := " "
		if m.cursor == i && (m.mode == modeList || m.mode == modeMove) {
			cursor = ">"
			if m.mode == modeMove {
				cursor = "≡"
			}
		}
		b.WriteString(cursor + " " + renderItem(it))
		b.WriteString("\n")
	}
	return b.String()
}

func renderItem(it todo.Item) string {
	checkbox := "[ ]"
	if it.Completed {
		checkbox = "[x]"
	}
	text := it.Text
	switch {
	case it.Deleting():
		text = goneStyle.Render(text)
	case it.Completed:
		text = doneStyle.Render(text)
	}
	line := checkbox + " " + text
	if it.Due.Valid {
		due := "due " + todo.FormatDate(it.Due)
		if it.Completed || it.Deleting() {
			line += "  " + mutedStyle.Render(due)
		} else {
			line += "  " + dueStyle.Render(due)
		}
	}
	return line
}

func (m Model) renderCapture() string {
	active := m.capture.Modality()
	tabs := make([]string, 0, 3)
	for _, mod := range []capture.Modality{capture.ModalityText, capture.ModalityVoice, capture.ModalityImage} {
		style := tabStyle
		if mod == active {
			style = activeTab
		}
		tabs = append(tabs, style.Render(mod.String()))
	}

	var b strings.Builder
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, tabs...))
	b.WriteString("\n")
	switch active {
	case capture.ModalityText:
		if m.mode == modeCompose {
			b.WriteString(m.input.View())
		} else if t := m.capture.Text(); t != "" {
			b.WriteString(mutedStyle.Render("draft: ") + t)
		}
	case capture.ModalityVoice:
		switch {
		case !m.capture.VoiceSupported():
			b.WriteString(mutedStyle.Render(capture.UnsupportedVoiceMessage))
		case m.capture.Listening():
			b.WriteString(dueStyle.Render("● listening ") + m.capture.Transcript())
		case m.capture.Transcript() != "":
			b.WriteString(mutedStyle.Render("heard: ") + m.capture.Transcript())
		default:
			b.WriteString(mutedStyle.Render(fmt.Sprintf("Press '%s' again to start dictating...", m.cfg.Keys.Voice)))
		}
	case capture.ModalityImage:
		if img, ok := m.capture.Image(); ok {
			b.WriteString(mutedStyle.Render("picture: ") + img.Name)
		} else {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("Press '%s' to pick a picture.", m.cfg.Keys.Upload)))
		}
	}
	b.WriteString("\n")
	return b.String()
}

func renderCommentary(message string, width int) string {
	style := noteStyle
	if width > 12 {
		style = style.MaxWidth(width - 2).Width(min(width-6, 64))
	} else {
		style = style.Width(64)
	}
	heading := lipgloss.NewStyle().Bold(true).Render(`A "helpful" reminder:`)
	body := lipgloss.NewStyle().Italic(true).Render(`"` + message + `"`)
	return style.Render(heading + "\n" + body)
}
