package cli

import (
	"fmt"
	"strings"

	"evidence-desk/internal/model"

	"github.com/charmbracelet/lipgloss"
)

var (
	panelTitleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	panelMutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	panelErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	panelOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	panelWarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	panelBorderStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	panelFocusStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("212")).Padding(0, 1)
	panelSelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62")).Bold(true)
)

func (m panelModel) View() string {
	if m.fatalErr != nil {
		return panelErrorStyle.Render("fatal: " + m.fatalErr.Error())
	}
	if m.width <= 0 {
		m.width = 110
	}
	if m.height <= 0 {
		m.height = 32
	}

	switch m.mode {
	case panelModeForm:
		return m.viewForm()
	case panelModeConfirmReset:
		return m.viewConfirmReset()
	default:
		return m.viewBrowse()
	}
}

func (m panelModel) viewBrowse() string {
	header := panelTitleStyle.Render("evidence-desk panel") + "\n" +
		panelMutedStyle.Render("tab: switch | n: new job | r: reprocess | d: download | f: ref frame | J/K: reorder previews | x: reset | c: reset+cleanup | q: quit")

	if m.width < 96 {
		video := m.renderPane(m.video, m.width)
		long := m.renderPane(m.long, m.width)
		body := lipgloss.JoinVertical(lipgloss.Left, video, long)
		return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
	}

	paneW := (m.width - 2) / 2
	video := m.renderPane(m.video, paneW)
	long := m.renderPane(m.long, paneW)
	body := lipgloss.JoinHorizontal(lipgloss.Top, video, long)
	return lipgloss.JoinVertical(lipgloss.Left, header, body, m.renderStatusLine(m.width))
}

func (m panelModel) renderPane(pane *panelPane, width int) string {
	snap := m.snapshot(pane)
	inner := maxInt(width-6, 16)

	title := "Video Evidence"
	if pane.kind == model.KindLongImage {
		title = "Long Screenshot"
	}
	lines := []string{panelTitleStyle.Render(title)}

	statusLine := kv("status", snap.Status)
	switch snap.Status {
	case model.StatusCompleted:
		statusLine = panelOKStyle.Render(statusLine)
	case model.StatusFailed:
		statusLine = panelErrorStyle.Render(statusLine)
	case model.StatusCompletedNoResult:
		statusLine = panelWarnStyle.Render(statusLine)
	}
	lines = append(lines, statusLine)

	if snap.SessionID != "" {
		lines = append(lines, panelMutedStyle.Render(kv("session", snap.SessionID)))
	}
	if snap.Status == model.StatusProcessing {
		bar := m.bar
		bar.Width = clampInt(inner-6, 10, 60)
		lines = append(lines, bar.ViewAs(float64(snap.Progress)/100)+fmt.Sprintf(" %d%%", snap.Progress))
	}
	if snap.ResultLocation != "" {
		lines = append(lines, kv("result", snap.ResultLocation))
	}
	if pane.savedTo != "" {
		lines = append(lines, panelOKStyle.Render(kv("saved_to", pane.savedTo)))
	}

	if len(snap.PreviewOrder) > 0 {
		lines = append(lines, "")
		lines = append(lines, panelMutedStyle.Render(fmt.Sprintf("previews (%d)", len(snap.PreviewOrder))))
		cursor := clampInt(pane.previewCursor, 0, len(snap.PreviewOrder)-1)
		start, end := previewWindow(len(snap.PreviewOrder), cursor, 6)
		if start > 0 {
			lines = append(lines, panelMutedStyle.Render("..."))
		}
		for i := start; i < end; i++ {
			row := fmt.Sprintf("%2d. %s", i+1, snap.PreviewOrder[i])
			row = truncateRunes(row, inner)
			if i == cursor && pane.kind == m.focus {
				row = panelSelStyle.Width(maxInt(inner, 6)).Render(row)
			}
			lines = append(lines, row)
		}
		if end < len(snap.PreviewOrder) {
			lines = append(lines, panelMutedStyle.Render("..."))
		}
	}

	if len(snap.Log) > 0 {
		lines = append(lines, "")
		lines = append(lines, panelMutedStyle.Render("log"))
		rendered := make([]string, 0, len(snap.Log))
		for _, entry := range snap.Log {
			rendered = append(rendered, entry.Time.Format("15:04:05")+" "+entry.Text)
		}
		for _, row := range tailLines(rendered, 6) {
			lines = append(lines, wrapOrTrim(row, inner))
		}
	}
	if snap.Status == model.StatusIdle && len(snap.Log) == 0 {
		lines = append(lines, "")
		lines = append(lines, panelMutedStyle.Render("No job yet. Press n to start one."))
	}

	for i := range lines {
		lines[i] = wrapOrTrim(lines[i], inner)
	}
	style := panelBorderStyle
	if pane.kind == m.focus {
		style = panelFocusStyle
	}
	return style.Width(width).Render(strings.Join(lines, "\n"))
}

func (m panelModel) renderStatusLine(width int) string {
	msg := strings.TrimSpace(m.statusMessage)
	if msg == "" {
		msg = "Tip: both pipelines run side by side; events never cross panels."
	}
	style := panelMutedStyle
	switch {
	case strings.HasPrefix(strings.ToLower(msg), "error:"):
		style = panelErrorStyle
	case strings.HasPrefix(strings.ToLower(msg), "saved"):
		style = panelOKStyle
	}
	return style.Width(width).Render(truncateRunes(msg, maxInt(width-2, 10)))
}

func (m panelModel) viewForm() string {
	if m.form == nil {
		return ""
	}
	header := panelTitleStyle.Render(m.form.Title)
	hints := panelMutedStyle.Render("tab/shift+tab or up/down: move | left/right/space: cycle | enter: next/save | ctrl+s: save | esc: cancel")

	lines := make([]string, 0, len(m.form.Fields)+6)
	for i, f := range m.form.Fields {
		prefix := "  "
		if i == m.form.Index {
			prefix = "> "
		}
		display := strings.TrimSpace(f.Value)
		if display == "" {
			display = panelMutedStyle.Render("(empty)")
		}
		if f.Kind == jobFieldSelect {
			display = "[" + display + "]"
		}
		line := fmt.Sprintf("%s%s: %s", prefix, f.Label, display)
		lines = append(lines, wrapOrTrim(line, maxInt(m.width-6, 20)))
	}

	curr := m.form.currentField()
	inputLabel := fmt.Sprintf("\n%s\n", curr.Label)
	inputHelp := ""
	if strings.TrimSpace(curr.Help) != "" {
		inputHelp = panelMutedStyle.Render(curr.Help) + "\n"
	}
	status := ""
	if m.form.Saving {
		status = panelMutedStyle.Render("\nStarting...")
	}
	if strings.TrimSpace(m.form.Error) != "" {
		status = "\n" + panelErrorStyle.Render(m.form.Error)
	}

	panel := panelBorderStyle.Width(maxInt(m.width, 40)).Render(strings.Join(lines, "\n") + inputLabel + inputHelp + m.form.Input.View() + status)
	return lipgloss.JoinVertical(lipgloss.Left, header, hints, panel)
}

func (m panelModel) viewConfirmReset() string {
	pane := m.focused()
	action := "Reset the " + pane.kind + " slot?"
	detail := "The local job state is cleared.\nThe server keeps its session data."
	if m.confirmCleanup {
		detail = "The local job state is cleared AND the\nserver-side session data is deleted."
	}
	text := fmt.Sprintf("%s\n\n%s\n\nPress y or Enter to confirm, n or Esc to cancel.", action, detail)
	boxW := clampInt(m.width-8, 36, 80)
	boxH := clampInt(m.height-6, 9, 14)
	panel := panelBorderStyle.Width(boxW).Height(boxH).Render(text)
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, panel)
}

func previewWindow(total, cursor, maxRows int) (int, int) {
	if total <= maxRows {
		return 0, total
	}
	half := maxRows / 2
	start := cursor - half
	if start < 0 {
		start = 0
	}
	end := start + maxRows
	if end > total {
		end = total
		start = end - maxRows
	}
	return start, end
}
