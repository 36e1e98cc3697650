package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

func renderHelpModal(width, height int) string {
	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)
	blue := lipgloss.NewStyle().Foreground(accentColor)

	title := green.Render("Concierge - Keyboard Shortcuts")

	chat := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chat"),
		fmt.Sprintf("• %-11s Send message", "Enter"),
		fmt.Sprintf("• %-11s New line", "Alt+Enter"),
		fmt.Sprintf("• %-11s Cancel the running turn", "Esc"),
		fmt.Sprintf("• %-11s Copy last reply", "Ctrl+Y"),
		fmt.Sprintf("• %-11s Save transcript", "Ctrl+S"),
		fmt.Sprintf("• %-11s New conversation", "Ctrl+R"),
		fmt.Sprintf("• %-11s Quit", "Alt+Q"),
	)

	approvals := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Tool approvals"),
		fmt.Sprintf("• %-11s Approve once", "y"),
		fmt.Sprintf("• %-11s Always approve", "a"),
		fmt.Sprintf("• %-11s Deny", "n"),
		"",
		blue.Render("## Scrolling"),
		fmt.Sprintf("• %-11s Line up / down", "↑ / ↓"),
		fmt.Sprintf("• %-11s Page up / down", "PgUp / PgDn"),
	)

	columnStyle := lipgloss.NewStyle().Width(38).PaddingLeft(4)
	columns := lipgloss.JoinHorizontal(
		lipgloss.Top,
		columnStyle.Render(chat),
		columnStyle.Render(approvals),
	)

	footer := DimStyle.Render("Press Alt+H or Esc to close this help")

	content := lipgloss.JoinVertical(lipgloss.Center, title, "", columns, "", footer)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(1, 2)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, helpBox.Render(content))
}
