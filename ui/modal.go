package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
)

// ModalType determines the title color of a modal
type ModalType int

const (
	ModalTypeInfo ModalType = iota
	ModalTypeWarning
	ModalTypeError
)

func (t ModalType) color() lipgloss.Color {
	switch t {
	case ModalTypeWarning:
		return warningColor
	case ModalTypeError:
		return dangerColor
	default:
		return accentColor
	}
}

// RenderConfirmationModal asks a yes/no question.
func RenderConfirmationModal(title, message string, width, height int) string {
	return renderThreeSectionModal(title, centeredLines(message, 60, width), FormatFooter("y", "Yes", "n", "No"), ModalTypeWarning, 60, width, height)
}

// RenderAcknowledgeModal shows a message that only needs dismissing.
func RenderAcknowledgeModal(title, message string, modalType ModalType, width, height int) string {
	return renderThreeSectionModal(title, centeredLines(message, 60, width), "Press Enter to acknowledge", modalType, 60, width, height)
}

func modalWidthFor(desired, width int) int {
	if width < desired+10 {
		return width - 10
	}
	return desired
}

func centeredLines(message string, desired, width int) []string {
	modalWidth := modalWidthFor(desired, width)
	style := lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Center)
	var lines []string
	for _, line := range strings.Split(wordWrapWithIndent(message, "", modalWidth-4), "\n") {
		if line == "" {
			continue
		}
		lines = append(lines, style.Render(line))
	}
	return lines
}

// renderThreeSectionModal lays out title, message and footer, the message and
// footer each under a top border.
func renderThreeSectionModal(title string, messageLines []string, footer string, modalType ModalType, desiredWidth, width, height int) string {
	modalWidth := modalWidthFor(desiredWidth, width)

	// runewidth keeps emoji titles centered
	titleWidth := runewidth.StringWidth(title)
	leftPad := (modalWidth - titleWidth) / 2
	if leftPad < 0 {
		leftPad = 0
	}
	rightPad := modalWidth - titleWidth - leftPad
	if rightPad < 0 {
		rightPad = 0
	}
	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(modalType.color()).
		Render(strings.Repeat(" ", leftPad) + title + strings.Repeat(" ", rightPad))

	blank := strings.Repeat(" ", modalWidth)
	content := append([]string{blank}, messageLines...)
	content = append(content, blank)

	messageSection := lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Width(modalWidth).
		Render(strings.Join(content, "\n"))

	footerSection := lipgloss.NewStyle().
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor).
		Render(footer)

	modal := strings.Join([]string{titleSection, messageSection, footerSection}, "\n")
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, modal)
}
