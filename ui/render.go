package ui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"concierge/model"
)

// renderTranscript lays out every item for the viewport. streaming marks the
// last assistant message as still growing, which skips markdown rendering.
func renderTranscript(items []model.Item, width int, md *markdownCache, streaming bool, spin string) string {
	if len(items) == 0 {
		return DimStyle.Render("Ask about hotels, prices, destinations or the weather.")
	}

	var b strings.Builder
	for i, it := range items {
		live := streaming && i == len(items)-1
		switch v := it.(type) {
		case *model.Message:
			b.WriteString(renderMessage(v, width, md, live))
		case *model.ToolCall:
			b.WriteString(renderToolCall(v, width, spin))
		case *model.McpListTools:
			b.WriteString(renderListTools(v, width))
		case *model.McpApprovalRequest:
			b.WriteString(renderApproval(v, width))
		default:
			if model.IsWidget(it.Kind()) {
				b.WriteString(renderWidget(it, width))
				b.WriteString("\n\n")
			}
		}
	}
	if streaming {
		if _, ok := items[len(items)-1].(*model.Message); !ok {
			b.WriteString(spin + " " + DimStyle.Render("Thinking..."))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderMessage(m *model.Message, width int, md *markdownCache, live bool) string {
	text := m.Text()
	if m.Role == model.RoleUser {
		return formatUserMessage(UserStyle.Render("You"), text)
	}

	body := text
	switch {
	case live:
		body = text + "▋"
	case text != "":
		body = md.render(m.ID, text, width)
	}

	var cites []string
	for _, part := range m.Content {
		for _, a := range part.Annotations {
			switch {
			case a.URL != "":
				cites = append(cites, a.URL)
			case a.Filename != "":
				cites = append(cites, a.Filename)
			}
		}
	}
	if len(cites) > 0 {
		body += "\n" + DimStyle.Render("Sources: ") + LinkStyle.Render(strings.Join(dedupe(cites), "  "))
	}
	return fmt.Sprintf("%s\n%s\n\n", AssistantStyle.Render("Concierge"), body)
}

func formatUserMessage(role, content string) string {
	bar := UserStyle.Render("┃")
	var b strings.Builder
	b.WriteString(fmt.Sprintf("%s %s\n", bar, role))
	for _, line := range strings.Split(content, "\n") {
		b.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	b.WriteString("\n")
	return b.String()
}

func statusIcon(t *model.ToolCall, spin string) string {
	switch t.Status {
	case model.StatusCompleted:
		return SuccessStyle.Render("✓")
	case model.StatusFailed:
		return ErrorStyle.Render("✗")
	default:
		return spin
	}
}

func toolLabel(t *model.ToolCall) string {
	switch t.ToolType {
	case model.ToolWebSearchCall:
		return "Web search"
	case model.ToolFileSearchCall:
		return "File search"
	case model.ToolCodeInterpreterCall:
		return "Code interpreter"
	case model.ToolMcpCall:
		if t.ServerLabel != "" {
			return t.ServerLabel + " › " + t.Name
		}
		return t.Name
	default:
		return t.Name
	}
}

func renderToolCall(t *model.ToolCall, width int, spin string) string {
	inner := width - 6
	line := fmt.Sprintf("%s %s", statusIcon(t, spin), TitleStyle.Render(toolLabel(t)))
	if args := argumentSummary(t); args != "" {
		line += DimStyle.Render(truncate("("+args+")", inner-len([]rune(toolLabel(t)))))
	}

	lines := []string{line}
	if t.ToolType == model.ToolCodeInterpreterCall && t.Code != "" {
		lines = append(lines, DimStyle.Render(indent(t.Code, "    ")))
	}
	for _, f := range t.Files {
		name := f.Filename
		if name == "" {
			name = f.FileID
		}
		lines = append(lines, "    "+LinkStyle.Render(name))
	}
	if t.Status == model.StatusFailed && t.Output != "" {
		lines = append(lines, "    "+ErrorStyle.Render(truncate(t.Output, inner)))
	} else if t.ToolType == model.ToolFunctionCall && t.Output != "" {
		lines = append(lines, "    "+DimStyle.Render(truncate("→ "+t.Output, inner)))
	}
	return strings.Join(lines, "\n") + "\n\n"
}

// argumentSummary renders parsed arguments as key=value pairs in key order.
func argumentSummary(t *model.ToolCall) string {
	if len(t.ParsedArguments) == 0 {
		return ""
	}
	keys := make([]string, 0, len(t.ParsedArguments))
	for k := range t.ParsedArguments {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := t.ParsedArguments[k]
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		default:
			b, _ := json.Marshal(tv)
			s = string(b)
		}
		parts = append(parts, k+"="+s)
	}
	return strings.Join(parts, ", ")
}

func renderListTools(l *model.McpListTools, width int) string {
	names := make([]string, 0, len(l.Tools))
	for _, t := range l.Tools {
		names = append(names, t.Name)
	}
	text := fmt.Sprintf("%s tools: %s", l.ServerLabel, strings.Join(names, ", "))
	return DimStyle.Render(truncate(text, width-2)) + "\n\n"
}

// renderApproval shows a remote tool call waiting on the user, or the
// decision once made.
func renderApproval(a *model.McpApprovalRequest, width int) string {
	maxWidth := width - 4
	if maxWidth > 70 {
		maxWidth = 70
	}

	var content strings.Builder
	content.WriteString(WarningStyle.Render("Approval required") + "\n")
	content.WriteString(wordWrapWithIndent(a.Name, "╰── Tool: ", maxWidth))
	if a.ServerLabel != "" {
		content.WriteString(wordWrapWithIndent(a.ServerLabel, "╰── Server: ", maxWidth))
	}
	if a.Arguments != "" && a.Arguments != "{}" {
		content.WriteString(wordWrapWithIndent(a.Arguments, "╰── Arguments: ", maxWidth))
	}

	switch a.Decision {
	case model.DecisionApproved:
		content.WriteString(SuccessStyle.Render("Approved"))
	case model.DecisionDenied:
		content.WriteString(ErrorStyle.Render("Denied"))
	default:
		content.WriteString("\n" +
			SuccessStyle.Bold(true).Render("[y]") + " Yes    " +
			AssistantStyle.Bold(true).Render("[a]") + " Always    " +
			ErrorStyle.Render("[n]") + " No")
	}

	bar := AssistantStyle.Bold(true).Render("│")
	var b strings.Builder
	for _, line := range strings.Split(strings.TrimRight(content.String(), "\n"), "\n") {
		b.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}
	b.WriteString("\n")
	return b.String()
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}

func dedupe(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := in[:0:0]
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
