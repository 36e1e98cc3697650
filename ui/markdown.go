package ui

import (
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"concierge/config"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

const codeBar = "┃"

// markdownCache renders assistant text once per (id, text, width).
type markdownCache struct {
	width   int
	entries map[string]string
}

func newMarkdownCache() *markdownCache {
	return &markdownCache{entries: make(map[string]string)}
}

func (c *markdownCache) render(id, text string, width int) string {
	if width != c.width {
		c.width = width
		c.entries = make(map[string]string)
	}
	key := id + "\x00" + text
	if out, ok := c.entries[key]; ok {
		return out
	}
	out := renderMarkdown(text, width)
	c.entries[key] = out
	return out
}

func renderMarkdown(content string, width int) string {
	start := time.Now()
	if width < 20 {
		width = 20
	}

	// [text](url) becomes url so every link renders the same way
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	// Autolink stays off so terminals handle URL detection themselves
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	out := postProcessMarkdown(strings.TrimRight(string(rendered), "\n"), width)
	if config.DebugLog != nil {
		config.DebugLog.Printf("[UI] Markdown rendered (%d chars) in %v", len(content), time.Since(start))
	}
	return out
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	rendered = colorURLs(rendered)
	return frameCodeBlocks(rendered, width)
}

func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks replaces the renderer's left bar on code lines with a
// labelled horizontal frame.
func frameCodeBlocks(s string, width int) string {
	const darkGray, reset = "\x1b[90m", "\x1b[0m"
	lineLen := width - 4
	if lineLen < 8 {
		lineLen = 8
	}
	top := func() string {
		label := "[code]"
		left := (lineLen - len(label)) / 2
		right := lineLen - len(label) - left
		return darkGray + strings.Repeat("━", left) + reset + label + darkGray + strings.Repeat("━", right) + reset
	}
	bottom := darkGray + strings.Repeat("━", lineLen) + reset

	var result []string
	inBlock := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, codeBar) {
			if !inBlock {
				inBlock = true
				result = append(result, "", top(), "")
			}
			result = append(result, stripCodeBlockPrefix(line))
			continue
		}
		if inBlock {
			result = append(result, "", bottom, "")
			inBlock = false
		}
		result = append(result, line)
	}
	if inBlock {
		result = append(result, "", bottom, "")
	}
	return strings.Join(result, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	rest := line[idx+len(codeBar):]
	return strings.TrimPrefix(rest, " ")
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// wordWrapWithIndent wraps text to maxWidth, indenting continuation lines to
// the width of prefix.
func wordWrapWithIndent(text, prefix string, maxWidth int) string {
	prefixLen := len([]rune(stripANSI(prefix)))
	available := maxWidth - prefixLen
	if available <= 0 {
		return prefix + text + "\n"
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return prefix + "\n"
	}

	var result, line strings.Builder
	indent := strings.Repeat(" ", prefixLen)
	first := true
	flush := func() {
		if first {
			result.WriteString(prefix)
			first = false
		} else {
			result.WriteString(indent)
		}
		result.WriteString(line.String())
		result.WriteString("\n")
		line.Reset()
	}

	for _, word := range words {
		n := line.Len()
		if n > 0 {
			n++
		}
		if n+len(word) > available && line.Len() > 0 {
			flush()
		}
		if line.Len() > 0 {
			line.WriteString(" ")
		}
		line.WriteString(word)
	}
	if line.Len() > 0 {
		flush()
	}
	return result.String()
}
