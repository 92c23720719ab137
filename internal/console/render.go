package console

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

var (
	baseStyle     = lipgloss.NewStyle()
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failureStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	runningStyle  = lipgloss.NewStyle()
	focusedStyle  = lipgloss.NewStyle().Bold(true).Background(lipgloss.Color("240"))
)

// timestampPrefix renders §6's "HH:MM:SS.mmm" prefix for the --timestamp
// flag.
func timestampPrefix() string {
	return time.Now().Format("15:04:05.000") + "  "
}

// wrappedLines estimates how many terminal rows text occupies at the
// given width, the same cheap approximation the original computes via
// strip-ansi + textwrap: visible-width runes divided into width-wide rows,
// at least one row per (non-empty) line.
func wrappedLines(text string, width int) int {
	if width <= 0 {
		width = 80
	}
	visible := lipgloss.Width(ansi.Strip(text))
	if visible == 0 {
		return 1
	}
	return (visible + width - 1) / width
}

// render draws the focused panel's scrollback plus a tab strip (or task
// list, when toggled) to the console's output. It is a full repaint on
// every mutation — simple, and acceptable because §4.6 explicitly allows
// the UI to "coalesce redraws" and never promises anything stronger.
func (c *Console) render() {
	if !c.isTTY {
		return
	}
	var b strings.Builder
	b.WriteString(ansi.EraseEntireScreen)
	b.WriteString(ansi.CursorPosition(1, 1))

	name := c.focusedName()
	p := c.panels[name]
	if p != nil {
		b.WriteString(c.renderPanelBody(p))
	}
	b.WriteString(c.renderChrome())

	fmt.Fprint(c.out, b.String())
}

func (c *Console) renderPanelBody(p *Panel) string {
	rows := c.height - 2
	if rows < 1 {
		rows = 1
	}
	var b strings.Builder
	start := 0
	if len(p.lines) > rows {
		start = len(p.lines) - rows - p.scroll
		if start < 0 {
			start = 0
		}
	}
	end := start + rows
	if end > len(p.lines) {
		end = len(p.lines)
	}
	for _, l := range p.lines[start:end] {
		style := p.styleFor(l, baseStyle)
		b.WriteString(style.Render(l.text))
		b.WriteString("\r\n")
	}
	return b.String()
}

func (c *Console) renderChrome() string {
	switch c.layout {
	case layoutList:
		return c.renderList()
	default:
		return c.renderTabs()
	}
}

func (c *Console) renderTabs() string {
	var parts []string
	for i, name := range c.order {
		p := c.panels[name]
		label := name + p.statusGlyph()
		style := baseStyle
		switch {
		case p.status != nil && p.status.Success():
			style = successStyle
		case p.status != nil:
			style = failureStyle
		default:
			style = runningStyle
		}
		if i == c.focused {
			style = focusedStyle
		}
		parts = append(parts, style.Render(label))
	}
	return strings.Join(parts, " │ ")
}

func (c *Console) renderList() string {
	var b strings.Builder
	for i, name := range c.order {
		p := c.panels[name]
		marker := "  "
		if i == c.focused {
			marker = "> "
		}
		fmt.Fprintf(&b, "%s%s%s\r\n", marker, name, p.statusGlyph())
	}
	return b.String()
}
