package console

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/chorusdev/chorus/internal/actor"
	"github.com/chorusdev/chorus/internal/reload"
)

// styledLine is one line of a panel's scrollback (§3 "Panel: scrollback
// sequence of (styled text, base style)").
type styledLine struct {
	text    string
	service bool
}

// Panel is the UI's per-task (or per-pipe-target) scrollback described by
// §3: a log of lines, a wrapped-line count cache, a scroll offset, the
// supervisor address bound for the manual-reload key, and the last known
// exit status.
type Panel struct {
	id      string // stable synthetic id, independent of the display name
	name    string
	lines   []styledLine
	wrapped int // cached wrapped-line count at the last known terminal width
	scroll  int
	addr    actor.Address[any]
	colors  []colorRule
	status  *reload.Status
}

func newPanel(name string, addr actor.Address[any], colors []colorRule) *Panel {
	return &Panel{id: newSyntheticID(), name: name, addr: addr, colors: colors}
}

// styleFor returns the style this panel renders line in, given its
// service-log flag and the ordered color rules (SPEC_FULL.md §3
// supplement: color rules are independent of, and evaluated the same way
// as, pipe routing — first match wins, unmatched falls through to base).
func (p *Panel) styleFor(line styledLine, base lipgloss.Style) lipgloss.Style {
	if line.service {
		return base.Background(lipgloss.Color("238"))
	}
	return styleFor(p.colors, line.text, base)
}

// statusGlyph renders the tab-strip marker for this panel's current
// status: "*" while running (None), "." on a clean exit, "!" otherwise
// (§4.6 "Panel state transitions on PanelStatus").
func (p *Panel) statusGlyph() string {
	switch {
	case p.status == nil:
		return "*"
	case p.status.Success():
		return "."
	default:
		return "!"
	}
}
