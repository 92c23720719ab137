package console

import (
	"bufio"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/chorusdev/chorus/internal/reload"
)

// keyKind enumerates the input contract §4.6 promises to be stable:
// quit, manual reload, navigation (arrow/vi keys), digit-tab jump, and
// the layout/mode toggles the original exposes via Tab / 'm'.
type keyKind int

const (
	keyChar keyKind = iota
	keyUp
	keyDown
	keyLeft
	keyRight
	keyQuit
	keyReload
	keyTabToggle
	keyModeToggle
	keyDigit
)

type keyMsg struct {
	kind keyKind
	r    rune
}

// enterRawMode puts the terminal into raw mode and the alternate screen,
// hiding the cursor, matching the original's crossterm startup sequence.
// Raw mode is only entered for a real TTY (§4.6 contract is unaffected by
// streaming mode, used for piped/non-interactive runs).
func (c *Console) enterRawMode() {
	fd := int(c.out.Fd())
	if w, h, err := term.GetSize(fd); err == nil && w > 0 && h > 0 {
		c.width, c.height = w, h
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		c.log.Warnf("console: failed to enter raw mode: %v", err)
		return
	}
	c.restore = func() { _ = term.Restore(fd, state) }
	_, _ = c.out.WriteString(ansiHideCursor + ansiAltScreenOn)
}

func (c *Console) leaveRawMode() {
	_, _ = c.out.WriteString(ansiAltScreenOff + ansiShowCursor)
	if c.restore != nil {
		c.restore()
	}
}

// Cursor/alt-screen escapes the original enters/leaves around its raw-mode
// session (crossterm's EnterAlternateScreen / LeaveAlternateScreen /
// cursor::Hide / cursor::Show). charmbracelet/x/ansi exposes the
// equivalents used elsewhere in this package (EraseEntireScreen,
// CursorPosition); these four have no stable exported name across ansi
// package versions, so they're spelled out literally here, same sequences
// ansi's own constants expand to.
const (
	ansiHideCursor   = "\x1b[?25l"
	ansiShowCursor   = "\x1b[?25h"
	ansiAltScreenOn  = "\x1b[?1049h"
	ansiAltScreenOff = "\x1b[?1049l"
)

// readInput runs on its own goroutine reading raw bytes from stdin,
// translating them into keyMsg values delivered over the console's own
// mailbox — exactly the pattern the watcher's native callback uses
// (§9 "watcher callback isolation"): parse on the foreign thread, send
// non-blocking, never touch actor state directly.
func (c *Console) readInput() {
	r := bufio.NewReader(os.Stdin)
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case 0x03: // Ctrl-C
			c.self.Send(keyMsg{kind: keyQuit})
		case 'q':
			c.self.Send(keyMsg{kind: keyQuit})
		case 'r':
			c.self.Send(keyMsg{kind: keyReload})
		case '\t':
			c.self.Send(keyMsg{kind: keyTabToggle})
		case 'm':
			c.self.Send(keyMsg{kind: keyModeToggle})
		case 'k':
			c.self.Send(keyMsg{kind: keyUp})
		case 'j':
			c.self.Send(keyMsg{kind: keyDown})
		case 'h':
			c.self.Send(keyMsg{kind: keyLeft})
		case 'l':
			c.self.Send(keyMsg{kind: keyRight})
		case 0x1b: // ESC — possibly an arrow-key sequence "ESC [ A/B/C/D"
			if peeked, err := r.Peek(2); err == nil && peeked[0] == '[' {
				_, _ = r.Discard(2)
				switch peeked[1] {
				case 'A':
					c.self.Send(keyMsg{kind: keyUp})
				case 'B':
					c.self.Send(keyMsg{kind: keyDown})
				case 'C':
					c.self.Send(keyMsg{kind: keyRight})
				case 'D':
					c.self.Send(keyMsg{kind: keyLeft})
				}
			}
		default:
			if b >= '0' && b <= '9' {
				c.self.Send(keyMsg{kind: keyDigit, r: rune(b)})
			}
		}
	}
}

// handleKey applies the stable input contract of §4.6.
func (c *Console) handleKey(m keyMsg) {
	switch m.kind {
	case keyQuit:
		c.self.Send(quitMsg{})
	case keyReload:
		if p := c.panels[c.focusedName()]; p != nil && p.addr.Valid() {
			p.addr.Send(reload.NewManual())
		}
	case keyUp:
		c.scroll(1)
	case keyDown:
		c.scroll(-1)
	case keyRight:
		c.focusNext()
	case keyLeft:
		c.focusPrev()
	case keyTabToggle:
		if c.layout == layoutTabs {
			c.layout = layoutList
		} else {
			c.layout = layoutTabs
		}
	case keyModeToggle:
		// The original's AppMode::Menu/View toggle hides the chrome
		// entirely in View mode; out of scope for this contract beyond
		// tracking that 'm' is a recognized, harmless key.
	case keyDigit:
		c.jumpToDigit(m.r)
	}
}

func (c *Console) scroll(delta int) {
	p := c.panels[c.focusedName()]
	if p == nil {
		return
	}
	rows := c.height - 2
	if rows < 0 {
		rows = 0
	}
	maxScroll := p.wrapped - rows
	if maxScroll < 0 {
		maxScroll = 0
	}
	p.scroll += delta
	if p.scroll < 0 {
		p.scroll = 0
	}
	if p.scroll > maxScroll {
		p.scroll = maxScroll
	}
}

func (c *Console) focusNext() {
	if len(c.order) == 0 {
		return
	}
	c.focused = (c.focused + 1) % len(c.order)
}

func (c *Console) focusPrev() {
	if len(c.order) == 0 {
		return
	}
	c.focused = (c.focused - 1 + len(c.order)) % len(c.order)
}

// jumpToDigit implements §4.6 "digit keys 1..9 jump to a tab (0 -> last)".
func (c *Console) jumpToDigit(r rune) {
	if len(c.order) == 0 {
		return
	}
	n := int(r - '0')
	idx := n - 1
	if n == 0 {
		idx = len(c.order) - 1
	}
	if idx >= 0 && idx < len(c.order) {
		c.focused = idx
	}
}
