package console

import (
	"regexp"

	"github.com/charmbracelet/lipgloss"
	"github.com/chorusdev/chorus/internal/task"
)

// colorRule is one compiled (regex, style) entry from a task's ordered
// color map (§3 "color (ordered mapping of regular expression → color)").
type colorRule struct {
	re    *regexp.Regexp
	style lipgloss.Style
}

// compileColors compiles a task's color rules, skipping any pattern that
// fails to parse — a malformed color regex degrades styling, it must not
// crash the console (styling is explicitly out of the supervisor/UI
// contract's critical path).
func compileColors(rules task.OrderedRuleSet[string]) []colorRule {
	compiled := make([]colorRule, 0, len(rules))
	for _, r := range rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			continue
		}
		compiled = append(compiled, colorRule{re: re, style: lipgloss.NewStyle().Foreground(lipgloss.Color(r.Value))})
	}
	return compiled
}

// styleFor returns the style of the first matching rule, or the default
// style if none match.
func styleFor(rules []colorRule, line string, def lipgloss.Style) lipgloss.Style {
	for _, r := range rules {
		if r.re.MatchString(line) {
			return r.style
		}
	}
	return def
}
