package pipe

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/chorusdev/chorus/internal/task"
)

// Destination names where Router.Route sent (or will send) a line.
type Destination int

const (
	// DestDefault means no rule matched; the caller should append the line
	// to the task's own default panel.
	DestDefault Destination = iota
	// DestTab means the line was routed to the named synthetic panel; the
	// caller (the console) is responsible for appending it there.
	DestTab
	// DestFile means Router already appended the line to disk; the caller
	// has nothing further to do.
	DestFile
)

// Result is the outcome of routing a single output line.
type Result struct {
	Destination Destination
	Tab         string // set when Destination == DestTab
}

// IgnoreRegistrar receives paths that File-pipe writes touch, so the
// watcher never turns our own output back into a reload signal (§4.4's
// write-back loop suppression).
type IgnoreRegistrar interface {
	IgnorePath(path string)
}

// Compile builds a Router from a task's declared pipe rules.
func Compile(rules task.OrderedRuleSet[string]) (*Router, error) {
	compiled := make([]Rule, 0, len(rules))
	for _, r := range rules {
		redir, err := ParseRedirection(r.Value)
		if err != nil {
			return nil, err
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrBadPattern, r.Pattern, err)
		}
		compiled = append(compiled, Rule{Regex: re, Redirection: redir})
	}
	return &Router{rules: compiled, registered: map[string]bool{}}, nil
}

// Router scans a task's output lines against its compiled pipe rules and
// dispatches each to its first-matching redirection, in declared order
// (§8 invariant 5).
type Router struct {
	rules      []Rule
	baseDir    string
	ignore     IgnoreRegistrar
	mu         sync.Mutex
	registered map[string]bool
}

// WithBaseDir resolves relative File targets against dir instead of the
// process's working directory.
func (r *Router) WithBaseDir(dir string) *Router {
	r.baseDir = dir
	return r
}

// WithIgnoreRegistrar wires the watcher's ignore set so File writes never
// loop back into a reload.
func (r *Router) WithIgnoreRegistrar(ignore IgnoreRegistrar) *Router {
	r.ignore = ignore
	return r
}

// PreregisterStaticTargets eagerly announces every File rule whose target
// has no capture references to the watcher's ignore set, ahead of the
// first line ever being routed. A purely literal target (no "$" in its
// redirection URI) is known in full at Compile time, so there is no need
// to wait for the first matching line to resolve its path the way a
// capture-expanded target does — and waiting would leave a window between
// a task's first output and its IgnorePath announcement for the watcher's
// debounce timer to race (§8 invariant 6: "before the first byte is
// appended", not merely before the first write call returns).
func (r *Router) PreregisterStaticTargets() {
	for _, rule := range r.rules {
		if rule.Redirection.Kind != KindFile || strings.Contains(rule.Redirection.Target, "$") {
			continue
		}
		abs := rule.Redirection.Target
		if !filepath.IsAbs(abs) {
			abs = filepath.Join(r.baseDir, abs)
		}
		r.registerIgnore(abs)
	}
}

// Route applies the compiled rules to one output line (without its
// trailing newline). Exactly one of the invariant-5 outcomes holds: no
// rule matches (DestDefault), or the first matching rule's redirection is
// applied (DestTab or DestFile).
func (r *Router) Route(line []byte) (Result, error) {
	for _, rule := range r.rules {
		loc := rule.Regex.FindSubmatchIndex(line)
		if loc == nil {
			continue
		}
		name := rule.Expand(line, loc)
		switch rule.Redirection.Kind {
		case KindTab:
			return Result{Destination: DestTab, Tab: name}, nil
		case KindFile:
			if err := r.appendFile(name, line); err != nil {
				return Result{}, fmt.Errorf("pipe file %s: %w", name, err)
			}
			return Result{Destination: DestFile}, nil
		}
	}
	return Result{Destination: DestDefault}, nil
}

func (r *Router) appendFile(path string, line []byte) error {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(r.baseDir, abs)
	}

	r.registerIgnore(abs)

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(abs, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	_, err = f.Write(buf)
	return err
}

// registerIgnore announces abs to the watcher's ignore set the first time
// this Router is about to write to it, and only the first time — §8
// invariant 6 requires this to happen before the first byte is appended,
// never after.
func (r *Router) registerIgnore(abs string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.registered[abs] {
		return
	}
	r.registered[abs] = true
	if r.ignore != nil {
		r.ignore.IgnorePath(abs)
	}
}
