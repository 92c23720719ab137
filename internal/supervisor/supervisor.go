// Package supervisor implements the per-task actor (§4.5): it owns a
// child shell process, streams its merged stdout/stderr through the pipe
// router, enforces termination, and runs the reload algorithm that keeps
// upstream/downstream restarts consistent via the pending-upstream
// counters (§9 "counter over boolean").
package supervisor

import (
	"bufio"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/chorusdev/chorus/internal/actor"
	"github.com/chorusdev/chorus/internal/logger"
	"github.com/chorusdev/chorus/internal/pipe"
	"github.com/chorusdev/chorus/internal/reload"
	"github.com/chorusdev/chorus/internal/task"
	"github.com/chorusdev/chorus/internal/watcher"
	gopsutil "github.com/shirou/gopsutil/v4/process"
)

// gracePeriod is ensure_stopped's graceful-termination window before a
// kill (§4.5 step 1, §5 "10 ms graceful window").
const gracePeriod = 10 * time.Millisecond

// stdoutGrace is StdoutTerminated's additional wait for the child to
// report an exit code before it is force-killed (§4.5, §5 "1 s
// second-chance").
const stdoutGrace = time.Second

// ConsoleAPI is the subset of the console actor a supervisor depends on.
// It is an interface so tests can observe panel lifecycle without a real
// terminal.
type ConsoleAPI interface {
	RegisterPanel(name string, colors task.OrderedRuleSet[string], addr actor.Address[any])
	Output(panel, line string)
	PanelStatus(panel string, status *reload.Status)
	ServiceLog(panel, msg string)
}

// WatcherAPI is the subset of the filesystem watcher a supervisor
// depends on.
type WatcherAPI interface {
	Subscribe(name string, include, exclude []string, sub watcher.Subscriber)
}

// childState mirrors the data model's ChildState (§3), minus the handle
// itself (held separately in run).
type childState int

const (
	notStarted childState = iota
	running
	killed
	exited
)

// run is the per-spawn bookkeeping a supervisor needs to tell a current
// child apart from a stale, already-superseded one (§4.5's "started_at
// marker").
type run struct {
	generation int64
	cmd        *exec.Cmd
	doneCh     chan struct{}
	waitErr    error
}

// stdoutTerminated is a supervisor's self-message, sent by the stdout
// reader goroutine on EOF.
type stdoutTerminated struct {
	generation int64
}

// Supervisor is the per-task actor described by §4.5.
type Supervisor struct {
	name       string
	cmd        Command
	watchGlobs []string
	ignoreGlobs []string
	downstream []actor.Address[any]
	console    ConsoleAPI
	watcherAPI WatcherAPI
	router     *pipe.Router
	colors     task.OrderedRuleSet[string]
	verbose    bool
	watchEnabled bool
	log        logger.Logger

	mailbox *actor.Mailbox[any]
	self    actor.Address[any]

	generation      int64
	state           childState
	current         *run
	pendingUpstream map[string]int
	terminalStatus  *reload.Status
	waiters         []chan<- reload.Status
	reaperInvite    *reload.PermaDeathInvite
}

// Option configures a Supervisor at construction time.
type Option func(*Supervisor)

// WithVerbose enables EXEC/WAIT/RELOAD service log lines (§6 "verbose").
func WithVerbose() Option {
	return func(s *Supervisor) { s.verbose = true }
}

// WithWatchEnabled turns on filesystem-watch subscriptions globally; a
// per-task empty watch list still results in no subscription (§8 S1).
func WithWatchEnabled() Option {
	return func(s *Supervisor) { s.watchEnabled = true }
}

// New builds a Supervisor for one task. downstream is the task's direct
// dependents' addresses (§3 "DAG... ordered list of downstream names",
// §9 "cyclic addressing" — the builder resolves these by constructing in
// reverse topological order).
func New(name string, cmd Command, t task.Task, downstream []actor.Address[any], console ConsoleAPI, watcherAPI WatcherAPI, router *pipe.Router, log logger.Logger, opts ...Option) *Supervisor {
	s := &Supervisor{
		name:            name,
		cmd:             cmd,
		watchGlobs:      t.Watch,
		ignoreGlobs:     t.Ignore,
		downstream:      downstream,
		console:         console,
		watcherAPI:      watcherAPI,
		router:          router,
		colors:          t.Color,
		log:             log,
		pendingUpstream: map[string]int{},
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mailbox = actor.NewMailbox[any](name, actor.DefaultCapacity, log)
	s.self = s.mailbox.Address()
	return s
}

// Address returns this supervisor's send-only handle.
func (s *Supervisor) Address() actor.Address[any] {
	return s.self
}

// Run registers the supervisor's panel and watch subscription, then
// processes messages until a PoisonPill closes its mailbox. Call it from
// a dedicated goroutine.
func (s *Supervisor) Run() {
	s.console.RegisterPanel(s.name, s.colors, s.self)
	if s.watchEnabled && len(s.watchGlobs) > 0 && s.watcherAPI != nil {
		s.watcherAPI.Subscribe(s.name, s.watchGlobs, s.ignoreGlobs, s)
	}
	s.mailbox.Run(s.handle)
}

// WatchEvent implements watcher.Subscriber: it forwards the watcher's
// coalesced path batch as a Reload(Watch) message on this supervisor's
// own mailbox, never touching supervisor state directly from the
// watcher's calling goroutine.
func (s *Supervisor) WatchEvent(paths []string) {
	s.self.Send(reload.NewWatch(paths))
}

func (s *Supervisor) handle(msg any) {
	switch m := msg.(type) {
	case reload.Reload:
		s.handleReload(m)
	case reload.WillReload:
		s.pendingUpstream[m.Upstream]++
		s.sendWillReloadDownstream()
	case reload.GetStatus:
		if s.terminalStatus != nil {
			status := *s.terminalStatus
			m.Reply <- &status
		} else {
			m.Reply <- nil
		}
	case reload.WaitStatus:
		if s.terminalStatus != nil {
			m.Reply <- *s.terminalStatus
		} else {
			s.waiters = append(s.waiters, m.Reply)
		}
	case reload.PoisonPill:
		s.ensureStopped()
		s.mailbox.Close()
	case reload.PermaDeathInvite:
		if s.terminalStatus != nil {
			m.Reaper.Send(reload.InviteAccepted{Name: s.name, Status: *s.terminalStatus})
		} else {
			invite := m
			s.reaperInvite = &invite
		}
	case stdoutTerminated:
		s.handleStdoutTerminated(m.generation)
	default:
		s.log.Warnf("supervisor %q: unrecognized message %T", s.name, msg)
	}
}

func (s *Supervisor) handleReload(r reload.Reload) {
	s.ensureStopped()

	switch r.Variant {
	case reload.Start:
		s.sendWillReloadDownstream()
		s.spawn()
	case reload.Manual:
		s.serviceLog("RELOAD manual")
		s.sendWillReloadDownstream()
		s.spawn()
	case reload.Watch:
		s.serviceLog("RELOAD watch: " + strings.Join(r.Files, ", "))
		s.sendWillReloadDownstream()
		s.spawn()
	case reload.Op:
		if s.pendingUpstream[r.Upstream] > 0 {
			s.pendingUpstream[r.Upstream]--
		}
		if s.anyPending() {
			return
		}
		s.spawn()
	}
}

func (s *Supervisor) anyPending() bool {
	for _, count := range s.pendingUpstream {
		if count > 0 {
			return true
		}
	}
	return false
}

func (s *Supervisor) sendWillReloadDownstream() {
	for _, addr := range s.downstream {
		addr.Send(reload.WillReload{Upstream: s.name})
	}
}

// ensureStopped is step 1 of the reload algorithm: if the current child
// is running, terminate it (graceful then kill), mark it Killed, and
// settle the WillReload that started it by propagating Reload(Op(self))
// downstream. Killed is not a terminal status for GetStatus/WaitStatus/
// the reaper — only a natural (or forced-at-EOF) exit produces one. This
// call has already settled the generation's WillReload, so the killed
// child's later EOF is ignored rather than sending a second Reload(Op).
func (s *Supervisor) ensureStopped() {
	if s.state != running || s.current == nil {
		return
	}
	run := s.current

	if run.cmd.Process != nil {
		_ = run.cmd.Process.Signal(os.Interrupt)
	}
	select {
	case <-run.doneCh:
	case <-time.After(gracePeriod):
		s.killTree(run.cmd)
		<-run.doneCh
	}

	s.state = killed
	s.propagateOp()
}

func (s *Supervisor) killTree(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if proc, err := gopsutil.NewProcess(int32(cmd.Process.Pid)); err == nil {
		if children, err := proc.Children(); err == nil {
			for _, child := range children {
				_ = child.Kill()
			}
		}
	}
	_ = cmd.Process.Kill()
}

func (s *Supervisor) propagateOp() {
	for _, addr := range s.downstream {
		addr.Send(reload.NewOp(s.name))
	}
}

// spawn is step 3 of the reload algorithm: build and start the child
// with stdout and stderr merged into one pipe, and hand that pipe to a
// dedicated reader goroutine so the actor's own mailbox loop is never
// blocked on child I/O (§5 "long reads from child stdout MUST run on a
// dedicated worker").
func (s *Supervisor) spawn() {
	s.generation++
	gen := s.generation
	s.serviceLog("EXEC " + s.cmd.Path + " " + strings.Join(s.cmd.Args, " "))

	cmd := exec.Command(s.cmd.Path, s.cmd.Args...)
	cmd.Dir = s.cmd.Dir
	cmd.Env = s.cmd.Env

	pr, pw, err := os.Pipe()
	if err != nil {
		s.finalizeExited(gen, reload.Status{Kind: reload.Undetermined})
		return
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		pr.Close()
		s.console.ServiceLog(s.name, ErrSpawn.Error()+": "+err.Error())
		s.finalizeExited(gen, reload.Status{Kind: reload.Undetermined})
		return
	}
	pw.Close() // parent's copy; the child keeps its own inherited fd

	r := &run{generation: gen, cmd: cmd, doneCh: make(chan struct{})}
	s.current = r
	s.state = running
	s.console.PanelStatus(s.name, nil)

	go s.waitChild(r)
	go s.readStdout(pr, r)
}

func (s *Supervisor) waitChild(r *run) {
	r.waitErr = r.cmd.Wait()
	close(r.doneCh)
}

func (s *Supervisor) readStdout(pr *os.File, r *run) {
	scanner := bufio.NewScanner(pr)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		s.routeLine(scanner.Bytes())
	}
	pr.Close()
	s.self.Send(stdoutTerminated{generation: r.generation})
}

func (s *Supervisor) routeLine(line []byte) {
	text := string(line)
	result, err := s.router.Route(line)
	if err != nil {
		s.console.ServiceLog(s.name, err.Error())
		return
	}
	switch result.Destination {
	case pipe.DestTab:
		s.console.Output(result.Tab, text)
	case pipe.DestFile:
		// the router already appended the line to disk.
	default:
		s.console.Output(s.name, text)
	}
}

// handleStdoutTerminated waits up to stdoutGrace for the child to report
// its exit code, force-killing it if that window elapses, then records
// the terminal status (§4.5 "StdoutTerminated{started_at}").
func (s *Supervisor) handleStdoutTerminated(generation int64) {
	if s.current == nil || generation != s.current.generation || s.state == killed {
		return
	}
	r := s.current

	select {
	case <-r.doneCh:
	case <-time.After(stdoutGrace):
		s.killTree(r.cmd)
		<-r.doneCh
	}

	s.finalizeExited(generation, deriveStatus(r.waitErr))
}

// finalizeExited records the one terminal status a generation can ever
// produce: it notifies the console, settles this generation's WillReload
// by propagating Reload(Op(self)) downstream, resolves any WaitStatus
// waiters, and RSVPs a pending reaper invitation.
func (s *Supervisor) finalizeExited(generation int64, status reload.Status) {
	if s.current != nil && s.current.generation == generation {
		s.state = exited
	}
	s.terminalStatus = &status
	s.console.PanelStatus(s.name, &status)
	s.propagateOp()

	for _, waiter := range s.waiters {
		waiter <- status
	}
	s.waiters = nil

	if s.reaperInvite != nil {
		s.reaperInvite.Reaper.Send(reload.InviteAccepted{Name: s.name, Status: status})
		s.reaperInvite = nil
	}
}

func (s *Supervisor) serviceLog(msg string) {
	if s.verbose {
		s.console.ServiceLog(s.name, msg)
	}
}

// deriveStatus classifies an exec.Cmd.Wait error into a terminal Status.
// Exact signal numbers aren't available portably across platforms;
// Windows-specific signal semantics are explicitly out of scope, so a
// negative exit code (the stdlib's own signal indicator) maps to a
// generic Signaled status.
func deriveStatus(err error) reload.Status {
	if err == nil {
		return reload.Status{Kind: reload.Exited, Code: 0}
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		if code == -1 {
			return reload.Status{Kind: reload.Signaled, Code: 1}
		}
		return reload.Status{Kind: reload.Exited, Code: code}
	}
	return reload.Status{Kind: reload.Undetermined}
}
