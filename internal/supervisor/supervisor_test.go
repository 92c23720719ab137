package supervisor

import (
	"sync"
	"testing"
	"time"

	"github.com/chorusdev/chorus/internal/actor"
	"github.com/chorusdev/chorus/internal/logger"
	"github.com/chorusdev/chorus/internal/pipe"
	"github.com/chorusdev/chorus/internal/reload"
	"github.com/chorusdev/chorus/internal/task"
	"github.com/chorusdev/chorus/internal/watcher"
	"github.com/stretchr/testify/require"
)

type fakeConsole struct {
	mu       sync.Mutex
	panels   []string
	statuses map[string][]*reload.Status
	lines    map[string][]string
}

func newFakeConsole() *fakeConsole {
	return &fakeConsole{statuses: map[string][]*reload.Status{}, lines: map[string][]string{}}
}

func (f *fakeConsole) RegisterPanel(name string, _ task.OrderedRuleSet[string], _ actor.Address[any]) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.panels = append(f.panels, name)
}

func (f *fakeConsole) Output(panel, line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines[panel] = append(f.lines[panel], line)
}

func (f *fakeConsole) PanelStatus(panel string, status *reload.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses[panel] = append(f.statuses[panel], status)
}

func (f *fakeConsole) ServiceLog(string, string) {}

func (f *fakeConsole) statusesFor(panel string) []*reload.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*reload.Status(nil), f.statuses[panel]...)
}

type fakeWatcher struct {
	mu   sync.Mutex
	subs []string
}

func (f *fakeWatcher) Subscribe(name string, _, _ []string, _ watcher.Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, name)
}

func shellCommand(script string) Command {
	return Command{Path: "/bin/sh", Args: []string{"-c", script}}
}

func noPipe(t *testing.T) *pipe.Router {
	t.Helper()
	r, err := pipe.Compile(nil)
	require.NoError(t, err)
	return r
}

func waitStatus(s *Supervisor, timeout time.Duration) (reload.Status, bool) {
	reply := make(chan reload.Status, 1)
	s.Address().Send(reload.WaitStatus{Reply: reply})
	select {
	case status := <-reply:
		return status, true
	case <-time.After(timeout):
		return reload.Status{}, false
	}
}

func TestSupervisor_StartSpawnsAndReportsSuccess(t *testing.T) {
	t.Parallel()

	console := newFakeConsole()
	s := New("ok", shellCommand("exit 0"), task.Task{}, nil, console, nil, noPipe(t), logger.NewLogger())
	go s.Run()
	defer s.Address().Send(reload.PoisonPill{})

	s.Address().Send(reload.NewStart())

	status, ok := waitStatus(s, 2*time.Second)
	require.True(t, ok, "expected a terminal status")
	require.True(t, status.Success())

	statuses := console.statusesFor("ok")
	require.GreaterOrEqual(t, len(statuses), 2)
	require.Nil(t, statuses[0], "first PanelStatus should be the running marker")
}

func TestSupervisor_NonZeroExitReportsFailure(t *testing.T) {
	t.Parallel()

	console := newFakeConsole()
	s := New("bad", shellCommand("exit 3"), task.Task{}, nil, console, nil, noPipe(t), logger.NewLogger())
	go s.Run()
	defer s.Address().Send(reload.PoisonPill{})

	s.Address().Send(reload.NewStart())

	status, ok := waitStatus(s, 2*time.Second)
	require.True(t, ok)
	require.False(t, status.Success())
	require.Equal(t, 3, status.ExitCode())
}

func TestSupervisor_ManualReloadKillsRunningChild(t *testing.T) {
	t.Parallel()

	console := newFakeConsole()
	downstreamMailbox := actor.NewMailbox[any]("downstream", actor.DefaultCapacity, logger.NewLogger())
	received := make(chan any, 8)
	go downstreamMailbox.Run(func(msg any) { received <- msg })
	defer downstreamMailbox.Close()

	s := New("long", shellCommand("sleep 5"), task.Task{}, []actor.Address[any]{downstreamMailbox.Address()}, console, nil, noPipe(t), logger.NewLogger())
	go s.Run()
	defer s.Address().Send(reload.PoisonPill{})

	s.Address().Send(reload.NewStart())

	select {
	case msg := <-received:
		_, ok := msg.(reload.WillReload)
		require.True(t, ok, "expected WillReload before spawn")
	case <-time.After(time.Second):
		t.Fatal("expected WillReload from Start")
	}

	s.Address().Send(reload.NewManual())

	select {
	case msg := <-received:
		op, ok := msg.(reload.Reload)
		require.True(t, ok)
		require.Equal(t, reload.Op, op.Variant, "ensure_stopped should propagate Op(self) for the killed child")
	case <-time.After(time.Second):
		t.Fatal("expected Reload(Op) from ensure_stopped")
	}
}

func TestSupervisor_WaitsForAllUpstreamsBeforeSpawning(t *testing.T) {
	t.Parallel()

	console := newFakeConsole()
	s := New("fanin", shellCommand("exit 0"), task.Task{}, nil, console, nil, noPipe(t), logger.NewLogger())
	go s.Run()
	defer s.Address().Send(reload.PoisonPill{})

	s.Address().Send(reload.WillReload{Upstream: "a"})
	s.Address().Send(reload.WillReload{Upstream: "b"})
	s.Address().Send(reload.Reload{Variant: reload.Op, Upstream: "a"})

	// Still waiting on "b"; no terminal status should appear yet.
	select {
	case <-pollStatus(s):
		t.Fatal("should not spawn while still pending on an upstream")
	case <-time.After(150 * time.Millisecond):
	}

	s.Address().Send(reload.Reload{Variant: reload.Op, Upstream: "b"})

	status, ok := waitStatus(s, 2*time.Second)
	require.True(t, ok)
	require.True(t, status.Success())
}

func pollStatus(s *Supervisor) <-chan *reload.Status {
	ch := make(chan *reload.Status, 1)
	reply := make(chan *reload.Status, 1)
	s.Address().Send(reload.GetStatus{Reply: reply})
	go func() {
		if status := <-reply; status != nil {
			ch <- status
		}
	}()
	return ch
}

func TestSupervisor_RegistersPanelAndWatchSubscriptionOnStart(t *testing.T) {
	t.Parallel()

	console := newFakeConsole()
	fw := &fakeWatcher{}
	tsk := task.Task{Watch: []string{"*.go"}}
	s := New("watched", shellCommand("exit 0"), tsk, nil, console, fw, noPipe(t), logger.NewLogger(), WithWatchEnabled())
	go s.Run()
	defer s.Address().Send(reload.PoisonPill{})

	require.Eventually(t, func() bool {
		fw.mu.Lock()
		defer fw.mu.Unlock()
		return len(fw.subs) == 1 && fw.subs[0] == "watched"
	}, time.Second, 10*time.Millisecond)
}

func TestSupervisor_EmptyWatchListNoSubscription(t *testing.T) {
	t.Parallel()

	console := newFakeConsole()
	fw := &fakeWatcher{}
	s := New("plain", shellCommand("exit 0"), task.Task{}, nil, console, fw, noPipe(t), logger.NewLogger(), WithWatchEnabled())
	go s.Run()
	defer s.Address().Send(reload.PoisonPill{})

	s.Address().Send(reload.NewStart())
	_, _ = waitStatus(s, 2*time.Second)

	fw.mu.Lock()
	defer fw.mu.Unlock()
	require.Empty(t, fw.subs)
}

func TestDeriveStatus(t *testing.T) {
	t.Parallel()
	require.Equal(t, reload.Status{Kind: reload.Exited, Code: 0}, deriveStatus(nil))
}
