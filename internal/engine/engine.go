// Package engine is the builder/wire-up component (§4, C9): it
// instantiates one supervisor per task in DAG build order, injects the
// shared console/watcher/reaper collaborators, seeds root tasks, and owns
// the runtime's overall start/shutdown sequencing.
package engine

import (
	"context"
	"fmt"

	"github.com/chorusdev/chorus/internal/actor"
	"github.com/chorusdev/chorus/internal/cmdutil"
	"github.com/chorusdev/chorus/internal/config"
	"github.com/chorusdev/chorus/internal/console"
	"github.com/chorusdev/chorus/internal/env"
	"github.com/chorusdev/chorus/internal/graph"
	"github.com/chorusdev/chorus/internal/logger"
	"github.com/chorusdev/chorus/internal/pipe"
	"github.com/chorusdev/chorus/internal/reaper"
	"github.com/chorusdev/chorus/internal/reload"
	"github.com/chorusdev/chorus/internal/supervisor"
	"github.com/chorusdev/chorus/internal/watcher"
)

// Options configures a concurrent engine run (§6 CLI flags, behaviors
// only).
type Options struct {
	// Verbose enables EXEC/WAIT/RELOAD service log lines.
	Verbose bool
	// Watch globally enables filesystem-watch subscriptions.
	Watch bool
	// ExitAfter wires the grim reaper and disables watching (§6:
	// "exit-after ... also disables watching").
	ExitAfter bool
	// Timestamp prepends a wall-clock prefix to every console line.
	Timestamp bool
	// Run restricts the engine to these task names plus their transitive
	// dependencies; empty means every task in the config.
	Run []string
}

// Engine owns every supervisor for one run plus the shared collaborators
// (§9 "Builder/wire-up").
type Engine struct {
	dag         *graph.DAG
	supervisors map[string]*supervisor.Supervisor
	roots       []string
	console     *console.Console
	watcher     *watcher.Watcher
	reaper      *reaper.Reaper
	log         logger.Logger
	watchCtx    context.Context
	watchCancel context.CancelFunc
}

// Build validates cfg into a DAG (optionally filtered to opts.Run),
// resolves each task's environment and command descriptor, and
// constructs one supervisor per task in DAG build order (§4.1's reverse
// topological order — the builder's own BuildOrder puts a task before
// its dependencies so a task's downstream addresses already exist when
// the task itself is constructed, §9 "cyclic addressing").
func Build(ctx context.Context, cfg *config.Config, resolver *env.Resolver, opts Options, log logger.Logger) (*Engine, error) {
	dag, err := graph.Build(cfg.Tasks)
	if err != nil {
		return nil, err
	}
	if len(opts.Run) > 0 {
		dag, err = dag.Filter(opts.Run)
		if err != nil {
			return nil, err
		}
	}

	watchEnabled := opts.Watch && !opts.ExitAfter

	var watchCtx context.Context
	var cancel context.CancelFunc
	var fw *watcher.Watcher
	if watchEnabled {
		fw, err = watcher.New(cfg.Dir, log)
		if err != nil {
			return nil, fmt.Errorf("watcher init: %w", err)
		}
		watchCtx, cancel = context.WithCancel(ctx)
	}

	var consoleOpts []console.Option
	if opts.Timestamp {
		consoleOpts = append(consoleOpts, console.WithTimestamp())
	}
	cons := console.New(log, consoleOpts...)

	var rp *reaper.Reaper
	if opts.ExitAfter {
		rp = reaper.New(log)
	}

	e := &Engine{
		dag:         dag,
		supervisors: map[string]*supervisor.Supervisor{},
		console:     cons,
		watcher:     fw,
		reaper:      rp,
		log:         log,
		watchCtx:    watchCtx,
		watchCancel: cancel,
	}

	var supOpts []supervisor.Option
	if opts.Verbose {
		supOpts = append(supOpts, supervisor.WithVerbose())
	}
	if watchEnabled {
		supOpts = append(supOpts, supervisor.WithWatchEnabled())
	}

	for _, name := range dag.BuildOrder() {
		t, _ := dag.Task(name)

		downstreamNames := dag.Downstream(name)
		downstream := make([]actor.Address[any], 0, len(downstreamNames))
		for _, dn := range downstreamNames {
			downstream = append(downstream, e.supervisors[dn].Address())
		}

		resolvedEnv, err := resolver.Resolve(ctx, cfg.Dir, cfg.Env, t)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", name, err)
		}
		workDir := cmdutil.ResolveWorkDir(cfg.Dir, t)
		cmd := cmdutil.BuildCommand(cfg.Dir, t, resolvedEnv)

		router, err := pipe.Compile(t.Pipe)
		if err != nil {
			return nil, fmt.Errorf("task %s: %w", name, err)
		}
		router = router.WithBaseDir(workDir)
		if fw != nil {
			router = router.WithIgnoreRegistrar(fw)
			router.PreregisterStaticTargets()
		}

		taskForSupervisor := t
		taskForSupervisor.Watch = cmdutil.AbsoluteGlobs(workDir, t.Watch)
		taskForSupervisor.Ignore = cmdutil.AbsoluteGlobs(workDir, t.Ignore)

		var watcherAPI supervisor.WatcherAPI
		if fw != nil {
			watcherAPI = fw
		}

		sup := supervisor.New(name, cmd, taskForSupervisor, downstream, cons, watcherAPI, router, log, supOpts...)
		e.supervisors[name] = sup

		if len(t.DependsOn) == 0 {
			e.roots = append(e.roots, name)
		}
	}

	return e, nil
}

// Start launches every supervisor, the console, and (if configured) the
// watcher and grim reaper, then seeds root tasks with Reload(Start)
// (§data flow: "root supervisors (no dependencies) receive a start
// signal").
func (e *Engine) Start() {
	for _, sup := range e.supervisors {
		go sup.Run()
	}
	go e.console.Run()
	if e.watcher != nil {
		go e.watcher.Run(e.watchCtx)
	}

	e.console.OnQuit = func(_ []actor.Address[any]) {
		e.Shutdown()
	}

	if e.reaper != nil {
		order := e.dag.Order()
		addrs := make(map[string]actor.Address[any], len(e.supervisors))
		for name, sup := range e.supervisors {
			addrs[name] = sup.Address()
		}
		e.reaper.Invite(addrs, order)
		go e.reaper.Run()
	}

	for _, name := range e.roots {
		e.supervisors[name].Address().Send(reload.NewStart())
	}
}

// Wait blocks until the grim reaper reports every supervisor terminal
// (§4.7), returning the aggregated exit code. Only meaningful when the
// engine was built with Options.ExitAfter; callers that didn't set it
// should instead watch Console().Done() for interactive quit.
func (e *Engine) Wait() int {
	if e.reaper == nil {
		return 0
	}
	return <-e.reaper.Done()
}

// Console returns the engine's console actor, e.g. so a caller can block
// on Done() in interactive (non exit-after) mode.
func (e *Engine) Console() *console.Console { return e.console }

// Shutdown sends PoisonPill to every supervisor and stops the watcher.
// Idempotent enough for the common call sites (console quit, signal
// handler): sending PoisonPill twice is harmless, a supervisor's mailbox
// simply closes once.
func (e *Engine) Shutdown() {
	for _, sup := range e.supervisors {
		sup.Address().Send(reload.PoisonPill{})
	}
	if e.watchCancel != nil {
		e.watchCancel()
	}
	if e.watcher != nil {
		_ = e.watcher.Close()
	}
}

// DAG exposes the built (and possibly filtered) DAG. The `jobs` and `graph`
// CLI subcommands do not go through an Engine; they build their DAG with
// loadDAG.
func (e *Engine) DAG() *graph.DAG { return e.dag }
