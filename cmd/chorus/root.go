package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/chorusdev/chorus/internal/config"
	"github.com/chorusdev/chorus/internal/engine"
	"github.com/chorusdev/chorus/internal/env"
	"github.com/chorusdev/chorus/internal/graph"
	"github.com/chorusdev/chorus/internal/logger"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "0.0.0"

// rootFlags holds every flag spec.md §6 lists as global run behavior.
type rootFlags struct {
	configPath string
	verbose    bool
	timestamp  bool
	run        []string
	exitAfter  bool
	watch      bool
}

// run builds the cobra command tree and executes it, returning the
// process exit code per §6's policy.
func run(args []string) int {
	var flags rootFlags
	code := 0

	root := &cobra.Command{
		Use:           "chorus",
		Short:         "Run concurrent, dependency-aware dev tasks from a YAML config.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := runConcurrent(cmd.Context(), flags)
			code = c
			return err
		},
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "chorus.yaml", "configuration file name to locate")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "emit EXEC/WAIT/RELOAD service log lines")
	root.PersistentFlags().BoolVar(&flags.timestamp, "timestamp", false, "prepend a timestamp to every console line")
	root.Flags().StringArrayVar(&flags.run, "run", nil, "restrict the run to this task and its dependencies (repeatable)")
	root.Flags().BoolVar(&flags.exitAfter, "exit-after", false, "exit once every task has terminated, aggregating the first failure's exit code")
	root.Flags().BoolVar(&flags.watch, "watch", true, "enable filesystem-watch-triggered restarts")

	root.AddCommand(newJobsCommand(&flags))
	root.AddCommand(newGraphCommand(&flags))
	root.AddCommand(newExecCommand(&flags))
	root.AddCommand(newUpgradeCommand())

	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "chorus:", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

// loadEngine locates and loads the configuration, then builds a DAG-backed
// engine from it. Used by the default run subcommand (runConcurrent).
func loadEngine(ctx context.Context, flags *rootFlags, opts engine.Options) (*engine.Engine, error) {
	log := buildLogger(flags)

	path, err := config.Locate(".", flags.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	resolver := env.NewResolver()
	return engine.Build(ctx, cfg, resolver, opts, log)
}

// loadDAG locates and loads the configuration and builds its (optionally
// filtered) DAG, without starting any supervisor — used by the read-only
// `jobs`/`graph` subcommands so they never touch the console,
// watcher, or a real process tree just to inspect the task graph.
func loadDAG(flags *rootFlags) (*graph.DAG, error) {
	path, err := config.Locate(".", flags.configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	dag, err := graph.Build(cfg.Tasks)
	if err != nil {
		return nil, err
	}
	if len(flags.run) > 0 {
		return dag.Filter(flags.run)
	}
	return dag, nil
}

func buildLogger(flags *rootFlags) logger.Logger {
	var opts []logger.Option
	if flags.verbose {
		opts = append(opts, logger.WithDebug())
	}
	return logger.NewLogger(opts...)
}

// runConcurrent implements the default subcommand (§6): build the engine,
// start every supervisor, and wait either for the grim reaper (exit-after)
// or for the console's interactive quit.
func runConcurrent(ctx context.Context, flags rootFlags) (int, error) {
	e, err := loadEngine(ctx, &flags, engine.Options{
		Verbose:   flags.verbose,
		Watch:     flags.watch,
		ExitAfter: flags.exitAfter,
		Timestamp: flags.timestamp,
		Run:       flags.run,
	})
	if err != nil {
		return 1, err
	}

	e.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		e.Shutdown()
	}()

	if flags.exitAfter {
		return e.Wait(), nil
	}

	<-e.Console().Done()
	return 0, nil
}
