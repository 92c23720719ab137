package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"github.com/chorusdev/chorus/internal/cmdutil"
	"github.com/chorusdev/chorus/internal/config"
	"github.com/chorusdev/chorus/internal/env"
	"github.com/chorusdev/chorus/internal/graph"
	"github.com/spf13/cobra"
)

// newExecCommand implements "execute <task>" (§6): run task and its
// dependencies serially in dependency-first order (DAG.Order), stopping at
// the first failure
// (SUPPLEMENTED FEATURES #4's "shared DAG walk" — the same graph.Filter
// restriction the concurrent engine uses, walked straight-line instead of
// handed to supervisors).
func newExecCommand(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <task>",
		Short: "Run a task and its dependencies serially, stopping at the first failure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := execSerial(cmd.Context(), flags, args[0])
			if err != nil {
				return err
			}
			if code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

func execSerial(ctx context.Context, flags *rootFlags, target string) (int, error) {
	path, err := config.Locate(".", flags.configPath)
	if err != nil {
		return 1, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return 1, err
	}

	dag, err := graph.Build(cfg.Tasks)
	if err != nil {
		return 1, err
	}
	dag, err = dag.Filter([]string{target})
	if err != nil {
		return 1, err
	}

	resolver := env.NewResolver()
	for _, name := range dag.Order() {
		t, _ := dag.Task(name)

		resolvedEnv, err := resolver.Resolve(ctx, cfg.Dir, cfg.Env, t)
		if err != nil {
			return 1, err
		}
		compiled := cmdutil.BuildCommand(cfg.Dir, t, resolvedEnv)

		fmt.Println(name + ":", compiled.Path, compiled.Args)
		cmd := exec.CommandContext(ctx, compiled.Path, compiled.Args...)
		cmd.Dir = compiled.Dir
		cmd.Env = compiled.Env
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr

		if err := cmd.Run(); err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return exitErr.ExitCode(), fmt.Errorf("task %s failed: %w", name, err)
			}
			return 1, fmt.Errorf("task %s: %w", name, err)
		}
	}
	return 0, nil
}
