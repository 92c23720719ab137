// Package cmdutil builds the concrete command descriptor a supervisor
// spawns from a task's declarative shell string plus the config's base
// directory — the "tokenization prefix" and "compiled command descriptor"
// SPEC_FULL.md's data-model supplement (§3) calls out as computed once
// rather than per-spawn, and the glue between the out-of-scope CLI args
// surface (spec.md §1) and the concrete argv/cwd/env a child process
// needs.
package cmdutil

import (
	"path/filepath"

	"github.com/chorusdev/chorus/internal/env"
	"github.com/chorusdev/chorus/internal/supervisor"
	"github.com/chorusdev/chorus/internal/task"
)

// ResolveWorkDir anchors a task's workdir to the configuration directory
// when it is relative, matching §3's "workdir (optional path, relative to
// config directory)." An empty workdir resolves to the config directory
// itself.
func ResolveWorkDir(baseDir string, t task.Task) string {
	if t.WorkDir == "" {
		return baseDir
	}
	if filepath.IsAbs(t.WorkDir) {
		return t.WorkDir
	}
	return filepath.Join(baseDir, t.WorkDir)
}

// BuildCommand resolves a task's working directory and assembles the
// compiled supervisor.Command — executable, argv, cwd, and environment —
// from its already-resolved environment map.
func BuildCommand(baseDir string, t task.Task, environ map[string]string) supervisor.Command {
	dir := ResolveWorkDir(baseDir, t)
	return supervisor.NewCommand(t, dir, environ)
}

// AbsoluteGlobs resolves a task's watch/ignore glob patterns against its
// own working directory (not the config directory) when they are
// relative, so a task that `cd`s into a subproject still watches paths
// relative to where its command actually runs.
func AbsoluteGlobs(workDir string, patterns []string) []string {
	out := make([]string, len(patterns))
	for i, p := range patterns {
		if filepath.IsAbs(p) {
			out[i] = p
			continue
		}
		out[i] = filepath.Join(workDir, p)
	}
	return out
}

// ToSlice re-exports env.ToSlice for callers that only import cmdutil.
func ToSlice(environ map[string]string) []string {
	return env.ToSlice(environ)
}
