package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chorusdev/chorus/internal/task"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "chorus.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoad_BasicTasks(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
env:
  FOO: bar
a:
  command: echo a
b:
  command: echo b
  depends_on: [a]
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "bar", cfg.Env["FOO"])
	require.Len(t, cfg.Tasks, 2)
	require.Equal(t, "a", cfg.Tasks[0].Name)
	require.Equal(t, "b", cfg.Tasks[1].Name)
	require.Equal(t, []string{"a"}, cfg.Tasks[1].DependsOn)
}

func TestLoad_UnknownTaskFieldRejected(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
a:
  command: echo a
  bogus: true
`)

	_, err := Load(path)
	require.ErrorIs(t, err, ErrMalformed)
}

func TestLoad_PipeOrderPreserved(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
a:
  command: echo a
  pipe:
    "^ERROR": ./err.log
    ".*": whiz://all
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Tasks[0].Pipe, 2)
	require.Equal(t, "^ERROR", cfg.Tasks[0].Pipe[0].Pattern)
	require.Equal(t, ".*", cfg.Tasks[0].Pipe[1].Pattern)
}

func TestLoad_MergeKeyResolved(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := writeConfig(t, dir, `
base: &base
  env:
    SHARED: "1"

a:
  <<: *base
  command: echo a
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	var a *task.Task
	for i := range cfg.Tasks {
		if cfg.Tasks[i].Name == "a" {
			a = &cfg.Tasks[i]
		}
	}
	require.NotNil(t, a)
	require.Equal(t, "1", a.Env["SHARED"])
}

func TestLocate_WalksUpward(t *testing.T) {
	t.Parallel()
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b", "c")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	writeConfig(t, root, "a:\n  command: echo a\n")

	found, err := Locate(nested, "chorus.yaml")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(root, "chorus.yaml"), found)
}

func TestLocate_NotFound(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	_, err := Locate(dir, "does-not-exist.yaml")
	require.ErrorIs(t, err, ErrNotFound)
}
