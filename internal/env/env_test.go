package env

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chorusdev/chorus/internal/task"
	"github.com/stretchr/testify/require"
)

func fixedProcessEnv(pairs ...string) func() []string {
	return func() []string { return pairs }
}

func TestResolve_MergePriorityOrder(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	r.ProcessEnv = fixedProcessEnv("BASE=process")

	shared := map[string]string{"BASE": "shared", "FROM_SHARED": "yes"}
	tsk := task.Task{Env: map[string]string{"BASE": "inline"}}

	merged, err := r.Resolve(context.Background(), t.TempDir(), shared, tsk)
	require.NoError(t, err)
	require.Equal(t, "inline", merged["BASE"], "inline env should win over shared and process")
	require.Equal(t, "yes", merged["FROM_SHARED"])
}

func TestResolve_Interpolation(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	r.ProcessEnv = fixedProcessEnv("HOST=localhost")

	tsk := task.Task{Env: map[string]string{"URL": "http://${HOST}/$HOST/end"}}

	merged, err := r.Resolve(context.Background(), t.TempDir(), nil, tsk)
	require.NoError(t, err)
	require.Equal(t, "http://localhost/localhost/end", merged["URL"])
}

func TestResolve_UndefinedVariableExpandsEmpty(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	r.ProcessEnv = fixedProcessEnv()

	tsk := task.Task{Env: map[string]string{"URL": "http://${MISSING}/x"}}

	merged, err := r.Resolve(context.Background(), t.TempDir(), nil, tsk)
	require.NoError(t, err)
	require.Equal(t, "http:///x", merged["URL"])
}

func TestResolve_EnvFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("GREETING=\"hi\\nthere\"\n"), 0o644))

	r := NewResolver()
	r.ProcessEnv = fixedProcessEnv()

	tsk := task.Task{EnvFile: []string{".env"}}

	merged, err := r.Resolve(context.Background(), dir, nil, tsk)
	require.NoError(t, err)
	require.Equal(t, "hi\nthere", merged["GREETING"])
}

func TestResolve_EnvFile_MissingFails(t *testing.T) {
	t.Parallel()

	r := NewResolver()
	r.ProcessEnv = fixedProcessEnv()

	tsk := task.Task{EnvFile: []string{"nope.env"}}

	_, err := r.Resolve(context.Background(), t.TempDir(), nil, tsk)
	require.ErrorIs(t, err, ErrMissingFile)
	require.Contains(t, err.Error(), "nope.env")
}

func TestResolve_SharedAndTaskHydration(t *testing.T) {
	t.Parallel()

	r := NewResolver(
		WithSharedHydrator(func(_ context.Context, merged map[string]string, _ string) (map[string]string, error) {
			return map[string]string{"SECRET": "shared-hydrated"}, nil
		}),
		WithTaskHydrator(func(_ context.Context, merged map[string]string, _ string) (map[string]string, error) {
			return map[string]string{"SECRET": "task-hydrated"}, nil
		}),
	)
	r.ProcessEnv = fixedProcessEnv()

	merged, err := r.Resolve(context.Background(), t.TempDir(), nil, task.Task{})
	require.NoError(t, err)
	require.Equal(t, "task-hydrated", merged["SECRET"], "per-task hydration runs last and wins")
}

func TestToSlice_SortedKeyValue(t *testing.T) {
	t.Parallel()

	out := ToSlice(map[string]string{"B": "2", "A": "1"})
	require.Equal(t, []string{"A=1", "B=2"}, out)
}
