package pipe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chorusdev/chorus/internal/task"
	"github.com/stretchr/testify/require"
)

type fakeRegistrar struct {
	paths []string
}

func (f *fakeRegistrar) IgnorePath(path string) {
	f.paths = append(f.paths, path)
}

func TestRouter_Route_FirstMatchWins(t *testing.T) {
	t.Parallel()

	rules := task.OrderedRuleSet[string]{
		{Pattern: `^ERROR`, Value: "whiz://errors"},
		{Pattern: `^ERROR: timeout`, Value: "whiz://timeouts"},
	}
	r, err := Compile(rules)
	require.NoError(t, err)

	result, err := r.Route([]byte("ERROR: timeout talking to db"))
	require.NoError(t, err)
	require.Equal(t, DestTab, result.Destination)
	require.Equal(t, "errors", result.Tab)
}

func TestRouter_Route_NoMatchFallsThrough(t *testing.T) {
	t.Parallel()

	r, err := Compile(task.OrderedRuleSet[string]{
		{Pattern: `^ERROR`, Value: "whiz://errors"},
	})
	require.NoError(t, err)

	result, err := r.Route([]byte("all good here"))
	require.NoError(t, err)
	require.Equal(t, DestDefault, result.Destination)
}

func TestRouter_Route_FileRegistersIgnoreBeforeWrite(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg := &fakeRegistrar{}

	r, err := Compile(task.OrderedRuleSet[string]{
		{Pattern: `^\[(\w+)\]`, Value: "file://./logs/$1.log"},
	})
	require.NoError(t, err)
	r.WithBaseDir(dir).WithIgnoreRegistrar(reg)

	result, err := r.Route([]byte("[alpha] hello"))
	require.NoError(t, err)
	require.Equal(t, DestFile, result.Destination)

	want := filepath.Join(dir, "logs", "alpha.log")
	require.Contains(t, reg.paths, want)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	require.Equal(t, "[alpha] hello\n", string(data))
}

func TestRouter_Route_FileAppendsAndRegistersOnce(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reg := &fakeRegistrar{}

	r, err := Compile(task.OrderedRuleSet[string]{
		{Pattern: `.*`, Value: "file://./out.log"},
	})
	require.NoError(t, err)
	r.WithBaseDir(dir).WithIgnoreRegistrar(reg)

	_, err = r.Route([]byte("line one"))
	require.NoError(t, err)
	_, err = r.Route([]byte("line two"))
	require.NoError(t, err)

	require.Len(t, reg.paths, 1, "ignore path should only be registered once")

	data, err := os.ReadFile(filepath.Join(dir, "out.log"))
	require.NoError(t, err)
	require.Equal(t, "line one\nline two\n", string(data))
}

func TestCompile_BadPattern(t *testing.T) {
	t.Parallel()

	_, err := Compile(task.OrderedRuleSet[string]{
		{Pattern: `(unclosed`, Value: "whiz://broken"},
	})
	require.ErrorIs(t, err, ErrBadPattern)
}

func TestCompile_BadRedirection(t *testing.T) {
	t.Parallel()

	_, err := Compile(task.OrderedRuleSet[string]{
		{Pattern: `.*`, Value: "ftp://nope"},
	})
	require.ErrorIs(t, err, ErrUnknownScheme)
}
