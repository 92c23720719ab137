package reload

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStatus_Success(t *testing.T) {
	t.Parallel()
	require.True(t, Status{Kind: Exited, Code: 0}.Success())
	require.False(t, Status{Kind: Exited, Code: 1}.Success())
	require.False(t, Status{Kind: Signaled, Code: 0}.Success())
}

func TestStatus_ExitCode(t *testing.T) {
	t.Parallel()
	require.Equal(t, 0, Status{Kind: Exited, Code: 0}.ExitCode())
	require.Equal(t, 7, Status{Kind: Exited, Code: 7}.ExitCode())
	require.Equal(t, 9, Status{Kind: Signaled, Code: 9}.ExitCode())
	require.Equal(t, 1, Status{Kind: Undetermined}.ExitCode())
}

func TestReloadConstructors(t *testing.T) {
	t.Parallel()
	require.Equal(t, Reload{Variant: Start}, NewStart())
	require.Equal(t, Reload{Variant: Manual}, NewManual())
	require.Equal(t, Reload{Variant: Watch, Files: []string{"a.log"}}, NewWatch([]string{"a.log"}))
	require.Equal(t, Reload{Variant: Op, Upstream: "a"}, NewOp("a"))
}
