package task

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTask_ShellCommand_DefaultEntrypoint(t *testing.T) {
	tk := Task{Command: "echo hi"}
	got := tk.ShellCommand()

	if runtime.GOOS == "windows" {
		require.Equal(t, []string{"cmd", "/C", "echo hi"}, got)
	} else {
		require.Equal(t, []string{"sh", "-c", "echo hi"}, got)
	}
}

func TestTask_ShellCommand_ExplicitEntrypoint(t *testing.T) {
	tk := Task{Entrypoint: []string{"bash", "-lc"}, Command: "make build"}
	require.Equal(t, []string{"bash", "-lc", "make build"}, tk.ShellCommand())
}

func TestTask_ShellCommand_EmptyCommand(t *testing.T) {
	tk := Task{Entrypoint: []string{"bash", "-lc"}}
	require.Equal(t, []string{"bash", "-lc"}, tk.ShellCommand())
}

func TestTask_HasWatch(t *testing.T) {
	require.False(t, Task{}.HasWatch())
	require.True(t, Task{Watch: []string{"*.go"}}.HasWatch())
}
