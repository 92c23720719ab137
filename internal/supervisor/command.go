package supervisor

import (
	"github.com/chorusdev/chorus/internal/env"
	"github.com/chorusdev/chorus/internal/task"
)

// Command is the compiled descriptor a supervisor spawns on every reload:
// executable, argv, working directory, and environment (§4.5 "compiled
// command descriptor").
type Command struct {
	Path string
	Args []string
	Dir  string
	Env  []string
}

// NewCommand builds a Command from a task's shell invocation and its
// resolved environment.
func NewCommand(t task.Task, dir string, environ map[string]string) Command {
	argv := t.ShellCommand()
	cmd := Command{Dir: dir, Env: env.ToSlice(environ)}
	if len(argv) > 0 {
		cmd.Path = argv[0]
		cmd.Args = argv[1:]
	}
	return cmd
}
