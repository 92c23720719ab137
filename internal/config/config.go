// Package config loads the declarative YAML configuration file (§6
// "Configuration file (YAML)") into the task package's Task values. The
// YAML parser itself is an out-of-scope external collaborator (spec.md
// §1); this package only shapes gopkg.in/yaml.v3's decode output into the
// data model §3 describes, including merge-key resolution (handled
// natively by yaml.v3 before our validation ever runs) and strict
// rejection of unknown task fields.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/chorusdev/chorus/internal/task"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned by Locate when no config file is found walking
// upward from the starting directory (§6 "'not found' is a startup
// error").
var ErrNotFound = errors.New("config file not found")

// ErrMalformed wraps a YAML decode failure, including unknown task keys
// (§7 ConfigParseError).
var ErrMalformed = errors.New("malformed configuration")

// Config is a loaded, validated-shape configuration: the directory it was
// found in (the base for relative workdirs, env_files, and watch globs)
// plus the shared env block and the declared tasks.
type Config struct {
	Dir   string
	Env   map[string]string
	Tasks []task.Task
}

// fileTask mirrors one task entry's YAML shape. Pipe and Color are kept as
// raw yaml.Node mappings rather than map[string]string because both must
// preserve declared order for "first match wins" (§4.2, §3); a Go map
// does not preserve key order, so a plain field would lose exactly the
// information the ordered-rule-set semantics need.
type fileTask struct {
	WorkDir    string            `yaml:"workdir"`
	Command    string            `yaml:"command"`
	Entrypoint []string          `yaml:"entrypoint"`
	Watch      []string          `yaml:"watch"`
	Ignore     []string          `yaml:"ignore"`
	Env        map[string]string `yaml:"env"`
	EnvFile    []string          `yaml:"env_file"`
	DependsOn  []string          `yaml:"depends_on"`
	Pipe       yaml.Node         `yaml:"pipe"`
	Color      yaml.Node         `yaml:"color"`
}

// file is the top-level document shape: `env` plus one key per task,
// captured by the inline map (§6 "Top-level keys: env ..., plus one key
// per task").
type file struct {
	Env   map[string]string   `yaml:"env"`
	Tasks map[string]fileTask `yaml:",inline"`
}

// Locate walks upward from dir until it finds a file named name, matching
// §6's "located by walking upward from the current directory until a
// file with the configured name exists."
func Locate(dir, name string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", err
	}
	for {
		candidate := filepath.Join(abs, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		abs = parent
	}
}

// Load reads and decodes the configuration file at path. Unknown keys
// under a task are rejected by enabling the decoder's strict KnownFields
// check, which yaml.v3 applies to every struct-typed field, including
// the per-task fileTask struct reached through the top-level inline map.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}
	defer f.Close()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)

	var doc file
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, path, err)
	}

	names := make([]string, 0, len(doc.Tasks))
	for name := range doc.Tasks {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]task.Task, 0, len(names))
	for _, name := range names {
		t, err := toTask(name, doc.Tasks[name])
		if err != nil {
			return nil, fmt.Errorf("%w: task %s: %v", ErrMalformed, name, err)
		}
		tasks = append(tasks, t)
	}

	return &Config{
		Dir:   filepath.Dir(path),
		Env:   doc.Env,
		Tasks: tasks,
	}, nil
}

func toTask(name string, ft fileTask) (task.Task, error) {
	pipe, err := nodeToRuleSet(ft.Pipe)
	if err != nil {
		return task.Task{}, fmt.Errorf("pipe: %w", err)
	}
	color, err := nodeToRuleSet(ft.Color)
	if err != nil {
		return task.Task{}, fmt.Errorf("color: %w", err)
	}

	return task.Task{
		Name:       name,
		WorkDir:    ft.WorkDir,
		Command:    ft.Command,
		Entrypoint: ft.Entrypoint,
		Watch:      ft.Watch,
		Ignore:     ft.Ignore,
		Env:        ft.Env,
		EnvFile:    ft.EnvFile,
		DependsOn:  ft.DependsOn,
		Pipe:       pipe,
		Color:      color,
	}, nil
}

// nodeToRuleSet walks a YAML mapping node's Content in declared order,
// producing an OrderedRuleSet that preserves that order — the shape both
// the pipe map (§4.2) and the color map (§3 supplement) need.
func nodeToRuleSet(n yaml.Node) (task.OrderedRuleSet[string], error) {
	if n.Kind == 0 {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping, got %v", n.Kind)
	}
	rules := make(task.OrderedRuleSet[string], 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, val := n.Content[i], n.Content[i+1]
		rules = append(rules, task.Rule[string]{Pattern: key.Value, Value: val.Value})
	}
	return rules, nil
}
