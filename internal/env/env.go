// Package env resolves a task's child-process environment by merging the
// layers named in §4.3: process env, interpolated shared env, optional
// external hydration, env_file contents, inline env, and per-task
// hydration, in that priority order (later layers override earlier ones).
package env

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"

	"dario.cat/mergo"
	"github.com/chorusdev/chorus/internal/task"
	"github.com/joho/godotenv"
)

// varRef matches $VAR and ${VAR} references during interpolation.
var varRef = regexp.MustCompile(`\$\{?(\w+)\}?`)

// Hydrator is an external collaborator that can rewrite an already-merged
// environment, e.g. to resolve secrets. Its mechanism is out of scope
// (§4.3); only this shape is part of the contract.
type Hydrator func(ctx context.Context, merged map[string]string, baseDir string) (map[string]string, error)

// Resolver computes a task's final environment.
type Resolver struct {
	ProcessEnv     func() []string
	SharedHydrator Hydrator
	TaskHydrator   Hydrator
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithSharedHydrator installs the step-3 external hydration hook.
func WithSharedHydrator(h Hydrator) Option {
	return func(r *Resolver) { r.SharedHydrator = h }
}

// WithTaskHydrator installs the step-6 per-task hydration hook.
func WithTaskHydrator(h Hydrator) Option {
	return func(r *Resolver) { r.TaskHydrator = h }
}

// NewResolver builds a Resolver. By default it has no hydrators and reads
// the real process environment.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{ProcessEnv: os.Environ}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve produces the final environment for t's child process. baseDir
// anchors relative env_file paths and is passed through to hydrators.
func (r *Resolver) Resolve(ctx context.Context, baseDir string, sharedEnv map[string]string, t task.Task) (map[string]string, error) {
	merged := envToMap(r.ProcessEnv())

	if err := mergeInterpolated(merged, sharedEnv); err != nil {
		return nil, err
	}

	if r.SharedHydrator != nil {
		hydrated, err := r.SharedHydrator(ctx, merged, baseDir)
		if err != nil {
			return nil, fmt.Errorf("shared env hydration: %w", err)
		}
		if err := mergo.Merge(&merged, hydrated, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("shared env hydration: %w", err)
		}
	}

	for _, path := range t.EnvFile {
		fileEnv, err := readEnvFile(baseDir, path)
		if err != nil {
			return nil, err
		}
		if err := mergeInterpolated(merged, fileEnv); err != nil {
			return nil, err
		}
	}

	if err := mergeInterpolated(merged, t.Env); err != nil {
		return nil, err
	}

	if r.TaskHydrator != nil {
		hydrated, err := r.TaskHydrator(ctx, merged, baseDir)
		if err != nil {
			return nil, fmt.Errorf("task env hydration: %w", err)
		}
		if err := mergo.Merge(&merged, hydrated, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("task env hydration: %w", err)
		}
	}

	return merged, nil
}

// ToSlice renders env as a sorted KEY=VALUE slice suitable for exec.Cmd.Env.
func ToSlice(env map[string]string) []string {
	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k + "=" + env[k]
	}
	return out
}

func envToMap(pairs []string) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		for i := 0; i < len(pair); i++ {
			if pair[i] == '=' {
				m[pair[:i]] = pair[i+1:]
				break
			}
		}
	}
	return m
}

// mergeInterpolated interpolates each value in layer against base, then
// merges the result into base with override.
func mergeInterpolated(base, layer map[string]string) error {
	if len(layer) == 0 {
		return nil
	}
	interpolated := make(map[string]string, len(layer))
	for k, v := range layer {
		interpolated[k] = interpolate(v, base)
	}
	return mergo.Merge(&base, interpolated, mergo.WithOverride)
}

// interpolate expands $VAR and ${VAR} references in s against env. An
// undefined variable expands to the empty string.
func interpolate(s string, env map[string]string) string {
	return varRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := varRef.FindStringSubmatch(ref)[1]
		return env[name]
	})
}

// readEnvFile parses path (resolved against baseDir) as a dotenv file.
// godotenv unescapes \n within double-quoted values per the dotenv format.
func readEnvFile(baseDir, path string) (map[string]string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(baseDir, abs)
	}

	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingFile, abs)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, abs, err)
	}

	parsed, err := godotenv.Read(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnreadableFile, abs, err)
	}
	return parsed, nil
}
