// Package upgrade implements the `upgrade` CLI subcommand's supporting
// policy (§6, SUPPLEMENTED FEATURES #2): gating a self-update check to at
// most once per TTL via a persisted timestamp, and driving the actual
// network check — an out-of-scope external collaborator (spec.md §1) —
// through a small injected interface, retried with the teacher's own
// exponential backoff policy.
package upgrade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/chorusdev/chorus/internal/backoff"
	"gopkg.in/yaml.v3"
)

// checkTTL is how long a cached check result stays valid (SUPPLEMENTED
// FEATURES #2: "gates a check to at most once per 24h").
const checkTTL = 24 * time.Hour

// stateSubdir and stateFile locate the persisted check state under the
// platform-standard local config directory (§6 "a user-scoped global
// config file under the platform-standard local config directory").
const (
	stateSubdir = "chorus"
	stateFile   = "upgrade-check.yaml"
)

// Result is the outcome of a completed version check, cached to disk.
type Result struct {
	LastCheck       time.Time `yaml:"last_check"`
	CurrentVersion  string    `yaml:"current_version"`
	LatestVersion   string    `yaml:"latest_version"`
	UpdateAvailable bool      `yaml:"update_available"`
}

// stale reports whether r is older than checkTTL, or absent.
func (r *Result) stale() bool {
	return r == nil || time.Since(r.LastCheck) > checkTTL
}

// Checker is the external collaborator that actually talks to a release
// source. Its transport (GitHub releases, a private mirror, ...) is out of
// scope (spec.md §1); only this shape is part of the contract.
type Checker interface {
	Latest(ctx context.Context) (version string, err error)
}

// Store persists and loads the last check Result as YAML.
type Store struct {
	path string
}

// NewStore resolves the persisted state file under xdg's local config
// directory, the same platform-standard location the teacher's own
// upgrade-check cache uses.
func NewStore() (*Store, error) {
	path, err := xdg.ConfigFile(filepath.Join(stateSubdir, stateFile))
	if err != nil {
		return nil, fmt.Errorf("resolve upgrade state path: %w", err)
	}
	return &Store{path: path}, nil
}

// Load reads the persisted Result, returning (nil, nil) if no check has
// ever been recorded.
func (s *Store) Load() (*Result, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read upgrade state: %w", err)
	}
	var r Result
	if err := yaml.Unmarshal(data, &r); err != nil {
		// A corrupt cache is treated like a missing one rather than a
		// hard failure — the next check simply overwrites it.
		return nil, nil
	}
	return &r, nil
}

// Save persists r, creating the parent directory if necessary.
func (s *Store) Save(r *Result) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create upgrade state dir: %w", err)
	}
	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode upgrade state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write upgrade state: %w", err)
	}
	return nil
}

// retryPolicy retries a transient network check up to 3 times with the
// teacher's own exponential backoff, starting at 200ms.
func retryPolicy() backoff.RetryPolicy {
	p := backoff.NewExponentialBackoffPolicy(200 * time.Millisecond)
	p.MaxRetries = 3
	return p
}

// Check gates a Checker.Latest call behind the persisted TTL: if the
// cached result is still fresh, it is returned unchanged and checker is
// never invoked; otherwise checker.Latest runs (retried via backoff on
// error) and the result is cached.
func Check(ctx context.Context, store *Store, checker Checker, currentVersion string) (*Result, error) {
	cached, err := store.Load()
	if err != nil {
		return nil, err
	}
	if !cached.stale() {
		return cached, nil
	}

	latest, err := checkWithRetry(ctx, checker)
	if err != nil {
		return nil, fmt.Errorf("check latest version: %w", err)
	}

	result := &Result{
		LastCheck:       time.Now(),
		CurrentVersion:  currentVersion,
		LatestVersion:   latest,
		UpdateAvailable: latest != currentVersion,
	}
	if err := store.Save(result); err != nil {
		return nil, err
	}
	return result, nil
}

func checkWithRetry(ctx context.Context, checker Checker) (string, error) {
	retrier := backoff.NewRetrier(retryPolicy())
	var lastErr error
	for {
		version, err := checker.Latest(ctx)
		if err == nil {
			return version, nil
		}
		lastErr = err
		if waitErr := retrier.Next(ctx, err); waitErr != nil {
			return "", fmt.Errorf("%w (last attempt: %v)", waitErr, lastErr)
		}
	}
}
