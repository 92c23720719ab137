package watcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chorusdev/chorus/internal/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	events chan []string
}

func newRecordingSubscriber() *recordingSubscriber {
	return &recordingSubscriber{events: make(chan []string, 8)}
}

func (r *recordingSubscriber) WatchEvent(paths []string) {
	r.events <- paths
}

func newTestWatcher(t *testing.T, dir string) *Watcher {
	t.Helper()
	w, err := New(dir, logger.NewLogger(), WithDebounceInterval(20*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func (r *recordingSubscriber) wait(t *testing.T) []string {
	t.Helper()
	select {
	case paths := <-r.events:
		return paths
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for watch event")
		return nil
	}
}

func TestWatcher_DeliversMatchingEventsAfterDebounce(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	sub := newRecordingSubscriber()
	w.Subscribe("task", []string{"*.log"}, nil, sub)

	w.handleEvent(context.Background(), fsnotify.Event{
		Name: filepath.Join(dir, "out.log"),
		Op:   fsnotify.Write,
	})

	paths := sub.wait(t)
	require.Len(t, paths, 1)
	require.Contains(t, paths[0], "out.log")
}

func TestWatcher_ExcludeGlobSuppressesMatch(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	sub := newRecordingSubscriber()
	w.Subscribe("task", []string{"*.log"}, []string{"skip.log"}, sub)

	w.handleEvent(context.Background(), fsnotify.Event{
		Name: filepath.Join(dir, "skip.log"),
		Op:   fsnotify.Write,
	})

	select {
	case paths := <-sub.events:
		t.Fatalf("expected no event, got %v", paths)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestWatcher_DynamicIgnoreSuppressesEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	sub := newRecordingSubscriber()
	w.Subscribe("task", []string{"*.log"}, nil, sub)

	target := filepath.Join(dir, "out.log")
	w.IgnorePath(target)

	w.handleEvent(context.Background(), fsnotify.Event{Name: target, Op: fsnotify.Write})

	select {
	case paths := <-sub.events:
		t.Fatalf("expected ignored path to be suppressed, got %v", paths)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestWatcher_GitignoredPathSuppressesEvent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("*.tmp\n"), 0o644))
	w := newTestWatcher(t, dir)

	sub := newRecordingSubscriber()
	w.Subscribe("task", []string{"*"}, nil, sub)

	w.handleEvent(context.Background(), fsnotify.Event{
		Name: filepath.Join(dir, "scratch.tmp"),
		Op:   fsnotify.Write,
	})

	select {
	case paths := <-sub.events:
		t.Fatalf("expected gitignored path to be suppressed, got %v", paths)
	case <-time.After(80 * time.Millisecond):
	}
}

func TestWatcher_CoalescesBurstIntoOneDelivery(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	w := newTestWatcher(t, dir)

	sub := newRecordingSubscriber()
	w.Subscribe("task", []string{"*.log"}, nil, sub)

	for i := 0; i < 5; i++ {
		w.handleEvent(context.Background(), fsnotify.Event{
			Name: filepath.Join(dir, "out.log"),
			Op:   fsnotify.Write,
		})
	}

	paths := sub.wait(t)
	require.Len(t, paths, 1, "repeated writes to the same path should coalesce into one batch")

	select {
	case more := <-sub.events:
		t.Fatalf("expected exactly one delivery, got extra %v", more)
	case <-time.After(80 * time.Millisecond):
	}
}
