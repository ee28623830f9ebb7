package watcher

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTracked(t *testing.T, content string) (*Watcher, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "environments.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Stop)
	if err := w.Track(path, []byte(content)); err != nil {
		t.Fatalf("Track: %v", err)
	}
	return w, path
}

func nextEvent(t *testing.T, w *Watcher) Event {
	t.Helper()
	select {
	case evt := <-w.Events():
		return evt
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}

func TestCheckIgnoresUnchangedContent(t *testing.T) {
	w, path := newTracked(t, "a = 1\n")

	w.Check(path)
	select {
	case evt := <-w.Events():
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestCheckReportsChangeAndMissing(t *testing.T) {
	w, path := newTracked(t, "a = 1\n")

	if err := os.WriteFile(path, []byte("a = 2\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	w.Check(path)
	evt := nextEvent(t, w)
	if evt.Kind != EventChanged || evt.Prev.Hash == evt.Curr.Hash {
		t.Fatalf("unexpected event %+v", evt)
	}

	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	w.Check(path)
	if evt := nextEvent(t, w); evt.Kind != EventMissing {
		t.Fatalf("expected missing event, got %v", evt.Kind)
	}

	// a second check while still missing stays quiet
	w.Check(path)
	select {
	case evt := <-w.Events():
		t.Fatalf("unexpected event %+v", evt)
	default:
	}
}

func TestStartDeliversFilesystemEvents(t *testing.T) {
	w, path := newTracked(t, "a = 1\n")
	w.Start()

	if err := os.WriteFile(path, []byte("a = 3\n"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	evt := nextEvent(t, w)
	if evt.Path != path || evt.Kind != EventChanged {
		t.Fatalf("unexpected event %+v", evt)
	}
}

func TestForgetStopsTracking(t *testing.T) {
	w, path := newTracked(t, "a = 1\n")
	w.Forget(path)

	if err := os.WriteFile(path, []byte("changed"), 0o644); err != nil {
		t.Fatalf("rewrite: %v", err)
	}
	w.Check(path)
	select {
	case evt := <-w.Events():
		t.Fatalf("unexpected event for forgotten path %+v", evt)
	default:
	}
}

func TestTrackMissingFileReportsCreation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "environments.json")
	w, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(w.Stop)
	if err := w.Track(path, nil); err != nil {
		t.Fatalf("Track: %v", err)
	}

	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	w.Check(path)
	if evt := nextEvent(t, w); evt.Kind != EventChanged {
		t.Fatalf("expected changed event, got %v", evt.Kind)
	}
}
