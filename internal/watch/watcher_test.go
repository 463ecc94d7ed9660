package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) record(kind, path string) {
	r.mu.Lock()
	r.events = append(r.events, kind+":"+path)
	r.mu.Unlock()
}

func (r *recorder) has(event string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == event {
			return true
		}
	}
	return false
}

func (r *recorder) count(event string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e == event {
			n++
		}
	}
	return n
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func startWatcher(t *testing.T, root string) *recorder {
	t.Helper()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	rec := &recorder{}
	go Watch(ctx, root, logger, rec.record, WithDebounce(50*time.Millisecond))
	time.Sleep(100 * time.Millisecond)
	return rec
}

func TestWatcher_NewFileReported(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root)

	_ = os.WriteFile(filepath.Join(root, "new.properties"), []byte("[core]\n"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:new.properties")
	}, "expected created:new.properties callback")
}

func TestWatcher_BurstCollapsed(t *testing.T) {
	root := t.TempDir()
	p := filepath.Join(root, "burst.properties")
	_ = os.WriteFile(p, []byte("a"), 0o644)
	rec := startWatcher(t, root)

	for i := 0; i < 5; i++ {
		_ = os.WriteFile(p, []byte{byte('a' + i)}, 0o644)
	}

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("updated:burst.properties")
	}, "expected updated:burst.properties callback")
	time.Sleep(200 * time.Millisecond)
	if n := rec.count("updated:burst.properties"); n != 1 {
		t.Errorf("updated events = %d, want 1", n)
	}
}

func TestWatcher_IgnoresOtherFiles(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root)

	_ = os.WriteFile(filepath.Join(root, "notes.md"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "real.chain"), []byte("x"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:real.chain")
	}, "expected created:real.chain callback")
	if rec.has("created:notes.md") {
		t.Error("non-chain file reported")
	}
}

func TestWatcher_NewDirWatched(t *testing.T) {
	root := t.TempDir()
	rec := startWatcher(t, root)

	subDir := filepath.Join(root, "subdir")
	_ = os.MkdirAll(subDir, 0o755)
	time.Sleep(150 * time.Millisecond)

	_ = os.WriteFile(filepath.Join(subDir, "deep.properties"), []byte("x"), 0o644)

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("created:subdir/deep.properties")
	}, "file in new subdir not reported")
}

func TestWatcher_DeleteAndRename(t *testing.T) {
	root := t.TempDir()
	_ = os.WriteFile(filepath.Join(root, "del.properties"), []byte("x"), 0o644)
	_ = os.WriteFile(filepath.Join(root, "old.properties"), []byte("x"), 0o644)
	rec := startWatcher(t, root)

	_ = os.Remove(filepath.Join(root, "del.properties"))
	_ = os.Rename(filepath.Join(root, "old.properties"), filepath.Join(root, "renamed.properties"))

	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		return rec.has("deleted:del.properties") &&
			rec.has("deleted:old.properties") &&
			rec.has("created:renamed.properties")
	}, "delete/rename not reported")
}
