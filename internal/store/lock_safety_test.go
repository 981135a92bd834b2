package store

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

func writeOwner(t *testing.T, lockDir string, owner LockOwner) {
	t.Helper()
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		t.Fatalf("mkdir lock dir: %v", err)
	}
	b, err := json.Marshal(owner)
	if err != nil {
		t.Fatalf("marshal owner: %v", err)
	}
	if err := os.WriteFile(filepath.Join(lockDir, lockOwnerFile), b, 0o644); err != nil {
		t.Fatalf("write owner: %v", err)
	}
}

func TestShouldBreakStaleLock_WithoutOwnerMetadata(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "x.lock")
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		t.Fatalf("mkdir lock dir: %v", err)
	}
	if shouldBreakStaleLock(lockDir, time.Now()) {
		t.Fatalf("fresh ownerless lock must be kept")
	}
	old := time.Now().Add(-3 * time.Minute)
	if err := os.Chtimes(lockDir, old, old); err != nil {
		t.Fatalf("chtimes lock dir: %v", err)
	}
	if !shouldBreakStaleLock(lockDir, time.Now()) {
		t.Fatalf("expected old lock without owner metadata to be breakable")
	}
}

func TestShouldBreakStaleLock_WithAliveOwner(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "x.lock")
	writeOwner(t, lockDir, LockOwner{V: 1, PID: os.Getpid(), StartedAt: time.Now().UTC().Format(time.RFC3339Nano)})
	old := time.Now().Add(-3 * time.Hour)
	if err := os.Chtimes(lockDir, old, old); err != nil {
		t.Fatalf("chtimes lock dir: %v", err)
	}
	// Long installs keep their lock however old it is.
	if shouldBreakStaleLock(lockDir, time.Now()) {
		t.Fatalf("expected lock with alive owner to be kept")
	}
}

func TestWithDirLock_TimeoutReturnsTypedError(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "x.lock")
	writeOwner(t, lockDir, LockOwner{V: 1, PID: os.Getpid(), StartedAt: "2026-10-19T12:00:00Z", Label: "install quake"})
	err := WithDirLock(lockDir, 20*time.Millisecond, "second", func() error { return nil })
	if err == nil {
		t.Fatalf("expected lock timeout error")
	}
	if !IsLockTimeout(err) {
		t.Fatalf("expected typed lock timeout error, got %v", err)
	}
	if !strings.Contains(err.Error(), "held by install quake, pid") {
		t.Fatalf("expected holder in error, got %v", err)
	}
}

func TestWithDirLock_SecondHolderTimesOut(t *testing.T) {
	lockDir := filepath.Join(t.TempDir(), "locks", "root.lock")
	err := WithDirLock(lockDir, time.Second, "first", func() error {
		owner, ok := ReadLockOwner(lockDir)
		if !ok || owner.Label != "first" || owner.PID != os.Getpid() {
			t.Fatalf("unexpected owner: %+v %v", owner, ok)
		}
		inner := WithDirLock(lockDir, 50*time.Millisecond, "second", func() error { return nil })
		if !errors.Is(inner, ErrLockTimeout) {
			t.Fatalf("expected ErrLockTimeout, got %v", inner)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("outer lock: %v", err)
	}
	if _, err := os.Stat(lockDir); !os.IsNotExist(err) {
		t.Fatalf("expected lock dir removed after release, got %v", err)
	}
}
