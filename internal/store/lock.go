package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
)

// ErrLockTimeout is returned when another process keeps holding a lock past the wait budget.
var ErrLockTimeout = errors.New("timeout acquiring lock")

const (
	lockOwnerFile = "owner.json"
	// ownerlessStaleAfter only applies to locks without readable owner
	// metadata (a crash between mkdir and the owner write).
	ownerlessStaleAfter = 2 * time.Minute
	lockPoll            = 25 * time.Millisecond
)

// LockOwner is written into every lock dir. Label says what holds it
// (for installs: the install id and root).
type LockOwner struct {
	V         int    `json:"v"`
	PID       int    `json:"pid"`
	StartedAt string `json:"startedAt"`
	Label     string `json:"label,omitempty"`
}

func (o LockOwner) String() string {
	s := fmt.Sprintf("pid %d since %s", o.PID, o.StartedAt)
	if o.Label != "" {
		s = o.Label + ", " + s
	}
	return s
}

// WithDirLock runs fn while holding lockDir. The lock is a directory so that
// creation is atomic on every platform; it is removed when fn returns. A lock
// whose owner process is gone is broken; a live owner is waited on for at most
// wait.
func WithDirLock(lockDir string, wait time.Duration, label string, fn func() error) error {
	release, err := acquireDirLock(lockDir, wait, label)
	if err != nil {
		return err
	}
	defer func() { _ = release() }()
	return fn()
}

// ReadLockOwner reports who holds lockDir, if anyone recorded it.
func ReadLockOwner(lockDir string) (LockOwner, bool) {
	raw, err := os.ReadFile(filepath.Join(lockDir, lockOwnerFile))
	if err != nil {
		return LockOwner{}, false
	}
	var owner LockOwner
	if err := json.Unmarshal(raw, &owner); err != nil || owner.PID <= 0 {
		return LockOwner{}, false
	}
	return owner, true
}

func shouldBreakStaleLock(lockDir string, now time.Time) bool {
	if owner, ok := ReadLockOwner(lockDir); ok {
		return !processAlive(owner.PID)
	}
	info, err := os.Stat(lockDir)
	if err != nil {
		return false
	}
	return now.Sub(info.ModTime()) > ownerlessStaleAfter
}

func acquireDirLock(lockDir string, wait time.Duration, label string) (func() error, error) {
	deadline := time.Now().Add(wait)
	if err := os.MkdirAll(filepath.Dir(lockDir), 0o755); err != nil {
		return nil, err
	}
	for {
		err := os.Mkdir(lockDir, 0o755)
		if err == nil {
			owner := LockOwner{V: 1, PID: os.Getpid(), StartedAt: time.Now().UTC().Format(time.RFC3339Nano), Label: label}
			if b, err := json.Marshal(owner); err == nil {
				_ = os.WriteFile(filepath.Join(lockDir, lockOwnerFile), b, 0o644)
			}
			return func() error { return os.RemoveAll(lockDir) }, nil
		}
		if !os.IsExist(err) {
			return nil, err
		}

		if shouldBreakStaleLock(lockDir, time.Now()) {
			_ = os.RemoveAll(lockDir)
			continue
		}
		if time.Now().After(deadline) {
			if owner, ok := ReadLockOwner(lockDir); ok {
				return nil, fmt.Errorf("%w: %s (held by %s)", ErrLockTimeout, lockDir, owner)
			}
			return nil, fmt.Errorf("%w: %s", ErrLockTimeout, lockDir)
		}
		time.Sleep(lockPoll)
	}
}

func IsLockTimeout(err error) bool { return errors.Is(err, ErrLockTimeout) }
