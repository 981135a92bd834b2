package store

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// WriteFileAtomic replaces path with b. An existing file keeps its permission
// bits; new files are created 0644.
func WriteFileAtomic(path string, b []byte) error {
	perm := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		perm = info.Mode().Perm()
	}
	return WriteFileAtomicMode(path, b, perm)
}

func WriteFileAtomicMode(path string, b []byte, perm os.FileMode) error {
	return WriteReaderAtomic(path, bytes.NewReader(b), perm)
}

// WriteReaderAtomic streams r into a temp file next to path and renames it
// into place with perm.
func WriteReaderAtomic(path string, r io.Reader, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp := fmt.Sprintf("%s.tmp-%d", path, time.Now().UnixNano())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}()

	if _, err := io.Copy(f, r); err != nil {
		return err
	}
	// Umask may have narrowed the create mode.
	if err := f.Chmod(perm); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return replaceFile(tmp, path)
}
