package executor

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/marcohefti/polecat/internal/staging"
	"github.com/marcohefti/polecat/internal/store"
)

// placement is where src lands for move/copy: inside dst when dst is an
// existing directory, otherwise at dst itself.
func placement(src, dst string) string {
	if st, err := os.Stat(dst); err == nil && st.IsDir() {
		return filepath.Join(dst, filepath.Base(src))
	}
	return dst
}

// nested rejects a move or copy that would put src inside itself.
func (x *Executor) nested(src, target string) error {
	if x.isRoot(src) {
		return fmt.Errorf("%w: %s is the install root", ErrNestedTarget, src)
	}
	rel, err := filepath.Rel(src, target)
	if err == nil && rel != "." && filepath.IsLocal(rel) {
		return fmt.Errorf("%w: %s is inside %s", ErrNestedTarget, target, src)
	}
	return nil
}

func (x *Executor) materialize(f staging.File, target string, perm os.FileMode) error {
	r, err := f.Open()
	if err != nil {
		return fmt.Errorf("open staged %s: %w", f.Filename(), err)
	}
	defer r.Close()
	if st, err := os.Lstat(target); err == nil && st.IsDir() {
		if err := os.RemoveAll(target); err != nil {
			return err
		}
	}
	return store.WriteReaderAtomic(target, r, perm)
}

func (x *Executor) move(srcArg, dstArg string) error {
	dst, err := x.destination(dstArg)
	if err != nil {
		return err
	}
	if f, ok := x.staged(srcArg); ok {
		target := placement(f.Filename(), dst)
		if err := x.materialize(f, target, 0o644); err != nil {
			return err
		}
		x.produced(target)
		return nil
	}

	src, err := x.source(srcArg)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(src); err != nil {
		return err
	}
	target := placement(src, dst)
	if target == src {
		x.produced(target)
		return nil
	}
	if err := x.nested(src, target); err != nil {
		return err
	}
	if x.isRoot(target) {
		return fmt.Errorf("refusing to replace install root %s", target)
	}
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	if err := os.Rename(src, target); err != nil {
		// Cross-device or read-only source (disc): copy, then best-effort remove.
		if cerr := copyTree(src, target); cerr != nil {
			return fmt.Errorf("move %s: %w", src, cerr)
		}
		_ = os.RemoveAll(src)
	}
	x.produced(target)
	return nil
}

func (x *Executor) copy(srcArg, dstArg string) error {
	dst, err := x.destination(dstArg)
	if err != nil {
		return err
	}
	if f, ok := x.staged(srcArg); ok {
		target := placement(f.Filename(), dst)
		if err := x.materialize(f, target, 0o644); err != nil {
			return err
		}
		x.produced(target)
		return nil
	}

	src, err := x.source(srcArg)
	if err != nil {
		return err
	}
	if _, err := os.Lstat(src); err != nil {
		return err
	}
	target := placement(src, dst)
	if target == src {
		x.produced(target)
		return nil
	}
	if err := x.nested(src, target); err != nil {
		return err
	}
	if x.isRoot(target) {
		return fmt.Errorf("refusing to replace install root %s", target)
	}
	if err := os.RemoveAll(target); err != nil {
		return err
	}
	if err := copyTree(src, target); err != nil {
		return err
	}
	x.produced(target)
	return nil
}

// merge copies src into dst. Conflicting files are overwritten; nothing
// already in dst is removed.
func (x *Executor) merge(srcArg, dstArg string) error {
	dst, err := x.destination(dstArg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return err
	}
	if f, ok := x.staged(srcArg); ok {
		if err := x.materialize(f, filepath.Join(dst, filepath.Base(f.Filename())), 0o644); err != nil {
			return err
		}
		x.produced(dst)
		return nil
	}

	src, err := x.source(srcArg)
	if err != nil {
		return err
	}
	st, err := os.Stat(src)
	if err != nil {
		return err
	}
	if !st.IsDir() {
		if err := copyFile(src, filepath.Join(dst, filepath.Base(src)), st.Mode().Perm()); err != nil {
			return err
		}
		x.produced(dst)
		return nil
	}
	if filepath.Clean(src) == filepath.Clean(dst) {
		x.produced(dst)
		return nil
	}
	if err := x.nested(src, dst); err != nil {
		return err
	}
	if err := copyTree(src, dst); err != nil {
		return err
	}
	x.produced(dst)
	return nil
}

// copyTree copies a file, symlink or directory tree to dst, overwriting
// files that already exist there.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case d.IsDir():
			if st, err := os.Lstat(target); err == nil && !st.IsDir() {
				if err := os.Remove(target); err != nil {
					return err
				}
			}
			return os.MkdirAll(target, info.Mode().Perm()|0o700)
		case info.Mode()&fs.ModeSymlink != 0:
			link, err := os.Readlink(p)
			if err != nil {
				return err
			}
			if err := os.RemoveAll(target); err != nil {
				return err
			}
			return os.Symlink(link, target)
		case info.Mode().IsRegular():
			return copyFile(p, target, info.Mode().Perm())
		}
		return nil
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	if st, err := os.Lstat(dst); err == nil && st.IsDir() {
		if err := os.RemoveAll(dst); err != nil {
			return err
		}
	}
	return store.WriteReaderAtomic(dst, in, perm)
}
