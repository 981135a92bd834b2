// Package archive unpacks installer archives into an install root. Format
// detection and decompression come from mholt/archives.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/mholt/archives"
	"go.uber.org/zap"
)

var (
	// ErrUnsupported means the input is not an archive format we can unpack.
	ErrUnsupported = errors.New("unsupported archive format")
	// ErrUnsafePath is an entry or link target that would land outside dest.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

type Result struct {
	Format  string
	Entries int
}

type Extractor struct {
	Logger *zap.Logger
}

// Extract identifies the format of r (using name as a hint) and unpacks every
// entry below dest. Existing files are overwritten.
func (e Extractor) Extract(ctx context.Context, name string, r io.Reader, dest string) (Result, error) {
	log := e.Logger
	if log == nil {
		log = zap.NewNop()
	}

	format, stream, err := archives.Identify(ctx, name, r)
	if err != nil {
		if errors.Is(err, archives.NoMatch) {
			return Result{}, fmt.Errorf("%s: %w", name, ErrUnsupported)
		}
		return Result{}, err
	}
	if ca, ok := format.(archives.CompressedArchive); ok && ca.Extraction == nil {
		return Result{}, fmt.Errorf("%s: compressed file is not an archive: %w", name, ErrUnsupported)
	}
	ex, ok := format.(archives.Extractor)
	if !ok {
		return Result{}, fmt.Errorf("%s: %w", name, ErrUnsupported)
	}
	if err := os.MkdirAll(dest, 0o755); err != nil {
		return Result{}, err
	}

	res := Result{Format: format.Extension()}
	err = ex.Extract(ctx, stream, func(ctx context.Context, f archives.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := writeEntry(dest, f); err != nil {
			return fmt.Errorf("%s: %w", f.NameInArchive, err)
		}
		res.Entries++
		return nil
	})
	if err != nil {
		return res, err
	}
	log.Debug("extracted", zap.String("archive", name), zap.String("format", res.Format), zap.Int("entries", res.Entries))
	return res, nil
}

func writeEntry(dest string, f archives.FileInfo) error {
	rel := filepath.FromSlash(path.Clean(f.NameInArchive))
	if rel == "." {
		return nil
	}
	if !filepath.IsLocal(rel) {
		return ErrUnsafePath
	}
	target, err := securejoin.SecureJoin(dest, rel)
	if err != nil {
		return err
	}

	switch {
	case f.IsDir():
		return os.MkdirAll(target, f.Mode().Perm()|0o700)
	case f.Mode()&fs.ModeSymlink != 0:
		link := filepath.FromSlash(f.LinkTarget)
		if filepath.IsAbs(link) || !filepath.IsLocal(filepath.Join(filepath.Dir(rel), link)) {
			return ErrUnsafePath
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		_ = os.Remove(target)
		return os.Symlink(link, target)
	case f.LinkTarget != "":
		linkRel := filepath.FromSlash(path.Clean(f.LinkTarget))
		if !filepath.IsLocal(linkRel) {
			return ErrUnsafePath
		}
		src, err := securejoin.SecureJoin(dest, linkRel)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return err
		}
		_ = os.Remove(target)
		return os.Link(src, target)
	case !f.Mode().IsRegular():
		// Devices, fifos and the like are skipped.
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	in, err := f.Open()
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode().Perm()|0o600)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
