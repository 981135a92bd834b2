package staging

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/redact"
)

// Opener starts a download; size is -1 when unknown.
type Opener interface {
	Open(ctx context.Context, url string) (io.ReadCloser, int64, error)
}

type Stager struct {
	Fetcher Opener
	// Dir receives disk-backed files. It is created on demand.
	Dir string
	// MemoryLimit is the largest advertised size kept in memory.
	MemoryLimit int64
	Concurrency int
	Logger      *zap.Logger
	Redactor    *redact.Redactor
}

// Stage downloads every ref concurrently. Either all files are staged or
// none are: on error everything already staged is released.
func (s Stager) Stage(ctx context.Context, refs []manifest.FileRef) (*Set, error) {
	log := s.Logger
	if log == nil {
		log = zap.NewNop()
	}
	rd := s.Redactor
	if rd == nil {
		rd = redact.New()
	}
	limit := s.Concurrency
	if limit < 1 {
		limit = 1
	}

	files := make([]File, len(refs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, ref := range refs {
		g.Go(func() error {
			f, err := s.stageOne(gctx, i, ref)
			if err != nil {
				return fmt.Errorf("stage %s (%s): %w", ref.Filename, rd.URL(ref.URL), err)
			}
			files[i] = f
			backend := "memory"
			if f.Path() != "" {
				backend = "disk"
			}
			log.Info("staged", zap.String("file", ref.Filename), zap.String("size", humanize.Bytes(uint64(f.Size()))), zap.String("backend", backend))
			return nil
		})
	}
	set := &Set{files: files}
	if err := g.Wait(); err != nil {
		_ = set.Release()
		return nil, err
	}
	return set, nil
}

func (s Stager) stageOne(ctx context.Context, idx int, ref manifest.FileRef) (File, error) {
	rc, size, err := s.Fetcher.Open(ctx, ref.URL)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if size >= 0 && size <= s.MemoryLimit {
		var buf bytes.Buffer
		n, err := io.Copy(&buf, io.LimitReader(rc, s.MemoryLimit+1))
		if err != nil {
			return nil, err
		}
		if n <= s.MemoryLimit {
			return &memoryFile{name: ref.Filename, url: ref.URL, data: buf.Bytes()}, nil
		}
		// Advertised size was wrong; spill what we have plus the rest.
		return s.toDisk(idx, ref, io.MultiReader(&buf, rc))
	}
	return s.toDisk(idx, ref, rc)
}

func (s Stager) toDisk(idx int, ref manifest.FileRef, r io.Reader) (File, error) {
	if s.Dir == "" {
		return nil, fmt.Errorf("file exceeds memory limit (%s) and no staging dir is set", humanize.Bytes(uint64(s.MemoryLimit)))
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	tmp, err := os.CreateTemp(s.Dir, fmt.Sprintf("%03d-*-%s", idx, filepath.Base(ref.Filename)))
	if err != nil {
		return nil, err
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}
	return &diskFile{name: ref.Filename, url: ref.URL, path: tmp.Name(), size: n}, nil
}
