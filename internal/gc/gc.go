// Package gc prunes what installs leave under the data and cache dirs:
// old journals and staging dirs orphaned by interrupted installs.
package gc

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/marcohefti/polecat/internal/config"
	"github.com/marcohefti/polecat/internal/ids"
)

// DefaultStagingStaleAfter is how old a staging dir must be before it is
// treated as orphaned. A running install removes its own dir on exit.
const DefaultStagingStaleAfter = 24 * time.Hour

type Entry struct {
	InstallID string    `json:"installId"`
	Kind      string    `json:"kind"` // journal|staging
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"createdAt"`
	Bytes     int64     `json:"bytes"`
}

type Result struct {
	OK          bool     `json:"ok"`
	DryRun      bool     `json:"dryRun"`
	Deleted     []Entry  `json:"deleted,omitempty"`
	Kept        []Entry  `json:"kept,omitempty"`
	Errors      []string `json:"errors,omitempty"`
	TotalBefore int64    `json:"totalBeforeBytes"`
	TotalAfter  int64    `json:"totalAfterBytes"`
}

type Opts struct {
	Dirs config.Dirs
	Now  time.Time
	// MaxAgeDays drops journals older than this; 0 keeps them.
	MaxAgeDays int
	// MaxTotalBytes drops the oldest journals until the rest fit; 0 disables.
	MaxTotalBytes     int64
	StagingStaleAfter time.Duration
	DryRun            bool
}

func Run(opts Opts) (Result, error) {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	stale := opts.StagingStaleAfter
	if stale <= 0 {
		stale = DefaultStagingStaleAfter
	}

	journals, err := scan(opts.Dirs.InstallsDir(), "journal", func(e os.DirEntry) (string, bool) {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".jsonl") {
			return "", false
		}
		return strings.TrimSuffix(name, ".jsonl"), true
	})
	if err != nil {
		return Result{}, err
	}
	staging, err := scan(opts.Dirs.StagingDir(), "staging", func(e os.DirEntry) (string, bool) {
		return e.Name(), e.IsDir()
	})
	if err != nil {
		return Result{}, err
	}

	var total int64
	for _, e := range journals {
		total += e.Bytes
	}
	for _, e := range staging {
		total += e.Bytes
	}
	res := Result{OK: true, DryRun: opts.DryRun, TotalBefore: total, TotalAfter: total}

	shouldDelete := make(map[string]bool)
	for _, e := range staging {
		if now.Sub(e.CreatedAt) >= stale {
			shouldDelete[e.Path] = true
		}
	}
	if opts.MaxAgeDays > 0 {
		cutoff := now.Add(-time.Duration(opts.MaxAgeDays) * 24 * time.Hour)
		for _, e := range journals {
			if e.CreatedAt.Before(cutoff) {
				shouldDelete[e.Path] = true
			}
		}
	}

	// Size-based: delete oldest journals until under threshold.
	if opts.MaxTotalBytes > 0 {
		left := total
		for _, e := range append(append([]Entry{}, staging...), journals...) {
			if shouldDelete[e.Path] {
				left -= e.Bytes
			}
		}
		for _, e := range journals {
			if left <= opts.MaxTotalBytes {
				break
			}
			if shouldDelete[e.Path] {
				continue
			}
			shouldDelete[e.Path] = true
			left -= e.Bytes
		}
	}

	for _, e := range append(staging, journals...) {
		if !shouldDelete[e.Path] {
			res.Kept = append(res.Kept, e)
			continue
		}
		if !opts.DryRun {
			if err := os.RemoveAll(e.Path); err != nil {
				res.OK = false
				res.Errors = append(res.Errors, err.Error())
				res.Kept = append(res.Kept, e)
				continue
			}
		}
		res.Deleted = append(res.Deleted, e)
		res.TotalAfter -= e.Bytes
	}
	return res, nil
}

// scan lists entries named by install id, oldest first. Names that are not
// install ids are left alone.
func scan(dir, kind string, idOf func(os.DirEntry) (string, bool)) ([]Entry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []Entry
	for _, de := range entries {
		id, ok := idOf(de)
		if !ok {
			continue
		}
		created, ok := ids.InstallTime(id)
		if !ok {
			continue
		}
		p := filepath.Join(dir, de.Name())
		size, _ := dirSize(p)
		out = append(out, Entry{InstallID: id, Kind: kind, Path: p, CreatedAt: created, Bytes: size})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].InstallID < out[j].InstallID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}
