package gc

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marcohefti/polecat/internal/config"
)

func testDirs(t *testing.T) config.Dirs {
	t.Helper()
	root := t.TempDir()
	return config.Dirs{
		Config: filepath.Join(root, "config"),
		Data:   filepath.Join(root, "data"),
		Cache:  filepath.Join(root, "cache"),
	}
}

func writeJournal(t *testing.T, d config.Dirs, id string, size int) string {
	t.Helper()
	if err := os.MkdirAll(d.InstallsDir(), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	p := filepath.Join(d.InstallsDir(), id+".jsonl")
	if err := os.WriteFile(p, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write journal: %v", err)
	}
	return p
}

func TestGC_JournalAge(t *testing.T) {
	d := testDirs(t)
	writeJournal(t, d, "20260210-000000Z-quake-0000aaaa", 10)
	old := writeJournal(t, d, "20260101-000000Z-doom-0000bbbb", 10)
	writeJournal(t, d, "notes", 10)

	now := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	res, err := Run(Opts{Dirs: d, Now: now, MaxAgeDays: 30, DryRun: true})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Deleted) != 1 || res.Deleted[0].Path != old {
		t.Fatalf("unexpected deleted: %+v", res.Deleted)
	}
	if _, err := os.Stat(old); err != nil {
		t.Fatalf("dry run must not delete: %v", err)
	}
	if len(res.Kept) != 1 {
		t.Fatalf("unrecognized names must be ignored: %+v", res.Kept)
	}
}

func TestGC_StagingAndSize(t *testing.T) {
	d := testDirs(t)
	orphan := filepath.Join(d.StagingDir(), "20260101-000000Z-doom-0000cccc")
	fresh := filepath.Join(d.StagingDir(), "20260214-230000Z-quake-0000dddd")
	for _, p := range []string{orphan, fresh} {
		if err := os.MkdirAll(p, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(p, "blob"), make([]byte, 100), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	j1 := writeJournal(t, d, "20260201-000000Z-a-00000001", 50)
	j2 := writeJournal(t, d, "20260202-000000Z-b-00000002", 50)

	now := time.Date(2026, 2, 15, 0, 0, 0, 0, time.UTC)
	res, err := Run(Opts{Dirs: d, Now: now, MaxTotalBytes: 160})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.TotalBefore != 300 || res.TotalAfter != 150 {
		t.Fatalf("totals: %+v", res)
	}
	for _, gone := range []string{orphan, j1} {
		if _, err := os.Stat(gone); !os.IsNotExist(err) {
			t.Fatalf("expected %s removed: %v", gone, err)
		}
	}
	for _, kept := range []string{fresh, j2} {
		if _, err := os.Stat(kept); err != nil {
			t.Fatalf("expected %s kept: %v", kept, err)
		}
	}
}
