package installer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marcohefti/polecat/internal/archive"
	"github.com/marcohefti/polecat/internal/config"
	"github.com/marcohefti/polecat/internal/executor"
	"github.com/marcohefti/polecat/internal/fetch"
	"github.com/marcohefti/polecat/internal/ids"
	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/process"
	"github.com/marcohefti/polecat/internal/prompt"
	"github.com/marcohefti/polecat/internal/store"
	"github.com/marcohefti/polecat/internal/wine"
)

type fakePrompter struct {
	confirm bool
	asked   int
}

func (p *fakePrompter) Confirm(context.Context, string) (bool, error) {
	p.asked++
	return p.confirm, nil
}
func (p *fakePrompter) Choose(_ context.Context, m prompt.Menu) (string, error) {
	return m.Preselect, nil
}
func (p *fakePrompter) InsertDisc(context.Context, string) (string, error) {
	return "", errors.New("no disc")
}

type nopSpawner struct{}

func (nopSpawner) Run(context.Context, process.Spec) (process.Result, error) {
	return process.Result{}, nil
}

type fakeLocator struct {
	err   error
	calls int
}

func (l *fakeLocator) Locate(string) (wine.Runtime, error) {
	l.calls++
	if l.err != nil {
		return wine.Runtime{}, l.err
	}
	return wine.Runtime{Wine: "/w/wine", Wineserver: "/w/wineserver", Source: "path"}, nil
}

type lutrisServer struct {
	*httptest.Server
	manifests map[string]string
	fileHits  atomic.Int32
}

func newLutrisServer(t *testing.T) *lutrisServer {
	t.Helper()
	ls := &lutrisServer{manifests: map[string]string{}}
	ls.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if name, ok := strings.CutPrefix(r.URL.Path, "/api/installers/"); ok {
			doc, found := ls.manifests[name]
			if !found {
				http.NotFound(w, r)
				return
			}
			_, _ = w.Write([]byte(doc))
			return
		}
		if name, ok := strings.CutPrefix(r.URL.Path, "/files/"); ok {
			ls.fileHits.Add(1)
			if name == "broken" {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte("content of " + name))
			return
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(ls.Close)
	return ls
}

func doc(files string, steps ...string) string {
	return fmt.Sprintf(`{"count": 1, "results": [{"name": "Quake", "version": "GOG", "runner": "linux",
		"script": {"files": %s, "installer": [%s]}}]}`, files, strings.Join(steps, ","))
}

type fixture struct {
	srv      *lutrisServer
	in       *Installer
	prompter *fakePrompter
	locator  *fakeLocator
	root     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := newLutrisServer(t)
	home := t.TempDir()
	cfg, err := config.LoadMerged(func(k string) string {
		if k == "HOME" {
			return home
		}
		return ""
	}, config.Flags{APIURL: srv.URL + "/api/installers/"})
	require.NoError(t, err)
	cfg.MemoryLimit = 8

	f := &fixture{srv: srv, prompter: &fakePrompter{confirm: true}, locator: &fakeLocator{}, root: filepath.Join(t.TempDir(), "quake")}
	f.in = &Installer{
		Config:    cfg,
		Fetcher:   fetch.New(fetch.Options{}),
		Prompter:  f.prompter,
		Process:   nopSpawner{},
		Extractor: archive.Extractor{},
		Runtimes:  f.locator,
		Now:       func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) },
		LockWait:  50 * time.Millisecond,
	}
	return f
}

func (f *fixture) fileURL(name string) string { return f.srv.URL + "/files/" + name }

func TestLoad_StatusErrors(t *testing.T) {
	f := newFixture(t)
	f.srv.manifests["two"] = `{"count": 2, "results": [{}, {}]}`
	f.srv.manifests["noscript"] = `{"count": 1, "results": [{"name": "x", "version": "y"}]}`
	f.srv.manifests["nosteps"] = `{"count": 1, "results": [{"name": "x", "version": "y", "script": {}}]}`
	f.srv.manifests["garbage"] = `not json`

	cases := map[string]string{
		"missing":  "No installer with that ID was found",
		"two":      "No installer with that ID was found",
		"garbage":  "No installer with that ID was found",
		"noscript": "Installer has no script",
		"nosteps":  "Script has no install directives",
	}
	for name, msg := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.in.Load(context.Background(), Request{Name: name})
			var se *ScriptError
			require.True(t, errors.As(err, &se), "got %v", err)
			require.Equal(t, msg, se.Error())
		})
	}

	s, err := f.in.Load(context.Background(), Request{Name: "nosteps"})
	require.Error(t, err)
	require.Equal(t, "x", s.Name)
	require.Equal(t, manifest.StatusNoInstallSteps, s.Status)
}

func TestLoad_ManifestFile(t *testing.T) {
	f := newFixture(t)
	p := filepath.Join(t.TempDir(), "quake.json")
	require.NoError(t, os.WriteFile(p, []byte(doc(`[]`, `{"write_file": {"file": "a", "content": "b"}}`)), 0o644))
	s, err := f.in.Load(context.Background(), Request{ManifestFile: p})
	require.NoError(t, err)
	require.Equal(t, "Quake", s.Name)

	_, err = f.in.Load(context.Background(), Request{ManifestFile: p + ".gone"})
	var se *ScriptError
	require.True(t, errors.As(err, &se))
	require.Equal(t, manifest.StatusNoManifest, se.Status)
}

func TestInstall_DeclineStagesNothing(t *testing.T) {
	f := newFixture(t)
	f.srv.manifests["quake"] = doc(fmt.Sprintf(`[{"data": %q}]`, f.fileURL("data")), `{"move": {"src": "data", "dst": "$GAMEDIR/data"}}`)
	f.prompter.confirm = false

	_, err := f.in.Install(context.Background(), Request{Name: "quake", Root: f.root})
	require.ErrorIs(t, err, ErrDeclined)
	require.Equal(t, 1, f.prompter.asked)
	require.Equal(t, int32(0), f.srv.fileHits.Load())
	require.NoDirExists(t, f.root)
	require.NoDirExists(t, f.in.Config.Dirs.InstallsDir())
}

func TestInstall_HappyPathJournalsAndCleansUp(t *testing.T) {
	f := newFixture(t)
	f.srv.manifests["quake"] = doc(
		fmt.Sprintf(`[{"small": %q}, {"large-file": {"url": %q}}]`, f.fileURL("s"), f.fileURL("large-file")),
		`{"move": {"src": "small", "dst": "$GAMEDIR/small.txt"}}`,
		`{"copy": {"src": "$large-file", "dst": "$GAMEDIR/large.txt"}}`,
		`{"frobnicate": {}}`,
		`{"write_file": {"file": "$GAMEDIR/done", "content": "ok"}}`,
	)

	rep, err := f.in.Install(context.Background(), Request{Name: "quake", Root: f.root, AssumeYes: true})
	require.NoError(t, err)
	require.Equal(t, 0, f.prompter.asked)
	require.Equal(t, 2, rep.Staged)
	require.Equal(t, 3, rep.Outcome.Applied)
	require.Len(t, rep.Outcome.Diagnostics, 1)
	require.True(t, ids.IsValidInstallID(rep.InstallID))

	b, err := os.ReadFile(filepath.Join(f.root, "small.txt"))
	require.NoError(t, err)
	require.Equal(t, "content of s", string(b))
	b, err = os.ReadFile(filepath.Join(f.root, "large.txt"))
	require.NoError(t, err)
	require.Equal(t, "content of large-file", string(b))

	events, err := ReadJournal(rep.Journal)
	require.NoError(t, err)
	require.Len(t, events, 6)
	require.Equal(t, "start", events[0].Event)
	require.Equal(t, "Quake", events[0].Name)
	require.Equal(t, manifest.CommandMove, events[1].Step.Command)
	require.Equal(t, executor.ResultSkipped, events[3].Step.Result)
	require.Equal(t, "finish", events[5].Event)
	require.Equal(t, 3, events[5].Applied)
	require.Zero(t, events[5].FailedStep)

	require.NoDirExists(t, filepath.Join(f.in.Config.Dirs.StagingDir(), rep.InstallID))
	require.NoDirExists(t, filepath.Join(f.in.Config.Dirs.LocksDir(), ids.RootLockName(f.root)))
}

func TestInstall_StepFailureStopsAndReports(t *testing.T) {
	f := newFixture(t)
	f.srv.manifests["quake"] = doc(`[]`,
		`{"write_file": {"file": "one", "content": "1"}}`,
		`{"move": {"src": "$GAMEDIR/nope", "dst": "$GAMEDIR/x"}}`,
		`{"write_file": {"file": "three", "content": "3"}}`,
	)
	rep, err := f.in.Install(context.Background(), Request{Name: "quake", Root: f.root, AssumeYes: true})
	var se *executor.StepError
	require.True(t, errors.As(err, &se))
	require.Equal(t, 2, se.Step())
	require.FileExists(t, filepath.Join(f.root, "one"))
	require.NoFileExists(t, filepath.Join(f.root, "three"))

	events, err := ReadJournal(rep.Journal)
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, 2, last.FailedStep)
	require.Contains(t, last.Error, "step 2 (move) failed")
}

func TestInstall_StagingFailureRunsNothing(t *testing.T) {
	f := newFixture(t)
	f.srv.manifests["quake"] = doc(fmt.Sprintf(`[{"b": %q}]`, f.fileURL("broken")),
		`{"write_file": {"file": "one", "content": "1"}}`)
	f.in.Fetcher = fetch.New(fetch.Options{Retries: 0})

	_, err := f.in.Install(context.Background(), Request{Name: "quake", Root: f.root, AssumeYes: true})
	require.ErrorIs(t, err, ErrStaging)
	require.NoFileExists(t, filepath.Join(f.root, "one"))
}

func TestInstall_RuntimeLocatedBeforeSideEffects(t *testing.T) {
	f := newFixture(t)
	f.srv.manifests["quake"] = doc(fmt.Sprintf(`[{"setup": %q}]`, f.fileURL("setup")),
		`{"task": {"name": "wineexec", "executable": "setup"}}`)
	f.locator.err = wine.ErrNotFound

	_, err := f.in.Install(context.Background(), Request{Name: "quake", Root: f.root, AssumeYes: true})
	require.ErrorIs(t, err, ErrRuntime)
	require.ErrorIs(t, err, wine.ErrNotFound)
	require.Equal(t, int32(0), f.srv.fileHits.Load())

	f.locator.err = nil
	_, err = f.in.Install(context.Background(), Request{Name: "quake", Root: f.root, AssumeYes: true})
	require.NoError(t, err)
	require.Equal(t, 2, f.locator.calls)
}

func TestInstall_RootLockPreventsConcurrentInstall(t *testing.T) {
	f := newFixture(t)
	f.srv.manifests["quake"] = doc(`[]`, `{"write_file": {"file": "one", "content": "1"}}`)

	root, err := filepath.Abs(f.root)
	require.NoError(t, err)
	lockDir := filepath.Join(f.in.Config.Dirs.LocksDir(), ids.RootLockName(root))
	err = store.WithDirLock(lockDir, time.Second, "test holder", func() error {
		_, err := f.in.Install(context.Background(), Request{Name: "quake", Root: f.root, AssumeYes: true})
		return err
	})
	require.True(t, store.IsLockTimeout(err), "got %v", err)
	require.NoFileExists(t, filepath.Join(f.root, "one"))
}
