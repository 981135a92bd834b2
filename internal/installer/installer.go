// Package installer drives one install end to end: resolve the manifest,
// parse it, confirm, stage every file, run the directives and clean up.
package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/marcohefti/polecat/internal/config"
	"github.com/marcohefti/polecat/internal/executor"
	"github.com/marcohefti/polecat/internal/fetch"
	"github.com/marcohefti/polecat/internal/ids"
	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/process"
	"github.com/marcohefti/polecat/internal/redact"
	"github.com/marcohefti/polecat/internal/staging"
	"github.com/marcohefti/polecat/internal/store"
	"github.com/marcohefti/polecat/internal/wine"
)

const defaultLockWait = 2 * time.Second

type Fetcher interface {
	Bytes(ctx context.Context, url string) ([]byte, error)
	staging.Opener
}

type Prompter interface {
	Confirm(ctx context.Context, question string) (bool, error)
	executor.Prompter
}

type RuntimeLocator interface {
	Locate(want string) (wine.Runtime, error)
}

type Installer struct {
	Config    config.Merged
	Fetcher   Fetcher
	Prompter  Prompter
	Process   process.Spawner
	Extractor executor.Extractor
	Runtimes  RuntimeLocator
	Redactor  *redact.Redactor
	Logger    *zap.Logger

	// Stdout and Stderr receive subprocess output.
	Stdout io.Writer
	Stderr io.Writer

	Now      func() time.Time
	LockWait time.Duration
}

// Request names the installer and where it goes. ManifestFile, when set,
// replaces the network lookup of Name.
type Request struct {
	Name         string
	ManifestFile string
	Root         string
	AssumeYes    bool
}

type Report struct {
	InstallID string           `json:"installId"`
	Name      string           `json:"name"`
	Version   string           `json:"version"`
	Root      string           `json:"root"`
	Journal   string           `json:"journal"`
	Staged    int              `json:"staged"`
	Outcome   executor.Outcome `json:"-"`
}

func (in *Installer) log() *zap.Logger {
	if in.Logger == nil {
		return zap.NewNop()
	}
	return in.Logger
}

func (in *Installer) now() time.Time {
	if in.Now == nil {
		return time.Now()
	}
	return in.Now()
}

// Load resolves and parses the manifest. A script with a non-OK status is
// returned together with a *ScriptError so callers can still inspect it.
func (in *Installer) Load(ctx context.Context, req Request) (manifest.Script, error) {
	raw, err := in.manifestBytes(ctx, req)
	if err != nil {
		if errors.Is(err, fetch.ErrNotFound) {
			return manifest.Script{Status: manifest.StatusNoManifest}, &ScriptError{Status: manifest.StatusNoManifest}
		}
		return manifest.Script{}, err
	}
	s := manifest.ParseBytes(raw)
	for _, w := range s.Warnings {
		in.log().Warn("manifest", zap.String("warning", w))
	}
	if !s.Executable() {
		return s, &ScriptError{Status: s.Status}
	}
	return s, nil
}

func (in *Installer) manifestBytes(ctx context.Context, req Request) ([]byte, error) {
	if req.ManifestFile != "" {
		b, err := os.ReadFile(req.ManifestFile)
		if err != nil {
			if os.IsNotExist(err) {
				return nil, fmt.Errorf("%s: %w", req.ManifestFile, fetch.ErrNotFound)
			}
			return nil, err
		}
		return b, nil
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errors.New("missing installer name")
	}
	if in.Fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	u := fetch.InstallerURL(in.Config.APIURL, name)
	in.log().Debug("fetching manifest", zap.String("url", in.redactor().URL(u)))
	return in.Fetcher.Bytes(ctx, u)
}

func (in *Installer) redactor() *redact.Redactor {
	if in.Redactor == nil {
		return redact.New()
	}
	return in.Redactor
}

// Install runs the whole flow. Nothing is downloaded or written before the
// user confirms. Staged files and the per-install cache dir are released on
// every path out.
func (in *Installer) Install(ctx context.Context, req Request) (Report, error) {
	s, err := in.Load(ctx, req)
	if err != nil {
		return Report{}, err
	}

	root := req.Root
	if root == "" {
		root = "."
	}
	root, err = filepath.Abs(root)
	if err != nil {
		return Report{}, err
	}
	rep := Report{Name: s.Name, Version: s.Version, Root: root}

	if !req.AssumeYes {
		if in.Prompter == nil {
			return rep, errors.New("confirmation required but no prompter available")
		}
		q := fmt.Sprintf("Install %s - %s to %s?\nThis may download files and install wine versions", s.Name, s.Version, root)
		ok, err := in.Prompter.Confirm(ctx, q)
		if err != nil {
			return rep, err
		}
		if !ok {
			return rep, ErrDeclined
		}
	}

	var runtime *wine.Runtime
	if s.UsesTasks() {
		if in.Runtimes == nil {
			return rep, fmt.Errorf("%w: no runtime locator configured", ErrRuntime)
		}
		rt, err := in.Runtimes.Locate(s.WineVersion)
		if err != nil {
			return rep, fmt.Errorf("%w: %w", ErrRuntime, err)
		}
		in.log().Info("wine runtime", zap.String("wine", rt.Wine), zap.String("source", rt.Source))
		runtime = &rt
	}

	dirs := in.Config.Dirs
	rep.InstallID = ids.NewInstallID(in.now(), s.Name)
	rep.Journal = filepath.Join(dirs.InstallsDir(), rep.InstallID+".jsonl")
	lockDir := filepath.Join(dirs.LocksDir(), ids.RootLockName(root))

	wait := in.LockWait
	if wait <= 0 {
		wait = defaultLockWait
	}
	label := fmt.Sprintf("install %s into %s", rep.InstallID, root)
	err = store.WithDirLock(lockDir, wait, label, func() error {
		return in.installLocked(ctx, s, runtime, &rep)
	})
	return rep, err
}

func (in *Installer) installLocked(ctx context.Context, s manifest.Script, runtime *wine.Runtime, rep *Report) error {
	log := in.log().With(zap.String("install", rep.InstallID))
	cacheDir := filepath.Join(in.Config.Dirs.StagingDir(), rep.InstallID)
	defer func() {
		if err := os.RemoveAll(cacheDir); err != nil {
			log.Warn("cache cleanup failed", zap.Error(err))
		}
	}()
	if err := os.MkdirAll(rep.Root, 0o755); err != nil {
		return err
	}

	j := journal{path: rep.Journal, id: rep.InstallID, now: in.now, log: log}
	j.start(s, rep.Root)

	stager := staging.Stager{
		Fetcher:     in.Fetcher,
		Dir:         cacheDir,
		MemoryLimit: in.Config.MemoryLimit,
		Concurrency: in.Config.Concurrency,
		Logger:      log,
		Redactor:    in.redactor(),
	}
	if len(s.Files) > 0 && in.Fetcher == nil {
		return fmt.Errorf("%w: no fetcher configured", ErrStaging)
	}
	files, err := stager.Stage(ctx, s.Files)
	if err != nil {
		j.finish(executor.Outcome{}, err)
		return fmt.Errorf("%w: %w", ErrStaging, err)
	}
	defer func() {
		if err := files.Release(); err != nil {
			log.Warn("release staged files", zap.Error(err))
		}
	}()
	rep.Staged = len(files.Files())

	x := executor.New(executor.Env{
		Root:      rep.Root,
		CacheDir:  cacheDir,
		Files:     files,
		Process:   in.Process,
		Prompter:  in.Prompter,
		Extractor: in.Extractor,
		Runtime:   runtime,
		Logger:    log,
		Stdout:    in.Stdout,
		Stderr:    in.Stderr,
		OnStep:    j.step,
	})
	out, err := x.Run(ctx, s)
	rep.Outcome = out
	j.finish(out, err)
	return err
}
