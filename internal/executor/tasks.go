package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/wine"
)

func (x *Executor) task(ctx context.Context, t manifest.Task, a []string) error {
	rt := x.env.Runtime
	if rt == nil {
		return ErrNoRuntime
	}
	switch t {
	case manifest.TaskWineExec:
		exe, err := x.wineExecutable(a[0])
		if err != nil {
			return err
		}
		return x.spawn(ctx, rt.Exec(x.prefix, exe))
	case manifest.TaskWinetricks:
		prefix := x.prefix
		if a[1] != "" {
			p, err := x.destination(a[1])
			if err != nil {
				return err
			}
			prefix = p
		}
		spec, err := rt.WinetricksSpec(prefix, x.expand(a[0]))
		if err != nil {
			return err
		}
		return x.spawn(ctx, spec)
	case manifest.TaskCreatePrefix:
		p, err := x.destination(a[0])
		if err != nil {
			return err
		}
		if err := os.MkdirAll(p, 0o755); err != nil {
			return err
		}
		if err := x.spawn(ctx, rt.CreatePrefix(p)); err != nil {
			return err
		}
		x.prefix = p
		x.produced(p)
		return nil
	case manifest.TaskWineKill:
		p, err := x.destination(a[0])
		if err != nil {
			return err
		}
		return x.spawn(ctx, rt.Kill(p))
	case manifest.TaskSetRegedit:
		return x.setRegedit(ctx, rt, x.expand(a[0]), x.expand(a[1]), x.expand(a[2]))
	}
	return fmt.Errorf("unhandled task %s", t)
}

func (x *Executor) setRegedit(ctx context.Context, rt *wine.Runtime, path, key, value string) error {
	if err := os.MkdirAll(x.env.CacheDir, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(x.env.CacheDir, "regedit-*.reg")
	if err != nil {
		return err
	}
	reg := f.Name()
	defer os.Remove(reg)
	if _, err := f.Write(wine.RegFile(path, key, value)); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return x.spawn(ctx, rt.Regedit(x.prefix, reg))
}

// wineExecutable is like executable but never falls back to PATH: wine
// resolves bare names inside the prefix itself.
func (x *Executor) wineExecutable(tok string) (string, error) {
	if _, ok := x.staged(tok); ok {
		return x.executable(tok)
	}
	expanded := x.expand(tok)
	if !filepath.IsAbs(expanded) && filepath.Base(expanded) == expanded {
		return expanded, nil
	}
	return x.executable(tok)
}
