package doctor

import (
	"net/url"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/marcohefti/polecat/internal/config"
	"github.com/marcohefti/polecat/internal/wine"
)

type Check struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

type Result struct {
	OK     bool        `json:"ok"`
	Dirs   config.Dirs `json:"dirs"`
	Checks []Check     `json:"checks"`
}

type Options struct {
	Getenv   func(string) string
	LookPath func(string) (string, error)
}

func Run(opts Options) Result {
	if opts.Getenv == nil {
		opts.Getenv = os.Getenv
	}
	if opts.LookPath == nil {
		opts.LookPath = exec.LookPath
	}
	dirs := config.ResolveDirs(opts.Getenv)
	res := Result{OK: true, Dirs: dirs}
	add := func(c Check) {
		if !c.OK {
			res.OK = false
		}
		res.Checks = append(res.Checks, c)
	}

	// Config parse: if present, it must parse.
	m, err := config.LoadMerged(opts.Getenv, config.Flags{})
	switch {
	case err != nil:
		add(Check{ID: "config", OK: false, Message: err.Error()})
	case m.ConfigPath == "":
		add(Check{ID: "config", OK: true, Message: "missing (ok)"})
	default:
		add(Check{ID: "config", OK: true, Message: m.ConfigPath})
	}
	if err == nil {
		if u, perr := url.Parse(m.APIURL); perr != nil || u.Host == "" {
			add(Check{ID: "api_url", OK: false, Message: "invalid api url " + m.APIURL})
		} else {
			add(Check{ID: "api_url", OK: true, Message: m.APIURL})
		}
	}

	// Write access: create and remove a temp file under data and cache.
	for _, d := range []struct{ id, dir string }{{"data_dir", dirs.Data}, {"cache_dir", dirs.Cache}} {
		add(writeCheck(d.id, d.dir))
	}

	rt, err := wine.Locator{RuntimesDir: dirs.RuntimesDir(), LookPath: opts.LookPath}.Locate("")
	if err != nil {
		add(Check{ID: "wine", OK: true, Message: "wine not found (ok unless installers use tasks)"})
	} else {
		add(Check{ID: "wine", OK: true, Message: rt.Wine + " (" + rt.Source + ")"})
	}
	if p, err := opts.LookPath("winetricks"); err == nil {
		add(Check{ID: "winetricks", OK: true, Message: p})
	} else {
		add(Check{ID: "winetricks", OK: true, Message: "winetricks not on PATH (ok unless installers use winetricks tasks)"})
	}
	return res
}

func writeCheck(id, dir string) Check {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Check{ID: id, OK: false, Message: err.Error()}
	}
	tmp := filepath.Join(dir, ".doctor.tmp")
	if err := os.WriteFile(tmp, []byte("ok\n"), 0o644); err != nil {
		return Check{ID: id, OK: false, Message: err.Error()}
	}
	_ = os.Remove(tmp)
	return Check{ID: id, OK: true, Message: dir}
}
