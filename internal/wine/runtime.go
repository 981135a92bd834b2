// Package wine locates a wine runtime and builds the process invocations used
// by installer tasks.
package wine

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/marcohefti/polecat/internal/process"
)

var ErrNotFound = errors.New("wine runtime not found")

var reVersion = regexp.MustCompile(`[0-9]+(\.[0-9]+)+`)

type Runtime struct {
	Wine       string `json:"wine"`
	Wineserver string `json:"wineserver"`
	// Winetricks is optional; only winetricks tasks need it.
	Winetricks string `json:"winetricks,omitempty"`
	Version    string `json:"version,omitempty"`
	// Source is "local" for runtimes under the data dir, "path" otherwise.
	Source string `json:"source"`
}

type Locator struct {
	// RuntimesDir holds one directory per runtime, each with a bin/ subdir.
	RuntimesDir string
	LookPath    func(string) (string, error)
}

// Locate picks a runtime. want (the manifest's wine version) matches a local
// runtime by directory name or by parsed version; otherwise the newest local
// runtime wins, then wine on PATH.
func (l Locator) Locate(want string) (Runtime, error) {
	lookPath := l.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	tricks, _ := lookPath("winetricks")

	locals := l.localRuntimes()
	if rt, ok := pick(locals, strings.TrimSpace(want)); ok {
		rt.Winetricks = tricks
		return rt, nil
	}

	wine, err := lookPath("wine")
	if err != nil {
		if want != "" {
			return Runtime{}, fmt.Errorf("%w: no local runtime matches %q and wine is not on PATH", ErrNotFound, want)
		}
		return Runtime{}, fmt.Errorf("%w: wine is not on PATH", ErrNotFound)
	}
	server, err := lookPath("wineserver")
	if err != nil {
		server = filepath.Join(filepath.Dir(wine), "wineserver")
	}
	return Runtime{Wine: wine, Wineserver: server, Winetricks: tricks, Source: "path"}, nil
}

type localRuntime struct {
	name    string
	version *version.Version
	rt      Runtime
}

func (l Locator) localRuntimes() []localRuntime {
	if l.RuntimesDir == "" {
		return nil
	}
	entries, err := os.ReadDir(l.RuntimesDir)
	if err != nil {
		return nil
	}
	var out []localRuntime
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		bin := filepath.Join(l.RuntimesDir, e.Name(), "bin")
		wine := filepath.Join(bin, "wine")
		if st, err := os.Stat(wine); err != nil || st.IsDir() {
			continue
		}
		lr := localRuntime{
			name: e.Name(),
			rt:   Runtime{Wine: wine, Wineserver: filepath.Join(bin, "wineserver"), Version: e.Name(), Source: "local"},
		}
		if m := reVersion.FindString(e.Name()); m != "" {
			lr.version, _ = version.NewVersion(m)
		}
		out = append(out, lr)
	}
	// Newest first; unversioned names sort last, alphabetically.
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].version, out[j].version
		switch {
		case a != nil && b != nil && !a.Equal(b):
			return a.GreaterThan(b)
		case a != nil && b == nil:
			return true
		case a == nil && b != nil:
			return false
		}
		return out[i].name < out[j].name
	})
	return out
}

func pick(locals []localRuntime, want string) (Runtime, bool) {
	if len(locals) == 0 {
		return Runtime{}, false
	}
	if want == "" {
		return locals[0].rt, true
	}
	for _, lr := range locals {
		if lr.name == want {
			return lr.rt, true
		}
	}
	if m := reVersion.FindString(want); m != "" {
		if wv, err := version.NewVersion(m); err == nil {
			for _, lr := range locals {
				if lr.version != nil && lr.version.Equal(wv) {
					return lr.rt, true
				}
			}
		}
	}
	return Runtime{}, false
}

func prefixEnv(prefix string) []string {
	return []string{"WINEPREFIX=" + prefix, "WINEDEBUG=-all"}
}

// Exec runs a Windows executable inside prefix.
func (r Runtime) Exec(prefix, exe string, args ...string) process.Spec {
	argv := append([]string{r.Wine, exe}, args...)
	return process.Spec{Argv: argv, Env: prefixEnv(prefix)}
}

// WinetricksSpec installs the space-separated verbs in apps, unattended.
func (r Runtime) WinetricksSpec(prefix, apps string) (process.Spec, error) {
	if r.Winetricks == "" {
		return process.Spec{}, errors.New("winetricks is not on PATH")
	}
	argv := append([]string{r.Winetricks, "-q"}, strings.Fields(apps)...)
	env := append(prefixEnv(prefix), "WINE="+r.Wine, "WINESERVER="+r.Wineserver)
	return process.Spec{Argv: argv, Env: env}, nil
}

// CreatePrefix initializes a new prefix with wineboot.
func (r Runtime) CreatePrefix(prefix string) process.Spec {
	return process.Spec{Argv: []string{r.Wine, "wineboot", "-i"}, Env: prefixEnv(prefix)}
}

// Kill stops every process of prefix.
func (r Runtime) Kill(prefix string) process.Spec {
	return process.Spec{Argv: []string{r.Wineserver, "-k"}, Env: prefixEnv(prefix)}
}

// Regedit silently imports a .reg file.
func (r Runtime) Regedit(prefix, regFile string) process.Spec {
	return process.Spec{Argv: []string{r.Wine, "regedit", "/S", regFile}, Env: prefixEnv(prefix)}
}

// RegFile renders a single REG_SZ value as a regedit import file.
func RegFile(keyPath, name, value string) []byte {
	var b strings.Builder
	b.WriteString("Windows Registry Editor Version 5.00\r\n\r\n")
	b.WriteString("[" + keyPath + "]\r\n")
	b.WriteString(`"` + regEscape(name) + `"="` + regEscape(value) + "\"\r\n")
	return []byte(b.String())
}

func regEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	return strings.ReplaceAll(s, `"`, `\"`)
}
