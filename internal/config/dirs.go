package config

import "path/filepath"

const AppName = "polecat"

// Dirs are the per-user directories the tool reads and writes.
type Dirs struct {
	Config string `json:"config"`
	Data   string `json:"data"`
	Cache  string `json:"cache"`
}

// ResolveDirs derives Dirs from environment lookups only: XDG_*_HOME when set,
// otherwise the XDG defaults under $HOME.
func ResolveDirs(getenv func(string) string) Dirs {
	return Dirs{
		Config: xdgDir(getenv, "XDG_CONFIG_HOME", ".config"),
		Data:   xdgDir(getenv, "XDG_DATA_HOME", filepath.Join(".local", "share")),
		Cache:  xdgDir(getenv, "XDG_CACHE_HOME", ".cache"),
	}
}

func xdgDir(getenv func(string) string, envVar string, homeRel string) string {
	if v := getenv(envVar); v != "" && filepath.IsAbs(v) {
		return filepath.Join(v, AppName)
	}
	return filepath.Join(getenv("HOME"), homeRel, AppName)
}

// ConfigFile is the path of the YAML config file inside d.Config.
func (d Dirs) ConfigFile() string { return filepath.Join(d.Config, "config.yaml") }

// RuntimesDir holds locally installed compatibility runtimes (one dir per version).
func (d Dirs) RuntimesDir() string { return filepath.Join(d.Data, "runners", "wine") }

// InstallsDir holds per-install journals.
func (d Dirs) InstallsDir() string { return filepath.Join(d.Data, "installs") }

// LocksDir holds install-root locks.
func (d Dirs) LocksDir() string { return filepath.Join(d.Cache, "locks") }

// StagingDir holds per-install scratch space for staged files.
func (d Dirs) StagingDir() string { return filepath.Join(d.Cache, "staging") }
