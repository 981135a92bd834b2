package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

const (
	FileSchemaV1 = 1

	DefaultAPIURL      = "https://lutris.net/api/installers/"
	DefaultLogLevel    = "warn"
	DefaultConcurrency = 4
	DefaultMemoryLimit = 64 << 20
	DefaultTimeout     = 30 * time.Minute
	DefaultRetries     = 3
)

// FileV1 is the on-disk config (<config dir>/config.yaml). Every field is optional.
type FileV1 struct {
	SchemaVersion int    `yaml:"schemaVersion"`
	APIURL        string `yaml:"apiUrl,omitempty"`
	LogLevel      string `yaml:"logLevel,omitempty"`
	Download      struct {
		Concurrency int    `yaml:"concurrency,omitempty"`
		Retries     *int   `yaml:"retries,omitempty"`
		Timeout     string `yaml:"timeout,omitempty"`
	} `yaml:"download,omitempty"`
	Staging struct {
		// MemoryLimit accepts human sizes ("64MiB", "512kB").
		MemoryLimit string `yaml:"memoryLimit,omitempty"`
	} `yaml:"staging,omitempty"`
	Redaction RedactionConfigV1 `yaml:"redaction,omitempty"`
}

// Flags are the CLI-level overrides; zero values mean "not set".
type Flags struct {
	APIURL   string
	LogLevel string
	Verbose  bool
}

type Merged struct {
	Dirs Dirs

	APIURL    string
	APISource string

	LogLevel    string
	Concurrency int
	Retries     int
	Timeout     time.Duration
	MemoryLimit int64

	RedactionRules []RedactionRuleV1

	// ConfigPath is set when a config file was found and loaded.
	ConfigPath string
}

// LoadMerged resolves settings with precedence:
// 1) CLI flags
// 2) env vars (POLECAT_*)
// 3) config file
// 4) defaults
func LoadMerged(getenv func(string) string, flags Flags) (Merged, error) {
	if getenv == nil {
		getenv = os.Getenv
	}
	res := Merged{
		Dirs:        ResolveDirs(getenv),
		APIURL:      DefaultAPIURL,
		APISource:   "default",
		LogLevel:    DefaultLogLevel,
		Concurrency: DefaultConcurrency,
		Retries:     DefaultRetries,
		Timeout:     DefaultTimeout,
		MemoryLimit: DefaultMemoryLimit,
	}

	path := res.Dirs.ConfigFile()
	if p := strings.TrimSpace(getenv("POLECAT_CONFIG")); p != "" {
		path = p
	}
	cfg, ok, err := LoadFile(path)
	if err != nil {
		return Merged{}, err
	}
	if ok {
		res.ConfigPath = path
		if err := res.applyFile(cfg, path); err != nil {
			return Merged{}, err
		}
	}
	if err := res.applyEnv(getenv); err != nil {
		return Merged{}, err
	}

	if v := strings.TrimSpace(flags.APIURL); v != "" {
		res.APIURL = v
		res.APISource = "flag"
	}
	if v := strings.TrimSpace(flags.LogLevel); v != "" {
		res.LogLevel = v
	}
	if flags.Verbose {
		res.LogLevel = "debug"
	}
	return res, nil
}

func (m *Merged) applyFile(cfg FileV1, path string) error {
	if v := strings.TrimSpace(cfg.APIURL); v != "" {
		m.APIURL = v
		m.APISource = path
	}
	if v := strings.TrimSpace(cfg.LogLevel); v != "" {
		m.LogLevel = v
	}
	if cfg.Download.Concurrency < 0 {
		return fmt.Errorf("config %s: download.concurrency must be >= 0", path)
	}
	if cfg.Download.Concurrency > 0 {
		m.Concurrency = cfg.Download.Concurrency
	}
	if cfg.Download.Retries != nil {
		if *cfg.Download.Retries < 0 {
			return fmt.Errorf("config %s: download.retries must be >= 0", path)
		}
		m.Retries = *cfg.Download.Retries
	}
	if v := strings.TrimSpace(cfg.Download.Timeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return fmt.Errorf("config %s: invalid download.timeout %q", path, v)
		}
		m.Timeout = d
	}
	if v := strings.TrimSpace(cfg.Staging.MemoryLimit); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("config %s: invalid staging.memoryLimit: %w", path, err)
		}
		m.MemoryLimit = int64(n)
	}
	rules, err := NormalizeRedactionRules(cfg.Redaction.ExtraRules)
	if err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	m.RedactionRules = rules
	return nil
}

func (m *Merged) applyEnv(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("POLECAT_API_URL")); v != "" {
		m.APIURL = v
		m.APISource = "env:POLECAT_API_URL"
	}
	if v := strings.TrimSpace(getenv("POLECAT_LOG_LEVEL")); v != "" {
		m.LogLevel = v
	}
	if v := strings.TrimSpace(getenv("POLECAT_CONCURRENCY")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("invalid POLECAT_CONCURRENCY %q (expected integer >= 1)", v)
		}
		m.Concurrency = n
	}
	if v := strings.TrimSpace(getenv("POLECAT_STAGING_MEMORY_LIMIT")); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("invalid POLECAT_STAGING_MEMORY_LIMIT %q: %w", v, err)
		}
		m.MemoryLimit = int64(n)
	}
	return nil
}

// LoadFile reads a config file. A missing file is not an error (ok=false).
func LoadFile(path string) (FileV1, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return FileV1{}, false, nil
		}
		return FileV1{}, false, err
	}
	var cfg FileV1
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return FileV1{}, false, fmt.Errorf("invalid config yaml %s: %w", path, err)
	}
	if cfg.SchemaVersion == 0 {
		// Allow omission as v1 for early ergonomics.
		cfg.SchemaVersion = FileSchemaV1
	}
	if cfg.SchemaVersion != FileSchemaV1 {
		return FileV1{}, false, fmt.Errorf("config %s: unsupported schemaVersion=%d", path, cfg.SchemaVersion)
	}
	return cfg, true, nil
}
