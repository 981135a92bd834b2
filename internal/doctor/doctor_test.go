package doctor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestRun_ReportsChecks(t *testing.T) {
	home := t.TempDir()
	env := map[string]string{"HOME": home}
	res := Run(Options{
		Getenv:   func(k string) string { return env[k] },
		LookPath: func(name string) (string, error) { return "", errors.New("missing " + name) },
	})
	if !res.OK {
		t.Fatalf("expected ok, got %+v", res.Checks)
	}
	byID := map[string]Check{}
	for _, c := range res.Checks {
		byID[c.ID] = c
	}
	for _, id := range []string{"config", "api_url", "data_dir", "cache_dir", "wine", "winetricks"} {
		if _, ok := byID[id]; !ok {
			t.Fatalf("missing check %s: %+v", id, res.Checks)
		}
	}
	if byID["config"].Message != "missing (ok)" {
		t.Fatalf("unexpected config check: %+v", byID["config"])
	}
	if _, err := os.Stat(filepath.Join(home, ".cache", "polecat")); err != nil {
		t.Fatalf("expected cache dir created: %v", err)
	}
}

func TestRun_BadConfigFails(t *testing.T) {
	cfg := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(cfg, []byte("schemaVersion: [\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	env := map[string]string{"HOME": t.TempDir(), "POLECAT_CONFIG": cfg}
	res := Run(Options{Getenv: func(k string) string { return env[k] }, LookPath: func(string) (string, error) { return "/bin/true", nil }})
	if res.OK {
		t.Fatalf("expected failure for invalid config")
	}
	if res.Checks[0].ID != "config" || res.Checks[0].OK {
		t.Fatalf("unexpected first check: %+v", res.Checks[0])
	}
}
