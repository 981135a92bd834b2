package process

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

func helperSpec(args ...string) Spec {
	argv := append([]string{os.Args[0], "-test.run=TestHelperProcess", "--"}, args...)
	return Spec{Argv: argv, Env: []string{"GO_WANT_HELPER_PROCESS=1"}}
}

func TestRun_CapturesAndPassesThrough(t *testing.T) {
	var stdout bytes.Buffer
	spec := helperSpec("stdout=hello\n", "stderr=oops\n", "exit=0")
	spec.Stdout = &stdout

	res, err := Runner{}.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if stdout.String() != "hello\n" {
		t.Fatalf("unexpected passthrough stdout: %q", stdout.String())
	}
	if res.OutPreview != "hello\n" || res.ErrPreview != "oops\n" {
		t.Fatalf("unexpected previews: %+v", res)
	}
}

func TestRun_NonZeroExitIsExitError(t *testing.T) {
	res, err := Runner{}.Run(context.Background(), helperSpec("exit=7"))
	var ee *ExitError
	if !errors.As(err, &ee) {
		t.Fatalf("expected *ExitError, got %v", err)
	}
	if res.ExitCode != 7 || ee.Result.ExitCode != 7 {
		t.Fatalf("expected exit 7, got %d", res.ExitCode)
	}
	if errors.Is(err, ErrSpawn) {
		t.Fatalf("exit error must not be a spawn error")
	}
}

func TestRun_MissingBinaryIsSpawnError(t *testing.T) {
	_, err := Runner{}.Run(context.Background(), Spec{Argv: []string{filepath.Join(t.TempDir(), "nope")}})
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn, got %v", err)
	}
	_, err = Runner{}.Run(context.Background(), Spec{})
	if !errors.Is(err, ErrSpawn) {
		t.Fatalf("expected ErrSpawn for empty argv, got %v", err)
	}
}

func TestRun_PreviewIsBounded(t *testing.T) {
	payload := strings.Repeat("x", 100)
	res, err := Runner{MaxPreviewBytes: 10}.Run(context.Background(), helperSpec("stdout="+payload))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(res.OutPreview) != 10 || !res.OutTruncated || res.OutBytes != 100 {
		t.Fatalf("unexpected bounded capture: %+v", res)
	}
}

func TestRun_DirAndEnv(t *testing.T) {
	dir := t.TempDir()
	spec := helperSpec("pwd", "env=POLECAT_PROBE")
	spec.Dir = dir
	spec.Env = append(spec.Env, "POLECAT_PROBE=on")
	res, err := Runner{}.Run(context.Background(), spec)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	want, _ := filepath.EvalSymlinks(dir)
	lines := strings.Split(strings.TrimSpace(res.OutPreview), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected output %q", res.OutPreview)
	}
	got, _ := filepath.EvalSymlinks(lines[0])
	if got != want || lines[1] != "on" {
		t.Fatalf("unexpected dir/env: %q", res.OutPreview)
	}
}

func TestHelperProcess(t *testing.T) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") != "1" {
		return
	}
	// This is executed as a subprocess of the test binary.
	args := os.Args
	idx := 0
	for i := range args {
		if args[i] == "--" {
			idx = i + 1
			break
		}
	}
	exit := 0
	for _, a := range args[idx:] {
		switch {
		case strings.HasPrefix(a, "stdout="):
			_, _ = os.Stdout.WriteString(strings.TrimPrefix(a, "stdout="))
		case strings.HasPrefix(a, "stderr="):
			_, _ = os.Stderr.WriteString(strings.TrimPrefix(a, "stderr="))
		case strings.HasPrefix(a, "env="):
			_, _ = os.Stdout.WriteString(os.Getenv(strings.TrimPrefix(a, "env=")) + "\n")
		case a == "pwd":
			wd, _ := os.Getwd()
			_, _ = os.Stdout.WriteString(wd + "\n")
		case strings.HasPrefix(a, "exit="):
			exit, _ = strconv.Atoi(strings.TrimPrefix(a, "exit="))
		}
	}
	os.Exit(exit)
}
