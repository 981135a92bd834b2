// Package process spawns subprocesses for install directives and captures a
// bounded preview of their output.
package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSpawn marks failures to start a process at all (missing binary,
// permission denied), as opposed to a process that ran and exited non-zero.
var ErrSpawn = errors.New("spawn failed")

const DefaultMaxPreviewBytes = 16 << 10

// Spec describes one process invocation.
type Spec struct {
	Argv []string
	Dir  string
	// Env is appended to the parent environment when non-nil.
	Env    []string
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

type Result struct {
	ExitCode   int
	DurationMs int64

	OutBytes   int64
	ErrBytes   int64
	OutPreview string
	ErrPreview string

	OutTruncated bool
	ErrTruncated bool
}

// ExitError reports a process that ran to completion with a non-zero status.
type ExitError struct {
	Argv   []string
	Result Result
}

func (e *ExitError) Error() string {
	name := ""
	if len(e.Argv) > 0 {
		name = e.Argv[0]
	}
	return fmt.Sprintf("%s exited with status %d", name, e.Result.ExitCode)
}

// Spawner is what install directives use to run commands.
type Spawner interface {
	Run(ctx context.Context, spec Spec) (Result, error)
}

type Runner struct {
	MaxPreviewBytes int
	Logger          *zap.Logger
	// Environ returns the base environment; nil means the parent environment.
	Environ func() []string
}

type boundedCapture struct {
	max int
	mu  sync.Mutex
	buf bytes.Buffer

	total     int64
	truncated bool
}

func (c *boundedCapture) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.total += int64(len(p))

	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}

	if len(p) > remaining {
		_, _ = c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}

	_, _ = c.buf.Write(p)
	return len(p), nil
}

func (c *boundedCapture) snapshot() (preview string, bytesTotal int64, truncated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf.String(), c.total, c.truncated
}

// Run starts spec and waits for it. A non-zero exit returns the Result along
// with an *ExitError; start failures wrap ErrSpawn.
func (r Runner) Run(ctx context.Context, spec Spec) (Result, error) {
	if len(spec.Argv) == 0 {
		return Result{}, fmt.Errorf("%w: missing command argv", ErrSpawn)
	}
	max := r.MaxPreviewBytes
	if max <= 0 {
		max = DefaultMaxPreviewBytes
	}
	log := r.Logger
	if log == nil {
		log = zap.NewNop()
	}

	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Stdin = spec.Stdin
	if spec.Env != nil {
		base := r.Environ
		if base == nil {
			cmd.Env = append(cmd.Environ(), spec.Env...)
		} else {
			cmd.Env = append(base(), spec.Env...)
		}
	}

	outCap := &boundedCapture{max: max}
	errCap := &boundedCapture{max: max}
	cmd.Stdout = multiWriter(spec.Stdout, outCap)
	cmd.Stderr = multiWriter(spec.Stderr, errCap)

	log.Debug("spawn", zap.Strings("argv", spec.Argv), zap.String("dir", spec.Dir))
	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("%w: %s: %w", ErrSpawn, spec.Argv[0], err)
	}
	waitErr := cmd.Wait()

	outPreview, outBytes, outTrunc := outCap.snapshot()
	errPreview, errBytes, errTrunc := errCap.snapshot()
	res := Result{
		DurationMs:   time.Since(start).Milliseconds(),
		OutBytes:     outBytes,
		ErrBytes:     errBytes,
		OutPreview:   outPreview,
		ErrPreview:   errPreview,
		OutTruncated: outTrunc,
		ErrTruncated: errTrunc,
	}
	if waitErr != nil {
		var ee *exec.ExitError
		if !errors.As(waitErr, &ee) {
			return res, waitErr
		}
		res.ExitCode = ee.ExitCode()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		log.Debug("exit", zap.String("cmd", spec.Argv[0]), zap.Int("code", res.ExitCode))
		return res, &ExitError{Argv: spec.Argv, Result: res}
	}
	log.Debug("exit", zap.String("cmd", spec.Argv[0]), zap.Int("code", 0), zap.Int64("ms", res.DurationMs))
	return res, nil
}

func multiWriter(a io.Writer, c io.Writer) io.Writer {
	if a == nil {
		return c
	}
	return io.MultiWriter(a, c)
}
