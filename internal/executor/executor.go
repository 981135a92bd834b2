// Package executor applies a parsed installer script to the filesystem, one
// directive at a time, stopping at the first failure.
package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/marcohefti/polecat/internal/archive"
	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/process"
	"github.com/marcohefti/polecat/internal/prompt"
	"github.com/marcohefti/polecat/internal/staging"
	"github.com/marcohefti/polecat/internal/wine"
)

var (
	// ErrNotExecutable is returned for scripts whose Status is not OK.
	ErrNotExecutable = errors.New("script is not executable")
	// ErrPathEscape is a directive path outside every allowed root.
	ErrPathEscape = errors.New("path escapes install root")
	// ErrNoTarget is a chmodx without an explicit target and no file produced before it.
	ErrNoTarget = errors.New("no target path")
	// ErrNestedTarget is a move, copy or merge whose destination lies inside its source.
	ErrNestedTarget = errors.New("destination inside source")
	// ErrNoRuntime is a task directive with no wine runtime available.
	ErrNoRuntime = errors.New("no wine runtime available")
)

type Prompter interface {
	Choose(ctx context.Context, m prompt.Menu) (string, error)
	InsertDisc(ctx context.Context, requires string) (string, error)
}

type Extractor interface {
	Extract(ctx context.Context, name string, r io.Reader, dest string) (archive.Result, error)
}

type Files interface {
	Lookup(name string) (staging.File, bool)
}

type Env struct {
	// Root is the absolute install root ($GAMEDIR).
	Root string
	// CacheDir is per-install scratch space ($CACHE).
	CacheDir string

	Files     Files
	Process   process.Spawner
	Prompter  Prompter
	Extractor Extractor
	// Runtime is nil when the script has no tasks or no runtime was found.
	Runtime *wine.Runtime

	Logger *zap.Logger
	Stdout io.Writer
	Stderr io.Writer

	// OnStep observes every directive after it ran, was skipped or failed.
	OnStep func(Record)
}

// Record is the journal entry for one directive.
type Record struct {
	Step       int                 `json:"step"`
	Command    manifest.Command    `json:"command"`
	Task       manifest.Task       `json:"task,omitempty"`
	Arguments  []string            `json:"arguments"`
	Result     string              `json:"result"`
	Path       string              `json:"path,omitempty"`
	Error      string              `json:"error,omitempty"`
	DurationMs int64               `json:"durationMs"`
	Keyword    string              `json:"keyword,omitempty"`
	Directive  *manifest.Directive `json:"-"`
}

const (
	ResultApplied = "applied"
	ResultSkipped = "skipped"
	ResultFailed  = "failed"
)

// Diagnostic is a directive that was not executed but did not stop the run.
type Diagnostic struct {
	Index     int                `json:"index"`
	Directive manifest.Directive `json:"directive"`
	Message   string             `json:"message"`
}

// StepError is the directive that stopped the run.
type StepError struct {
	Index     int
	Directive manifest.Directive
	Err       error
}

// Step is the 1-based step number shown to users.
func (e *StepError) Step() int { return e.Index + 1 }

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) failed: %v", e.Step(), describe(e.Directive), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

type Outcome struct {
	Applied     int
	Failure     *StepError
	Diagnostics []Diagnostic
}

// Remaining is the number of directives never attempted after a failure.
func (o Outcome) Remaining(total int) int {
	if o.Failure == nil {
		return 0
	}
	return total - o.Failure.Index - 1
}

type Executor struct {
	env Env
	log *zap.Logger

	vars     map[string]string
	lastPath string
	// stepPath is what the current directive produced, if anything.
	stepPath string
	prefix   string
	// materialized caches staged files already written out for execution.
	materialized map[string]string
}

func New(env Env) *Executor {
	log := env.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Executor{
		env:          env,
		log:          log,
		vars:         map[string]string{"GAMEDIR": env.Root, "CACHE": env.CacheDir},
		prefix:       env.Root,
		materialized: map[string]string{},
	}
}

// Run executes the directives of s in order. Unknown or defective directives
// become diagnostics. The first failing directive stops the run; nothing done
// before it is undone. A failure is returned both in Outcome and as a
// *StepError.
func (x *Executor) Run(ctx context.Context, s manifest.Script) (Outcome, error) {
	if !s.Executable() {
		return Outcome{}, fmt.Errorf("%w: status %s", ErrNotExecutable, s.Status)
	}

	var out Outcome
	for i, d := range s.Directives {
		if err := ctx.Err(); err != nil {
			out.Failure = &StepError{Index: i, Directive: d, Err: err}
			x.record(i, d, ResultFailed, "", err, 0)
			return out, out.Failure
		}
		if !d.Executable() {
			msg := d.Problem
			if msg == "" {
				msg = "unknown directive"
			}
			out.Diagnostics = append(out.Diagnostics, Diagnostic{Index: i, Directive: d, Message: msg})
			x.log.Info("skipping directive", zap.Int("step", i+1), zap.String("keyword", d.Keyword), zap.String("reason", msg))
			x.record(i, d, ResultSkipped, "", errors.New(msg), 0)
			continue
		}

		start := time.Now()
		x.log.Info("step", zap.Int("step", i+1), zap.String("directive", describe(d)))
		x.stepPath = ""
		err := x.apply(ctx, d)
		ms := time.Since(start).Milliseconds()
		if err != nil {
			out.Failure = &StepError{Index: i, Directive: d, Err: err}
			x.record(i, d, ResultFailed, "", err, ms)
			x.log.Info("step failed", zap.Int("step", i+1), zap.Error(err), zap.Int("remaining", len(s.Directives)-i-1))
			return out, out.Failure
		}
		out.Applied++
		x.record(i, d, ResultApplied, x.stepPath, nil, ms)
	}
	return out, nil
}

func (x *Executor) record(i int, d manifest.Directive, result, path string, err error, ms int64) {
	if x.env.OnStep == nil {
		return
	}
	r := Record{
		Step:       i + 1,
		Command:    d.Command,
		Task:       d.Task,
		Arguments:  d.Arguments,
		Result:     result,
		Path:       path,
		DurationMs: ms,
		Keyword:    d.Keyword,
	}
	if err != nil {
		r.Error = err.Error()
	}
	x.env.OnStep(r)
}

func (x *Executor) apply(ctx context.Context, d manifest.Directive) error {
	a := d.Arguments
	switch d.Command {
	case manifest.CommandMove:
		return x.move(a[0], a[1])
	case manifest.CommandMerge:
		return x.merge(a[0], a[1])
	case manifest.CommandExtract:
		return x.extract(ctx, a[0], a[1])
	case manifest.CommandCopy:
		return x.copy(a[0], a[1])
	case manifest.CommandChmodExecutable:
		return x.chmodx(a[0])
	case manifest.CommandExecute:
		return x.execute(ctx, a[0])
	case manifest.CommandWriteFile:
		return x.writeFile(a[0], a[1])
	case manifest.CommandWriteJSON:
		return x.writeJSON(a[0], a[1])
	case manifest.CommandWriteConfig:
		return x.writeConfig(a[0], a[1], a[2], a[3])
	case manifest.CommandInputMenu:
		return x.inputMenu(ctx, a[0], a[1], a[2])
	case manifest.CommandInsertDisc:
		return x.insertDisc(ctx, a[0])
	case manifest.CommandTask:
		return x.task(ctx, d.Task, a)
	}
	return fmt.Errorf("unhandled command %s", d.Command)
}

// produced marks p as the latest path created by a directive.
func (x *Executor) produced(p string) {
	x.lastPath = p
	x.stepPath = p
}

func describe(d manifest.Directive) string {
	if d.Command == manifest.CommandTask {
		return "task " + d.Task.Keyword()
	}
	return d.Command.Keyword()
}
