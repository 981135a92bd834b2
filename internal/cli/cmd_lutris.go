package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/marcohefti/polecat/internal/archive"
	"github.com/marcohefti/polecat/internal/codes"
	"github.com/marcohefti/polecat/internal/executor"
	"github.com/marcohefti/polecat/internal/fetch"
	"github.com/marcohefti/polecat/internal/installer"
	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/process"
	"github.com/marcohefti/polecat/internal/prompt"
	"github.com/marcohefti/polecat/internal/wine"
)

func (r Runner) runLutris(g global, args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printLutrisHelp(r.Stdout)
		return 0
	}
	switch args[0] {
	case "info":
		return r.runLutrisInfo(g, args[1:])
	case "install":
		return r.runLutrisInstall(g, args[1:])
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown lutris subcommand %q\n", codes.Usage, args[0])
		printLutrisHelp(r.Stderr)
		return 2
	}
}

// parseInterleaved lets flags follow positionals ("info quake --json").
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return pos, nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

// nameArg accepts exactly one installer name, or none when --file is set.
func nameArg(pos []string, file string) (string, bool) {
	switch {
	case len(pos) == 1 && strings.TrimSpace(pos[0]) != "":
		return pos[0], true
	case len(pos) == 0 && file != "":
		return "", true
	}
	return "", false
}

func (r Runner) newInstaller(e env, stdout io.Writer, promptOut io.Writer) *installer.Installer {
	return &installer.Installer{
		Config: e.cfg,
		Fetcher: fetch.New(fetch.Options{
			UserAgent: r.userAgent(),
			Retries:   e.cfg.Retries,
			Timeout:   e.cfg.Timeout,
			Logger:    e.log,
			Redactor:  e.redactor,
		}),
		Prompter:  prompt.NewConsole(r.Stdin, promptOut),
		Process:   process.Runner{Logger: e.log},
		Extractor: archive.Extractor{Logger: e.log},
		Runtimes:  wine.Locator{RuntimesDir: e.cfg.Dirs.RuntimesDir(), LookPath: r.LookPath},
		Redactor:  e.redactor,
		Logger:    e.log,
		Stdout:    stdout,
		Stderr:    r.Stderr,
		Now:       r.Now,
	}
}

func (r Runner) runLutrisInfo(g global, args []string) int {
	fs := flag.NewFlagSet("lutris info", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	file := fs.String("file", "", "read the manifest from a local file instead of the API")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return r.failUsage("lutris info: invalid flags")
	}
	if *help {
		printLutrisInfoHelp(r.Stdout)
		return 0
	}
	name, ok := nameArg(pos, *file)
	if !ok {
		printLutrisInfoHelp(r.Stderr)
		return r.failUsage("lutris info: require exactly one installer name (or --file)")
	}

	e, code := r.loadEnv(g)
	if code != 0 {
		return code
	}
	defer func() { _ = e.log.Sync() }()
	ctx, stop := r.signalContext()
	defer stop()

	in := r.newInstaller(e, r.Stdout, r.Stderr)
	s, loadErr := in.Load(ctx, installer.Request{Name: name, ManifestFile: *file})
	if loadErr != nil && s.Status == manifest.StatusOK {
		return r.fail(errorCode(loadErr, codes.Fetch), e.redactor.Text(loadErr.Error()))
	}
	// Partial scripts are still worth showing; only a missing one has nothing.
	if s.Status != manifest.StatusNoManifest {
		if *jsonOut {
			if code := r.writeJSON(s); code != 0 {
				return code
			}
		} else if err := manifest.Describe(r.Stdout, s); err != nil {
			return r.fail(codes.IO, err.Error())
		}
	}
	if loadErr != nil {
		return r.fail(errorCode(loadErr, codes.Fetch), e.redactor.Text(loadErr.Error()))
	}
	return 0
}

type installJSON struct {
	installer.Report
	OK          bool                  `json:"ok"`
	Applied     int                   `json:"applied"`
	Diagnostics []executor.Diagnostic `json:"diagnostics,omitempty"`
	FailedStep  int                   `json:"failedStep,omitempty"`
	Code        string                `json:"code,omitempty"`
	Error       string                `json:"error,omitempty"`
}

func (r Runner) runLutrisInstall(g global, args []string) int {
	fs := flag.NewFlagSet("lutris install", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	file := fs.String("file", "", "read the manifest from a local file instead of the API")
	dir := fs.String("dir", ".", "install root ($GAMEDIR)")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	jsonOut := fs.Bool("json", false, "print a JSON report")
	help := fs.Bool("help", false, "show help")

	pos, err := parseInterleaved(fs, args)
	if err != nil {
		return r.failUsage("lutris install: invalid flags")
	}
	if *help {
		printLutrisInstallHelp(r.Stdout)
		return 0
	}
	name, ok := nameArg(pos, *file)
	if !ok {
		printLutrisInstallHelp(r.Stderr)
		return r.failUsage("lutris install: require exactly one installer name (or --file)")
	}
	if strings.TrimSpace(*dir) == "" {
		return r.failUsage("lutris install: --dir must not be empty")
	}

	e, code := r.loadEnv(g)
	if code != 0 {
		return code
	}
	defer func() { _ = e.log.Sync() }()
	ctx, stop := r.signalContext()
	defer stop()

	// Keep stdout clean for the JSON report.
	out := r.Stdout
	if *jsonOut {
		out = r.Stderr
	}
	in := r.newInstaller(e, out, out)
	rep, err := in.Install(ctx, installer.Request{Name: name, ManifestFile: *file, Root: *dir, AssumeYes: *yes})

	var errCode string
	if err != nil {
		fallback := codes.IO
		if rep.Root == "" {
			// Install returns an empty report only when the manifest could not be loaded.
			fallback = codes.Fetch
		}
		errCode = errorCode(err, fallback)
	}

	if *jsonOut {
		payload := installJSON{Report: rep, OK: err == nil, Applied: rep.Outcome.Applied, Diagnostics: rep.Outcome.Diagnostics}
		if f := rep.Outcome.Failure; f != nil {
			payload.FailedStep = f.Step()
		}
		if err != nil {
			payload.Code = errCode
			payload.Error = e.redactor.Text(errorMessage(err))
		}
		if code := r.writeJSON(payload); code != 0 {
			return code
		}
		if err != nil {
			return 1
		}
		return 0
	}

	for _, d := range rep.Outcome.Diagnostics {
		kw := d.Directive.Keyword
		if kw == "" {
			kw = d.Directive.Command.Keyword()
		}
		fmt.Fprintf(r.Stderr, "warning: step %d (%s) skipped: %s\n", d.Index+1, kw, d.Message)
	}
	if err != nil {
		return r.fail(errCode, e.redactor.Text(errorMessage(err)))
	}
	fmt.Fprintf(r.Stdout, "Installed %s - %s to %s (%d steps applied)\n", rep.Name, rep.Version, rep.Root, rep.Outcome.Applied)
	return 0
}

func printLutrisHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  polecat lutris info <name> [--file manifest.json] [--json]
  polecat lutris install <name> [--file manifest.json] [--dir .] [--yes] [--json]
`)
}

func printLutrisInfoHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  polecat lutris info <name> [--file manifest.json] [--json]
`)
}

func printLutrisInstallHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  polecat lutris install <name> [--file manifest.json] [--dir .] [--yes] [--json]
`)
}
