package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/marcohefti/polecat/internal/codes"
	"github.com/marcohefti/polecat/internal/config"
	"github.com/marcohefti/polecat/internal/contract"
	"github.com/marcohefti/polecat/internal/logging"
	"github.com/marcohefti/polecat/internal/redact"
)

type Runner struct {
	Version string
	Now     func() time.Time
	Stdin   io.Reader
	Stdout  io.Writer
	Stderr  io.Writer

	// Getenv and LookPath default to the process environment.
	Getenv   func(string) string
	LookPath func(string) (string, error)
}

// global holds the flags accepted before the subcommand.
type global struct {
	verbose  bool
	logLevel string
	apiURL   string
}

func (r Runner) Run(args []string) int {
	if r.Stdin == nil {
		r.Stdin = os.Stdin
	}
	if r.Stdout == nil {
		r.Stdout = os.Stdout
	}
	if r.Stderr == nil {
		r.Stderr = os.Stderr
	}
	if r.Now == nil {
		r.Now = time.Now
	}
	if r.Getenv == nil {
		r.Getenv = os.Getenv
	}
	if r.LookPath == nil {
		r.LookPath = exec.LookPath
	}

	fs := flag.NewFlagSet("polecat", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	var g global
	fs.BoolVar(&g.verbose, "verbose", false, "debug logging")
	fs.StringVar(&g.logLevel, "log-level", "", "log level (debug|info|warn|error)")
	fs.StringVar(&g.apiURL, "api-url", "", "installer API base url")
	help := fs.Bool("help", false, "show help")
	if err := fs.Parse(args); err != nil {
		printRootHelp(r.Stderr)
		return r.failUsage("invalid global flags")
	}
	args = fs.Args()

	if *help || len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		printRootHelp(r.Stdout)
		return 0
	}

	switch args[0] {
	case "lutris":
		return r.runLutris(g, args[1:])
	case "info":
		return r.runInfo(g, args[1:])
	case "doctor":
		return r.runDoctor(args[1:])
	case "gc":
		return r.runGC(args[1:])
	case "contract":
		return r.runContract(args[1:])
	case "version":
		fmt.Fprintf(r.Stdout, "%s\n", r.Version)
		return 0
	default:
		fmt.Fprintf(r.Stderr, "%s: unknown command %q\n", codes.Usage, args[0])
		printRootHelp(r.Stderr)
		return 2
	}
}

func (r Runner) runContract(args []string) int {
	fs := flag.NewFlagSet("contract", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil {
		return r.failUsage("contract: invalid flags")
	}
	if *help {
		printContractHelp(r.Stdout)
		return 0
	}
	if !*jsonOut {
		printContractHelp(r.Stderr)
		return r.failUsage("contract: require --json for stable output")
	}
	return r.writeJSON(contract.Build(r.Version))
}

// env resolves merged config and the logger for commands that touch the
// network or the filesystem.
type env struct {
	cfg      config.Merged
	log      *zap.Logger
	redactor *redact.Redactor
}

func (r Runner) loadEnv(g global) (env, int) {
	cfg, err := config.LoadMerged(r.Getenv, config.Flags{APIURL: g.apiURL, LogLevel: g.logLevel, Verbose: g.verbose})
	if err != nil {
		return env{}, r.fail(codes.Config, err.Error())
	}
	log, err := logging.New(cfg.LogLevel, r.Stderr)
	if err != nil {
		return env{}, r.fail(codes.Config, err.Error())
	}
	rules := make([]redact.Rule, 0, len(cfg.RedactionRules))
	for _, rule := range cfg.RedactionRules {
		rules = append(rules, redact.Rule{ID: rule.ID, Regex: rule.Regex, Replacement: rule.Replacement})
	}
	return env{cfg: cfg, log: log, redactor: redact.New(rules...)}, 0
}

func (r Runner) userAgent() string { return "polecat/" + r.Version }

// signalContext is canceled on interrupt so subprocesses and downloads stop.
func (r Runner) signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func (r Runner) writeJSON(v any) int {
	enc := json.NewEncoder(r.Stdout)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(r.Stderr, "%s: failed to encode json\n", codes.IO)
		return 1
	}
	return 0
}

func (r Runner) failUsage(msg string) int {
	fmt.Fprintf(r.Stderr, "%s: %s\n", codes.Usage, msg)
	return 2
}

func (r Runner) fail(code, msg string) int {
	fmt.Fprintf(r.Stderr, "%s: %s\n", code, msg)
	if code == codes.Usage {
		return 2
	}
	return 1
}

func printRootHelp(w io.Writer) {
	fmt.Fprint(w, `polecat (Lutris installer-script runner)

Usage:
  polecat [--verbose] [--log-level warn] [--api-url URL] <command> ...

Commands:
  lutris info <name>      Fetch an installer and describe its script.
  lutris install <name>   Confirm, download files and run the install directives.
  info                    Print version, user agent and resolved directories.
  doctor                  Check directories, config and wine availability.
  gc                      Prune old install journals and orphaned staging dirs.
  contract --json         Print the machine-readable surface.
  version                 Print version.
`)
}

func printContractHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  polecat contract --json
`)
}
