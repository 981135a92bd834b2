package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/marcohefti/polecat/internal/codes"
	"github.com/marcohefti/polecat/internal/config"
	"github.com/marcohefti/polecat/internal/gc"
)

func (r Runner) runGC(args []string) int {
	fs := flag.NewFlagSet("gc", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	maxAgeDays := fs.Int("max-age-days", 90, "drop install journals older than this (0 keeps all)")
	maxBytes := fs.String("max-bytes", "", "drop the oldest journals until the total fits (e.g. 50MiB)")
	staleAfter := fs.Duration("staging-stale-after", gc.DefaultStagingStaleAfter, "age after which a staging dir counts as orphaned")
	dryRun := fs.Bool("dry-run", false, "report only")
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")

	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return r.failUsage("gc: invalid flags")
	}
	if *help {
		printGCHelp(r.Stdout)
		return 0
	}
	if *maxAgeDays < 0 {
		return r.failUsage("gc: --max-age-days must be >= 0")
	}
	var limit int64
	if v := strings.TrimSpace(*maxBytes); v != "" {
		n, err := humanize.ParseBytes(v)
		if err != nil {
			return r.failUsage(fmt.Sprintf("gc: invalid --max-bytes %q", v))
		}
		limit = int64(n)
	}

	res, err := gc.Run(gc.Opts{
		Dirs:              config.ResolveDirs(r.Getenv),
		Now:               r.Now(),
		MaxAgeDays:        *maxAgeDays,
		MaxTotalBytes:     limit,
		StagingStaleAfter: *staleAfter,
		DryRun:            *dryRun,
	})
	if err != nil {
		return r.fail(codes.IO, err.Error())
	}
	if *jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
	} else {
		verb := "removed"
		if res.DryRun {
			verb = "would remove"
		}
		for _, e := range res.Deleted {
			fmt.Fprintf(r.Stdout, "%s %s %s (%s)\n", verb, e.Kind, e.InstallID, humanize.IBytes(uint64(e.Bytes)))
		}
		fmt.Fprintf(r.Stdout, "%s -> %s\n", humanize.IBytes(uint64(res.TotalBefore)), humanize.IBytes(uint64(res.TotalAfter)))
	}
	if !res.OK {
		for _, msg := range res.Errors {
			fmt.Fprintf(r.Stderr, "%s: %s\n", codes.IO, msg)
		}
		return 1
	}
	return 0
}

func printGCHelp(w io.Writer) {
	fmt.Fprint(w, `Usage:
  polecat gc [--max-age-days 90] [--max-bytes 50MiB] [--staging-stale-after 24h] [--dry-run] [--json]
`)
}
