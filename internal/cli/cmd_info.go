package cli

import (
	"flag"
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/marcohefti/polecat/internal/codes"
	"github.com/marcohefti/polecat/internal/config"
	"github.com/marcohefti/polecat/internal/doctor"
)

type infoJSON struct {
	Version     string      `json:"version"`
	UserAgent   string      `json:"userAgent"`
	Dirs        config.Dirs `json:"dirs"`
	ConfigFile  string      `json:"configFile"`
	ConfigFound bool        `json:"configFound"`
	APIURL      string      `json:"apiUrl"`
	APISource   string      `json:"apiSource"`
	LogLevel    string      `json:"logLevel"`
	Concurrency int         `json:"concurrency"`
	MemoryLimit int64       `json:"stagingMemoryLimit"`
}

func (r Runner) runInfo(g global, args []string) int {
	fs := flag.NewFlagSet("info", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return r.failUsage("info: invalid flags")
	}
	if *help {
		fmt.Fprint(r.Stdout, "Usage:\n  polecat info [--json]\n")
		return 0
	}

	cfg, err := config.LoadMerged(r.Getenv, config.Flags{APIURL: g.apiURL, LogLevel: g.logLevel, Verbose: g.verbose})
	if err != nil {
		return r.fail(codes.Config, err.Error())
	}
	cfgFile := cfg.ConfigPath
	if cfgFile == "" {
		cfgFile = cfg.Dirs.ConfigFile()
	}
	payload := infoJSON{
		Version:     r.Version,
		UserAgent:   r.userAgent(),
		Dirs:        cfg.Dirs,
		ConfigFile:  cfgFile,
		ConfigFound: cfg.ConfigPath != "",
		APIURL:      cfg.APIURL,
		APISource:   cfg.APISource,
		LogLevel:    cfg.LogLevel,
		Concurrency: cfg.Concurrency,
		MemoryLimit: cfg.MemoryLimit,
	}
	if *jsonOut {
		return r.writeJSON(payload)
	}

	found := "not found"
	if payload.ConfigFound {
		found = "loaded"
	}
	fmt.Fprintf(r.Stdout, "polecat %s\n", payload.Version)
	fmt.Fprintf(r.Stdout, "user agent:  %s\n", payload.UserAgent)
	fmt.Fprintf(r.Stdout, "config:      %s (%s)\n", payload.ConfigFile, found)
	fmt.Fprintf(r.Stdout, "data:        %s\n", payload.Dirs.Data)
	fmt.Fprintf(r.Stdout, "cache:       %s\n", payload.Dirs.Cache)
	fmt.Fprintf(r.Stdout, "api:         %s (%s)\n", payload.APIURL, payload.APISource)
	fmt.Fprintf(r.Stdout, "staging:     %s in memory, %d parallel downloads\n", humanize.IBytes(uint64(payload.MemoryLimit)), payload.Concurrency)
	return 0
}

func (r Runner) runDoctor(args []string) int {
	fs := flag.NewFlagSet("doctor", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	jsonOut := fs.Bool("json", false, "print JSON output")
	help := fs.Bool("help", false, "show help")
	if err := fs.Parse(args); err != nil || fs.NArg() > 0 {
		return r.failUsage("doctor: invalid flags")
	}
	if *help {
		fmt.Fprint(r.Stdout, "Usage:\n  polecat doctor [--json]\n")
		return 0
	}

	res := doctor.Run(doctor.Options{Getenv: r.Getenv, LookPath: r.LookPath})
	if *jsonOut {
		if code := r.writeJSON(res); code != 0 {
			return code
		}
	} else {
		for _, c := range res.Checks {
			mark := "ok"
			if !c.OK {
				mark = "FAIL"
			}
			fmt.Fprintf(r.Stdout, "%-4s %-11s %s\n", mark, c.ID, c.Message)
		}
	}
	if !res.OK {
		return 1
	}
	return 0
}
