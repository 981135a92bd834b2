package contract

import (
	"github.com/marcohefti/polecat/internal/codes"
	"github.com/marcohefti/polecat/internal/manifest"
)

type Contract struct {
	Name      string                 `json:"name"`
	Version   string                 `json:"version"`
	Commands  []Command              `json:"commands"`
	Errors    []Error                `json:"errors"`
	Keywords  []string               `json:"keywords"`
	Tasks     []string               `json:"tasks"`
	Schema    []manifest.SchemaEntry `json:"schema"`
	Runners   []string               `json:"runners"`
	Journal   Artifact               `json:"journal"`
	Variables []string               `json:"variables"`
}

type Artifact struct {
	Kind           string   `json:"kind"` // json|jsonl
	SchemaVersions []int    `json:"schemaVersions"`
	PathPattern    string   `json:"pathPattern"`
	RequiredFields []string `json:"requiredFields"`
}

type Command struct {
	ID      string `json:"id"`
	Usage   string `json:"usage"`
	Summary string `json:"summary"`
}

type Error struct {
	Code      string `json:"code"`
	Summary   string `json:"summary"`
	Retryable bool   `json:"retryable"`
}

func Build(version string) Contract {
	return Contract{
		Name:     "polecat",
		Version:  version,
		Keywords: manifest.CommandKeywords(),
		Tasks:    manifest.TaskKeywords(),
		Schema:   manifest.Schema(),
		Runners:  manifest.RunnerNames(),
		Journal: Artifact{
			Kind:           "jsonl",
			SchemaVersions: []int{1},
			PathPattern:    "$XDG_DATA_HOME/polecat/installs/<installId>.jsonl",
			RequiredFields: []string{"v", "event", "at", "installId"},
		},
		Variables: []string{"$GAMEDIR", "$CACHE", "$INPUT", "$INPUT_<ID>", "$DISC"},
		Commands: []Command{
			{
				ID:      "lutris info",
				Usage:   "polecat lutris info <name> [--file manifest.json] [--json]",
				Summary: "Fetch and parse an installer; print its runner, files and directives.",
			},
			{
				ID:      "lutris install",
				Usage:   "polecat lutris install <name> [--file manifest.json] [--dir .] [--yes] [--json]",
				Summary: "Confirm, stage every file, then run the directives in order (stops at the first failure).",
			},
			{
				ID:      "info",
				Usage:   "polecat info [--json]",
				Summary: "Print version, user agent, resolved directories and config source.",
			},
			{
				ID:      "doctor",
				Usage:   "polecat doctor [--json]",
				Summary: "Check directory write access, config parse and wine/winetricks availability.",
			},
			{
				ID:      "gc",
				Usage:   "polecat gc [--max-age-days 90] [--max-bytes 50MiB] [--staging-stale-after 24h] [--dry-run] [--json]",
				Summary: "Prune old install journals and staging dirs left by interrupted installs.",
			},
			{
				ID:      "contract",
				Usage:   "polecat contract --json",
				Summary: "Print the machine-readable surface (commands, error codes, directive schema).",
			},
			{
				ID:      "version",
				Usage:   "polecat version",
				Summary: "Print the build version.",
			},
		},
		Errors: []Error{
			{Code: codes.Usage, Summary: "Invalid CLI usage (missing/invalid flags or arguments).", Retryable: false},
			{Code: codes.IO, Summary: "Filesystem I/O error.", Retryable: true},
			{Code: codes.Config, Summary: "Config file or environment override is invalid.", Retryable: false},
			{Code: codes.Fetch, Summary: "Network failure while fetching the manifest.", Retryable: true},
			{Code: codes.NoInstaller, Summary: "No installer with that ID was found (missing, malformed or ambiguous).", Retryable: false},
			{Code: codes.NoScript, Summary: "Installer has no script.", Retryable: false},
			{Code: codes.NoSteps, Summary: "Script has no install directives.", Retryable: false},
			{Code: codes.Declined, Summary: "Installation declined at the confirmation prompt.", Retryable: false},
			{Code: codes.Locked, Summary: "Another install into the same directory is in progress.", Retryable: true},
			{Code: codes.Staging, Summary: "A declared file could not be downloaded; no directive ran.", Retryable: true},
			{Code: codes.Runtime, Summary: "The script needs a wine runtime and none was found.", Retryable: false},
			{Code: codes.StepFailed, Summary: "A directive failed; earlier directives stay applied, later ones were not attempted.", Retryable: false},
			{Code: codes.Spawn, Summary: "A directive's process could not be started.", Retryable: false},
		},
	}
}
