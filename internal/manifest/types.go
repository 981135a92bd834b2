package manifest

import "fmt"

// Status classifies a parsed manifest. Only StatusOK scripts are executable.
type Status int

const (
	StatusOK Status = iota
	StatusNoManifest
	StatusAmbiguousOrMissingSlug
	StatusNoScript
	StatusNoInstallSteps
)

var statusNames = map[Status]string{
	StatusOK:                     "ok",
	StatusNoManifest:             "no_manifest",
	StatusAmbiguousOrMissingSlug: "ambiguous_or_missing_slug",
	StatusNoScript:               "no_script",
	StatusNoInstallSteps:         "no_install_steps",
}

func (s Status) String() string {
	if n, ok := statusNames[s]; ok {
		return n
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Script is the validated result of parsing one installer manifest.
type Script struct {
	Name        string      `json:"name"`
	Version     string      `json:"version"`
	Runner      Runner      `json:"runner"`
	Description string      `json:"description,omitempty"`
	Notes       string      `json:"notes,omitempty"`
	WineVersion string      `json:"wineVersion,omitempty"`
	Files       []FileRef   `json:"files"`
	Directives  []Directive `json:"directives"`
	Status      Status      `json:"status"`

	// Warnings are non-fatal parse notes (skipped file entries, missing display fields).
	Warnings []string `json:"warnings,omitempty"`
}

// Executable reports whether the script may be handed to an executor.
func (s Script) Executable() bool { return s.Status == StatusOK }

// UsesTasks reports whether any directive dispatches to the compatibility runtime.
func (s Script) UsesTasks() bool {
	for _, d := range s.Directives {
		if d.Command == CommandTask && d.Task != TaskUnknown {
			return true
		}
	}
	return false
}

// FileRef is a file the installer needs staged before directives run.
type FileRef struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
}

// Directive is one install step. len(Arguments) always equals Arity(Command, Task).
type Directive struct {
	Command   Command  `json:"command"`
	Task      Task     `json:"task,omitempty"`
	Arguments []string `json:"arguments"`

	// Keyword is the step key that selected the command. It survives degradation
	// to CommandUnknown so inspectors can show what the author wrote.
	Keyword string `json:"keyword,omitempty"`
	// Problem describes a per-directive defect; empty for clean steps.
	Problem string `json:"problem,omitempty"`
}

// Executable reports whether the directive maps to a concrete action.
func (d Directive) Executable() bool {
	if d.Command == CommandUnknown {
		return false
	}
	return d.Command != CommandTask || d.Task != TaskUnknown
}
