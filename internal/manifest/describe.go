package manifest

import (
	"fmt"
	"io"
	"strings"
)

// Describe writes the human-readable inspection view of a script: runner,
// name/version, description and notes, files and directives.
func Describe(w io.Writer, s Script) error {
	var b strings.Builder

	fmt.Fprintf(&b, "[%s]", s.Runner)
	if s.WineVersion != "" {
		fmt.Fprintf(&b, "[%s]", s.WineVersion)
	}
	fmt.Fprintf(&b, " %s - %s\n", s.Name, s.Version)

	if s.Description != "" {
		b.WriteString(s.Description + "\n")
	}
	if s.Notes != "" {
		b.WriteString(s.Notes + "\n")
	}
	if s.Status != StatusOK {
		fmt.Fprintf(&b, "status: %s\n", s.Status)
	}

	if len(s.Files) > 0 {
		b.WriteString("\nFiles:\n")
		for _, f := range s.Files {
			fmt.Fprintf(&b, "\t%s -> %s\n", f.Filename, f.URL)
		}
	}

	if len(s.Directives) > 0 {
		b.WriteString("\nDirectives:\n")
		for _, d := range s.Directives {
			b.WriteString("\t" + directiveLine(d) + "\n")
		}
	}

	if len(s.Warnings) > 0 {
		b.WriteString("\nWarnings:\n")
		for _, warn := range s.Warnings {
			b.WriteString("\t" + warn + "\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func directiveLine(d Directive) string {
	parts := []string{d.Command.Keyword()}
	if d.Command == CommandUnknown && d.Keyword != "" {
		parts[0] = d.Keyword
	}
	if d.Task != TaskNone {
		parts = append(parts, d.Task.Keyword())
	}
	parts = append(parts, d.Arguments...)
	line := strings.Join(parts, " ")
	if d.Problem != "" {
		line += " (" + d.Problem + ")"
	}
	return line
}
