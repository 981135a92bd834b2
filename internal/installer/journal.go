package installer

import (
	"time"

	"go.uber.org/zap"

	"github.com/marcohefti/polecat/internal/executor"
	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/store"
)

const journalSchemaV1 = 1

// JournalEvent is one line of <data>/installs/<install-id>.jsonl.
type JournalEvent struct {
	V         int    `json:"v"`
	Event     string `json:"event"`
	At        string `json:"at"`
	InstallID string `json:"installId"`

	// start
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
	Root    string `json:"root,omitempty"`
	Files   int    `json:"files,omitempty"`

	// step
	Step *executor.Record `json:"step,omitempty"`

	// finish
	Applied     int    `json:"applied,omitempty"`
	Diagnostics int    `json:"diagnostics,omitempty"`
	FailedStep  int    `json:"failedStep,omitempty"`
	Error       string `json:"error,omitempty"`
}

type journal struct {
	path string
	id   string
	now  func() time.Time
	log  *zap.Logger
}

func (j journal) append(ev JournalEvent) {
	ev.V = journalSchemaV1
	ev.InstallID = j.id
	ev.At = j.now().UTC().Format(time.RFC3339Nano)
	// The journal is a record, not a gate: a failed append never stops an install.
	if err := store.AppendJSONL(j.path, ev); err != nil {
		j.log.Warn("journal append failed", zap.String("path", j.path), zap.Error(err))
	}
}

func (j journal) start(s manifest.Script, root string) {
	j.append(JournalEvent{Event: "start", Name: s.Name, Version: s.Version, Root: root, Files: len(s.Files)})
}

func (j journal) step(r executor.Record) {
	j.append(JournalEvent{Event: "step", Step: &r})
}

func (j journal) finish(out executor.Outcome, err error) {
	ev := JournalEvent{Event: "finish", Applied: out.Applied, Diagnostics: len(out.Diagnostics)}
	if out.Failure != nil {
		ev.FailedStep = out.Failure.Step()
	}
	if err != nil {
		ev.Error = err.Error()
	}
	j.append(ev)
}

// ReadJournal loads every event of one install journal.
func ReadJournal(path string) ([]JournalEvent, error) {
	return store.ReadJSONL[JournalEvent](path)
}
