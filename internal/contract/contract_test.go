package contract

import (
	"testing"

	"github.com/marcohefti/polecat/internal/codes"
	"github.com/marcohefti/polecat/internal/manifest"
)

func TestBuild_CoversEveryErrorCode(t *testing.T) {
	c := Build("0.0.0-dev")
	seen := map[string]bool{}
	for _, e := range c.Errors {
		if seen[e.Code] {
			t.Fatalf("duplicate error code %s", e.Code)
		}
		seen[e.Code] = true
	}
	for _, code := range codes.All() {
		if !seen[code] {
			t.Fatalf("error code %s missing from contract", code)
		}
	}
	if len(seen) != len(codes.All()) {
		t.Fatalf("contract lists codes not in codes.All(): %v", seen)
	}
}

func TestBuild_SchemaMatchesManifestTables(t *testing.T) {
	c := Build("0.0.0-dev")
	if len(c.Schema) != len(manifest.Schema()) {
		t.Fatalf("schema entries: got %d want %d", len(c.Schema), len(manifest.Schema()))
	}
	for _, e := range c.Schema {
		if got := manifest.Arity(e.Command, e.Task); got != len(e.Fields) {
			t.Fatalf("%s: arity %d but %d fields", e.Keyword, got, len(e.Fields))
		}
	}
	if c.Keywords[0] != "move" || c.Keywords[len(c.Keywords)-1] != "task" {
		t.Fatalf("unexpected keyword order: %v", c.Keywords)
	}
	ids := map[string]bool{}
	for _, cmd := range c.Commands {
		if ids[cmd.ID] {
			t.Fatalf("duplicate command id %s", cmd.ID)
		}
		ids[cmd.ID] = true
	}
}
