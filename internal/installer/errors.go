package installer

import (
	"errors"

	"github.com/marcohefti/polecat/internal/manifest"
)

var (
	// ErrDeclined means the user answered no at the confirmation prompt.
	ErrDeclined = errors.New("installation declined")
	// ErrStaging wraps download failures; no directive has run when it is returned.
	ErrStaging = errors.New("staging failed")
	// ErrRuntime means the script needs a wine runtime and none was found.
	ErrRuntime = errors.New("wine runtime unavailable")
)

// ScriptError reports a manifest that parsed to a non-OK status.
type ScriptError struct {
	Status manifest.Status
}

func (e *ScriptError) Error() string {
	switch e.Status {
	case manifest.StatusNoManifest, manifest.StatusAmbiguousOrMissingSlug:
		return "No installer with that ID was found"
	case manifest.StatusNoScript:
		return "Installer has no script"
	case manifest.StatusNoInstallSteps:
		return "Script has no install directives"
	}
	return "installer script is not usable: " + e.Status.String()
}
