package cli

import (
	"errors"
	"fmt"

	"github.com/marcohefti/polecat/internal/codes"
	"github.com/marcohefti/polecat/internal/executor"
	"github.com/marcohefti/polecat/internal/fetch"
	"github.com/marcohefti/polecat/internal/installer"
	"github.com/marcohefti/polecat/internal/manifest"
	"github.com/marcohefti/polecat/internal/process"
	"github.com/marcohefti/polecat/internal/prompt"
	"github.com/marcohefti/polecat/internal/store"
)

// errorCode picks the stable code for an install/info failure. A step whose
// process could not start reports Spawn; the message still names the step.
// Unclassified errors get fallback.
func errorCode(err error, fallback string) string {
	var scriptErr *installer.ScriptError
	var stepErr *executor.StepError
	var statusErr *fetch.StatusError
	switch {
	case errors.As(err, &scriptErr):
		return scriptCode(scriptErr.Status)
	case errors.Is(err, installer.ErrDeclined):
		return codes.Declined
	case store.IsLockTimeout(err):
		return codes.Locked
	case errors.Is(err, installer.ErrStaging):
		return codes.Staging
	case errors.Is(err, installer.ErrRuntime):
		return codes.Runtime
	case errors.As(err, &stepErr):
		if errors.Is(err, process.ErrSpawn) {
			return codes.Spawn
		}
		return codes.StepFailed
	case errors.Is(err, process.ErrSpawn):
		return codes.Spawn
	case errors.As(err, &statusErr), errors.Is(err, fetch.ErrNotFound):
		return codes.Fetch
	case errors.Is(err, prompt.ErrNoInput):
		return codes.Usage
	}
	return fallback
}

func scriptCode(st manifest.Status) string {
	switch st {
	case manifest.StatusNoScript:
		return codes.NoScript
	case manifest.StatusNoInstallSteps:
		return codes.NoSteps
	}
	return codes.NoInstaller
}

// errorMessage adds the partial-install note to step failures.
func errorMessage(err error) string {
	var stepErr *executor.StepError
	if errors.As(err, &stepErr) {
		return fmt.Sprintf("%s\nstep %d failed, remaining steps were not attempted", err.Error(), stepErr.Step())
	}
	return err.Error()
}
