// Package codes holds the stable error codes printed as "CODE: message".
package codes

const (
	Usage  = "POLECAT_E_USAGE"
	IO     = "POLECAT_E_IO"
	Config = "POLECAT_E_CONFIG"

	// Manifest resolution.
	Fetch       = "POLECAT_E_FETCH"
	NoInstaller = "POLECAT_E_NO_INSTALLER"
	NoScript    = "POLECAT_E_NO_SCRIPT"
	NoSteps     = "POLECAT_E_NO_STEPS"

	// Install flow.
	Declined   = "POLECAT_E_DECLINED"
	Locked     = "POLECAT_E_LOCKED"
	Staging    = "POLECAT_E_STAGING"
	Runtime    = "POLECAT_E_RUNTIME"
	StepFailed = "POLECAT_E_STEP_FAILED"
	Spawn      = "POLECAT_E_SPAWN"
)

// All lists every code, for contract output.
func All() []string {
	return []string{
		Usage, IO, Config,
		Fetch, NoInstaller, NoScript, NoSteps,
		Declined, Locked, Staging, Runtime, StepFailed, Spawn,
	}
}
