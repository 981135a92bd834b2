package manifest

// Runner identifies the compatibility runtime a package targets.
type Runner int

const (
	RunnerUnknown Runner = iota
	RunnerLinux
	RunnerWine
	RunnerWineSteam
	RunnerSteam
	RunnerDosbox
	RunnerScummVM
	RunnerLibretro
	RunnerMAME
	RunnerMednafen
	RunnerWeb
	RunnerBrowser
	RunnerFlatpak
)

// runnersV1 is the closed set of runner names this build understands.
// Matching is case-sensitive.
var runnersV1 = []struct {
	runner Runner
	name   string
}{
	{RunnerLinux, "linux"},
	{RunnerWine, "wine"},
	{RunnerWineSteam, "winesteam"},
	{RunnerSteam, "steam"},
	{RunnerDosbox, "dosbox"},
	{RunnerScummVM, "scummvm"},
	{RunnerLibretro, "libretro"},
	{RunnerMAME, "mame"},
	{RunnerMednafen, "mednafen"},
	{RunnerWeb, "web"},
	{RunnerBrowser, "browser"},
	{RunnerFlatpak, "flatpak"},
}

// ParseRunner maps a manifest runner string to a Runner. Unrecognized names
// yield RunnerUnknown; that is a degraded identification, not an error.
func ParseRunner(s string) Runner {
	for _, r := range runnersV1 {
		if r.name == s {
			return r.runner
		}
	}
	return RunnerUnknown
}

func (r Runner) String() string {
	for _, e := range runnersV1 {
		if e.runner == r {
			return e.name
		}
	}
	return "unknown"
}

func (r Runner) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// RunnerNames lists the supported runner names in table order.
func RunnerNames() []string {
	out := make([]string, 0, len(runnersV1))
	for _, r := range runnersV1 {
		out = append(out, r.name)
	}
	return out
}
