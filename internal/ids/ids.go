package ids

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	reInvalid   = regexp.MustCompile(`[^a-z0-9-]+`)
	reDashes    = regexp.MustCompile(`-+`)
	reInstallID = regexp.MustCompile(`^[0-9]{8}-[0-9]{6}Z-[a-z0-9-]+-[0-9a-f]{8}$`)
)

// NewInstallID formats YYYYMMDD-HHMMSSZ-<slug>-<uuid prefix>.
func NewInstallID(now time.Time, name string) string {
	slug := SanitizeComponent(name)
	if slug == "" {
		slug = "install"
	}
	u := uuid.New()
	return now.UTC().Format("20060102-150405Z") + "-" + slug + "-" + hex.EncodeToString(u[:4])
}

func IsValidInstallID(s string) bool {
	return reInstallID.MatchString(strings.TrimSpace(s))
}

// InstallTime recovers the creation time encoded in an install id.
func InstallTime(id string) (time.Time, bool) {
	id = strings.TrimSpace(id)
	if !IsValidInstallID(id) {
		return time.Time{}, false
	}
	t, err := time.Parse("20060102-150405Z", id[:16])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func SanitizeComponent(s string) string {
	// Keep this strict and stable: lower + [a-z0-9-], collapse dashes.
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.ReplaceAll(v, "_", "-")
	v = reInvalid.ReplaceAllString(v, "-")
	v = reDashes.ReplaceAllString(v, "-")
	v = strings.Trim(v, "-")
	return v
}

// RootLockName is a stable file-name-safe key for an install root. Callers
// pass an absolute path so "./x" and "/abs/x" share a lock.
func RootLockName(root string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(root)))
	return hex.EncodeToString(sum[:8]) + ".lock"
}
