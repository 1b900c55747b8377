package semver

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// AtLeast reports whether version is the floor version or newer.
// The connectivity check uses this to warn when a server predates the
// report-enhancement endpoints. Vendor version strings occasionally carry
// build qualifiers, which Masterminds parses as prerelease/metadata.
func AtLeast(version, floor string) (bool, error) {
	v, err := semver.NewVersion(strings.TrimSpace(version))
	if err != nil {
		return false, fmt.Errorf("invalid server version %q: %w", version, err)
	}
	f, err := semver.NewVersion(floor)
	if err != nil {
		return false, fmt.Errorf("invalid floor version %q: %w", floor, err)
	}
	return !v.LessThan(f), nil
}
