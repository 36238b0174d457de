package version

import (
	"regexp"
	"strings"
)

// Normalize strips a leading "v" so tags like "v1.2.3" parse as semver.
// This is the narrow, semver-parsing-oriented normalisation used
// throughout this package; pkg/utils.DisplayVersion handles the broader
// display-string cleanup used for list output.
func Normalize(version string) string {
	return strings.TrimPrefix(strings.TrimSpace(version), "v")
}

var partialVersionRE = regexp.MustCompile(`^\d+(\.\d+)?$`)

// IsPartialVersion reports whether constraint is a bare major or
// major.minor number ("2", "1.5") rather than a full semver constraint
// expression.
func IsPartialVersion(constraint string) bool {
	return partialVersionRE.MatchString(constraint)
}
