package utils

import "strings"

var (
	versionPrefixes = []string{"version-", "Version-", "release-", "Release-", "v", "V"}
	versionSuffixes = []string{"-release", "-Release"}
)

// DisplayVersion trims the decoration release feeds put around a version
// string ("v1.2.3", "release-1.2.3", "jq-1.7") down to the bare number
// for list output. Purely cosmetic: the database and the planner's
// equality comparison always keep the original string.
func DisplayVersion(version string) string {
	v := strings.TrimSpace(version)

	for _, p := range versionPrefixes {
		v = strings.TrimPrefix(v, p)
	}

	// A leading package name ("jq-1.7", "tool_2.0") is dropped when what
	// follows the separator reads as a version number.
	if i := strings.IndexAny(v, "-_"); i > 0 && startsLikeVersion(v[i+1:]) {
		v = v[i+1:]
	}

	for _, s := range versionSuffixes {
		v = strings.TrimSuffix(v, s)
	}
	return v
}

// startsLikeVersion reports whether s begins the way a version number
// does: a digit, or v/V followed by a digit.
func startsLikeVersion(s string) bool {
	if s == "" {
		return false
	}
	if s[0] >= '0' && s[0] <= '9' {
		return true
	}
	return len(s) > 1 && (s[0] == 'v' || s[0] == 'V') && s[1] >= '0' && s[1] <= '9'
}
