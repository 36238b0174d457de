package version

import (
	"context"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
)

// defaultIterateLimit bounds how many published versions DiscoverVersions
// will enumerate before giving up on finding a constraint match.
const defaultIterateLimit = 100

// Discoverer is implemented by asset sources that can enumerate multiple
// published versions (currently only the GitHub driver).
type Discoverer interface {
	DiscoverVersions(ctx context.Context, limit int) ([]string, error)
}

// LatestResolver is implemented by asset sources that can report their
// single natural "most recent" version without enumeration (both drivers).
type LatestResolver interface {
	Latest(ctx context.Context) (string, error)
}

// ResolveVersion turns a possibly-symbolic constraint into a concrete
// version string.
//
//   - "" or "latest": the driver's natural most-recent behaviour.
//   - a semver constraint ("^1.2", "~1.2.3", ">=1.0 <2.0"): the driver must
//     support Discoverer; the highest matching version is selected.
//   - anything else: returned unchanged (an explicit, already-concrete tag).
func ResolveVersion(ctx context.Context, driver interface{}, constraint string) (string, error) {
	if constraint == "" || constraint == "latest" {
		lr, ok := driver.(LatestResolver)
		if !ok {
			return "", depserrors.ManifestInvalid{Reason: "driver does not support latest-version resolution"}
		}
		return lr.Latest(ctx)
	}

	if !IsValidSemanticVersion(constraint) {
		if parsed, err := ParseConstraint(constraint); err == nil {
			disc, ok := driver.(Discoverer)
			if !ok {
				return "", depserrors.ManifestInvalid{Reason: "driver does not support version discovery for constraint " + constraint}
			}
			versions, err := disc.DiscoverVersions(ctx, defaultIterateLimit)
			if err != nil {
				return "", err
			}
			filtered := FilterVersions(versions, parsed)
			best, err := GetLatestVersion(filtered, false)
			if err != nil {
				return "", depserrors.ManifestInvalid{Reason: "no version matched constraint " + constraint}
			}
			return best, nil
		}
	}

	return constraint, nil
}
