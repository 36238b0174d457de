// Package depserrors collects the distinguishable error kinds the engine
// can raise. Each kind is a plain exported struct implementing error;
// callers use errors.As to recover structured detail instead of matching
// strings.
package depserrors

import (
	"fmt"
	"strings"
)

// UnsupportedPlatform: no platform entry for host.
type UnsupportedPlatform struct {
	Host  string
	Known []string
}

func (e UnsupportedPlatform) Error() string {
	if len(e.Known) == 0 {
		return fmt.Sprintf("unsupported platform: %s", e.Host)
	}
	return fmt.Sprintf("unsupported platform: %s (known: %s)", e.Host, strings.Join(e.Known, ", "))
}

// ManifestInvalid: name or filename fails validation at repository ingestion.
type ManifestInvalid struct {
	Repo   string
	Name   string
	Reason string
}

func (e ManifestInvalid) Error() string {
	return fmt.Sprintf("invalid manifest %s/%s: %s", e.Repo, e.Name, e.Reason)
}

// PackageNotFound: a requested name matched no repository.
type PackageNotFound struct {
	Name        string
	Suggestions []string
}

func (e PackageNotFound) Error() string {
	if len(e.Suggestions) == 0 {
		return fmt.Sprintf("package not found: %s", e.Name)
	}
	return fmt.Sprintf("package not found: %s (did you mean: %s?)", e.Name, strings.Join(e.Suggestions, ", "))
}

// AmbiguousPackage: a name is present in more than one repository.
type AmbiguousPackage struct {
	Name  string
	Repos []string
}

func (e AmbiguousPackage) Error() string {
	return fmt.Sprintf("package %q is ambiguous, present in repositories: %s", e.Name, strings.Join(e.Repos, ", "))
}

// MissingDependency: a depends_on name is absent from its own repository.
type MissingDependency struct {
	Repo    string
	Package string
	Missing string
}

func (e MissingDependency) Error() string {
	return fmt.Sprintf("package %s/%s depends on missing package %q", e.Repo, e.Package, e.Missing)
}

// RepositoryConflict: the same name is reachable through two different repositories.
type RepositoryConflict struct {
	Name  string
	Repos []string
}

func (e RepositoryConflict) Error() string {
	return fmt.Sprintf("package %q resolves to conflicting repositories: %s", e.Name, strings.Join(e.Repos, ", "))
}

// RepositoryMigration: an installed package's recorded repo_name differs
// from the repository currently providing that name.
type RepositoryMigration struct {
	Name        string
	InstalledAs string
	Current     string
}

func (e RepositoryMigration) Error() string {
	return fmt.Sprintf("package %q was installed from repository %q but is now provided by %q; uninstall first", e.Name, e.InstalledAs, e.Current)
}

// NetworkFailure: transport-level failure or non-200 HTTP response.
type NetworkFailure struct {
	URL        string
	StatusCode int
	Cause      error
}

func (e NetworkFailure) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("network failure fetching %s: %v", e.URL, e.Cause)
	}
	return fmt.Sprintf("network failure fetching %s: status %d", e.URL, e.StatusCode)
}

func (e NetworkFailure) Unwrap() error { return e.Cause }

// NoMatchingAsset: zero release assets matched the configured pattern.
type NoMatchingAsset struct {
	Pattern         string
	AvailableAssets []string
}

func (e NoMatchingAsset) Error() string {
	return fmt.Sprintf("no asset matched pattern %q, available assets: %s", e.Pattern, strings.Join(e.AvailableAssets, ", "))
}

// AmbiguousAsset: more than one release asset matched the configured pattern.
type AmbiguousAsset struct {
	Pattern string
	Matches []string
}

func (e AmbiguousAsset) Error() string {
	return fmt.Sprintf("pattern %q matched more than one asset: %s", e.Pattern, strings.Join(e.Matches, ", "))
}

// MissingReleaseTitle: version_source=ReleaseTitle was chosen but the
// release has no name.
type MissingReleaseTitle struct {
	Tag string
}

func (e MissingReleaseTitle) Error() string {
	return fmt.Sprintf("release %s has no title but version_source=ReleaseTitle was requested", e.Tag)
}

// ArchiveOpenFailed: the downloaded file could not be opened as the
// declared archive format.
type ArchiveOpenFailed struct {
	Path   string
	Format string
	Cause  error
}

func (e ArchiveOpenFailed) Error() string {
	return fmt.Sprintf("failed to open %s as %s: %v", e.Path, e.Format, e.Cause)
}

func (e ArchiveOpenFailed) Unwrap() error { return e.Cause }

// PatternMatchedMultiple: one pattern matched two different archive entries.
type PatternMatchedMultiple struct {
	Pattern string
	First   string
	Second  string
}

func (e PatternMatchedMultiple) Error() string {
	return fmt.Sprintf("pattern %q matched multiple archive entries: %s, %s", e.Pattern, e.First, e.Second)
}

// EntryMatchedByMultiplePatterns: one archive entry matched two patterns.
type EntryMatchedByMultiplePatterns struct {
	Entry    string
	Patterns []string
}

func (e EntryMatchedByMultiplePatterns) Error() string {
	return fmt.Sprintf("archive entry %q matched multiple patterns: %s", e.Entry, strings.Join(e.Patterns, ", "))
}

// PatternMatchedNothing: after scanning the whole archive, some pattern
// matched no entry.
type PatternMatchedNothing struct {
	Pattern        string
	ArchiveEntries []string
}

func (e PatternMatchedNothing) Error() string {
	return fmt.Sprintf("pattern %q matched nothing; archive contains: %s", e.Pattern, strings.Join(e.ArchiveEntries, ", "))
}

// BinaryCollision: two different packages would install the same binary filename.
type BinaryCollision struct {
	Package        string
	Binary         string
	OwnedByPackage string
}

func (e BinaryCollision) Error() string {
	return fmt.Sprintf("package %q cannot install binary %q: already owned by package %q", e.Package, e.Binary, e.OwnedByPackage)
}

// FilesystemError wraps copy/chmod/mkdir/remove failures.
type FilesystemError struct {
	Op    string
	Path  string
	Cause error
}

func (e FilesystemError) Error() string {
	return fmt.Sprintf("filesystem error during %s on %s: %v", e.Op, e.Path, e.Cause)
}

func (e FilesystemError) Unwrap() error { return e.Cause }

// DatabaseIoError: the database file could not be read or written.
type DatabaseIoError struct {
	Path  string
	Cause error
}

func (e DatabaseIoError) Error() string {
	return fmt.Sprintf("database io error at %s: %v", e.Path, e.Cause)
}

func (e DatabaseIoError) Unwrap() error { return e.Cause }

// DatabaseParseError: the database file is not valid JSON for the expected shape.
type DatabaseParseError struct {
	Path  string
	Cause error
}

func (e DatabaseParseError) Error() string {
	return fmt.Sprintf("database parse error at %s: %v", e.Path, e.Cause)
}

func (e DatabaseParseError) Unwrap() error { return e.Cause }

// OrphanedInstall: an installed package's repository or manifest is no
// longer present; surfaced but does not abort batch operations.
type OrphanedInstall struct {
	Name   string
	Reason string
}

func (e OrphanedInstall) Error() string {
	return fmt.Sprintf("installed package %q is orphaned: %s", e.Name, e.Reason)
}

// BrokenInstall: a recorded binary is missing from the binary directory.
type BrokenInstall struct {
	Name    string
	Missing string
}

func (e BrokenInstall) Error() string {
	return fmt.Sprintf("installed package %q is broken: missing binary %q", e.Name, e.Missing)
}

// WouldBreakDependents: removing a package would leave a dependent installed
// but unsatisfied.
type WouldBreakDependents struct {
	Name       string
	Dependents []string
}

func (e WouldBreakDependents) Error() string {
	return fmt.Sprintf("cannot uninstall %q: depended on by %s", e.Name, strings.Join(e.Dependents, ", "))
}

// NotInstalled: uninstall/repair target is not present in the database.
type NotInstalled struct {
	Name string
}

func (e NotInstalled) Error() string {
	return fmt.Sprintf("package %q is not installed", e.Name)
}

// UserAbort: the user declined a confirmation prompt.
type UserAbort struct {
	Prompt string
}

func (e UserAbort) Error() string {
	return "aborted by user"
}
