// Package manifest holds the declarative data model a repository
// describes: packages, their download sources, and the archive layout of
// each asset. Nothing in this package performs I/O; it is pure data plus
// the validation invariants repository ingestion must enforce.
package manifest

import (
	"regexp"
	"sort"
	"strings"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/pattern"
	"github.com/flanksource/deps-fetch/pkg/platform"
)

var nameRE = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)

// ArchiveFormat is the compression/container format of an Archive asset.
type ArchiveFormat string

const (
	TarGz ArchiveFormat = "tar.gz"
	TarXz ArchiveFormat = "tar.xz"
	Zip   ArchiveFormat = "zip"
)

// BinaryInArchive names one file inside an archive that should be staged
// as a binary.
type BinaryInArchive struct {
	PathMatcher pattern.Pattern `json:"path_matcher" yaml:"path_matcher"`
	CopyAs      string          `json:"copy_as" yaml:"copy_as"`
}

// AssetType tags whether the downloaded file IS the binary, or an archive
// that must be unpacked.
type AssetType struct {
	// Binary is set when the downloaded file is used as-is.
	Binary *BinaryAsset `json:"binary,omitempty" yaml:"binary,omitempty"`
	// Archive is set when the downloaded file must be extracted.
	Archive *ArchiveAsset `json:"archive,omitempty" yaml:"archive,omitempty"`
}

type BinaryAsset struct {
	CopyAs string `json:"copy_as" yaml:"copy_as"`
}

type ArchiveAsset struct {
	Format ArchiveFormat     `json:"format" yaml:"format"`
	Files  []BinaryInArchive `json:"files" yaml:"files"`
}

// IsArchive reports whether this asset type requires extraction.
func (a AssetType) IsArchive() bool {
	return a.Archive != nil
}

// DirectURLEntry is the (url, asset_type) pair a Direct source's
// PlatformTable maps to.
type DirectURLEntry struct {
	URL       string    `json:"url" yaml:"url"`
	AssetType AssetType `json:"asset_type" yaml:"asset_type"`
}

// DirectSource is the DownloadSource variant for a hardcoded, versioned URL.
type DirectSource struct {
	URLs             *platform.Table[DirectURLEntry] `json:"urls" yaml:"urls"`
	HardcodedVersion string                          `json:"hardcoded_version" yaml:"hardcoded_version"`
}

// VersionSource selects which GitHub release field is reported as the
// package version.
type VersionSource string

const (
	TagName      VersionSource = "tag_name"
	ReleaseTitle VersionSource = "release_title"
)

// GitHubAssetEntry is the (pattern, asset_type) pair a GitHub source's
// PlatformTable maps to.
type GitHubAssetEntry struct {
	Pattern   pattern.Pattern `json:"pattern" yaml:"pattern"`
	AssetType AssetType       `json:"asset_type" yaml:"asset_type"`
}

// GitHubSource is the DownloadSource variant for files published to GitHub
// releases.
type GitHubSource struct {
	Author        string                            `json:"author" yaml:"author"`
	Repo          string                            `json:"repo" yaml:"repo"`
	Asset         *platform.Table[GitHubAssetEntry] `json:"asset" yaml:"asset"`
	VersionSource VersionSource                     `json:"version_source" yaml:"version_source"`
}

// DownloadSource tags exactly one of Direct or GitHub.
type DownloadSource struct {
	Direct *DirectSource `json:"direct,omitempty" yaml:"direct,omitempty"`
	GitHub *GitHubSource `json:"github,omitempty" yaml:"github,omitempty"`
}

// Kind returns a short diagnostic label for the active variant.
func (s DownloadSource) Kind() string {
	switch {
	case s.Direct != nil:
		return "direct"
	case s.GitHub != nil:
		return "github"
	default:
		return "unknown"
	}
}

// PackageManifest is the declarative description of one package inside a
// repository.
type PackageManifest struct {
	Name      string         `json:"name" yaml:"name"`
	Source    DownloadSource `json:"source" yaml:"source"`
	DependsOn []string       `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
}

// Repository is a named, validated collection of package manifests.
type Repository struct {
	Name        string                     `json:"name" yaml:"name"`
	Description string                     `json:"description,omitempty" yaml:"description,omitempty"`
	Packages    map[string]PackageManifest `json:"packages" yaml:"packages"`
}

// SourceLocation records where a repository was loaded from, so it can be
// re-fetched later by update-repos.
type SourceLocation struct {
	Path string `json:"path" yaml:"path"`
	JSON bool   `json:"json" yaml:"json"`
}

// SourcedRepository pairs an ingested Repository with where it came from.
type SourcedRepository struct {
	Content Repository     `json:"content" yaml:"content"`
	Source  SourceLocation `json:"source" yaml:"source"`
}

// Validate enforces the repository-ingestion invariants:
//   - every map key equals its manifest's Name
//   - every name is [A-Za-z0-9._-]+
//   - every depends_on name exists in the same repository
//   - the dependency graph is acyclic
//   - GitHub author/repo and copy_as filenames pass the pre-flight checks
func (r Repository) Validate() error {
	names := make([]string, 0, len(r.Packages))
	for key, pkg := range r.Packages {
		if key != pkg.Name {
			return depserrors.ManifestInvalid{Repo: r.Name, Name: key, Reason: "map key does not equal manifest name"}
		}
		if !nameRE.MatchString(pkg.Name) {
			return depserrors.ManifestInvalid{Repo: r.Name, Name: pkg.Name, Reason: "name must match [A-Za-z0-9._-]+"}
		}
		if err := validateSource(r.Name, pkg); err != nil {
			return err
		}
		names = append(names, pkg.Name)
	}
	sort.Strings(names)

	for _, pkg := range r.Packages {
		for _, dep := range pkg.DependsOn {
			if _, ok := r.Packages[dep]; !ok {
				return depserrors.MissingDependency{Repo: r.Name, Package: pkg.Name, Missing: dep}
			}
		}
	}

	if cyc := findCycle(r); cyc != "" {
		return depserrors.ManifestInvalid{Repo: r.Name, Name: cyc, Reason: "dependency graph contains a cycle"}
	}

	return nil
}

func validateSource(repoName string, pkg PackageManifest) error {
	checkCopyAs := func(name string) error {
		if name == "" {
			return nil
		}
		if strings.HasPrefix(name, ".") || !nameRE.MatchString(name) {
			return depserrors.ManifestInvalid{Repo: repoName, Name: pkg.Name, Reason: "copy_as filename invalid: " + name}
		}
		return nil
	}

	checkAssetType := func(a AssetType) error {
		switch {
		case a.Binary != nil:
			return checkCopyAs(a.Binary.CopyAs)
		case a.Archive != nil:
			for _, f := range a.Archive.Files {
				if err := checkCopyAs(f.CopyAs); err != nil {
					return err
				}
			}
			return nil
		default:
			return depserrors.ManifestInvalid{Repo: repoName, Name: pkg.Name, Reason: "asset_type must be exactly one of binary or archive"}
		}
	}

	switch {
	case pkg.Source.Direct != nil:
		for _, entry := range pkg.Source.Direct.URLs.Values() {
			if err := checkAssetType(entry.AssetType); err != nil {
				return err
			}
		}
	case pkg.Source.GitHub != nil:
		gh := pkg.Source.GitHub
		if !nameRE.MatchString(gh.Author) || !nameRE.MatchString(gh.Repo) {
			return depserrors.ManifestInvalid{Repo: repoName, Name: pkg.Name, Reason: "github author/repo must match [A-Za-z0-9._-]+"}
		}
		for _, entry := range gh.Asset.Values() {
			if err := checkAssetType(entry.AssetType); err != nil {
				return err
			}
		}
	default:
		return depserrors.ManifestInvalid{Repo: repoName, Name: pkg.Name, Reason: "source must be exactly one of direct or github"}
	}
	return nil
}

// findCycle returns the name of a package participating in a dependency
// cycle, or "" if the graph is acyclic.
func findCycle(r Repository) string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(r.Packages))
	var visit func(name string) bool
	visit = func(name string) bool {
		switch color[name] {
		case gray:
			return true
		case black:
			return false
		}
		color[name] = gray
		pkg, ok := r.Packages[name]
		if ok {
			for _, dep := range pkg.DependsOn {
				if visit(dep) {
					return true
				}
			}
		}
		color[name] = black
		return false
	}
	for name := range r.Packages {
		if color[name] == white && visit(name) {
			return name
		}
	}
	return ""
}
