package manifest

import "time"

// ResolvedPkg is an owned snapshot of one resolved package: a clone of its
// manifest plus the name of the repository that provided it. It never holds
// a pointer into a live Database, so it can safely outlive the snapshot it
// was built from.
type ResolvedPkg struct {
	Manifest PackageManifest
	RepoName string
	IsDep    bool

	// Constraint is the version constraint the user attached to the
	// request ("1.2.3", "^1.2", "latest"); empty means the driver's
	// natural latest. Resolved to a concrete version when the installer
	// fetches the package's AssetInfo.
	Constraint string
}

// AssetInfo is the ephemeral output of an asset-source driver.
type AssetInfo struct {
	URL            string
	RequestHeaders map[string]string
	Version        string
	AssetType      AssetType
	// DigestHint is an optional checksum hint surfaced by the GitHub driver
	// when the release API exposes one; never required, since checksum
	// verification is out of scope.
	DigestHint string
}

// InstalledPackage is a durable record of a package materialised on disk.
type InstalledPackage struct {
	Manifest       PackageManifest `json:"manifest"`
	RepoName       string          `json:"repo_name"`
	Version        string          `json:"version"`
	InstalledAt    time.Time       `json:"installed_at"`
	Binaries       []string        `json:"binaries"`
	InstalledAsDep bool            `json:"installed_as_dep"`
}
