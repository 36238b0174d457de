// Package installer orchestrates one install/update command: Plan ->
// Confirm -> Fetch -> Extract -> CollisionCheck -> Copy -> DbCommit ->
// Cleanup. Extraction runs inside each download's finalize callback;
// collision checking waits for every extraction and runs before any
// binary is copied into place.
package installer

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/flanksource/deps-fetch/pkg/archive"
	"github.com/flanksource/deps-fetch/pkg/assetsource"
	"github.com/flanksource/deps-fetch/pkg/database"
	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/downloader"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/planner"
	"github.com/flanksource/deps-fetch/pkg/platform"
	"github.com/flanksource/deps-fetch/pkg/reporter"
	"github.com/flanksource/deps-fetch/pkg/version"
)

// Installer ties the core packages together for one command invocation.
type Installer struct {
	DB        *database.Database
	BinDir    string
	Host      platform.Platform
	Reporter  reporter.Reporter
	Confirmer reporter.Confirmer

	// GitHubToken authenticates the GitHub driver's release API calls; empty
	// means unauthenticated (subject to GitHub's stricter anonymous rate
	// limit). Resolved once by pkg/config and passed down explicitly here
	// rather than re-read from the environment inside the driver.
	GitHubToken string
}

// AssetSourceFor builds the AssetSource driver for a package's declared
// DownloadSource variant, authenticating the GitHub driver with token.
func AssetSourceFor(pkg manifest.PackageManifest, token string) (assetsource.AssetSource, error) {
	switch {
	case pkg.Source.Direct != nil:
		return assetsource.NewDirect(pkg.Source.Direct), nil
	case pkg.Source.GitHub != nil:
		return assetsource.NewGitHub(pkg.Source.GitHub, token), nil
	default:
		return nil, fmt.Errorf("package %s has no recognised download source", pkg.Name)
	}
}

// fetchAssetInfo builds the driver for one resolved package and fetches
// its AssetInfo. A version constraint on the request is resolved to a
// concrete version through the same driver; that version is what the
// planner compares against the installed record.
func (in *Installer) fetchAssetInfo(ctx context.Context, pkg manifest.ResolvedPkg, host platform.Platform) (manifest.AssetInfo, error) {
	src, err := AssetSourceFor(pkg.Manifest, in.GitHubToken)
	if err != nil {
		return manifest.AssetInfo{}, err
	}
	info, err := src.FetchInfo(ctx, host)
	if err != nil {
		return manifest.AssetInfo{}, err
	}
	if pkg.Constraint != "" {
		pinned, err := version.ResolveVersion(ctx, src, pkg.Constraint)
		if err != nil {
			return manifest.AssetInfo{}, err
		}
		info.Version = pinned
	}
	return info, nil
}

// Run executes the full state machine for the given resolved set and
// policy. Confirmation is requested when a dependency is about to be
// installed or the policy is Update/Reinstall.
func (in *Installer) Run(ctx context.Context, resolved []manifest.ResolvedPkg, policy planner.Policy) error {
	snapshot := in.DB.Snapshot()

	plan, err := planner.Run(ctx, resolved, policy, snapshot.Installed, in.Host, in.fetchAssetInfo)
	if err != nil {
		return err
	}

	if in.Reporter != nil {
		for _, c := range plan.UpdatesAvailable() {
			in.Reporter.Message(fmt.Sprintf("update available for %s: %s (installed %s)",
				c.Pkg.Manifest.Name, c.AssetInfo.Version, snapshot.Installed[c.Pkg.Manifest.Name].Version))
		}
	}

	toInstall := plan.ToInstall()
	if len(toInstall) == 0 {
		return nil
	}

	if in.needsConfirmation(toInstall, policy) {
		prompt := fmt.Sprintf("Install/update %d package(s)?", len(toInstall))
		if in.Confirmer == nil || !in.Confirmer.Confirm(prompt) {
			return depserrors.UserAbort{Prompt: prompt}
		}
	}

	jobs := make([]downloader.Job, 0, len(toInstall))
	assetTypeByName := make(map[string]manifest.AssetType, len(toInstall))
	for i := range toInstall {
		c := &toInstall[i]
		if c.AssetInfo == nil {
			// Fresh installs never needed a version comparison during
			// planning, so their info is fetched here instead.
			fetched, err := in.fetchAssetInfo(ctx, c.Pkg, in.Host)
			if err != nil {
				return err
			}
			c.AssetInfo = &fetched
		}
		jobs = append(jobs, downloader.Job{Manifest: c.Pkg.Manifest, AssetInfo: *c.AssetInfo})
		assetTypeByName[c.Pkg.Manifest.Name] = c.AssetInfo.AssetType
	}

	stagingDir, err := os.MkdirTemp("", "deps-fetch-stage-*")
	if err != nil {
		return depserrors.FilesystemError{Op: "mkdtemp", Path: os.TempDir(), Cause: err}
	}
	defer os.RemoveAll(stagingDir)

	// Finalize callbacks run concurrently, one per download task.
	var extractedMu sync.Mutex
	extracted := make(map[string][]archive.ExtractedBinary)

	tempDir, err := downloader.DownloadAll(ctx, jobs, func(ctx context.Context, job downloader.Job, downloadedPath string) error {
		pkgStage := filepath.Join(stagingDir, job.Manifest.Name)
		if err := os.MkdirAll(pkgStage, 0o755); err != nil {
			return depserrors.FilesystemError{Op: "mkdir", Path: pkgStage, Cause: err}
		}
		bins, err := archive.Extract(downloadedPath, assetTypeByName[job.Manifest.Name], pkgStage, toArchiveReporterAdapter(in.Reporter))
		if err != nil {
			return err
		}
		extractedMu.Lock()
		extracted[job.Manifest.Name] = bins
		extractedMu.Unlock()
		return nil
	}, toReporterAdapter(in.Reporter))
	if tempDir != "" {
		defer os.RemoveAll(tempDir)
	}
	if err != nil {
		return err
	}

	owner := make(map[string]string, len(snapshot.Installed))
	for name, ip := range snapshot.Installed {
		for _, b := range ip.Binaries {
			owner[b] = name
		}
	}
	for _, c := range toInstall {
		name := c.Pkg.Manifest.Name
		for _, b := range extracted[name] {
			if existing, ok := owner[b.Name]; ok && existing != name {
				return depserrors.BinaryCollision{Package: name, Binary: b.Name, OwnedByPackage: existing}
			}
			owner[b.Name] = name
		}
	}

	if err := os.MkdirAll(in.BinDir, 0o755); err != nil {
		return depserrors.FilesystemError{Op: "mkdir", Path: in.BinDir, Cause: err}
	}
	for _, c := range toInstall {
		for _, b := range extracted[c.Pkg.Manifest.Name] {
			dest := filepath.Join(in.BinDir, b.Name)
			if err := copyFile(b.Path, dest); err != nil {
				return err
			}
		}
	}

	now := time.Now()
	return in.DB.Update(func(s *database.State) error {
		for _, c := range toInstall {
			name := c.Pkg.Manifest.Name
			info := c.AssetInfo
			version := ""
			if info != nil {
				version = info.Version
			}
			var binNames []string
			for _, b := range extracted[name] {
				binNames = append(binNames, b.Name)
			}

			installedAsDep := c.Pkg.IsDep
			if prev, ok := s.Installed[name]; ok && !prev.InstalledAsDep {
				installedAsDep = false
			}

			s.Installed[name] = manifest.InstalledPackage{
				Manifest:       c.Pkg.Manifest,
				RepoName:       c.Pkg.RepoName,
				Version:        version,
				InstalledAt:    now,
				Binaries:       binNames,
				InstalledAsDep: installedAsDep,
			}
		}
		return nil
	})
}

func (in *Installer) needsConfirmation(toInstall []planner.Classified, policy planner.Policy) bool {
	if policy == planner.Update || policy == planner.Reinstall {
		return true
	}
	for _, c := range toInstall {
		if c.Pkg.IsDep {
			return true
		}
	}
	return false
}

func toReporterAdapter(r reporter.Reporter) downloader.Reporter {
	if r == nil {
		return nil
	}
	return downloaderReporterAdapter{r: r}
}

type downloaderReporterAdapter struct {
	r reporter.Reporter
}

func (a downloaderReporterAdapter) Message(msg string)       { a.r.Message(msg) }
func (a downloaderReporterAdapter) Bytes(done, total int64)  { a.r.Bytes(done, total) }
func (a downloaderReporterAdapter) Started(url, dest string) { a.r.DownloadStarted(url, dest) }

func toArchiveReporterAdapter(r reporter.Reporter) archive.Reporter {
	if r == nil {
		return nil
	}
	return archiveReporterAdapter{r: r}
}

type archiveReporterAdapter struct {
	r reporter.Reporter
}

func (a archiveReporterAdapter) Extracted(archivePath, extractDir string, fileCount int) {
	a.r.Extracted(archivePath, extractDir, fileCount)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return depserrors.FilesystemError{Op: "open", Path: src, Cause: err}
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o755)
	if err != nil {
		return depserrors.FilesystemError{Op: "create", Path: dest, Cause: err}
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return depserrors.FilesystemError{Op: "write", Path: dest, Cause: err}
	}

	if runtime.GOOS != "windows" {
		if err := out.Chmod(0o755); err != nil {
			return depserrors.FilesystemError{Op: "chmod", Path: dest, Cause: err}
		}
	}
	return nil
}
