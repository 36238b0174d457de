// Package planner classifies resolved packages into install phases given
// the database and an installed-handling policy.
package planner

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/platform"
)

// Policy is the installed-handling policy driving classification.
type Policy int

const (
	Ignore Policy = iota
	CheckUpdates
	Update
	Reinstall
)

// Bucket names the classification outcome for one resolved package.
type Bucket string

const (
	AlreadyInstalled     Bucket = "already_installed"
	AlreadyInstalledDeps Bucket = "already_installed_deps"
	MissingPkgs          Bucket = "missing_pkgs"
	MissingDeps          Bucket = "missing_deps"
	NoUpdateNeeded       Bucket = "no_update_needed"
	UpdateAvailable      Bucket = "update_available"
	NeedsUpdating        Bucket = "needs_updating"
	ReinstallBucket      Bucket = "reinstall"
)

// Classified is one resolved package plus its bucket and (if fetched) asset info.
type Classified struct {
	Pkg       manifest.ResolvedPkg
	Bucket    Bucket
	AssetInfo *manifest.AssetInfo
}

// Plan is the full classification result for one command.
type Plan struct {
	Items        []Classified
	NeedsNetwork bool
}

// ToInstall returns the subset requiring a download. UpdateAvailable is
// excluded: under CheckUpdates an available update is reported, never
// applied.
func (p Plan) ToInstall() []Classified {
	var out []Classified
	for _, c := range p.Items {
		switch c.Bucket {
		case MissingPkgs, MissingDeps, NeedsUpdating, ReinstallBucket:
			out = append(out, c)
		}
	}
	return out
}

// UpdatesAvailable returns the packages CheckUpdates found stale.
func (p Plan) UpdatesAvailable() []Classified {
	var out []Classified
	for _, c := range p.Items {
		if c.Bucket == UpdateAvailable {
			out = append(out, c)
		}
	}
	return out
}

// AssetInfoFetcher resolves the AssetInfo for one resolved package; callers
// supply an implementation backed by pkg/assetsource.
type AssetInfoFetcher func(ctx context.Context, pkg manifest.ResolvedPkg, host platform.Platform) (manifest.AssetInfo, error)

// Run classifies resolved packages in three stages: a repository-migration
// pre-check, a fast path that skips all network calls when everything
// requested is already installed under the Ignore policy, and a main path
// that fetches AssetInfo concurrently where a version comparison is needed.
func Run(ctx context.Context, resolved []manifest.ResolvedPkg, policy Policy, installed map[string]manifest.InstalledPackage, host platform.Platform, fetch AssetInfoFetcher) (Plan, error) {
	// Pre-check: repo_name must match for already-installed names.
	for _, r := range resolved {
		if ip, ok := installed[r.Manifest.Name]; ok {
			if ip.RepoName != r.RepoName {
				return Plan{}, depserrors.RepositoryMigration{Name: r.Manifest.Name, InstalledAs: ip.RepoName, Current: r.RepoName}
			}
		}
	}

	if policy == Ignore && allNonDepsInstalled(resolved, installed) {
		return fastPath(resolved), nil
	}

	return mainPath(ctx, resolved, policy, installed, host, fetch)
}

func allNonDepsInstalled(resolved []manifest.ResolvedPkg, installed map[string]manifest.InstalledPackage) bool {
	for _, r := range resolved {
		if r.IsDep {
			continue
		}
		if _, ok := installed[r.Manifest.Name]; !ok {
			return false
		}
	}
	return true
}

// fastPath partitions purely by the dep flag: once every non-dep is
// already installed under Ignore, everything is classified as installed
// and nothing reaches ToInstall.
func fastPath(resolved []manifest.ResolvedPkg) Plan {
	items := make([]Classified, 0, len(resolved))
	for _, r := range resolved {
		bucket := AlreadyInstalled
		if r.IsDep {
			bucket = AlreadyInstalledDeps
		}
		items = append(items, Classified{Pkg: r, Bucket: bucket})
	}
	return Plan{Items: items}
}

type fetchResult struct {
	index int
	info  manifest.AssetInfo
	err   error
}

func mainPath(ctx context.Context, resolved []manifest.ResolvedPkg, policy Policy, installed map[string]manifest.InstalledPackage, host platform.Platform, fetch AssetInfoFetcher) (Plan, error) {
	needsFetch := make([]int, 0, len(resolved))
	for i, r := range resolved {
		if _, isInstalled := installed[r.Manifest.Name]; !isInstalled {
			continue // a missing package never needs a fetch to classify
		}
		if policy == Ignore {
			continue // already installed + Ignore never compares versions
		}
		needsFetch = append(needsFetch, i)
	}

	infos := make(map[int]manifest.AssetInfo, len(needsFetch))
	if len(needsFetch) > 0 {
		g, gctx := errgroup.WithContext(ctx)
		results := make(chan fetchResult, len(needsFetch))
		for _, idx := range needsFetch {
			idx := idx
			g.Go(func() error {
				info, err := fetch(gctx, resolved[idx], host)
				results <- fetchResult{index: idx, info: info, err: err}
				if err != nil {
					return err
				}
				return nil
			})
		}
		err := g.Wait()
		close(results)
		for r := range results {
			if r.err == nil {
				infos[r.index] = r.info
			}
		}
		if err != nil {
			return Plan{}, err
		}
	}

	items := make([]Classified, 0, len(resolved))
	for i, r := range resolved {
		ip, isInstalled := installed[r.Manifest.Name]

		if !isInstalled {
			bucket := MissingPkgs
			if r.IsDep {
				bucket = MissingDeps
			}
			items = append(items, Classified{Pkg: r, Bucket: bucket})
			continue
		}

		if r.IsDep && policy == Ignore {
			items = append(items, Classified{Pkg: r, Bucket: AlreadyInstalledDeps})
			continue
		}

		if !r.IsDep && policy == Ignore {
			items = append(items, Classified{Pkg: r, Bucket: AlreadyInstalled})
			continue
		}

		info := infos[i]
		sameVersion := info.Version == ip.Version

		switch policy {
		case Reinstall:
			if r.IsDep && sameVersion {
				items = append(items, Classified{Pkg: r, Bucket: AlreadyInstalledDeps})
				continue
			}
			info := info
			items = append(items, Classified{Pkg: r, Bucket: ReinstallBucket, AssetInfo: &info})
		case CheckUpdates:
			if sameVersion {
				items = append(items, Classified{Pkg: r, Bucket: NoUpdateNeeded})
			} else {
				info := info
				items = append(items, Classified{Pkg: r, Bucket: UpdateAvailable, AssetInfo: &info})
			}
		case Update:
			if sameVersion {
				items = append(items, Classified{Pkg: r, Bucket: NoUpdateNeeded})
			} else {
				info := info
				items = append(items, Classified{Pkg: r, Bucket: NeedsUpdating, AssetInfo: &info})
			}
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].Pkg.Manifest.Name < items[j].Pkg.Manifest.Name
	})

	return Plan{Items: items, NeedsNetwork: len(needsFetch) > 0}, nil
}
