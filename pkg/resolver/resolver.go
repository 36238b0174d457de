// Package resolver expands a set of requested package names, plus their
// transitive dependencies, into resolved packages against a set of
// registered repositories. Breadth-first by construction: each name is
// visited at most once via a name-keyed queue.
package resolver

import (
	"sort"

	"github.com/samber/lo"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
)

// Resolve expands names and their transitive dependencies into a
// de-duplicated set of resolved packages, breadth-first.
func Resolve(names []string, repos map[string]manifest.Repository) ([]manifest.ResolvedPkg, error) {
	type queued struct {
		name      string
		fromRepo  string // "" if not yet bound by a parent
		requested bool
	}

	visited := make(map[string]manifest.ResolvedPkg, len(names))
	queue := make([]queued, 0, len(names))
	for _, n := range names {
		queue = append(queue, queued{name: n, requested: true})
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if existing, ok := visited[cur.name]; ok {
			if cur.fromRepo != "" && cur.fromRepo != existing.RepoName {
				return nil, depserrors.RepositoryConflict{Name: cur.name, Repos: []string{existing.RepoName, cur.fromRepo}}
			}
			if cur.requested {
				existing.IsDep = false
				visited[cur.name] = existing
			}
			continue
		}

		repoName, pkg, err := locate(cur.name, cur.fromRepo, repos)
		if err != nil {
			return nil, err
		}

		rp := manifest.ResolvedPkg{
			Manifest: pkg,
			RepoName: repoName,
			IsDep:    !cur.requested,
		}
		visited[cur.name] = rp

		for _, dep := range pkg.DependsOn {
			if _, ok := repos[repoName].Packages[dep]; !ok {
				return nil, depserrors.MissingDependency{Repo: repoName, Package: pkg.Name, Missing: dep}
			}
			queue = append(queue, queued{name: dep, fromRepo: repoName})
		}
	}

	names2 := lo.Keys(visited)
	sort.Strings(names2)
	out := make([]manifest.ResolvedPkg, 0, len(names2))
	for _, n := range names2 {
		out = append(out, visited[n])
	}
	return out, nil
}

// locate finds the single repository providing name. If fromRepo is
// non-empty, the dependency lookup is constrained to that repository (a
// dependency always resolves within its own originating repository).
func locate(name, fromRepo string, repos map[string]manifest.Repository) (string, manifest.PackageManifest, error) {
	if fromRepo != "" {
		repo, ok := repos[fromRepo]
		if !ok {
			return "", manifest.PackageManifest{}, depserrors.MissingDependency{Repo: fromRepo, Package: "", Missing: name}
		}
		pkg, ok := repo.Packages[name]
		if !ok {
			return "", manifest.PackageManifest{}, depserrors.MissingDependency{Repo: fromRepo, Package: "", Missing: name}
		}
		return fromRepo, pkg, nil
	}

	var matches []string
	var found manifest.PackageManifest
	repoNames := lo.Keys(repos)
	sort.Strings(repoNames)
	for _, rn := range repoNames {
		if pkg, ok := repos[rn].Packages[name]; ok {
			matches = append(matches, rn)
			found = pkg
		}
	}

	switch len(matches) {
	case 0:
		return "", manifest.PackageManifest{}, depserrors.PackageNotFound{Name: name, Suggestions: suggest(name, repos)}
	case 1:
		return matches[0], found, nil
	default:
		return "", manifest.PackageManifest{}, depserrors.AmbiguousPackage{Name: name, Repos: matches}
	}
}

// ResolveInstalled refreshes each installed package by looking up its
// manifest in its recorded repository. Absent repositories/manifests are
// reported per-name, not fatal to the batch.
func ResolveInstalled(installed map[string]manifest.InstalledPackage, repos map[string]manifest.Repository) ([]manifest.ResolvedPkg, map[string]error) {
	names := lo.Keys(installed)
	sort.Strings(names)

	out := make([]manifest.ResolvedPkg, 0, len(names))
	orphans := make(map[string]error)

	for _, name := range names {
		ip := installed[name]
		repo, ok := repos[ip.RepoName]
		if !ok {
			orphans[name] = depserrors.OrphanedInstall{Name: name, Reason: "repository " + ip.RepoName + " is no longer registered"}
			continue
		}
		pkg, ok := repo.Packages[name]
		if !ok {
			orphans[name] = depserrors.OrphanedInstall{Name: name, Reason: "no longer present in repository " + ip.RepoName}
			continue
		}
		out = append(out, manifest.ResolvedPkg{
			Manifest: pkg,
			RepoName: ip.RepoName,
			IsDep:    ip.InstalledAsDep,
		})
	}
	return out, orphans
}
