package resolver

import (
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/flanksource/deps-fetch/pkg/manifest"
)

const suggestionDistance = 3
const maxSuggestions = 3

// suggest lists near-matches among all known package names across every
// repository, used to annotate a PackageNotFound error with "did you
// mean" candidates.
func suggest(name string, repos map[string]manifest.Repository) []string {
	type candidate struct {
		name string
		dist int
	}
	var candidates []candidate
	for _, repo := range repos {
		for pkgName := range repo.Packages {
			d := levenshtein.ComputeDistance(name, pkgName)
			if d <= suggestionDistance {
				candidates = append(candidates, candidate{name: pkgName, dist: d})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist != candidates[j].dist {
			return candidates[i].dist < candidates[j].dist
		}
		return candidates[i].name < candidates[j].name
	})

	out := make([]string, 0, maxSuggestions)
	seen := make(map[string]bool)
	for _, c := range candidates {
		if seen[c.name] {
			continue
		}
		seen[c.name] = true
		out = append(out, c.name)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
