// Package repofile loads repository manifests from YAML files on disk and
// resolves glob patterns (via doublestar) so add-repo can point at a
// directory of repository files instead of a single one.
package repofile

import (
	"fmt"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"

	"github.com/flanksource/deps-fetch/pkg/manifest"
)

// Load reads and validates a single YAML repository file.
func Load(path string) (manifest.SourcedRepository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return manifest.SourcedRepository{}, fmt.Errorf("reading repository file %s: %w", path, err)
	}

	var content manifest.Repository
	if err := yaml.Unmarshal(data, &content); err != nil {
		return manifest.SourcedRepository{}, fmt.Errorf("parsing repository file %s: %w", path, err)
	}

	if err := content.Validate(); err != nil {
		return manifest.SourcedRepository{}, err
	}

	return manifest.SourcedRepository{
		Content: content,
		Source:  manifest.SourceLocation{Path: path, JSON: false},
	}, nil
}

// LoadGlob expands pattern (which may contain doublestar's "**" for
// recursive matching, e.g. "repos/**/*.yaml") against the filesystem and
// loads every match, used by the CLI's add-repo command when the
// operator names a directory of repository files instead of a single
// one.
func LoadGlob(pattern string) ([]manifest.SourcedRepository, error) {
	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding repository glob %s: %w", pattern, err)
	}

	out := make([]manifest.SourcedRepository, 0, len(matches))
	for _, path := range matches {
		repo, err := Load(path)
		if err != nil {
			return nil, err
		}
		out = append(out, repo)
	}
	return out, nil
}

// Refresh re-reads a repository from the location it was originally
// loaded from, used by the CLI's update-repos command.
func Refresh(loc manifest.SourceLocation) (manifest.SourcedRepository, error) {
	return Load(loc.Path)
}
