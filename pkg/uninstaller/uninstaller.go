// Package uninstaller implements reverse-dependency analysis and the
// removal of installed packages, following the same Plan-then-commit
// shape as pkg/installer but without a fetch/extract phase.
package uninstaller

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/samber/lo"

	"github.com/flanksource/deps-fetch/pkg/database"
	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/reporter"
	"github.com/flanksource/deps-fetch/pkg/utils"
)

// Uninstaller removes installed packages and their now-orphaned dependencies.
type Uninstaller struct {
	DB        *database.Database
	BinDir    string
	Confirmer reporter.Confirmer
	Reporter  reporter.Reporter
}

// Plan is the computed removal set for one uninstall command.
type Plan struct {
	Requested []string
	Orphans   []string
}

// All returns the full removal set, requested names first.
func (p Plan) All() []string {
	return append(append([]string{}, p.Requested...), p.Orphans...)
}

// Compute builds the removal plan: it validates the requested names are
// installed, rejects removals that would break a still-installed
// dependent, and, when includeDeps is true, iteratively adds dependencies
// that would become orphaned. includeDeps mirrors the CLI's --deps flag:
// when false, orphan computation is skipped.
func Compute(installed map[string]manifest.InstalledPackage, requested []string, includeDeps bool) (Plan, error) {
	requestedSet := make(map[string]bool, len(requested))
	for _, name := range requested {
		if _, ok := installed[name]; !ok {
			return Plan{}, depserrors.NotInstalled{Name: name}
		}
		requestedSet[name] = true
	}

	reverse := make(map[string][]string)
	for name, ip := range installed {
		for _, dep := range ip.Manifest.DependsOn {
			reverse[dep] = append(reverse[dep], name)
		}
	}

	for _, name := range requested {
		blockers := lo.Filter(reverse[name], func(blocker string, _ int) bool {
			return !requestedSet[blocker]
		})
		if len(blockers) > 0 {
			sort.Strings(blockers)
			return Plan{}, depserrors.WouldBreakDependents{Name: name, Dependents: blockers}
		}
	}

	removal := make(map[string]bool, len(requestedSet))
	for name := range requestedSet {
		removal[name] = true
	}

	if includeDeps {
		for {
			changed := false
			for name, ip := range installed {
				if removal[name] || !ip.InstalledAsDep {
					continue
				}
				blockers := lo.Filter(reverse[name], func(blocker string, _ int) bool {
					return !removal[blocker]
				})
				if len(blockers) == 0 {
					removal[name] = true
					changed = true
				}
			}
			if !changed {
				break
			}
		}
	}

	orphans := make([]string, 0, len(removal))
	for name := range removal {
		if !requestedSet[name] {
			orphans = append(orphans, name)
		}
	}
	sort.Strings(orphans)

	reqOut := append([]string{}, requested...)
	sort.Strings(reqOut)

	return Plan{Requested: reqOut, Orphans: orphans}, nil
}

// Run confirms the removal, verifies every recorded binary still exists,
// deletes the binaries, and commits the database update.
func (u *Uninstaller) Run(plan Plan) error {
	all := plan.All()
	if len(all) == 0 {
		return nil
	}

	if u.Confirmer != nil {
		prompt := "Remove " + joinNames(all) + "?"
		if !u.Confirmer.Confirm(prompt) {
			return depserrors.UserAbort{Prompt: prompt}
		}
	}

	snapshot := u.DB.Snapshot()
	for _, name := range all {
		ip, ok := snapshot.Installed[name]
		if !ok {
			return depserrors.NotInstalled{Name: name}
		}
		for _, b := range ip.Binaries {
			path := filepath.Join(u.BinDir, b)
			_, err := os.Stat(path)
			if u.Reporter != nil {
				u.Reporter.Message(fmt.Sprintf("checking %s: %s", b, utils.LogPath(path)))
			}
			if err != nil {
				return depserrors.BrokenInstall{Name: name, Missing: b}
			}
		}
	}

	for _, name := range all {
		ip := snapshot.Installed[name]
		for _, b := range ip.Binaries {
			path := filepath.Join(u.BinDir, b)
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				return depserrors.FilesystemError{Op: "remove", Path: path, Cause: err}
			}
			if u.Reporter != nil {
				u.Reporter.Message(fmt.Sprintf("removed %s", b))
			}
		}
	}

	return u.DB.Update(func(s *database.State) error {
		for _, name := range all {
			delete(s.Installed, name)
		}
		return nil
	})
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}
