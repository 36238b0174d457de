package installer

import (
	"context"
	"os"
	"path/filepath"

	"github.com/flanksource/deps-fetch/pkg/depserrors"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/planner"
)

// Repair proactively scans the named installed packages for missing
// binaries and re-runs the install state machine, restricted to the
// broken names, under policy Reinstall.
func (in *Installer) Repair(ctx context.Context, names []string) error {
	snapshot := in.DB.Snapshot()

	var broken []manifest.ResolvedPkg
	for _, name := range names {
		ip, ok := snapshot.Installed[name]
		if !ok {
			return depserrors.NotInstalled{Name: name}
		}
		if allBinariesPresent(ip, in.BinDir) {
			continue
		}
		broken = append(broken, manifest.ResolvedPkg{
			Manifest: ip.Manifest,
			RepoName: ip.RepoName,
			IsDep:    ip.InstalledAsDep,
		})
	}

	if len(broken) == 0 {
		return nil
	}

	return in.Run(ctx, broken, planner.Reinstall)
}

func allBinariesPresent(ip manifest.InstalledPackage, binDir string) bool {
	for _, b := range ip.Binaries {
		if _, err := os.Stat(filepath.Join(binDir, b)); err != nil {
			return false
		}
	}
	return true
}
