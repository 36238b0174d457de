// Package config resolves the handful of process-wide settings the CLI
// needs before it can open the database or pick a host platform: the
// data directory, the binary directory, and the GitHub token. Flags win
// over environment variables, which win over the compiled-in defaults.
package config

import (
	"os"
	"path/filepath"

	"github.com/flanksource/deps-fetch/pkg/assetsource"
)

// DataDirEnvVar overrides the default data directory.
const DataDirEnvVar = "DEPS_DATA_DIR"

const (
	dbFileName = "data.db"
	binDirName = "bin"
)

// Settings is the resolved set of process-wide paths and credentials the
// CLI threads into the Installer/Uninstaller/Database.
type Settings struct {
	DataDir     string
	BinDir      string
	DBPath      string
	GitHubToken string
}

// Load resolves Settings from the environment and CLI overrides.
// binDirOverride/dataDirOverride are the (possibly empty) values of the
// --bin-dir/--data-dir flags. An empty data-dir override falls back to
// the environment variable, then ~/.deps; an empty bin-dir override falls
// back to <data dir>/bin, with no environment variable consulted.
func Load(dataDirOverride, binDirOverride string) (Settings, error) {
	dataDir := dataDirOverride
	if dataDir == "" {
		dataDir = os.Getenv(DataDirEnvVar)
	}
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Settings{}, err
		}
		dataDir = filepath.Join(home, ".deps")
	}
	if !filepath.IsAbs(dataDir) {
		abs, err := filepath.Abs(dataDir)
		if err == nil {
			dataDir = abs
		}
	}

	binDir := binDirOverride
	if binDir == "" {
		binDir = filepath.Join(dataDir, binDirName)
	}

	return Settings{
		DataDir:     dataDir,
		BinDir:      binDir,
		DBPath:      filepath.Join(dataDir, dbFileName),
		GitHubToken: os.Getenv(assetsource.GitHubTokenEnvVar),
	}, nil
}
