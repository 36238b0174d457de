// Package cmd is the thin cobra CLI shell around the engine packages.
// Every command handler builds options and calls into pkg/; no engine
// logic lives here.
package cmd

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/commons/logger"
	"github.com/spf13/cobra"

	depsconfig "github.com/flanksource/deps-fetch/pkg/config"
	"github.com/flanksource/deps-fetch/pkg/database"
	"github.com/flanksource/deps-fetch/pkg/installer"
	"github.com/flanksource/deps-fetch/pkg/platform"
	"github.com/flanksource/deps-fetch/pkg/reporter"
	"github.com/flanksource/deps-fetch/pkg/uninstaller"
)

var (
	binDir       string
	dataDir      string
	force        bool
	osOverride   string
	archOverride string

	settings depsconfig.Settings
	db       *database.Database
)

var rootCmd = &cobra.Command{
	Use:          "deps-fetch",
	Short:        "A user-space manager for downloading and installing binary tools",
	Long:         `deps-fetch resolves, downloads, extracts, and installs binary tools declared in repository manifests.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		clicky.Flags.UseFlags()

		if osOverride != "" || archOverride != "" {
			host := platform.Current()
			if osOverride != "" {
				host.OS = platform.OS(osOverride)
			}
			if archOverride != "" {
				host.Arch = platform.Arch(archOverride)
			}
			platform.SetOverride(&host)
		}

		var err error
		settings, err = depsconfig.Load(dataDir, binDir)
		if err != nil {
			return fmt.Errorf("resolving settings: %w", err)
		}

		// bin-path never opens the database.
		if cmd.Name() == "bin-path" {
			return nil
		}

		db, err = database.Open(settings.DBPath)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}

		logger.Debugf("using data dir %s, bin dir %s", settings.DataDir, settings.BinDir)
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	clicky.BindAllFlags(rootCmd.PersistentFlags(), "tasks", "!format")

	rootCmd.PersistentFlags().StringVar(&binDir, "bin-dir", "", "Directory to install binaries (default: <data-dir>/bin)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Directory for the database and binaries (default: $DEPS_DATA_DIR or ~/.deps)")
	rootCmd.PersistentFlags().BoolVar(&force, "force", false, "Skip confirmation prompts (policy Reinstall where applicable)")
	rootCmd.PersistentFlags().StringVar(&osOverride, "os", "", "Override the host OS (linux, windows)")
	rootCmd.PersistentFlags().StringVar(&archOverride, "arch", "", "Override the host CPU architecture (x86_64, aarch64)")
}

func confirmer() reporter.Confirmer {
	if force {
		return reporter.AlwaysConfirm{}
	}
	return reporter.StdinConfirmer{}
}

func newInstaller(t *taskReporterSource) *installer.Installer {
	return &installer.Installer{
		DB:          db,
		BinDir:      settings.BinDir,
		Host:        platform.Current(),
		Reporter:    t.reporter(),
		Confirmer:   confirmer(),
		GitHubToken: settings.GitHubToken,
	}
}

func newUninstaller(t *taskReporterSource) *uninstaller.Uninstaller {
	return &uninstaller.Uninstaller{
		DB:        db,
		BinDir:    settings.BinDir,
		Confirmer: confirmer(),
		Reporter:  t.reporter(),
	}
}
