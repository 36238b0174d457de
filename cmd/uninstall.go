package cmd

import (
	"github.com/spf13/cobra"

	"github.com/flanksource/deps-fetch/pkg/uninstaller"
)

var includeDeps bool

var uninstallCmd = &cobra.Command{
	Use:          "uninstall NAME...",
	Short:        "Remove installed packages, optionally with their orphaned dependencies",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runUninstall,
}

func init() {
	rootCmd.AddCommand(uninstallCmd)
	uninstallCmd.Flags().BoolVar(&includeDeps, "deps", false, "Also remove dependencies that become orphaned")
}

func runUninstall(cmd *cobra.Command, args []string) error {
	snapshot := db.Snapshot()

	plan, err := uninstaller.Compute(snapshot.Installed, args, includeDeps)
	if err != nil {
		return err
	}

	un := newUninstaller(nil)
	return un.Run(plan)
}
