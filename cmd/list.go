package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/flanksource/deps-fetch/pkg/utils"
)

var listCmd = &cobra.Command{
	Use:          "list",
	Aliases:      []string{"installed"},
	Short:        "List installed packages",
	SilenceUsage: true,
	RunE:         runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	snapshot := db.Snapshot()

	names := make([]string, 0, len(snapshot.Installed))
	for name := range snapshot.Installed {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ip := snapshot.Installed[name]
		dep := ""
		if ip.InstalledAsDep {
			dep = " (dependency)"
		}
		fmt.Printf("%s %s%s [%s]\n", name, utils.DisplayVersion(ip.Version), dep, ip.RepoName)
	}
	return nil
}
