package cmd

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/spf13/cobra"

	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/planner"
	"github.com/flanksource/deps-fetch/pkg/resolver"
)

var updateCmd = &cobra.Command{
	Use:          "update [NAME...]",
	Short:        "Refresh manifests and upgrade installed packages",
	SilenceUsage: true,
	RunE:         runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	policy := planner.Update
	if force {
		policy = planner.Reinstall
	}

	var runErr error
	task.StartTask("update", func(ctx flanksourceContext.Context, t *task.Task) (interface{}, error) {
		snapshot := db.Snapshot()

		targets := snapshot.Installed
		if len(args) > 0 {
			targets = make(map[string]manifest.InstalledPackage, len(args))
			for _, name := range args {
				ip, ok := snapshot.Installed[name]
				if !ok {
					runErr = fmt.Errorf("package %s is not installed", name)
					return nil, runErr
				}
				targets[name] = ip
			}
		}

		resolved, orphans := resolver.ResolveInstalled(targets, repoContents(snapshot))
		for name, err := range orphans {
			t.Errorf("%s: %v", name, err)
		}

		in := newInstaller(&taskReporterSource{t: t})
		runErr = in.Run(ctx, resolved, policy)
		return nil, runErr
	})

	if exitCode := clicky.WaitForGlobalCompletion(); exitCode != 0 && runErr == nil {
		return fmt.Errorf("update failed with exit code %d", exitCode)
	}
	return runErr
}
