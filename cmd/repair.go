package cmd

import (
	"fmt"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/spf13/cobra"
)

var repairCmd = &cobra.Command{
	Use:          "repair NAME...",
	Short:        "Reinstall packages whose recorded binaries are missing from disk",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runRepair,
}

func init() {
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	var runErr error
	task.StartTask("repair", func(ctx flanksourceContext.Context, t *task.Task) (interface{}, error) {
		in := newInstaller(&taskReporterSource{t: t})
		runErr = in.Repair(ctx, args)
		return nil, runErr
	})

	if exitCode := clicky.WaitForGlobalCompletion(); exitCode != 0 && runErr == nil {
		return fmt.Errorf("repair failed with exit code %d", exitCode)
	}
	return runErr
}
