package cmd

import (
	"fmt"
	"strings"

	"github.com/flanksource/clicky"
	"github.com/flanksource/clicky/task"
	flanksourceContext "github.com/flanksource/commons/context"
	"github.com/spf13/cobra"

	"github.com/flanksource/deps-fetch/pkg/database"
	"github.com/flanksource/deps-fetch/pkg/manifest"
	"github.com/flanksource/deps-fetch/pkg/planner"
	"github.com/flanksource/deps-fetch/pkg/resolver"
)

var checkUpdates bool

var installCmd = &cobra.Command{
	Use:   "install NAME[@CONSTRAINT]...",
	Short: "Resolve and install one or more packages",
	Long: `Resolve the named packages (plus their dependencies) against the
registered repositories and install them. A name may carry a version
constraint (tool@1.2.3, tool@^1.2, tool@latest); without one the
package's natural latest version is used.`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().BoolVar(&checkUpdates, "check-updates", false, "Only install missing packages, reporting available updates without applying them")
}

func runInstall(cmd *cobra.Command, args []string) error {
	policy := planner.Ignore
	switch {
	case force:
		policy = planner.Reinstall
	case checkUpdates:
		policy = planner.CheckUpdates
	}

	names, constraints := splitConstraints(args)

	var runErr error
	task.StartTask("install", func(ctx flanksourceContext.Context, t *task.Task) (interface{}, error) {
		resolved, err := resolver.Resolve(names, repoContents(db.Snapshot()))
		if err != nil {
			runErr = err
			return nil, err
		}
		for i := range resolved {
			if c, ok := constraints[resolved[i].Manifest.Name]; ok {
				resolved[i].Constraint = c
			}
		}

		in := newInstaller(&taskReporterSource{t: t})
		runErr = in.Run(ctx, resolved, policy)
		return nil, runErr
	})

	if exitCode := clicky.WaitForGlobalCompletion(); exitCode != 0 && runErr == nil {
		return fmt.Errorf("install failed with exit code %d", exitCode)
	}
	return runErr
}

// splitConstraints separates "name@constraint" arguments into bare names
// and a per-name constraint map.
func splitConstraints(args []string) ([]string, map[string]string) {
	names := make([]string, 0, len(args))
	constraints := make(map[string]string, len(args))
	for _, arg := range args {
		if name, c, ok := strings.Cut(arg, "@"); ok && name != "" && c != "" {
			names = append(names, name)
			constraints[name] = c
			continue
		}
		names = append(names, arg)
	}
	return names, constraints
}

func repoContents(s database.State) map[string]manifest.Repository {
	out := make(map[string]manifest.Repository, len(s.Repositories))
	for name, sourced := range s.Repositories {
		out[name] = sourced.Content
	}
	return out
}
