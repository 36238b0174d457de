package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/flanksource/deps-fetch/pkg/database"
	"github.com/flanksource/deps-fetch/pkg/repofile"
)

var addRepoCmd = &cobra.Command{
	Use:          "add-repo PATH",
	Short:        "Register a repository from a YAML file or glob of files",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runAddRepo,
}

var updateReposCmd = &cobra.Command{
	Use:          "update-repos [NAME...]",
	Short:        "Re-fetch registered repositories from their recorded source location",
	SilenceUsage: true,
	RunE:         runUpdateRepos,
}

var removeReposCmd = &cobra.Command{
	Use:          "remove-repos NAME...",
	Short:        "Unregister repositories",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runRemoveRepos,
}

var listReposCmd = &cobra.Command{
	Use:          "list-repos",
	Short:        "List registered repositories",
	SilenceUsage: true,
	RunE:         runListRepos,
}

func init() {
	rootCmd.AddCommand(addRepoCmd, updateReposCmd, removeReposCmd, listReposCmd)
}

func runAddRepo(cmd *cobra.Command, args []string) error {
	repos, err := repofile.LoadGlob(args[0])
	if err != nil {
		return err
	}
	if len(repos) == 0 {
		return fmt.Errorf("no repository files matched %s", args[0])
	}

	return db.Update(func(s *database.State) error {
		for _, repo := range repos {
			s.Repositories[repo.Content.Name] = repo
		}
		return nil
	})
}

func runUpdateRepos(cmd *cobra.Command, args []string) error {
	snapshot := db.Snapshot()

	names := args
	if len(names) == 0 {
		for name := range snapshot.Repositories {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	return db.Update(func(s *database.State) error {
		for _, name := range names {
			existing, ok := s.Repositories[name]
			if !ok {
				return fmt.Errorf("repository %s is not registered", name)
			}
			refreshed, err := repofile.Refresh(existing.Source)
			if err != nil {
				return err
			}
			s.Repositories[name] = refreshed
		}
		return nil
	})
}

func runRemoveRepos(cmd *cobra.Command, args []string) error {
	return db.Update(func(s *database.State) error {
		for _, name := range args {
			delete(s.Repositories, name)
		}
		return nil
	})
}

func runListRepos(cmd *cobra.Command, args []string) error {
	snapshot := db.Snapshot()

	names := make([]string, 0, len(snapshot.Repositories))
	for name := range snapshot.Repositories {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		repo := snapshot.Repositories[name]
		fmt.Printf("%s: %d package(s), source %s\n", name, len(repo.Content.Packages), repo.Source.Path)
	}
	return nil
}
