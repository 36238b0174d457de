package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var binPathCmd = &cobra.Command{
	Use:          "bin-path",
	Short:        "Print the binary directory and exit without loading the database",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Println(settings.BinDir)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(binPathCmd)
}
