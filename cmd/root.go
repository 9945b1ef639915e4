package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "recurring-card",
	Short: "Creates recurring cards on a board, one open card per schedule",
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(migrateCmd)
}
