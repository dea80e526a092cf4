package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:           "posctl",
	Short:         "Maintenance commands for the POS backend",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var demoMode bool

func init() {
	rootCmd.PersistentFlags().BoolVar(&demoMode, "demo", false, "run against the seeded in-memory store instead of DATABASE_URL")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(exportShiftCmd)
}
