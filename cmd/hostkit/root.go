package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "hostkit",
		Short: "Startup orchestration for hosted services",
		Long: `hostkit migrates the catalog database with bounded retries and can serve
health and metrics endpoints while the host runs.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags (available to all commands)
	root.PersistentFlags().String("config", "", "Path to a YAML config file (HOSTKIT_* variables override it)")

	root.AddCommand(newMigrateCmd(), newServeCmd(), newVersionCmd())
	return root
}
