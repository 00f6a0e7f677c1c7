package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aponysus/hostkit/hostkit"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of hostkit",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hostkit version %s\n", hostkit.Version)
		},
	}
}
