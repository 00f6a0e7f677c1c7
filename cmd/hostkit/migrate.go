package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Migrate (and in Development, seed) the catalog database",
		Long: `Applies the embedded catalog migrations with up to four attempts, waiting
3s, 5s and 8s between them on transient connection errors. Failures are
logged; pass --strict to also exit non-zero.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			strict, _ := cmd.Flags().GetBool("strict")

			rt, err := newRuntime(cmd)
			if err != nil {
				return err
			}
			defer rt.close()

			out, err := rt.migrate(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), out.String())
			if strict && !out.Succeeded {
				return errors.New("catalog initialization failed")
			}
			return nil
		},
	}
	cmd.Flags().Bool("strict", false, "Exit with an error when initialization fails")
	return cmd
}
