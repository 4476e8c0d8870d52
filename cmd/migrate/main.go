package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd(newMigrator).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open migratorFactory) *cobra.Command {
	var source string

	root := &cobra.Command{
		Use:           "migrate",
		Short:         "Apply discussion schema migrations",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&source, "source", "", "migration source URL (defaults to MIGRATIONS_PATH)")

	root.AddCommand(
		upCmd(open, &source),
		downCmd(open, &source),
		forceCmd(open, &source),
		versionCmd(open, &source),
	)
	return root
}
