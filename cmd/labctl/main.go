// Command labctl inspects the reference catalog and administers the LIMS database.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "labctl",
		Short:         "LIMS catalog and database tooling",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().String("catalog", "", "catalog YAML file (defaults to CATALOG_PATH, then the built-in catalog)")

	root.AddCommand(catalogCmd())
	root.AddCommand(classifyCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(seedCmd())
	root.AddCommand(reindexCmd())
	return root
}
