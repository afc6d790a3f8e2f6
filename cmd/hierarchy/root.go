package main

import (
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hierarchy",
		Short: "Hierarchy extraction and nested-set build tools",
	}
	cmd.AddCommand(newExtractCmd())
	cmd.AddCommand(newMigrateCmd())
	return cmd
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
