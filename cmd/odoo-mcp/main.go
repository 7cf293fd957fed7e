package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tombee/odoo-mcp/internal/log"
)

// Version information (injected via ldflags at build time).
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	logger := log.New(log.FromEnv())

	root := &cobra.Command{
		Use:           "odoo-mcp",
		Short:         "MCP gateway exposing ERP operations as tools, prompts, and resources",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand(logger))
	root.AddCommand(newValidateConfigCommand())
	root.AddCommand(newVersionCommand())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("odoo-mcp %s (commit: %s, built: %s)\n", version, commit, buildDate)
			return nil
		},
	}
}
