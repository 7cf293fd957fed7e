package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/odoo-mcp/internal/config"
)

func newValidateConfigCommand() *cobra.Command {
	var dir string

	cmd := &cobra.Command{
		Use:   "validate-config",
		Short: "Load and validate every configuration document without starting the gateway",
		Long: `validate-config reads instances.json, tools.json, prompts.json, and
server.json from the configuration directory, applying the same
validation ConfigStore runs on every load, and reports the first
failure. Exit code is non-zero if any document is invalid.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateConfig(dir)
		},
	}

	cmd.Flags().StringVar(&dir, "config-dir", "", "Configuration directory (default from ODOO_CONFIG_DIR, or ./config)")

	return cmd
}

func runValidateConfig(dir string) error {
	if dir == "" {
		dir = config.ConfigDir()
	}
	store, err := config.NewStore(dir, nil, false)
	if err != nil {
		return fmt.Errorf("create config store: %w", err)
	}

	if _, err := store.LoadInstances(); err != nil {
		return fmt.Errorf("instances.json: %w", err)
	}
	if _, err := store.LoadTools(); err != nil {
		return fmt.Errorf("tools.json: %w", err)
	}
	if _, err := store.LoadPrompts(); err != nil {
		return fmt.Errorf("prompts.json: %w", err)
	}
	if _, err := store.LoadServer(); err != nil {
		return fmt.Errorf("server.json: %w", err)
	}

	fmt.Printf("all configuration documents in %s are valid\n", dir)
	return nil
}
