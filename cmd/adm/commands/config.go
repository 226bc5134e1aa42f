// Package commands provides CLI commands for the admin tool
package commands

import (
	"fmt"

	"examgen/internal/config"
	"examgen/internal/observability"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// ConfigCommands returns the configuration inspection commands
func ConfigCommands(cfg *config.Config, logger *observability.Logger) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration inspection commands",
		Long: `Configuration inspection commands for the exam generation service.

Available commands:
  validate  - Validate the effective configuration
  show      - Print the effective configuration as YAML`,
	}

	configCmd.AddCommand(validateCmd(cfg))
	configCmd.AddCommand(showCmd(cfg))

	return configCmd
}

func validateCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the effective configuration",
		Long:  `Validate the effective configuration, including provider allow-lists and generation policy bounds.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			fmt.Println("Configuration is valid")
			fmt.Printf("Default model: %s\n", cfg.DefaultModel())
			fmt.Printf("Database: %s\n", maskDatabaseURL(cfg.Database.URL))
			return nil
		},
	}
}

func showCmd(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Long:  `Print the effective configuration after defaults, file, and environment overrides, with secrets masked.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			// Copy so masking never touches the live config.
			masked := *cfg
			masked.Database.URL = maskDatabaseURL(masked.Database.URL)
			masked.Providers = append([]config.ProviderConfig(nil), cfg.Providers...)
			for i := range masked.Providers {
				if masked.Providers[i].APIKey != "" {
					masked.Providers[i].APIKey = "***"
				}
			}
			if masked.Diagram.APIKey != "" {
				masked.Diagram.APIKey = "***"
			}
			if masked.Extractor.APIKey != "" {
				masked.Extractor.APIKey = "***"
			}

			out, err := yaml.Marshal(&masked)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	}
}
