// Package main provides the main entry point for the exam generation admin CLI tool.
package main

import (
	"context"
	"fmt"
	"os"

	"examgen/cmd/adm/commands"
	"examgen/internal/config"
	"examgen/internal/database"
	"examgen/internal/observability"

	"github.com/spf13/cobra"
)

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Quieter logging and no exporters for the admin CLI
	cfg.Server.LogLevel = "error"
	cfg.OpenTelemetry.EnableTracing = false
	cfg.OpenTelemetry.EnableMetrics = false
	cfg.OpenTelemetry.EnableLogging = false

	tp, mp, logger, err := observability.SetupObservability(&cfg.OpenTelemetry, "examgen-admin")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize observability: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if tp != nil {
			if err := tp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down tracer provider", map[string]interface{}{"error": err.Error(), "provider": "tracer"})
			}
		}
		if mp != nil {
			if err := mp.Shutdown(context.TODO()); err != nil {
				logger.Warn(ctx, "Error shutting down meter provider", map[string]interface{}{"error": err.Error(), "provider": "meter"})
			}
		}
	}()

	dbManager := database.NewManager(logger)

	rootCmd := &cobra.Command{
		Use:   "adm",
		Short: "Exam Generation Administration Tool",
		Long: `Exam Generation Administration Tool

A CLI tool for administering the exam generation service.
Provides commands for configuration inspection, database migrations, and exam maintenance.`,

		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				fmt.Printf("Error showing help: %v\n", err)
			}
		},
	}

	rootCmd.AddCommand(commands.ConfigCommands(cfg, logger))
	rootCmd.AddCommand(commands.DatabaseCommands(cfg, logger, dbManager))
	rootCmd.AddCommand(commands.ExamCommands(cfg, logger, dbManager))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
