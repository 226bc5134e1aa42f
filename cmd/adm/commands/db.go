package commands

import (
	"context"
	"os"

	"examgen/internal/config"
	"examgen/internal/database"
	"examgen/internal/observability"
	contextutils "examgen/internal/utils"

	"github.com/spf13/cobra"
)

// DatabaseCommands returns the database management commands
func DatabaseCommands(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for the exam generation service.

Available commands:
  migrate   - Apply pending schema migrations
  stats     - Show database statistics`,
	}

	dbCmd.AddCommand(migrateCmd(cfg, logger, dbManager))
	dbCmd.AddCommand(statsCmd(cfg, logger, dbManager))

	return dbCmd
}

func migrateCmd(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Long:  `Apply pending schema migrations from the configured migrations directory.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()
			logger.Info(ctx, "Running migrations", map[string]interface{}{
				"config_file": os.Getenv("EXAMGEN_CONFIG_FILE"),
				"database":    maskDatabaseURL(cfg.Database.URL),
				"path":        cfg.Database.MigrationsPath,
			})

			if err := dbManager.RunMigrations(cfg.Database); err != nil {
				logger.Error(ctx, "Migrations failed", err, nil)
				return contextutils.WrapErrorf(err, "migrations failed")
			}

			logger.Info(ctx, "Migrations applied", nil)
			return nil
		},
	}
}

func statsCmd(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Long:  `Show database statistics including exam and question counts.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			ctx := context.Background()

			db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
			if err != nil {
				return contextutils.WrapErrorf(err, "failed to connect to database")
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					logger.Warn(ctx, "Failed to close database connection", map[string]interface{}{"error": closeErr.Error()})
				}
			}()

			logger.Info(ctx, "Diagnostic info", map[string]interface{}{
				"config_file": os.Getenv("EXAMGEN_CONFIG_FILE"),
				"database":    getDatabaseInfo(db),
			})

			var examCount, questionCount int
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM exams").Scan(&examCount); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count exams: %v", err)
			}
			if err := db.QueryRowContext(ctx, "SELECT COUNT(*) FROM questions").Scan(&questionCount); err != nil {
				return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to count questions: %v", err)
			}

			logger.Info(ctx, "Database statistics", map[string]interface{}{
				"total_exams":     examCount,
				"total_questions": questionCount,
				"database":        "PostgreSQL",
				"status":          "Connected",
			})
			return nil
		},
	}
}
