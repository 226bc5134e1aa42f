package commands

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"examgen/internal/config"
	"examgen/internal/database"
	"examgen/internal/observability"
	"examgen/internal/services"
	contextutils "examgen/internal/utils"

	"github.com/spf13/cobra"
)

// ExamCommands returns the exam maintenance commands
func ExamCommands(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager) *cobra.Command {
	examCmd := &cobra.Command{
		Use:   "exam",
		Short: "Exam maintenance commands",
		Long: `Exam maintenance commands for the exam generation service.

Available commands:
  list      - List stored exams
  export    - Export an exam to a CSV file
  delete    - Delete a stored exam`,
	}

	examCmd.AddCommand(listExamsCmd(cfg, logger, dbManager))
	examCmd.AddCommand(exportExamCmd(cfg, logger, dbManager))
	examCmd.AddCommand(deleteExamCmd(cfg, logger, dbManager))

	return examCmd
}

// withExamService connects to the database, builds the exam service, and
// guarantees the connection is closed after fn returns.
func withExamService(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager, fn func(ctx context.Context, svc *services.ExamService) error) error {
	ctx := context.Background()

	db, err := dbManager.InitDBWithoutMigrations(cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to connect to database")
	}
	defer func(db *sql.DB) {
		if closeErr := db.Close(); closeErr != nil {
			logger.Warn(ctx, "Failed to close database connection", map[string]interface{}{"error": closeErr.Error()})
		}
	}(db)

	return fn(ctx, services.NewExamService(db, logger))
}

func listExamsCmd(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored exams",
		RunE: func(_ *cobra.Command, _ []string) error {
			return withExamService(cfg, logger, dbManager, func(ctx context.Context, svc *services.ExamService) error {
				summaries, err := svc.ListExams(ctx, limit, 0)
				if err != nil {
					return err
				}
				if len(summaries) == 0 {
					fmt.Println("No exams stored")
					return nil
				}
				for _, s := range summaries {
					fmt.Printf("%s  %-40s  %d questions  %d marks  %s\n",
						s.ID, s.Title, s.QuestionCount, s.TotalMarks, s.CreatedAt.Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of exams to list")
	return cmd
}

func exportExamCmd(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export <exam-id>",
		Short: "Export an exam to a CSV file",
		Long:  `Export a stored exam to a CSV file suitable for spreadsheet import.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withExamService(cfg, logger, dbManager, func(ctx context.Context, svc *services.ExamService) error {
				exam, err := svc.GetExam(ctx, args[0])
				if err != nil {
					return err
				}

				path := output
				if path == "" {
					path = exam.ID + ".csv"
				}
				f, err := os.Create(path)
				if err != nil {
					return contextutils.WrapErrorf(err, "failed to create %s", path)
				}
				defer func() {
					if closeErr := f.Close(); closeErr != nil {
						logger.Warn(ctx, "Failed to close export file", map[string]interface{}{"error": closeErr.Error(), "path": path})
					}
				}()

				if err := services.WriteExamCSV(f, exam); err != nil {
					return err
				}
				fmt.Printf("Exported %d questions to %s\n", len(exam.Questions), path)
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file path (defaults to <exam-id>.csv)")
	return cmd
}

func deleteExamCmd(cfg *config.Config, logger *observability.Logger, dbManager *database.Manager) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <exam-id>",
		Short: "Delete a stored exam",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return withExamService(cfg, logger, dbManager, func(ctx context.Context, svc *services.ExamService) error {
				if err := svc.DeleteExam(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("Deleted exam %s\n", args[0])
				return nil
			})
		},
	}
}
