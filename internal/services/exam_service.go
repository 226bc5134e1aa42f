package services

import (
	"context"
	"database/sql"
	"errors"

	"go.opentelemetry.io/otel/attribute"

	"examgen/internal/models"
	"examgen/internal/observability"
	contextutils "examgen/internal/utils"
)

// ExamService stores and retrieves exams in PostgreSQL. Saving writes the
// exam row and its questions in one transaction so a stored exam is always
// complete.
type ExamService struct {
	db     *sql.DB
	logger *observability.Logger
}

// NewExamService creates an exam service backed by the given database.
func NewExamService(db *sql.DB, logger *observability.Logger) *ExamService {
	return &ExamService{db: db, logger: logger}
}

// SaveExam persists an exam and its questions atomically.
func (s *ExamService) SaveExam(ctx context.Context, exam *models.Exam) (err error) {
	ctx, span := observability.TraceExamFunction(ctx, "save_exam",
		observability.AttributeExamID(exam.ID),
		observability.AttributeQuestionCount(len(exam.Questions)),
	)
	defer observability.FinishSpan(span, &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return contextutils.WrapError(contextutils.ErrDatabaseConnection, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				s.logger.Error(ctx, "Failed to roll back exam save", rbErr, map[string]interface{}{
					"exam_id": exam.ID,
				})
			}
		}
	}()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO exams (id, title, description, subject, grade, duration_minutes, passing_percent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		exam.ID, exam.Title, exam.Description, exam.Subject, exam.Grade,
		exam.DurationMinutes, exam.PassingPercent, exam.CreatedAt,
	)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert exam: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO questions (id, exam_id, idx, text, option_a, option_b, option_c, option_d,
			correct_option, difficulty, mark, explanation, image_url, needs_image, quality_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to prepare question insert: %w", err)
	}
	defer func() {
		if closeErr := stmt.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close prepared statement", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	for i := range exam.Questions {
		q := &exam.Questions[i]
		_, err = stmt.ExecContext(ctx,
			q.ID, exam.ID, q.Index, q.Text, q.OptionA, q.OptionB, q.OptionC, q.OptionD,
			string(q.CorrectOption), string(q.Difficulty), q.Mark, q.Explanation,
			q.ImageURL, q.NeedsImage, q.QualityScore,
		)
		if err != nil {
			return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to insert question %d: %w", q.Index, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to commit exam save: %w", err)
	}

	s.logger.Info(ctx, "Exam saved", map[string]interface{}{
		"exam_id":        exam.ID,
		"question_count": len(exam.Questions),
	})
	return nil
}

// GetExam loads one exam with its questions ordered by index.
func (s *ExamService) GetExam(ctx context.Context, examID string) (result0 *models.Exam, err error) {
	ctx, span := observability.TraceExamFunction(ctx, "get_exam",
		observability.AttributeExamID(examID),
	)
	defer observability.FinishSpan(span, &err)

	exam := &models.Exam{}
	err = s.db.QueryRowContext(ctx, `
		SELECT id, title, description, subject, grade, duration_minutes, passing_percent, created_at
		FROM exams WHERE id = $1`, examID,
	).Scan(&exam.ID, &exam.Title, &exam.Description, &exam.Subject, &exam.Grade,
		&exam.DurationMinutes, &exam.PassingPercent, &exam.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contextutils.WrapErrorf(contextutils.ErrExamNotFound, "exam %s not found", examID)
	}
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load exam: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, idx, text, option_a, option_b, option_c, option_d,
			correct_option, difficulty, mark, explanation, image_url, needs_image, quality_score
		FROM questions WHERE exam_id = $1 ORDER BY idx`, examID)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to load questions: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close question rows", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	for rows.Next() {
		var q models.Question
		var correct, difficulty string
		if err = rows.Scan(&q.ID, &q.Index, &q.Text, &q.OptionA, &q.OptionB, &q.OptionC, &q.OptionD,
			&correct, &difficulty, &q.Mark, &q.Explanation, &q.ImageURL, &q.NeedsImage, &q.QualityScore); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan question: %w", err)
		}
		q.CorrectOption = models.CorrectOption(correct)
		q.Difficulty = models.Difficulty(difficulty)
		exam.Questions = append(exam.Questions, q)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed reading questions: %w", err)
	}

	span.SetAttributes(observability.AttributeQuestionCount(len(exam.Questions)))
	return exam, nil
}

// ListExams returns stored exam summaries, newest first.
func (s *ExamService) ListExams(ctx context.Context, limit, offset int) (result0 []models.ExamSummary, err error) {
	ctx, span := observability.TraceExamFunction(ctx, "list_exams",
		attribute.Int("list.limit", limit),
		attribute.Int("list.offset", offset),
	)
	defer observability.FinishSpan(span, &err)

	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.title, e.subject, e.grade, e.created_at,
			COUNT(q.id) AS question_count, COALESCE(SUM(q.mark), 0) AS total_marks
		FROM exams e
		LEFT JOIN questions q ON q.exam_id = e.id
		GROUP BY e.id
		ORDER BY e.created_at DESC
		LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to list exams: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close exam rows", map[string]interface{}{
				"error": closeErr.Error(),
			})
		}
	}()

	summaries := []models.ExamSummary{}
	for rows.Next() {
		var sum models.ExamSummary
		if err = rows.Scan(&sum.ID, &sum.Title, &sum.Subject, &sum.Grade, &sum.CreatedAt,
			&sum.QuestionCount, &sum.TotalMarks); err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to scan exam summary: %w", err)
		}
		summaries = append(summaries, sum)
	}
	if err = rows.Err(); err != nil {
		return nil, contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed reading exam summaries: %w", err)
	}

	span.SetAttributes(attribute.Int("list.count", len(summaries)))
	return summaries, nil
}

// DeleteExam removes an exam and, through the FK cascade, its questions.
func (s *ExamService) DeleteExam(ctx context.Context, examID string) (err error) {
	ctx, span := observability.TraceExamFunction(ctx, "delete_exam",
		observability.AttributeExamID(examID),
	)
	defer observability.FinishSpan(span, &err)

	result, err := s.db.ExecContext(ctx, `DELETE FROM exams WHERE id = $1`, examID)
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to delete exam: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return contextutils.WrapErrorf(contextutils.ErrDatabaseQuery, "failed to read delete result: %w", err)
	}
	if affected == 0 {
		return contextutils.WrapErrorf(contextutils.ErrExamNotFound, "exam %s not found", examID)
	}

	s.logger.Info(ctx, "Exam deleted", map[string]interface{}{
		"exam_id": examID,
	})
	return nil
}
