package services

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"examgen/internal/config"
	"examgen/internal/models"
	"examgen/internal/observability"
	contextutils "examgen/internal/utils"
)

// ExamStore persists completed exams. Persistence is best-effort from the
// pipeline's point of view: a failed save is logged but the in-memory exam is
// still returned to the caller.
type ExamStore interface {
	SaveExam(ctx context.Context, exam *models.Exam) error
}

// ProgressFunc receives state-machine transitions during one generation run.
// The percentage is a monotonically non-decreasing hint, not a measurement.
type ProgressFunc func(models.GenerationProgress)

// GenerationService drives one exam generation run through its stages:
// optional document analysis, question generation, quality check, selective
// regeneration, optional image augmentation, and persistence. All stages run
// sequentially; only the generation call itself is fatal to a run.
type GenerationService struct {
	cfg        *config.Config
	logger     *observability.Logger
	client     AIClient
	prompts    *PromptBuilder
	parser     *ResponseParser
	normalizer *QuestionNormalizer
	evaluator  *QualityEvaluator
	regen      *RegenerationCoordinator
	selector   *ImageSelector
	diagrams   DiagramClient
	extractor  DocumentExtractor
	store      ExamStore
}

// NewGenerationService wires the full pipeline. diagrams, extractor, and
// store may be nil when the corresponding feature is not deployed; the
// orchestrator degrades accordingly. rng feeds percentage-mode image
// selection and may be seeded for reproducible runs.
func NewGenerationService(cfg *config.Config, logger *observability.Logger, client AIClient, diagrams DiagramClient, extractor DocumentExtractor, store ExamStore, rng *rand.Rand) (*GenerationService, error) {
	prompts, err := NewPromptBuilder()
	if err != nil {
		return nil, contextutils.WrapErrorf(err, "failed to parse prompt templates")
	}
	parser := NewResponseParser(logger)
	normalizer := NewQuestionNormalizer()
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	return &GenerationService{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		prompts:    prompts,
		parser:     parser,
		normalizer: normalizer,
		evaluator:  NewQualityEvaluator(cfg.Generation.QualityThreshold),
		regen:      NewRegenerationCoordinator(cfg, logger, client, prompts, parser, normalizer),
		selector:   NewImageSelector(cfg.Generation.ImageTriggerPhrases, rng),
		diagrams:   diagrams,
		extractor:  extractor,
		store:      store,
	}, nil
}

// progressTracker enforces the monotone non-decreasing percentage contract.
type progressTracker struct {
	report  ProgressFunc
	percent int
}

func (p *progressTracker) update(step models.GenerationStep, message string, percent int) {
	if percent < p.percent {
		percent = p.percent
	}
	p.percent = percent
	if p.report != nil {
		p.report(models.GenerationProgress{Step: step, Message: message, Percent: percent})
	}
}

// Generate runs the full pipeline and returns the assembled exam. progress
// may be nil. Fatal failures (AI call, unrecoverable parse) return an error
// after reporting the error state; everything else degrades gracefully.
func (s *GenerationService) Generate(ctx context.Context, examCfg models.ExamConfig, genCfg models.GenerationConfig, progress ProgressFunc) (result0 *models.Exam, err error) {
	ctx, span := observability.TraceGenerationFunction(ctx, "generate_exam",
		observability.AttributeQuestionCount(genCfg.QuestionCount),
		attribute.Bool("generation.quality_check", genCfg.EnableQualityCheck),
		attribute.Bool("generation.images", genCfg.GenerateImages),
	)
	defer observability.FinishSpan(span, &err)

	tracker := &progressTracker{report: progress}
	examID := uuid.New().String()

	model := genCfg.Model
	if model == "" {
		model = s.cfg.DefaultModel()
	}
	if !s.cfg.ModelAllowed(model) {
		tracker.update(models.StepError, "النموذج المحدد غير متاح", tracker.percent)
		return nil, contextutils.WrapErrorf(contextutils.ErrAIConfigInvalid, "model %q is not allow-listed", model)
	}
	span.SetAttributes(observability.AttributeModel(model))

	if genCfg.QuestionCount < 1 || genCfg.QuestionCount > 100 {
		tracker.update(models.StepError, "عدد الأسئلة يجب أن يكون بين 1 و 100", tracker.percent)
		return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "question count %d is out of range [1, 100]", genCfg.QuestionCount)
	}

	// Stage: analyzing. Extraction failure is non-fatal; the free-text
	// description carries the run if present.
	sourceText := ""
	if len(genCfg.Document) > 0 && genCfg.SourceType != models.SourceDescription {
		tracker.update(models.StepAnalyzing, "جاري تحليل الملف المرفق...", 5)
		sourceText = s.extractDocumentText(ctx, genCfg)
	}
	if sourceText == "" && examCfg.Description == "" {
		tracker.update(models.StepError, "لا يوجد محتوى لإنشاء الأسئلة منه", tracker.percent)
		return nil, contextutils.WrapError(contextutils.ErrMissingRequired, "neither a usable document nor a description was provided")
	}

	// Stage: generating. This is the only fatal stage: a failed AI call or
	// a response that stays unparseable after one strict retry ends the run.
	tracker.update(models.StepGenerating, "جاري إنشاء الأسئلة...", 20)
	questions, err := s.generateQuestions(ctx, examCfg, genCfg, sourceText, model)
	if err != nil {
		tracker.update(models.StepError, "فشل إنشاء الأسئلة", tracker.percent)
		return nil, err
	}

	// Stage: quality check and selective regeneration, both best-effort.
	if genCfg.EnableQualityCheck && len(questions) > 0 {
		tracker.update(models.StepQualityCheck, "جاري فحص جودة الأسئلة...", 60)
		questions = s.runQualityPass(ctx, questions, examCfg, genCfg, model, tracker)
	}

	// Stage: images, per-question best-effort.
	if genCfg.GenerateImages && s.diagrams != nil && len(questions) > 0 {
		tracker.update(models.StepImages, "جاري إنشاء الرسوم التوضيحية...", 80)
		s.augmentWithImages(ctx, examID, questions, genCfg)
	}

	exam := &models.Exam{
		ID:         examID,
		ExamConfig: examCfg,
		Questions:  questions,
		CreatedAt:  time.Now().UTC(),
	}

	// Stage: finalizing. A failed save still yields a usable in-memory exam.
	tracker.update(models.StepFinalizing, "جاري حفظ الاختبار...", 95)
	if s.store != nil {
		if saveErr := s.store.SaveExam(ctx, exam); saveErr != nil {
			s.logger.Error(ctx, "Failed to persist exam, returning in-memory copy", saveErr, map[string]interface{}{
				"exam_id": exam.ID,
			})
			span.SetAttributes(attribute.Bool("exam.persisted", false))
		} else {
			span.SetAttributes(attribute.Bool("exam.persisted", true))
		}
	}

	tracker.update(models.StepComplete, "اكتمل إنشاء الاختبار", 100)
	span.SetAttributes(observability.AttributeExamID(exam.ID))
	return exam, nil
}

// extractDocumentText runs document extraction and swallows failures.
func (s *GenerationService) extractDocumentText(ctx context.Context, genCfg models.GenerationConfig) string {
	if s.extractor == nil {
		s.logger.Warn(ctx, "Document supplied but no extractor configured", nil)
		return ""
	}
	text, err := s.extractor.ExtractText(ctx, genCfg.Document, genCfg.DocumentName)
	if err != nil {
		s.logger.Warn(ctx, "Document extraction failed, continuing with description only", map[string]interface{}{
			"error":    err.Error(),
			"document": genCfg.DocumentName,
		})
		return ""
	}
	return text
}

// generateQuestions performs the AI call and parse, retrying the whole call
// once with a stricter JSON-only prompt when the response is unparseable.
func (s *GenerationService) generateQuestions(ctx context.Context, examCfg models.ExamConfig, genCfg models.GenerationConfig, sourceText, model string) ([]models.Question, error) {
	var lastErr error
	for attempt := 0; attempt <= s.cfg.Generation.ParseRetries; attempt++ {
		strict := attempt > 0
		prompt, err := s.prompts.BuildGenerationPrompt(examCfg, genCfg, sourceText, strict)
		if err != nil {
			return nil, contextutils.WrapErrorf(err, "failed to build generation prompt")
		}

		response, err := s.client.Call(ctx, model, prompt.System, prompt.User)
		if err != nil {
			// Gateway failures are fatal with no retry: a rate limit or
			// quota error will not clear within a retry window.
			return nil, err
		}

		raw, err := s.parser.ParseQuestions(ctx, response)
		if err != nil {
			lastErr = err
			s.logger.Warn(ctx, "Failed to parse generation response", map[string]interface{}{
				"error":   err.Error(),
				"attempt": attempt + 1,
			})
			continue
		}

		questions := s.normalizer.NormalizeBatch(raw)
		s.logger.Info(ctx, "Generated initial questions", map[string]interface{}{
			"count": len(questions),
			"model": model,
		})
		return questions, nil
	}
	return nil, contextutils.WrapErrorf(contextutils.ErrGenerationFailed, "question generation failed: %w", lastErr)
}

// runQualityPass scores every question and regenerates the weak ones when
// their count is within policy. Regenerating a majority of the exam is never
// attempted; that bounds cost on a run the model clearly fumbled.
func (s *GenerationService) runQualityPass(ctx context.Context, questions []models.Question, examCfg models.ExamConfig, genCfg models.GenerationConfig, model string, tracker *progressTracker) []models.Question {
	report := s.evaluator.Evaluate(questions)
	for i := range questions {
		questions[i].QualityScore = report.Scores[i]
	}

	weakCount := len(report.WeakIndices)
	if weakCount == 0 {
		return questions
	}

	limit := s.cfg.Generation.MaxRegenerate
	if half := (len(questions) + 1) / 2; half < limit {
		limit = half
	}
	if weakCount > limit {
		s.logger.Warn(ctx, "Too many weak questions to regenerate, keeping originals", map[string]interface{}{
			"weak_count": weakCount,
			"limit":      limit,
		})
		return questions
	}

	tracker.update(models.StepRegenerating, "جاري تحسين الأسئلة الضعيفة...", 70)

	weak := make([]models.Question, 0, weakCount)
	for _, idx := range report.WeakIndices {
		weak = append(weak, questions[idx])
	}

	rctx := RegenerationContext{
		Title:        examCfg.Title,
		Subject:      examCfg.Subject,
		Grade:        examCfg.Grade,
		Description:  examCfg.Description,
		CustomPrompt: genCfg.CustomPrompt,
	}
	replacements := s.regen.Regenerate(ctx, weak, rctx, model)
	for i, idx := range report.WeakIndices {
		if i < len(replacements) {
			questions[idx] = replacements[i]
		}
	}
	return questions
}

// augmentWithImages selects questions for diagrams and generates them one at
// a time. A failed call leaves that question without an image.
func (s *GenerationService) augmentWithImages(ctx context.Context, examID string, questions []models.Question, genCfg models.GenerationConfig) {
	indices := s.selector.SelectIndices(questions, genCfg.ImageMode, genCfg.ImagePercentage)
	for _, idx := range indices {
		url, err := s.diagrams.GenerateDiagram(ctx, questions[idx].Text, examID, questions[idx].ID)
		if err != nil {
			s.logger.Warn(ctx, "Diagram generation failed for question", map[string]interface{}{
				"question_id": questions[idx].ID,
				"error":       err.Error(),
			})
			continue
		}
		questions[idx].ImageURL = url
	}
}
