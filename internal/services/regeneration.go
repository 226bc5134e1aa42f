package services

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"examgen/internal/config"
	"examgen/internal/models"
	"examgen/internal/observability"
)

// RegenerationCoordinator rewrites weak questions through a second, condensed
// AI call. Regeneration is best-effort: any failure returns the original
// questions unchanged rather than failing the overall generation.
type RegenerationCoordinator struct {
	cfg        *config.Config
	logger     *observability.Logger
	client     AIClient
	prompts    *PromptBuilder
	parser     *ResponseParser
	normalizer *QuestionNormalizer
}

// NewRegenerationCoordinator creates a regeneration coordinator.
func NewRegenerationCoordinator(cfg *config.Config, logger *observability.Logger, client AIClient, prompts *PromptBuilder, parser *ResponseParser, normalizer *QuestionNormalizer) *RegenerationCoordinator {
	return &RegenerationCoordinator{
		cfg:        cfg,
		logger:     logger,
		client:     client,
		prompts:    prompts,
		parser:     parser,
		normalizer: normalizer,
	}
}

// Regenerate asks the model to rewrite the given weak questions and returns a
// slice of the same length. Each successful replacement keeps the original
// question's Index and is assigned the configured optimistic quality score
// without re-running the evaluator. With zero weak questions it returns an
// empty slice and makes no network call. On failure the originals come back
// unchanged.
func (r *RegenerationCoordinator) Regenerate(ctx context.Context, weak []models.Question, rctx RegenerationContext, model string) []models.Question {
	if len(weak) == 0 {
		return []models.Question{}
	}

	ctx, span := observability.TraceGenerationFunction(ctx, "regenerate_weak_questions",
		observability.AttributeModel(model),
		attribute.Int("question.weak_count", len(weak)),
	)
	defer span.End()

	prompt, err := r.prompts.BuildRegenerationPrompt(weak, rctx)
	if err != nil {
		r.logger.Warn(ctx, "Failed to build regeneration prompt, keeping originals", map[string]interface{}{
			"error": err.Error(),
		})
		span.SetAttributes(attribute.String("regenerate.result", "prompt_failed"))
		return weak
	}

	response, err := r.client.Call(ctx, model, prompt.System, prompt.User)
	if err != nil {
		r.logger.Warn(ctx, "Regeneration AI call failed, keeping originals", map[string]interface{}{
			"error":      err.Error(),
			"weak_count": len(weak),
		})
		span.SetAttributes(attribute.String("regenerate.result", "ai_call_failed"))
		return weak
	}

	raw, err := r.parser.ParseQuestions(ctx, response)
	if err != nil {
		r.logger.Warn(ctx, "Regeneration response unparseable, keeping originals", map[string]interface{}{
			"error": err.Error(),
		})
		span.SetAttributes(attribute.String("regenerate.result", "parse_failed"))
		return weak
	}

	// Pair replacements with originals positionally. If the model returned
	// fewer items than asked, the unpaired originals stay as they are.
	result := make([]models.Question, len(weak))
	copy(result, weak)
	replaced := 0
	for i := range weak {
		if i >= len(raw) {
			break
		}
		q := r.normalizer.Normalize(raw[i], weak[i].Index-1)
		q.QualityScore = r.cfg.Generation.RegeneratedScore
		result[i] = q
		replaced++
	}

	r.logger.Info(ctx, "Regenerated weak questions", map[string]interface{}{
		"weak_count": len(weak),
		"replaced":   replaced,
	})
	span.SetAttributes(attribute.String("regenerate.result", "success"), attribute.Int("question.replaced", replaced))
	return result
}
