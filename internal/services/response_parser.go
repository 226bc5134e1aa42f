package services

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"

	"examgen/internal/observability"
	contextutils "examgen/internal/utils"
)

// questionsArraySchema is deliberately loose: it only pins down the shape the
// parser guarantees (an array of objects). Field-level fallbacks and defaults
// belong to normalization, which accepts arbitrary objects.
const questionsArraySchema = `{
	"type": "array",
	"items": {"type": "object"}
}`

var questionsSchemaLoader = gojsonschema.NewStringLoader(questionsArraySchema)

// ResponseParser extracts the question array from a raw model response. The
// models frequently wrap JSON in markdown fences or prose, so parsing is a
// salvage operation: strip fences, locate the outermost array span, then
// decode.
type ResponseParser struct {
	logger *observability.Logger
}

// NewResponseParser creates a response parser.
func NewResponseParser(logger *observability.Logger) *ResponseParser {
	return &ResponseParser{logger: logger}
}

// cleanJSONResponse strips markdown code block markers from a response.
func (p *ResponseParser) cleanJSONResponse(response string) string {
	response = strings.TrimSpace(response)

	if strings.HasPrefix(response, "```json") {
		response = strings.TrimPrefix(response, "```json")
		response = strings.TrimSuffix(response, "```")
	} else if strings.HasPrefix(response, "```") {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
	}

	return strings.TrimSpace(response)
}

// extractArraySpan returns the substring from the first '[' to the last ']',
// which tolerates prose before and after the JSON payload.
func (p *ResponseParser) extractArraySpan(response string) (string, bool) {
	start := strings.Index(response, "[")
	end := strings.LastIndex(response, "]")
	if start == -1 || end == -1 || end < start {
		return "", false
	}
	return response[start : end+1], true
}

// ParseQuestions parses a raw model response into loosely-typed question
// objects. It returns ErrAIResponseInvalid when no JSON array can be
// recovered; the caller decides whether to retry with a stricter prompt.
func (p *ResponseParser) ParseQuestions(ctx context.Context, response string) (result0 []map[string]interface{}, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "parse_questions_response",
		attribute.Int("response.length", len(response)),
	)
	defer observability.FinishSpan(span, &err)

	if response == "" {
		span.SetAttributes(attribute.String("parse.result", "empty_response"))
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "AI provider returned empty response")
	}

	cleaned := p.cleanJSONResponse(response)
	if cleaned == "" {
		span.SetAttributes(attribute.String("parse.result", "empty_cleaned_response"))
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "AI provider returned empty response after cleaning")
	}

	raw, ok := p.extractArraySpan(cleaned)
	if !ok {
		span.SetAttributes(attribute.String("parse.result", "no_array_span"))
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "no JSON array found in AI response")
	}

	validation, err := gojsonschema.Validate(questionsSchemaLoader, gojsonschema.NewStringLoader(raw))
	if err != nil {
		span.SetAttributes(attribute.String("parse.result", "schema_validation_error"))
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "failed to validate AI response: %w", err)
	}
	if !validation.Valid() {
		span.SetAttributes(attribute.String("parse.result", "schema_invalid"))
		p.logger.Warn(ctx, "AI response failed schema validation", map[string]interface{}{
			"errors": validation.Errors(),
		})
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "AI response is not an array of question objects")
	}

	var questions []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &questions); err != nil {
		span.SetAttributes(attribute.String("parse.result", "json_unmarshal_failed"))
		return nil, contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "failed to parse AI response as JSON: %w", err)
	}

	if len(questions) == 0 {
		span.SetAttributes(attribute.String("parse.result", "empty_array"))
		return nil, contextutils.WrapError(contextutils.ErrAIResponseInvalid, "AI response contained no questions")
	}

	span.SetAttributes(attribute.String("parse.result", "success"), attribute.Int("question.count", len(questions)))
	return questions, nil
}
