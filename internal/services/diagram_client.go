package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"examgen/internal/config"
	"examgen/internal/observability"
	contextutils "examgen/internal/utils"
)

// DiagramClient generates a diagram image for a question and returns its URL.
// An empty URL with a nil error means the service declined to produce an
// image. Callers treat every failure as "no image"; nothing here is fatal to
// a generation run.
type DiagramClient interface {
	GenerateDiagram(ctx context.Context, questionText, examID, questionID string) (string, error)
}

// diagramRequest is the wire request to the diagram service.
type diagramRequest struct {
	QuestionText string `json:"questionText"`
	ExamID       string `json:"examId"`
	QuestionID   string `json:"questionId"`
}

// diagramResponse is the wire response from the diagram service.
type diagramResponse struct {
	ImageURL string `json:"imageUrl"`
	Error    string `json:"error,omitempty"`
}

// HTTPDiagramClient calls the configured diagram-generation endpoint.
type HTTPDiagramClient struct {
	cfg        config.EndpointConfig
	logger     *observability.Logger
	httpClient *http.Client
}

// NewHTTPDiagramClient creates a diagram client for the configured endpoint.
func NewHTTPDiagramClient(cfg config.EndpointConfig, logger *observability.Logger) *HTTPDiagramClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultCollaboratorTimeout
	}
	return &HTTPDiagramClient{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// GenerateDiagram asks the diagram service for an image. Arabic physics
// shorthand in the question text is rewritten to Latin symbols first, since
// the renderer only understands the Latin forms.
func (c *HTTPDiagramClient) GenerateDiagram(ctx context.Context, questionText, examID, questionID string) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "generate_diagram",
		observability.AttributeExamID(examID),
		observability.AttributeQuestionID(questionID),
	)
	defer observability.FinishSpan(span, &err)

	if c.cfg.URL == "" {
		span.SetAttributes(attribute.String("diagram.result", "not_configured"))
		return "", contextutils.WrapError(contextutils.ErrServiceUnavailable, "diagram service is not configured")
	}

	reqBody := diagramRequest{
		QuestionText: LatinizeSymbols(questionText),
		ExamID:       examID,
		QuestionID:   questionID,
	}
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to marshal diagram request")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.cfg.URL, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to create diagram request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.SetAttributes(attribute.String("diagram.result", "http_request_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "diagram request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn(ctx, "Failed to close diagram response body", map[string]interface{}{
				"error": cerr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to read diagram response")
	}

	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("diagram.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "diagram service returned status %d: %s", resp.StatusCode, string(body))
	}

	var diagResp diagramResponse
	if err := json.Unmarshal(body, &diagResp); err != nil {
		span.SetAttributes(attribute.String("diagram.result", "json_unmarshal_failed"))
		return "", contextutils.WrapErrorf(err, "failed to parse diagram response")
	}
	if diagResp.Error != "" {
		span.SetAttributes(attribute.String("diagram.result", "service_error"))
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "diagram service error: %s", diagResp.Error)
	}

	span.SetAttributes(attribute.String("diagram.result", "success"))
	return diagResp.ImageURL, nil
}
