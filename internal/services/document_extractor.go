package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"examgen/internal/config"
	"examgen/internal/observability"
	contextutils "examgen/internal/utils"
)

// DocumentExtractor turns an uploaded source document into plain text the
// prompt builder can work with. Extraction failures are non-fatal to a
// generation run; the orchestrator falls back to the free-text description.
type DocumentExtractor interface {
	ExtractText(ctx context.Context, document []byte, filename string) (string, error)
}

// extractionResponse is the wire response from the extraction service.
type extractionResponse struct {
	Text  string `json:"text"`
	Error string `json:"error,omitempty"`
}

// HTTPDocumentExtractor uploads documents to the configured extraction
// endpoint as multipart form data.
type HTTPDocumentExtractor struct {
	cfg      config.EndpointConfig
	maxBytes int64
	logger   *observability.Logger
	client   *http.Client
}

// NewHTTPDocumentExtractor creates an extractor client. maxBytes bounds the
// accepted document size; oversized uploads are rejected before any network
// traffic.
func NewHTTPDocumentExtractor(cfg config.EndpointConfig, maxBytes int64, logger *observability.Logger) *HTTPDocumentExtractor {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = config.DefaultCollaboratorTimeout
	}
	return &HTTPDocumentExtractor{
		cfg:      cfg,
		maxBytes: maxBytes,
		logger:   logger,
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// ExtractText uploads the document and returns the extracted plain text.
func (e *HTTPDocumentExtractor) ExtractText(ctx context.Context, document []byte, filename string) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "extract_document_text",
		attribute.Int("document.size", len(document)),
		attribute.String("document.name", filename),
	)
	defer observability.FinishSpan(span, &err)

	if len(document) == 0 {
		return "", contextutils.WrapError(contextutils.ErrInvalidInput, "document is empty")
	}
	if int64(len(document)) > e.maxBytes {
		span.SetAttributes(attribute.String("extract.result", "too_large"))
		return "", contextutils.WrapErrorf(contextutils.ErrDocumentTooLarge, "document is %d bytes, limit is %d", len(document), e.maxBytes)
	}
	if e.cfg.URL == "" {
		span.SetAttributes(attribute.String("extract.result", "not_configured"))
		return "", contextutils.WrapError(contextutils.ErrServiceUnavailable, "document extraction service is not configured")
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("file", filename)
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to create multipart form")
	}
	if _, err := part.Write(document); err != nil {
		return "", contextutils.WrapErrorf(err, "failed to write document to form")
	}
	if err := writer.Close(); err != nil {
		return "", contextutils.WrapErrorf(err, "failed to finalize multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.cfg.URL, &buf)
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to create extraction request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if e.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		span.SetAttributes(attribute.String("extract.result", "http_request_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "extraction request failed: %w", err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			e.logger.Warn(ctx, "Failed to close extraction response body", map[string]interface{}{
				"error": cerr.Error(),
			})
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", contextutils.WrapErrorf(err, "failed to read extraction response")
	}
	if resp.StatusCode != http.StatusOK {
		span.SetAttributes(attribute.String("extract.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "extraction service returned status %d: %s", resp.StatusCode, string(body))
	}

	var extResp extractionResponse
	if err := json.Unmarshal(body, &extResp); err != nil {
		span.SetAttributes(attribute.String("extract.result", "json_unmarshal_failed"))
		return "", contextutils.WrapErrorf(err, "failed to parse extraction response")
	}
	if extResp.Error != "" {
		span.SetAttributes(attribute.String("extract.result", "service_error"))
		return "", contextutils.WrapErrorf(contextutils.ErrServiceUnavailable, "extraction service error: %s", extResp.Error)
	}

	span.SetAttributes(attribute.String("extract.result", "success"), attribute.Int("text.length", len(extResp.Text)))
	return extResp.Text, nil
}
