package services

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"

	"examgen/internal/config"
	"examgen/internal/observability"
	contextutils "examgen/internal/utils"
)

// ChatRequest represents a request to the OpenAI-compatible chat endpoint
type ChatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// Message represents a chat message in the API request
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse represents a response from the OpenAI-compatible API
type ChatResponse struct {
	Choices []Choice  `json:"choices"`
	Error   *APIError `json:"error,omitempty"`
}

// Choice represents a choice in the API response
type Choice struct {
	Message Message `json:"message"`
}

// APIError represents an error response from the API
type APIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
}

// AIClient sends chat prompts to an AI provider and returns the raw text of
// the first choice. Implementations classify provider failures into the
// sentinel errors (rate limited, payment required, upstream failure) so the
// pipeline can surface them distinctly.
type AIClient interface {
	Call(ctx context.Context, model string, system, user string) (string, error)
	Shutdown(ctx context.Context) error
}

// GatewayClient is an AIClient backed by an OpenAI-compatible gateway. The
// provider URL, API key, and per-model token limits come from configuration.
type GatewayClient struct {
	cfg        *config.Config
	logger     *observability.Logger
	httpClient *http.Client
}

// NewGatewayClient creates a gateway client using the configured collaborator
// timeout. Outbound requests carry trace context via otelhttp.
func NewGatewayClient(cfg *config.Config, logger *observability.Logger) *GatewayClient {
	return &GatewayClient{
		cfg:    cfg,
		logger: logger,
		httpClient: &http.Client{
			Timeout:   config.DefaultCollaboratorTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Call sends a system+user prompt pair to the provider that serves the given
// model and returns the first choice's content. HTTP 429 maps to
// ErrAIRateLimited, HTTP 402 to ErrAIPaymentRequired, and any other non-2xx
// status or an empty choice set to ErrAIRequestFailed / ErrAIResponseInvalid.
func (c *GatewayClient) Call(ctx context.Context, model, system, user string) (result0 string, err error) {
	ctx, span := observability.TraceAIFunction(ctx, "gateway_call",
		observability.AttributeModel(model),
		attribute.Int("prompt.system_length", len(system)),
		attribute.Int("prompt.user_length", len(user)),
	)
	defer observability.FinishSpan(span, &err)

	if model == "" {
		span.SetAttributes(attribute.String("call.result", "empty_model"))
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "model is required")
	}
	if user == "" {
		span.SetAttributes(attribute.String("call.result", "empty_prompt"))
		return "", contextutils.WrapError(contextutils.ErrAIConfigInvalid, "prompt cannot be empty")
	}

	provider, modelEntry, err := c.cfg.ProviderForModel(model)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "model_not_allowed"))
		return "", err
	}

	messages := make([]Message, 0, 2)
	if system != "" {
		messages = append(messages, Message{Role: "system", Content: system})
	}
	messages = append(messages, Message{Role: "user", Content: user})

	reqBody := ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.7,
		MaxTokens:   modelEntry.MaxTokens,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "marshal_failed"))
		return "", contextutils.WrapErrorf(err, "failed to marshal request body")
	}

	url := provider.URL + "/chat/completions"
	c.logger.Debug(ctx, "Making AI HTTP request", map[string]interface{}{
		"url":      url,
		"model":    model,
		"provider": provider.Code,
	})

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "request_creation_failed"))
		return "", contextutils.WrapErrorf(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "examgen/1.0")
	if provider.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+provider.APIKey)
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)
	if err != nil {
		c.logger.Error(ctx, "AI HTTP request failed", err, map[string]interface{}{
			"duration": duration.String(),
			"url":      url,
		})
		span.SetAttributes(attribute.String("call.result", "http_request_failed"), attribute.String("duration", duration.String()))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "HTTP request failed after %v: %w", duration, err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			c.logger.Warn(ctx, "Failed to close response body", map[string]interface{}{
				"error": cerr.Error(),
			})
		}
	}()

	c.logger.Info(ctx, "AI HTTP request completed", map[string]interface{}{
		"duration":    duration.String(),
		"status_code": resp.StatusCode,
		"model":       model,
	})

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.SetAttributes(attribute.String("call.result", "body_read_failed"))
		return "", contextutils.WrapErrorf(err, "failed to read response body")
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		span.SetAttributes(attribute.String("call.result", "rate_limited"))
		return "", contextutils.WrapError(contextutils.ErrAIRateLimited, "provider rate limit exceeded, try again later")
	case resp.StatusCode == http.StatusPaymentRequired:
		span.SetAttributes(attribute.String("call.result", "payment_required"))
		return "", contextutils.WrapError(contextutils.ErrAIPaymentRequired, "provider credits exhausted")
	case resp.StatusCode != http.StatusOK:
		span.SetAttributes(attribute.String("call.result", "http_error"), attribute.Int("status_code", resp.StatusCode))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "API request failed with status %d to %s: %s", resp.StatusCode, url, string(body))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		span.SetAttributes(attribute.String("call.result", "json_unmarshal_failed"))
		return "", contextutils.WrapErrorf(contextutils.ErrAIResponseInvalid, "failed to parse AI response as JSON: %w", err)
	}

	if chatResp.Error != nil {
		span.SetAttributes(attribute.String("call.result", "api_error"), attribute.String("error_type", chatResp.Error.Type))
		return "", contextutils.WrapErrorf(contextutils.ErrAIRequestFailed, "provider error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		span.SetAttributes(attribute.String("call.result", "no_choices"))
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "no choices in provider response")
	}

	content := chatResp.Choices[0].Message.Content
	if content == "" {
		span.SetAttributes(attribute.String("call.result", "empty_content"))
		return "", contextutils.WrapError(contextutils.ErrAIResponseInvalid, "provider returned empty content")
	}

	span.SetAttributes(attribute.String("call.result", "success"), attribute.Int("content_length", len(content)))
	return content, nil
}

// Shutdown closes idle connections.
func (c *GatewayClient) Shutdown(ctx context.Context) error {
	_, span := observability.TraceAIFunction(ctx, "gateway_shutdown")
	defer span.End()
	c.httpClient.CloseIdleConnections()
	return nil
}
