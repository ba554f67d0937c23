package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sonukumar047/email-assistant/triagecore/logging"
	"github.com/sonukumar047/email-assistant/triagecore/observability"
)

var tracer = otel.Tracer("email-assistant/llm")

// OpenAIGenerator implements TextGenerator against any OpenAI-compatible chat
// completion endpoint (Groq, OpenAI, local gateways) via a configurable base URL.
type OpenAIGenerator struct {
	client  *openai.Client
	logger  logging.Logger
	timeout time.Duration
}

// NewOpenAIGenerator creates a generator for the given endpoint.
// baseURL may be empty for the default OpenAI endpoint. timeout bounds each
// call; zero disables the bound.
func NewOpenAIGenerator(apiKey, baseURL string, timeout time.Duration, logger logging.Logger) (*OpenAIGenerator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("llm: API key is required")
	}

	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}

	return &OpenAIGenerator{
		client:  openai.NewClientWithConfig(clientCfg),
		logger:  logger.Bind("component", "llm"),
		timeout: timeout,
	}, nil
}

// Generate sends one chat completion request and returns the response text.
func (g *OpenAIGenerator) Generate(ctx context.Context, req Request, params Params) (string, error) {
	ctx, span := tracer.Start(ctx, "llm.generate")
	span.SetAttributes(
		attribute.String("llm.model", params.Model),
		attribute.Int("llm.max_tokens", params.MaxTokens),
	)
	defer span.End()

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	startTime := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.User},
		},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})

	durationMS := int(time.Since(startTime).Milliseconds())

	if err != nil {
		observability.RecordLLMCall(params.Model, "error", durationMS)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Error("llm_call_failed", "model", params.Model, "duration_ms", durationMS, "error", err.Error())
		return "", fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		observability.RecordLLMCall(params.Model, "error", durationMS)
		span.SetStatus(codes.Error, "no choices")
		return "", fmt.Errorf("chat completion returned no choices")
	}

	observability.RecordLLMCall(params.Model, "success", durationMS)
	span.SetStatus(codes.Ok, "success")

	content := resp.Choices[0].Message.Content
	g.logger.Debug("llm_call_completed",
		"model", params.Model,
		"duration_ms", durationMS,
		"response_length", len(content),
	)
	return content, nil
}
