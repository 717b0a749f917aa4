package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"cardscan/internal/logger"
)

// GeminiClient implements Client with the Gemini API in JSON response mode.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	log         zerolog.Logger
}

// NewGeminiClient creates a Gemini client. Close releases it.
func NewGeminiClient(ctx context.Context, apiKey, model string, temperature float32) (*GeminiClient, error) {
	const op = "NewGeminiClient"

	if strings.TrimSpace(apiKey) == "" {
		return nil, &ModelError{Op: op, Provider: ProviderGemini, Err: ErrMissingAPIKey, Details: "GEMINI_API_KEY is required"}
	}
	if model == "" {
		model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, &ModelError{Op: op, Provider: ProviderGemini, Err: ErrRequestFailed, Details: fmt.Sprintf("failed to init Gemini client: %v", err)}
	}

	return &GeminiClient{
		client:      client,
		model:       model,
		temperature: temperature,
		log:         logger.WithComponent("llm-gemini"),
	}, nil
}

// GenerateJSON sends one GenerateContent request and validates the reply.
func (c *GeminiClient) GenerateJSON(ctx context.Context, req Request) ([]byte, error) {
	const op = "GenerateJSON"
	startTime := time.Now()

	model := c.client.GenerativeModel(c.model)
	model.GenerationConfig = genai.GenerationConfig{ResponseMIMEType: "application/json"}
	model.SetTemperature(c.temperature)
	if req.System != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(req.System)}}
	}

	c.log.Debug().
		Str("call", req.Name).
		Str("model", c.model).
		Int("prompt_length", len(req.Prompt)).
		Msg("Sending request to Gemini")

	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		c.log.Error().Err(err).Str("call", req.Name).Msg("Gemini request failed")
		return nil, &ModelError{Op: op, Provider: ProviderGemini, Err: ErrRequestFailed, Details: err.Error()}
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return nil, &ModelError{Op: op, Provider: ProviderGemini, Err: ErrEmptyResponse, Details: "no candidates"}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			sb.WriteString(string(t))
		}
	}

	c.log.Debug().
		Str("call", req.Name).
		Int("response_length", sb.Len()).
		Dur("elapsed", time.Since(startTime)).
		Msg("Received Gemini response")

	out, err := finish(op, ProviderGemini, sb.String(), req.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return out, nil
}

// Close releases the underlying Gemini client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
