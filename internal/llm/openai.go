package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"cardscan/internal/logger"
)

// OpenAIClient implements Client with the OpenAI chat completions API in JSON mode.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	log         zerolog.Logger
}

// NewOpenAIClient creates a client for the given key. A non-empty baseURL points the
// client at an OpenAI-compatible endpoint.
func NewOpenAIClient(apiKey, model, baseURL string, temperature float32) (*OpenAIClient, error) {
	const op = "NewOpenAIClient"

	if apiKey == "" {
		return nil, &ModelError{Op: op, Provider: ProviderOpenAI, Err: ErrMissingAPIKey, Details: "OPENAI_API_KEY is required"}
	}

	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return NewOpenAIClientWithDeps(openai.NewClientWithConfig(cfg), model, temperature), nil
}

// NewOpenAIClientWithDeps wraps an existing go-openai client.
func NewOpenAIClientWithDeps(client *openai.Client, model string, temperature float32) *OpenAIClient {
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAIClient{
		client:      client,
		model:       model,
		temperature: temperature,
		log:         logger.WithComponent("llm-openai"),
	}
}

// GenerateJSON sends one chat completion request and validates the reply.
func (c *OpenAIClient) GenerateJSON(ctx context.Context, req Request) ([]byte, error) {
	const op = "GenerateJSON"
	startTime := time.Now()

	c.log.Debug().
		Str("call", req.Name).
		Str("model", c.model).
		Float32("temperature", c.temperature).
		Int("prompt_length", len(req.Prompt)).
		Msg("Sending request to OpenAI")

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: req.System})
	}
	messages = append(messages, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: req.Prompt})

	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages:    messages,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		c.log.Error().Err(err).Str("call", req.Name).Msg("OpenAI request failed")
		return nil, &ModelError{Op: op, Provider: ProviderOpenAI, Err: ErrRequestFailed, Details: err.Error()}
	}
	if len(resp.Choices) == 0 {
		return nil, &ModelError{Op: op, Provider: ProviderOpenAI, Err: ErrEmptyResponse, Details: "no response choices"}
	}

	content := resp.Choices[0].Message.Content
	c.log.Debug().
		Str("call", req.Name).
		Int("response_length", len(content)).
		Int("total_tokens", resp.Usage.TotalTokens).
		Dur("elapsed", time.Since(startTime)).
		Msg("Received OpenAI response")

	out, err := finish(op, ProviderOpenAI, content, req.Schema)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", req.Name, err)
	}
	return out, nil
}
