// Package llm is the boundary to the generative models that complete and validate
// ID card records.
//
// Every model call asks for a single JSON object. The reply is stripped of Markdown
// code fences, cut down to its first balanced object, and validated against the
// request's JSON Schema before it is handed back, so callers only ever decode
// well-formed JSON.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

var (
	// ErrEmptyResponse is returned when the model produced no usable text.
	ErrEmptyResponse = errors.New("model returned an empty response")

	// ErrSchemaViolation is returned when the model output is not JSON or does not
	// match the request schema.
	ErrSchemaViolation = errors.New("model output does not match schema")

	// ErrRequestFailed is returned when the model endpoint could not be called.
	ErrRequestFailed = errors.New("model request failed")

	// ErrMissingAPIKey is returned when a provider is configured without a key.
	ErrMissingAPIKey = errors.New("missing model API key")
)

// Request is one JSON-generation call.
type Request struct {
	// Name identifies the call in logs, e.g. "completion".
	Name string

	// System is the system instruction.
	System string

	// Prompt is the user message.
	Prompt string

	// Schema is the JSON Schema the reply must satisfy. Nil skips validation.
	Schema map[string]any
}

// Client generates JSON documents from prompts.
type Client interface {
	// GenerateJSON returns the model's reply as a JSON document that satisfies
	// req.Schema.
	GenerateJSON(ctx context.Context, req Request) ([]byte, error)
}

// ModelError wraps errors with the operation and provider that produced them.
type ModelError struct {
	Op       string
	Provider string
	Err      error
	Details  string
}

func (e *ModelError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("llm: %s (%s) failed: %s: %v", e.Op, e.Provider, e.Details, e.Err)
	}
	return fmt.Sprintf("llm: %s (%s) failed: %v", e.Op, e.Provider, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

func (e *ModelError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// finish turns raw model text into validated JSON.
func finish(op, provider, raw string, schema map[string]any) ([]byte, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, &ModelError{Op: op, Provider: provider, Err: ErrEmptyResponse}
	}

	text = stripCodeFences(text)
	if obj, ok := extractFirstJSON(text); ok {
		text = obj
	}

	if schema != nil {
		if err := ValidateJSON(schema, []byte(text)); err != nil {
			return nil, &ModelError{Op: op, Provider: provider, Err: ErrSchemaViolation, Details: err.Error()}
		}
	}
	return []byte(text), nil
}

// Config selects and configures a provider.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float32
}

// New creates the configured provider client. The returned close function releases
// provider resources and is never nil.
func New(ctx context.Context, cfg Config) (Client, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Provider {
	case ProviderOpenAI:
		c, err := NewOpenAIClient(cfg.APIKey, cfg.Model, cfg.BaseURL, cfg.Temperature)
		if err != nil {
			return nil, noop, err
		}
		return c, noop, nil
	case ProviderGemini, "":
		c, err := NewGeminiClient(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
		if err != nil {
			return nil, noop, err
		}
		return c, c.Close, nil
	default:
		return nil, noop, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
