package extraction

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cardscan/internal/llm"
	"cardscan/internal/logger"
	"cardscan/pkg/models"
)

const validationSystemPrompt = `You are an expert in data validation and identity verification.
Your task is to validate the information extracted from an ID card and identify any potential errors or inconsistencies.`

var validationSchema = llm.ObjectSchema("validationResult")

// success keywords, matched case-insensitively as substrings
var successKeywords = []string{"looks good", "consistent"}

// DefaultRecordValidator implements RecordValidator with one model call.
type DefaultRecordValidator struct {
	client llm.Client
	log    zerolog.Logger
}

// NewRecordValidator creates a validator on client.
func NewRecordValidator(client llm.Client) *DefaultRecordValidator {
	return &DefaultRecordValidator{
		client: client,
		log:    logger.WithComponent("validation"),
	}
}

// Validate returns the model's assessment of record.
func (v *DefaultRecordValidator) Validate(ctx context.Context, record models.Record) (string, error) {
	const op = "Validate"
	startTime := time.Now()

	raw, err := v.client.GenerateJSON(ctx, llm.Request{
		Name:   "validation",
		System: validationSystemPrompt,
		Prompt: buildValidationPrompt(record),
		Schema: validationSchema,
	})
	if err != nil {
		return "", modelFailure(op, err, ErrValidationEmpty)
	}

	var out struct {
		ValidationResult string `json:"validationResult"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", &ExtractionError{Op: op, Err: ErrValidationEmpty, Details: err.Error()}
	}
	if strings.TrimSpace(out.ValidationResult) == "" {
		return "", &ExtractionError{Op: op, Err: ErrValidationEmpty}
	}

	v.log.Info().
		Int("result_length", len(out.ValidationResult)).
		Dur("elapsed", time.Since(startTime)).
		Msg("Validation finished")

	return out.ValidationResult, nil
}

func buildValidationPrompt(record models.Record) string {
	var prompt strings.Builder

	prompt.WriteString("Here is the extracted data:\n")
	for _, f := range record.Fields() {
		prompt.WriteString(fmt.Sprintf("- %s: %s\n", models.Label(f.Name), f.Value))
	}
	prompt.WriteString("\nAnalyze this information and provide a summary of your validation results.\n")
	prompt.WriteString("Highlight any potentially incorrect or inconsistent information. Be concise and clear in your assessment.\n")
	prompt.WriteString(`Respond with a JSON object of the form {"validationResult": "<your assessment>"}.`)

	return prompt.String()
}

// Classify tags an assessment success when it says the data looks good or is
// consistent, and info otherwise. Any text containing "consistent", including
// "inconsistent", is a success.
func Classify(text string) string {
	lower := strings.ToLower(text)
	for _, kw := range successKeywords {
		if strings.Contains(lower, kw) {
			return OutcomeSuccess
		}
	}
	return OutcomeInfo
}

// Assess runs v and classifies the result. A failed call becomes an error outcome
// carrying the failure message.
func Assess(ctx context.Context, v RecordValidator, record models.Record) ValidationOutcome {
	text, err := v.Validate(ctx, record)
	if err != nil {
		return ValidationOutcome{Type: OutcomeError, Message: Message(err)}
	}
	return ValidationOutcome{Type: Classify(text), Message: text}
}
