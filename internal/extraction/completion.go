package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cardscan/internal/llm"
	"cardscan/internal/logger"
	"cardscan/pkg/models"
)

const completionSystemPrompt = `You are an expert data extraction specialist. You are given the OCR output from an ID card and the extracted fields.
Your goal is to use the OCR output to fill in any missing fields.
If a field is already present, do not change it. Only fill in missing information.`

// completionSchema requires every record field as a string.
var completionSchema = llm.ObjectSchema("surname", "firstName", "gender", "dateOfBirth", "idNumber")

// DefaultFieldCompleter implements FieldCompleter with one model call.
type DefaultFieldCompleter struct {
	client llm.Client
	log    zerolog.Logger
}

// NewFieldCompleter creates a completer on client.
func NewFieldCompleter(client llm.Client) *DefaultFieldCompleter {
	return &DefaultFieldCompleter{
		client: client,
		log:    logger.WithComponent("field-completion"),
	}
}

// Complete asks the model for all five fields, then copies non-empty seeds back over
// its answer.
func (c *DefaultFieldCompleter) Complete(ctx context.Context, in CompletionInput) (*models.Record, error) {
	const op = "Complete"
	startTime := time.Now()

	if strings.TrimSpace(in.OCRText) == "" {
		return nil, &ExtractionError{Op: op, Err: ErrEmptyOCRText}
	}

	missing := in.Seed.MissingFields()
	c.log.Info().
		Int("text_length", len(in.OCRText)).
		Strs("missing_fields", missing).
		Msg("Starting field completion")

	raw, err := c.client.GenerateJSON(ctx, llm.Request{
		Name:   "completion",
		System: completionSystemPrompt,
		Prompt: buildCompletionPrompt(in),
		Schema: completionSchema,
	})
	if err != nil {
		return nil, modelFailure(op, err, ErrEmptyModelResponse)
	}

	var record models.Record
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, &ExtractionError{Op: op, Err: ErrEmptyModelResponse, Details: err.Error()}
	}

	c.keepSeeds(&record, in.Seed)

	c.log.Info().
		Str("gender", record.Gender).
		Str("date_of_birth", record.DateOfBirth).
		Dur("elapsed", time.Since(startTime)).
		Msg("Field completion finished")

	return &record, nil
}

// keepSeeds restores every non-empty seed value the model changed.
func (c *DefaultFieldCompleter) keepSeeds(record *models.Record, seed models.Record) {
	targets := []struct {
		name string
		seed string
		dst  *string
	}{
		{"surname", seed.Surname, &record.Surname},
		{"firstName", seed.FirstName, &record.FirstName},
		{"gender", seed.Gender, &record.Gender},
		{"dateOfBirth", seed.DateOfBirth, &record.DateOfBirth},
		{"idNumber", seed.IDNumber, &record.IDNumber},
	}
	for _, t := range targets {
		if strings.TrimSpace(t.seed) == "" || *t.dst == t.seed {
			continue
		}
		c.log.Warn().
			Str("field", t.name).
			Str("seed", t.seed).
			Str("model_value", *t.dst).
			Msg("Model changed a seed field, keeping the seed")
		*t.dst = t.seed
	}
}

func buildCompletionPrompt(in CompletionInput) string {
	var prompt strings.Builder

	prompt.WriteString("OCR Output:\n")
	prompt.WriteString(in.OCRText)
	prompt.WriteString("\n\nExtracted Fields:\n")
	for _, f := range in.Seed.Fields() {
		prompt.WriteString(fmt.Sprintf("%s: %s\n", models.Label(f.Name), f.Value))
	}

	prompt.WriteString("\nFill in the missing fields using the OCR output. Return all fields, even if they were already present.\n")
	prompt.WriteString("Make sure that the Gender field is M or F.\n")
	prompt.WriteString("Ensure the Date of Birth field follows the YYYY-MM-DD format.\n")
	prompt.WriteString(`Output in JSON format with exactly these keys: {"surname": "", "firstName": "", "gender": "", "dateOfBirth": "", "idNumber": ""}`)

	return prompt.String()
}

// modelFailure maps an llm error to a stage error. Empty or malformed output becomes
// emptyErr; anything else is a request failure.
func modelFailure(op string, err, emptyErr error) error {
	if errors.Is(err, llm.ErrEmptyResponse) || errors.Is(err, llm.ErrSchemaViolation) {
		return &ExtractionError{Op: op, Err: emptyErr}
	}

	details := err.Error()
	var modelErr *llm.ModelError
	if errors.As(err, &modelErr) && modelErr.Details != "" {
		details = modelErr.Details
	}
	return &ExtractionError{Op: op, Err: ErrModelRequest, Details: details}
}
