// Package extraction turns raw OCR text into a structured ID card record and asks a
// generative model to assess it.
//
// The package holds three stages: field completion (model call), normalization (pure,
// never fails) and validation (model call plus keyword classification).
package extraction

import (
	"context"

	"cardscan/internal/llm"
	"cardscan/pkg/models"
)

// Outcome tags of a validation assessment.
const (
	OutcomeSuccess = "success"
	OutcomeInfo    = "info"
	OutcomeError   = "error"
)

// CompletionInput is the text read from a card plus any field values already known.
// Non-empty Seed values are kept as they are.
type CompletionInput struct {
	OCRText string
	Seed    models.Record
}

// FieldCompleter fills the fields of a record from OCR text.
type FieldCompleter interface {
	// Complete returns a record with all five fields as returned by the model.
	// The result is not normalized.
	Complete(ctx context.Context, in CompletionInput) (*models.Record, error)
}

// RecordValidator asks for a free-text consistency assessment of a record.
type RecordValidator interface {
	// Validate returns the model's assessment text.
	Validate(ctx context.Context, record models.Record) (string, error)
}

// ValidationOutcome is a classified assessment.
type ValidationOutcome struct {
	Type    string `json:"type"`    // success, info or error
	Message string `json:"message"` // assessment text, or the failure message
}

// Stages bundles the model-backed stages behind one llm.Client.
type Stages struct {
	Completer FieldCompleter
	Validator RecordValidator
}

// NewStages creates the completion and validation stages on client.
func NewStages(client llm.Client) Stages {
	return Stages{
		Completer: NewFieldCompleter(client),
		Validator: NewRecordValidator(client),
	}
}
