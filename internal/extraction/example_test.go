package extraction_test

import (
	"context"
	"fmt"
	"log"

	"cardscan/internal/extraction"
	"cardscan/internal/llm"
	"cardscan/pkg/models"
)

// Example shows completion, normalization and validation of one card with a
// scripted model.
func Example() {
	ctx := context.Background()

	model := llm.NewFake(
		`{"surname":"Doe","firstName":"John","gender":"m","dateOfBirth":"03/04/1990","idNumber":"ID123"}`,
		"```json\n{\"validationResult\":\"The data looks good.\"}\n```",
	)
	stages := extraction.NewStages(model)

	record, err := stages.Completer.Complete(ctx, extraction.CompletionInput{
		OCRText: "DOE\nJOHN\nM\n03/04/1990\nID123",
	})
	if err != nil {
		log.Fatalf("Completion failed: %v", err)
	}

	normalized := extraction.Normalize(*record)
	fmt.Println(normalized.Gender, normalized.DateOfBirth)

	outcome := extraction.Assess(ctx, stages.Validator, normalized)
	fmt.Println(outcome.Type+":", outcome.Message)
	// Output:
	// M 1990-03-04
	// success: The data looks good.
}

// ExampleCompletionInput shows seeding known fields.
func ExampleCompletionInput() {
	model := llm.NewFake(`{"surname":"Smith","firstName":"Jane","gender":"F","dateOfBirth":"1985-07-20","idNumber":"X-1"}`)

	record, err := extraction.NewFieldCompleter(model).Complete(context.Background(), extraction.CompletionInput{
		OCRText: "SMYTH JANE F 1985-07-20 X-1",
		Seed:    models.Record{Surname: "Smyth"},
	})
	if err != nil {
		log.Fatalf("Completion failed: %v", err)
	}
	fmt.Println(record.Surname, record.FirstName)
	// Output: Smyth Jane
}
