package extraction

import (
	"errors"
	"fmt"
)

// Common extraction errors
var (
	// ErrEmptyOCRText is returned when completion is asked to work on blank text.
	ErrEmptyOCRText = errors.New("OCR text is empty")

	// ErrEmptyModelResponse is returned when the completion model produced no usable
	// structured output.
	ErrEmptyModelResponse = errors.New("model produced empty or invalid response")

	// ErrValidationEmpty is returned when the validation model produced no assessment.
	ErrValidationEmpty = errors.New("model failed to generate validation data")

	// ErrModelRequest is returned when the model endpoint could not be reached or
	// rejected the call.
	ErrModelRequest = errors.New("model request failed")
)

// ExtractionError wraps errors with additional context about a failed stage.
type ExtractionError struct {
	// Op is the operation that failed (e.g., "Complete", "Validate").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *ExtractionError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("extraction: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("extraction: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ExtractionError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// Message returns the user-facing text of err: the stage failure without the
// operation prefix.
func Message(err error) string {
	var extErr *ExtractionError
	if errors.As(err, &extErr) {
		if extErr.Details != "" {
			return fmt.Sprintf("%v: %s", extErr.Err, extErr.Details)
		}
		return extErr.Err.Error()
	}
	return err.Error()
}
