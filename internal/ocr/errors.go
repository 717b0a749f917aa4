package ocr

import (
	"errors"
	"fmt"
	"strings"
)

// Common OCR processing errors
var (
	// ErrEmptyImage is returned when no image data was supplied.
	ErrEmptyImage = errors.New("image data is empty")

	// ErrInvalidImage is returned when the image is not valid base64 or not a data URL
	// with a base64 payload.
	ErrInvalidImage = errors.New("invalid base64 image data")

	// ErrRequestFailed is returned when the OCR service could not be reached or
	// answered with a non-2xx status.
	ErrRequestFailed = errors.New("OCR request failed")

	// ErrInvalidResponse is returned when the service response cannot be decoded.
	ErrInvalidResponse = errors.New("invalid OCR service response")

	// ErrProcessingFailed is returned when the service reports that it could not
	// process the image (IsErroredOnProcessing or a non-success exit code).
	ErrProcessingFailed = errors.New("OCR processing failed")

	// ErrEmptyDocument is returned when the service returned no parsed results.
	ErrEmptyDocument = errors.New("no parsed results returned")

	// ErrMissingCredentials is returned when neither GOOGLE_APPLICATION_CREDENTIALS
	// nor GOOGLE_CREDENTIALS environment variables are configured.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewGoogleVisionService").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string

	// ServiceMessages holds the error messages reported by the OCR service itself.
	ServiceMessages []string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if len(e.ServiceMessages) > 0 {
		return fmt.Sprintf("ocr: %s failed: %v: %s", e.Op, e.Err, strings.Join(e.ServiceMessages, ", "))
	}
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err
	}

	return NewOCRError(op, err, details)
}

// ServiceMessages extracts the service-reported messages from err, if any.
func ServiceMessages(err error) []string {
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return ocrErr.ServiceMessages
	}
	return nil
}
