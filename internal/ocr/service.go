// Package ocr turns a photographed ID card into raw text using a hosted OCR service.
//
// Three backends share the OCRService interface:
//   - OCR.space (default): one multipart HTTP POST per image, configured with
//     OCR_SPACE_API_KEY. Without a key the public "helloworld" demo key is used,
//     which is rate-limited.
//   - Google Cloud Vision: DOCUMENT_TEXT_DETECTION on the inline image.
//   - Google Document AI: a configured OCR or identity processor.
//
// Every backend reports its outcome in the OCR.space response shape, so callers only
// ever inspect one Result type. Only the first parsed-text block is meaningful for a
// single-image request.
//
// No backend retries: a failed call is returned to the caller, who may resubmit.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
)

// ExitCodeSuccess is the OCRExitCode value of a fully parsed image.
const ExitCodeSuccess = 1

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// Recognize sends one base64-encoded image (bare or as a data URL) to the
	// service. A transport failure or a service-reported processing error is
	// returned as an error; otherwise the service response is returned as is.
	Recognize(ctx context.Context, base64Image string) (*Result, error)
}

// Result is an OCR service response in the OCR.space shape.
type Result struct {
	// ParsedResults holds one block per processed page. Only the first is consumed.
	ParsedResults []ParsedResult `json:"ParsedResults"`

	// OCRExitCode is 1 on success; 2 partial, 3 and 4 failures.
	OCRExitCode int `json:"OCRExitCode"`

	// IsErroredOnProcessing is set when the service failed to process the image.
	IsErroredOnProcessing bool `json:"IsErroredOnProcessing"`

	// ErrorMessage lists service-reported error messages.
	ErrorMessage Messages `json:"ErrorMessage,omitempty"`

	// ErrorDetails is an optional free-text explanation.
	ErrorDetails string `json:"ErrorDetails,omitempty"`

	// ProcessingTimeInMilliseconds is reported by the service as a string.
	ProcessingTimeInMilliseconds string `json:"ProcessingTimeInMilliseconds,omitempty"`
}

// ParsedResult is the text recognized on one page.
type ParsedResult struct {
	ParsedText        string `json:"ParsedText"`
	ErrorMessage      string `json:"ErrorMessage,omitempty"`
	ErrorDetails      string `json:"ErrorDetails,omitempty"`
	FileParseExitCode int    `json:"FileParseExitCode,omitempty"`
}

// Failed reports whether the service flagged the request as failed.
func (r *Result) Failed() bool {
	return r.IsErroredOnProcessing || r.OCRExitCode != ExitCodeSuccess
}

// Text returns the first parsed-text block, or "" when there is none.
func (r *Result) Text() string {
	if len(r.ParsedResults) == 0 {
		return ""
	}
	return r.ParsedResults[0].ParsedText
}

// Messages is a list of error messages. OCR.space sends either a JSON string or a
// JSON array of strings; both decode.
type Messages []string

// UnmarshalJSON accepts a string, an array of strings or null.
func (m *Messages) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = nil
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*m = nil
			return nil
		}
		*m = Messages{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*m = list
	return nil
}

func (m Messages) String() string {
	return strings.Join(m, ", ")
}
