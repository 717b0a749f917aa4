package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"cardscan/internal/logger"
)

// DefaultOCRSpaceURL is the OCR.space parse endpoint.
const DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// maxErrorBody bounds how much of a failed response body ends up in an error.
const maxErrorBody = 2048

// OCRSpaceConfig configures the OCR.space client.
type OCRSpaceConfig struct {
	// Endpoint defaults to DefaultOCRSpaceURL.
	Endpoint string

	// APIKey is sent as the "apikey" form field.
	APIKey string

	// Language is the OCR language code. Default: "eng".
	Language string

	// HTTPClient defaults to an http.Client without a timeout; callers bound the
	// call through the context.
	HTTPClient *http.Client
}

// OCRSpaceService implements OCRService against the OCR.space REST API.
type OCRSpaceService struct {
	endpoint   string
	apiKey     string
	language   string
	httpClient *http.Client
	log        zerolog.Logger
}

// NewOCRSpaceService creates an OCR.space client.
func NewOCRSpaceService(config OCRSpaceConfig) *OCRSpaceService {
	if config.Endpoint == "" {
		config.Endpoint = DefaultOCRSpaceURL
	}
	if config.Language == "" {
		config.Language = "eng"
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}
	return &OCRSpaceService{
		endpoint:   config.Endpoint,
		apiKey:     config.APIKey,
		language:   config.Language,
		httpClient: config.HTTPClient,
		log:        logger.WithComponent("ocr-space"),
	}
}

// Recognize posts the image to OCR.space with orientation detection and auto-scaling
// enabled. It makes exactly one attempt.
func (s *OCRSpaceService) Recognize(ctx context.Context, base64Image string) (*Result, error) {
	const op = "Recognize"
	startTime := time.Now()

	dataURL, err := ToDataURL(base64Image)
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	body, contentType, err := s.buildForm(dataURL)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to build multipart form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, body)
	if err != nil {
		return nil, WrapOCRError(op, ErrRequestFailed, err.Error())
	}
	req.Header.Set("Content-Type", contentType)

	s.log.Debug().
		Str("endpoint", s.endpoint).
		Int("image_length", len(dataURL)).
		Msg("Sending image to OCR.space")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.log.Error().Err(err).Dur("elapsed", time.Since(startTime)).Msg("OCR.space request failed")
		return nil, &OCRError{Op: op, Err: ErrRequestFailed, Details: err.Error()}
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.log.Warn().Err(closeErr).Msg("Failed to close OCR.space response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &OCRError{Op: op, Err: ErrRequestFailed, Details: fmt.Sprintf("failed to read response: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.log.Error().
			Int("status", resp.StatusCode).
			Int("bytes", len(raw)).
			Msg("OCR.space returned non-2xx status")
		return nil, &OCRError{
			Op:      op,
			Err:     ErrRequestFailed,
			Details: fmt.Sprintf("OCR.space API error: %d %s", resp.StatusCode, truncate(string(raw), maxErrorBody)),
		}
	}

	var result Result
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &OCRError{Op: op, Err: ErrInvalidResponse, Details: err.Error()}
	}

	s.log.Info().
		Int("exit_code", result.OCRExitCode).
		Bool("errored", result.IsErroredOnProcessing).
		Int("blocks", len(result.ParsedResults)).
		Str("service_time_ms", result.ProcessingTimeInMilliseconds).
		Dur("elapsed", time.Since(startTime)).
		Msg("OCR.space response received")

	if result.Failed() {
		return &result, &OCRError{
			Op:              op,
			Err:             ErrProcessingFailed,
			Details:         fmt.Sprintf("exit code %d", result.OCRExitCode),
			ServiceMessages: result.ErrorMessage,
		}
	}
	if len(result.ParsedResults) == 0 {
		return &result, &OCRError{Op: op, Err: ErrEmptyDocument}
	}

	return &result, nil
}

func (s *OCRSpaceService) buildForm(dataURL string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := []struct{ name, value string }{
		{"base64Image", dataURL},
		{"apikey", s.apiKey},
		{"language", s.language},
		{"isOverlayRequired", "false"},
		{"detectOrientation", "true"},
		{"scale", "true"},
	}
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
