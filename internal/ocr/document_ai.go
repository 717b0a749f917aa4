package ocr

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"cardscan/internal/logger"
)

// DocumentAIConfig holds configuration for a Google Document AI OCR or identity
// document processor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location ("us" or "eu").
	Location string

	// ProcessorID is the Document AI processor ID.
	ProcessorID string
}

// ProcessorName returns the full resource name of the configured processor.
func (c DocumentAIConfig) ProcessorName() string {
	return fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
}

// DocumentAIService implements OCRService using a Document AI processor.
type DocumentAIService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIService creates a Document AI client for the configured location.
func NewDocumentAIService(ctx context.Context, config DocumentAIConfig) (*DocumentAIService, error) {
	const op = "NewDocumentAIService"

	if config.ProjectID == "" || config.ProcessorID == "" {
		return nil, NewOCRError(op, ErrMissingCredentials, "project ID and processor ID are required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	opts, err := credentialOptions()
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}
	if config.Location != "us" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)))
	}

	client, err := documentai.NewDocumentProcessorClient(ctx, opts...)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to create Document AI client")
	}

	return &DocumentAIService{
		client: client,
		config: config,
		log:    logger.WithComponent("ocr-documentai"),
	}, nil
}

// Recognize processes the image and returns the document text as a single block.
func (d *DocumentAIService) Recognize(ctx context.Context, base64Image string) (*Result, error) {
	const op = "Recognize"
	startTime := time.Now()

	imageBytes, mimeType, err := DecodeImage(base64Image)
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	req := &documentaipb.ProcessRequest{
		Name: d.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  imageBytes,
				MimeType: mimeType,
			},
		},
	}

	d.log.Debug().
		Str("processor", req.Name).
		Str("mime_type", mimeType).
		Int("size", len(imageBytes)).
		Msg("Sending image to Document AI")

	resp, err := d.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, d.handleProcessingError(op, err)
	}

	doc := resp.GetDocument()
	if doc == nil {
		return nil, NewOCRError(op, ErrInvalidResponse, "no document in response")
	}

	result := &Result{
		OCRExitCode:                  ExitCodeSuccess,
		ProcessingTimeInMilliseconds: strconv.FormatInt(time.Since(startTime).Milliseconds(), 10),
	}
	if msg := doc.GetError().GetMessage(); msg != "" {
		result.IsErroredOnProcessing = true
		result.OCRExitCode = 3
		result.ErrorMessage = Messages{msg}
		return result, &OCRError{Op: op, Err: ErrProcessingFailed, ServiceMessages: result.ErrorMessage}
	}

	result.ParsedResults = []ParsedResult{{ParsedText: doc.GetText(), FileParseExitCode: ExitCodeSuccess}}
	return result, nil
}

// handleProcessingError converts Document AI errors to OCR errors.
func (d *DocumentAIService) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "PERMISSION_DENIED"), strings.Contains(errStr, "Unauthenticated"):
		return NewOCRError(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "INVALID_ARGUMENT"):
		return NewOCRError(op, ErrInvalidImage, "image format not supported or corrupted")
	case strings.Contains(errStr, "NOT_FOUND"):
		return NewOCRError(op, ErrRequestFailed, fmt.Sprintf("processor not found: %s", d.config.ProcessorID))
	default:
		return NewOCRError(op, ErrRequestFailed, fmt.Sprintf("Document AI error: %v", err))
	}
}

// Close closes the underlying Document AI client.
func (d *DocumentAIService) Close() error {
	if d.client != nil {
		return d.client.Close()
	}
	return nil
}
