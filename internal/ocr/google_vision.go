package ocr

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"cardscan/internal/logger"
)

// MaxImageSizeBytes is the Vision API limit for inline image content (20MB).
const MaxImageSizeBytes = 20 * 1024 * 1024

// GoogleVisionService implements OCRService using Google Cloud Vision API.
type GoogleVisionService struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
	log           zerolog.Logger
}

// NewGoogleVisionService creates a Vision client with credentials from environment.
// It expects either GOOGLE_APPLICATION_CREDENTIALS path or GOOGLE_CREDENTIALS JSON in env,
// and falls back to application default credentials.
func NewGoogleVisionService(ctx context.Context) (*GoogleVisionService, error) {
	const op = "NewGoogleVisionService"

	opts, err := credentialOptions()
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	client, err := vision.NewImageAnnotatorClient(ctx, opts...)
	if err != nil {
		if len(opts) == 0 {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewGoogleVisionServiceWithClient(client), nil
}

// NewGoogleVisionServiceWithClient wraps an existing Vision client.
func NewGoogleVisionServiceWithClient(client *vision.ImageAnnotatorClient) *GoogleVisionService {
	return &GoogleVisionService{
		client:        client,
		languageHints: []string{"en"},
		log:           logger.WithComponent("ocr-vision"),
	}
}

// Recognize runs document text detection on the inline image.
func (g *GoogleVisionService) Recognize(ctx context.Context, base64Image string) (*Result, error) {
	const op = "Recognize"
	startTime := time.Now()

	imageBytes, mimeType, err := DecodeImage(base64Image)
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}
	if len(imageBytes) > MaxImageSizeBytes {
		return nil, NewOCRError(op, ErrInvalidImage, fmt.Sprintf("image size %d bytes exceeds %d", len(imageBytes), MaxImageSizeBytes))
	}

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: imageBytes},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{
					LanguageHints: g.languageHints,
				},
			},
		},
	}

	g.log.Debug().
		Str("mime_type", mimeType).
		Int("size", len(imageBytes)).
		Msg("Sending image to Vision API")

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, NewOCRError(op, ErrRequestFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, NewOCRError(op, ErrInvalidResponse, "no response from Vision API")
	}

	result, err := resultFromVision(resp.Responses[0], time.Since(startTime))
	if err != nil {
		return result, WrapOCRError(op, err, "")
	}
	return result, nil
}

// resultFromVision maps one Vision image response onto the shared Result shape.
func resultFromVision(resp *visionpb.AnnotateImageResponse, elapsed time.Duration) (*Result, error) {
	result := &Result{
		ProcessingTimeInMilliseconds: strconv.FormatInt(elapsed.Milliseconds(), 10),
	}

	if resp.GetError() != nil && resp.GetError().GetMessage() != "" {
		result.IsErroredOnProcessing = true
		result.OCRExitCode = 3
		result.ErrorMessage = Messages{resp.GetError().GetMessage()}
		return result, &OCRError{
			Op:              "resultFromVision",
			Err:             ErrProcessingFailed,
			ServiceMessages: result.ErrorMessage,
		}
	}

	result.OCRExitCode = ExitCodeSuccess
	text := resp.GetFullTextAnnotation().GetText()
	if strings.TrimSpace(text) == "" && len(resp.GetTextAnnotations()) > 0 {
		// The first annotation holds the whole detected text.
		text = resp.GetTextAnnotations()[0].GetDescription()
	}
	result.ParsedResults = []ParsedResult{{ParsedText: text, FileParseExitCode: ExitCodeSuccess}}
	return result, nil
}

// Close closes the underlying Vision client.
func (g *GoogleVisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// credentialOptions reads Google credentials from GOOGLE_CREDENTIALS (inline JSON) or
// GOOGLE_APPLICATION_CREDENTIALS (file path). No options means application default
// credentials.
func credentialOptions() ([]option.ClientOption, error) {
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return []option.ClientOption{option.WithCredentialsJSON([]byte(credJSON))}, nil
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		if _, err := os.Stat(credFile); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMissingCredentials, err)
		}
		return []option.ClientOption{option.WithCredentialsFile(credFile)}, nil
	}
	return nil, nil
}
