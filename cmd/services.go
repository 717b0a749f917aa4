package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"cardscan/internal/config"
	"cardscan/internal/extraction"
	"cardscan/internal/llm"
	"cardscan/internal/ocr"
	"cardscan/internal/pipeline"
	"cardscan/pkg/models"
)

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling processing")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// loadConfig loads the configuration and turns validation failures into a hint.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("%w\n\nCheck your environment or .env file (AI_PROVIDER, GEMINI_API_KEY or OPENAI_API_KEY, OCR_PROVIDER)", err)
	}
	return cfg, nil
}

// createOCRService creates the OCR backend selected by OCR_PROVIDER. The returned
// close function is never nil.
func createOCRService(ctx context.Context, cfg *config.Config, log zerolog.Logger) (ocr.OCRService, func() error, error) {
	noop := func() error { return nil }

	switch cfg.OCRProvider {
	case config.OCRProviderVision:
		svc, err := ocr.NewGoogleVisionService(ctx)
		if err != nil {
			return nil, noop, handleSetupError(err, log)
		}
		return svc, svc.Close, nil

	case config.OCRProviderDocumentAI:
		svc, err := ocr.NewDocumentAIService(ctx, ocr.DocumentAIConfig{
			ProjectID:   cfg.GoogleCloudProject,
			Location:    cfg.GoogleCloudLocation,
			ProcessorID: cfg.DocumentAIProcessorID,
		})
		if err != nil {
			return nil, noop, handleSetupError(err, log)
		}
		return svc, svc.Close, nil

	default:
		if cfg.UsesDefaultOCRKey() {
			log.Warn().Msg("OCR_SPACE_API_KEY not set, using the rate-limited demo key")
		}
		return ocr.NewOCRSpaceService(ocr.OCRSpaceConfig{
			Endpoint: cfg.OCRSpaceURL,
			APIKey:   cfg.OCRSpaceKey(),
		}), noop, nil
	}
}

// createModelClient creates the generative model client selected by AI_PROVIDER.
func createModelClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (llm.Client, func() error, error) {
	modelCfg := llm.Config{
		Provider:    cfg.AIProvider,
		Temperature: cfg.AITemperature,
	}
	switch cfg.AIProvider {
	case config.AIProviderOpenAI:
		modelCfg.APIKey = cfg.OpenAIAPIKey
		modelCfg.Model = cfg.OpenAIModel
		modelCfg.BaseURL = cfg.OpenAIBaseURL
	default:
		modelCfg.APIKey = cfg.GeminiAPIKey
		modelCfg.Model = cfg.GeminiModel
	}

	client, closeFn, err := llm.New(ctx, modelCfg)
	if err != nil {
		return nil, closeFn, handleSetupError(err, log)
	}

	log.Debug().
		Str("provider", cfg.AIProvider).
		Str("model", modelCfg.Model).
		Msg("Model client created")
	return client, closeFn, nil
}

// createPipeline wires OCR, completion and validation into a pipeline. The
// returned cleanup releases every client and is never nil.
func createPipeline(ctx context.Context, cfg *config.Config, observer pipeline.Observer, log zerolog.Logger) (*pipeline.Pipeline, func(), error) {
	ocrService, closeOCR, err := createOCRService(ctx, cfg, log)
	if err != nil {
		return nil, func() {}, err
	}

	client, closeModel, err := createModelClient(ctx, cfg, log)
	if err != nil {
		_ = closeOCR()
		return nil, func() {}, err
	}

	cleanup := func() {
		if err := closeModel(); err != nil {
			log.Warn().Err(err).Msg("Failed to close model client")
		}
		if err := closeOCR(); err != nil {
			log.Warn().Err(err).Msg("Failed to close OCR client")
		}
	}

	stages := extraction.NewStages(client)
	p := pipeline.New(ocrService, stages.Completer, stages.Validator, pipeline.Options{
		UsesDefaultKey: cfg.OCRProvider == config.OCRProviderSpace && cfg.UsesDefaultOCRKey(),
		Observer:       observer,
	})
	return p, cleanup, nil
}

// handleSetupError provides user-friendly error messages for client setup failures
func handleSetupError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Service setup failed")

	switch {
	case errors.Is(err, ocr.ErrMissingCredentials):
		return fmt.Errorf("Google Cloud credentials not configured. Please set one of:\n\n" +
			"1. GOOGLE_APPLICATION_CREDENTIALS with the path to a service account JSON file\n" +
			"2. GOOGLE_CREDENTIALS with inline service account JSON\n\n" +
			"Or use OCR_PROVIDER=ocrspace, which needs no Google account")
	case errors.Is(err, llm.ErrMissingAPIKey):
		return fmt.Errorf("generative model API key missing. Set GEMINI_API_KEY or OPENAI_API_KEY to match AI_PROVIDER")
	default:
		return fmt.Errorf("failed to create service: %w", err)
	}
}

// handleRunError maps failures that abort a command to user-facing messages.
func handleRunError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Processing failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("processing timed out. Try increasing --timeout")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("processing was canceled")
	default:
		return err
	}
}

// readRecord reads a record from a JSON file, or from stdin when path is "-".
func readRecord(path string) (models.Record, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return models.Record{}, fmt.Errorf("failed to open record file: %w", err)
		}
		defer f.Close()
		r = f
	}

	var record models.Record
	if err := json.NewDecoder(r).Decode(&record); err != nil {
		return models.Record{}, fmt.Errorf("invalid record JSON: %w", err)
	}
	return record, nil
}

// writeOutput writes data to outputPath, or to stdout when outputPath is empty.
// Text written to stdout is terminated with a newline.
func writeOutput(data []byte, outputPath string, text bool, log zerolog.Logger) error {
	if outputPath != "" {
		if err := os.WriteFile(outputPath, data, 0644); err != nil {
			log.Error().
				Err(err).
				Str("output_file", outputPath).
				Msg("Failed to write output file")
			return fmt.Errorf("failed to write output file: %w", err)
		}

		log.Info().
			Str("output_file", outputPath).
			Int("bytes", len(data)).
			Msg("Output written to file")
		return nil
	}

	if _, err := os.Stdout.Write(data); err != nil {
		log.Error().Err(err).Msg("Failed to write to stdout")
		return fmt.Errorf("failed to write output: %w", err)
	}
	if text && !strings.HasSuffix(string(data), "\n") {
		fmt.Println()
	}
	return nil
}
