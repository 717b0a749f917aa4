package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"cardscan/internal/capture"
	"cardscan/internal/export"
	"cardscan/internal/logger"
	"cardscan/internal/pipeline"
	"cardscan/pkg/models"
)

// formatResult prints the whole pipeline result rather than an export of the record.
const formatResult = "result"

var scanCmd = &cobra.Command{
	Use:   "scan [image-file]",
	Short: "Extract ID card fields from an image",
	Long: `Scan an identity card image: recognize its text with OCR, complete the card
fields with a generative model and normalize dates (YYYY-MM-DD) and gender (M/F).

The image is read from the given file, or captured from --device, a still image that
stands in for a camera. Known field values can be passed as seeds; they are kept
as given.

By default the pipeline result is printed as JSON:
  {"data": {...}, "error": "...", "rawOcrText": "...", "usesDefaultKey": true}

Required environment variables:
  GEMINI_API_KEY (AI_PROVIDER=gemini, default) or OPENAI_API_KEY (AI_PROVIDER=openai)

Optional environment variables:
  OCR_SPACE_API_KEY - OCR.space key (the rate-limited demo key is used without it)
  OCR_PROVIDER      - ocrspace (default), vision or documentai`,
	Example: `  # Scan a card and print the result
  cardscan scan card.jpg

  # Scan, validate and save the record as CSV
  cardscan scan card.jpg --validate --format csv -o card.csv

  # Capture from a still-image device and keep a known ID number
  cardscan scan --device frame.png --id-number X1234567`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().String("device", "", "Capture the image from a still-image device file instead of an argument")
	scanCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	scanCmd.Flags().StringP("format", "f", formatResult, "Output format: result, json, csv, pdf or xlsx")
	scanCmd.Flags().Bool("validate", false, "Ask the model to check the extracted record")
	scanCmd.Flags().Bool("verbose", false, "Print pipeline state transitions to stderr")
	scanCmd.Flags().Int("timeout", 120, "Processing timeout in seconds")

	scanCmd.Flags().String("surname", "", "Known surname")
	scanCmd.Flags().String("first-name", "", "Known first name")
	scanCmd.Flags().String("gender", "", "Known gender")
	scanCmd.Flags().String("dob", "", "Known date of birth")
	scanCmd.Flags().String("id-number", "", "Known ID number")
}

func runScan(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("scan")

	devicePath, _ := cmd.Flags().GetString("device")
	outputPath, _ := cmd.Flags().GetString("output")
	format, _ := cmd.Flags().GetString("format")
	validate, _ := cmd.Flags().GetBool("validate")
	verbose, _ := cmd.Flags().GetBool("verbose")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if (len(args) == 0) == (devicePath == "") {
		return fmt.Errorf("provide either an image file or --device")
	}

	var exportFormat export.Format
	if format != formatResult {
		f, err := export.ParseFormat(format)
		if err != nil {
			return err
		}
		exportFormat = f
	}

	seed := seedFromFlags(cmd)

	log.Info().
		Strs("args", args).
		Str("device", devicePath).
		Str("format", format).
		Bool("validate", validate).
		Int("timeout", timeoutSecs).
		Msg("Starting scan")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	var observer pipeline.Observer
	if verbose {
		observer = func(runID string, from, to pipeline.State) {
			fmt.Fprintf(os.Stderr, "[%s] %s -> %s\n", runID[:8], from, to)
		}
	}

	p, cleanup, err := createPipeline(ctx, cfg, observer, log)
	if err != nil {
		return err
	}
	defer cleanup()

	var image string
	if devicePath != "" {
		image, err = captureFromDevice(ctx, devicePath)
	} else {
		image, _, err = capture.ReadFile(args[0])
	}
	if err != nil {
		return handleImageError(err, log)
	}

	startTime := time.Now()
	result := p.ProcessImageWithSeed(ctx, image, seed)

	if result.UsesDefaultKey {
		fmt.Fprintln(os.Stderr, "Note: using the OCR.space demo key, which is rate-limited. Set OCR_SPACE_API_KEY for reliable results.")
	}

	if result.Failed() {
		if ctx.Err() != nil {
			return handleRunError(ctx.Err(), log)
		}
		if format == formatResult {
			if err := printResult(result, outputPath, log); err != nil {
				return err
			}
		}
		log.Error().Str("error", result.Error).Msg("Scan failed")
		return errors.New(result.Error)
	}

	log.Info().
		Str("id_number", result.Data.IDNumber).
		Dur("duration", time.Since(startTime)).
		Msg("Scan completed successfully")

	if validate {
		outcome := p.ValidateRecord(ctx, *result.Data)
		fmt.Fprintf(os.Stderr, "Validation (%s): %s\n", outcome.Type, outcome.Message)
	}

	if format == formatResult {
		return printResult(result, outputPath, log)
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, exportFormat, *result.Data); err != nil {
		return fmt.Errorf("failed to export record: %w", err)
	}
	return writeOutput(buf.Bytes(), outputPath, exportFormat == export.FormatJSON || exportFormat == export.FormatCSV, log)
}

func seedFromFlags(cmd *cobra.Command) models.Record {
	var seed models.Record
	seed.Surname, _ = cmd.Flags().GetString("surname")
	seed.FirstName, _ = cmd.Flags().GetString("first-name")
	seed.Gender, _ = cmd.Flags().GetString("gender")
	seed.DateOfBirth, _ = cmd.Flags().GetString("dob")
	seed.IDNumber, _ = cmd.Flags().GetString("id-number")
	return seed
}

// captureFromDevice runs a capture session over a still-image device.
func captureFromDevice(ctx context.Context, path string) (string, error) {
	session := capture.NewSession(capture.FileDevice{Path: path})
	if err := session.Start(ctx); err != nil {
		return "", err
	}
	return session.Capture(ctx)
}

func printResult(result pipeline.Result, outputPath string, log zerolog.Logger) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		log.Error().Err(err).Msg("Failed to marshal JSON output")
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	return writeOutput(data, outputPath, true, log)
}

// handleImageError provides user-friendly error messages for unreadable images
func handleImageError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Failed to read image")

	switch {
	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("image file not found: %w", err)
	case errors.Is(err, capture.ErrNotAnImage):
		return fmt.Errorf("unsupported image. Use a JPEG, PNG, GIF, WebP or BMP file: %w", err)
	case errors.Is(err, capture.ErrTooLarge):
		return fmt.Errorf("image is larger than %d MB. Try a smaller or compressed image", capture.MaxUploadBytes>>20)
	case errors.Is(err, capture.ErrDeviceUnavailable):
		return fmt.Errorf("capture device unavailable: %w", err)
	default:
		return fmt.Errorf("failed to read image: %w", err)
	}
}
