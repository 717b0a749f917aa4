package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cardscan/internal/capture"
	"cardscan/internal/logger"
	"cardscan/internal/pipeline"
	"cardscan/internal/sheets"
	"cardscan/pkg/models"
)

// defaultBatchWorkers keeps concurrent calls within the OCR.space demo key's limits.
const defaultBatchWorkers = 4

var imageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
	".bmp":  true,
}

var batchCmd = &cobra.Command{
	Use:   "batch [folder-path]",
	Short: "Scan all ID card images in a folder",
	Long: `Scan every image in a folder and optionally append the extracted records to a
Google Sheet.

Each image runs through its own pipeline (OCR, field completion, normalization).
Images are processed in parallel by a bounded pool of workers; results are reported
in file order.

Required environment variables:
  GEMINI_API_KEY or OPENAI_API_KEY - see "cardscan scan --help"
  GOOGLE_SHEET_URL - Google Sheets URL (with --sheets)
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS (with --sheets)

Optional environment variables:
  BATCH_WORKERS - Number of parallel workers (default: 4)`,
	Example: `  # Scan a folder and print a summary
  cardscan batch ./cards

  # Scan and append successful records to Google Sheets
  cardscan batch ./cards --sheets --worksheet ID_Cards`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

// BatchResult is the outcome of scanning one image
type BatchResult struct {
	Filename string
	Record   *models.Record
	Error    string
	Index    int
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().Bool("sheets", false, "Append successful records to Google Sheets")
	batchCmd.Flags().String("worksheet", "", "Worksheet name (default: $GOOGLE_SHEET_WORKSHEET or ID_Cards)")
	batchCmd.Flags().Bool("verbose", false, "Show extracted values for each image")
	batchCmd.Flags().Int("timeout", 1800, "Total processing timeout in seconds")
}

func runBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("batch")

	folderPath := args[0]
	toSheets, _ := cmd.Flags().GetBool("sheets")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	verbose, _ := cmd.Flags().GetBool("verbose")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if worksheet == "" {
		worksheet = cfg.GoogleSheetWorksheet
	}
	if toSheets && cfg.GoogleSheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable is required with --sheets")
	}

	images, err := findImageFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find images: %w", err)
	}
	if len(images) == 0 {
		fmt.Println("No images found in folder.")
		return nil
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	p, cleanup, err := createPipeline(ctx, cfg, nil, log)
	if err != nil {
		return err
	}
	defer cleanup()

	numWorkers := getNumWorkers()

	log.Info().
		Str("folder", folderPath).
		Int("images", len(images)).
		Int("workers", numWorkers).
		Bool("sheets", toSheets).
		Msg("Starting batch scan")

	fmt.Printf("Scanning %d images with %d workers...\n\n", len(images), numWorkers)

	results := scanInParallel(ctx, p, images, numWorkers, verbose)

	var records []models.Record
	for _, result := range results {
		if result.Record != nil {
			records = append(records, *result.Record)
		}
	}
	failed := len(results) - len(records)

	fmt.Println()
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Succeeded: %d\n", len(records))
	if failed > 0 {
		fmt.Printf("Failed:    %d\n", failed)
	}

	if ctx.Err() != nil {
		return handleRunError(ctx.Err(), log)
	}

	if toSheets && len(records) > 0 {
		if err := appendToSheets(ctx, cfg.GoogleSheetURL, worksheet, records, log); err != nil {
			return err
		}
		fmt.Printf("Sheet: %s (%d rows added)\n", worksheet, len(records))
	}

	log.Info().
		Int("total", len(results)).
		Int("success", len(records)).
		Int("errors", failed).
		Msg("Batch scan completed")

	return nil
}

// findImageFiles lists the images in folderPath and its subfolders in path order
func findImageFiles(folderPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && imageExtensions[strings.ToLower(filepath.Ext(info.Name()))] {
			files = append(files, path)
		}
		return nil
	})

	sort.Strings(files)
	return files, err
}

// getNumWorkers returns the number of workers from environment or default
func getNumWorkers() int {
	if workersStr := os.Getenv("BATCH_WORKERS"); workersStr != "" {
		if workers, err := strconv.Atoi(workersStr); err == nil && workers > 0 {
			return workers
		}
	}
	return defaultBatchWorkers
}

// scanInParallel runs one pipeline per image with at most numWorkers at a time.
// A failed image does not stop the others.
func scanInParallel(ctx context.Context, p *pipeline.Pipeline, images []string, numWorkers int, verbose bool) []BatchResult {
	log := logger.WithComponent("batch")
	results := make([]BatchResult, len(images))

	var mu sync.Mutex
	processed := 0

	var g errgroup.Group
	g.SetLimit(numWorkers)

	for i, path := range images {
		g.Go(func() error {
			result := scanOne(ctx, p, path)
			result.Index = i
			results[i] = result

			mu.Lock()
			defer mu.Unlock()
			processed++
			printProgress(result, processed, len(images), verbose, log)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func scanOne(ctx context.Context, p *pipeline.Pipeline, path string) BatchResult {
	result := BatchResult{Filename: filepath.Base(path)}

	image, _, err := capture.ReadFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	scan := p.ProcessImage(ctx, image)
	if scan.Failed() {
		result.Error = scan.Error
		return result
	}
	result.Record = scan.Data
	return result
}

func printProgress(result BatchResult, done, total int, verbose bool, log zerolog.Logger) {
	if result.Record == nil {
		fmt.Printf("[%d/%d] %s - FAILED (%s)\n", done, total, result.Filename, result.Error)
		log.Warn().Str("file", result.Filename).Str("error", result.Error).Msg("Image failed")
		return
	}

	status := "OK"
	if !result.Record.IsComplete() {
		status = "INCOMPLETE"
		log.Warn().
			Str("file", result.Filename).
			Strs("missing_fields", result.Record.MissingFields()).
			Msg("Record has empty fields")
	}
	fmt.Printf("[%d/%d] %s - %s (%s)\n", done, total, result.Filename, status, result.Record.IDNumber)
	if verbose {
		r := result.Record
		fmt.Printf("        %s, %s | %s | %s\n", r.Surname, r.FirstName, r.Gender, r.DateOfBirth)
	}
}

func appendToSheets(ctx context.Context, sheetURL, worksheet string, records []models.Record, log zerolog.Logger) error {
	sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to create Google Sheets service: %w", err)
	}

	if err := sheetsService.AppendRecords(ctx, records, worksheet); err != nil {
		return handleRunError(fmt.Errorf("failed to write to Google Sheet: %w", err), log)
	}
	return nil
}
