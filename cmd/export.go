package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cardscan/internal/export"
	"cardscan/internal/logger"
	"cardscan/internal/sheets"
	"cardscan/pkg/models"
)

// formatSheets appends the record to a Google Sheet instead of writing a file.
const formatSheets = "sheets"

var exportCmd = &cobra.Command{
	Use:   "export [record.json]",
	Short: "Export an ID card record as JSON, CSV, PDF, XLSX or to Google Sheets",
	Long: `Export an ID card record. Use "-" to read the record from stdin.

Formats:
  json   - pretty-printed JSON
  csv    - header row plus one row, every value quoted
  pdf    - one page titled "Extracted ID Card Data" with one line per field
  xlsx   - an "ID Card" sheet with a header row and a value row
  sheets - appends one row to a Google Sheet, creating the worksheet and headers

Without --output the file is written to id_card_data.<format>; use -o - for stdout.

Required environment variables for sheets:
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - service account credentials
  GOOGLE_SHEET_URL - target spreadsheet (or --sheet-url)`,
	Example: `  # Save a PDF
  cardscan export card.json --format pdf

  # Print CSV to stdout
  cardscan export card.json --format csv -o -

  # Append to the ID_Cards worksheet of a Google Sheet
  cardscan export card.json --format sheets --worksheet ID_Cards`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().StringP("format", "f", "json", "Export format: json, csv, pdf, xlsx or sheets")
	exportCmd.Flags().StringP("output", "o", "", "Output file path (default: id_card_data.<format>, - for stdout)")
	exportCmd.Flags().String("sheet-url", "", "Google Sheets URL (default: $GOOGLE_SHEET_URL)")
	exportCmd.Flags().String("worksheet", "", "Worksheet name (default: $GOOGLE_SHEET_WORKSHEET or ID_Cards)")
	exportCmd.Flags().Int("timeout", 60, "Timeout in seconds for Google Sheets requests")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("output")

	record, err := readRecord(args[0])
	if err != nil {
		return err
	}

	if strings.EqualFold(strings.TrimSpace(format), formatSheets) {
		return exportToSheets(cmd, record)
	}

	f, err := export.ParseFormat(format)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, f, record); err != nil {
		log.Error().Err(err).Str("format", string(f)).Msg("Export failed")
		return fmt.Errorf("failed to export record: %w", err)
	}

	switch outputPath {
	case "-":
		outputPath = ""
	case "":
		outputPath = f.FileName()
	}

	if err := writeOutput(buf.Bytes(), outputPath, f == export.FormatJSON || f == export.FormatCSV, log); err != nil {
		return err
	}
	if outputPath != "" {
		fmt.Fprintf(os.Stderr, "Saved %s\n", outputPath)
	}
	return nil
}

func exportToSheets(cmd *cobra.Command, record models.Record) error {
	log := logger.WithComponent("export")

	sheetURL, _ := cmd.Flags().GetString("sheet-url")
	worksheet, _ := cmd.Flags().GetString("worksheet")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	if sheetURL == "" {
		sheetURL = os.Getenv("GOOGLE_SHEET_URL")
	}
	if sheetURL == "" {
		return fmt.Errorf("GOOGLE_SHEET_URL environment variable or --sheet-url is required")
	}
	if worksheet == "" {
		worksheet = os.Getenv("GOOGLE_SHEET_WORKSHEET")
	}
	if worksheet == "" {
		worksheet = "ID_Cards"
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	sheetsService, err := sheets.NewSheetsService(ctx, sheetURL)
	if err != nil {
		return fmt.Errorf("failed to initialize Google Sheets service: %w", err)
	}

	if err := sheetsService.AppendRecord(ctx, record, worksheet); err != nil {
		return handleRunError(fmt.Errorf("failed to write to Google Sheet: %w", err), log)
	}

	fmt.Fprintf(os.Stderr, "Appended record to sheet %s\n", worksheet)
	return nil
}
