package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"cardscan/internal/extraction"
	"cardscan/internal/llm"
	"cardscan/internal/logger"
	"cardscan/internal/pipeline"
)

var validateCmd = &cobra.Command{
	Use:   "validate [record.json]",
	Short: "Ask the generative model to check an ID card record",
	Long: `Send an ID card record to the generative model for a plausibility check.

The record is a JSON object with surname, firstName, gender, dateOfBirth and
idNumber. Use "-" to read it from stdin. The outcome is printed as JSON:

  {"type": "success|info|error", "message": "..."}

"success" means the model judged the data consistent, "info" carries its remarks and
"error" means the check could not be run.`,
	Example: `  # Validate a record saved by scan
  cardscan validate card.json

  # Pipe a scan into validation
  cardscan scan card.jpg -f json | cardscan validate -`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().Int("timeout", 60, "Processing timeout in seconds")
}

func runValidate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("validate")

	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	record, err := readRecord(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	client, closeModel, err := createModelClient(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeModel(); err != nil {
			log.Warn().Err(err).Msg("Failed to close model client")
		}
	}()

	p := newValidationPipeline(client, func(runID string, from, to pipeline.State) {
		runLog := logger.WithRun("pipeline", runID)
		runLog.Debug().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("State transition")
	})

	outcome := p.ValidateRecord(ctx, record)
	if outcome.Type == extraction.OutcomeError && ctx.Err() != nil {
		return handleRunError(ctx.Err(), log)
	}

	data, err := json.MarshalIndent(outcome, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to create JSON output: %w", err)
	}
	if err := writeOutput(data, "", true, log); err != nil {
		return err
	}

	if outcome.Type == extraction.OutcomeError {
		return fmt.Errorf("validation failed: %s", outcome.Message)
	}
	return nil
}

// newValidationPipeline returns a pipeline that can only validate records; it has
// no OCR service or field completer.
func newValidationPipeline(client llm.Client, observer pipeline.Observer) *pipeline.Pipeline {
	return pipeline.New(nil, nil, extraction.NewRecordValidator(client), pipeline.Options{Observer: observer})
}
