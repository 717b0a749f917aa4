// Package pipeline runs one ID card image through OCR, field completion and
// normalization, and runs validation on a reviewed record.
//
// Failures never escape as Go errors: every outcome is reported in a Result, with
// Data and RawOCRText left nil on failure so callers cannot act on partial data.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cardscan/internal/extraction"
	"cardscan/internal/logger"
	"cardscan/internal/ocr"
	"cardscan/pkg/models"
)

// State is a step of one run.
type State string

// Run states, in order.
const (
	StateIdle              State = "idle"
	StateOCRRunning        State = "ocr_running"
	StateOCRFailed         State = "ocr_failed"
	StateCompletionRunning State = "completion_running"
	StateCompletionFailed  State = "completion_failed"
	StateReady             State = "ready"
	StateValidationRunning State = "validation_running"
	StateValidationDone    State = "validation_done"
	StateValidationFailed  State = "validation_failed"
)

// Messages reported when OCR yields nothing usable.
const (
	MsgNoTextFound     = "No text found by OCR."
	msgUnknownOCRError = "Unknown OCR error"
	ocrFailedMsgPrefix = "OCR processing failed: "
)

// Result is the outcome of ProcessImage. Exactly one of Data and Error is set.
type Result struct {
	Data           *models.Record `json:"data"`
	Error          string         `json:"error,omitempty"`
	RawOCRText     *string        `json:"rawOcrText"`
	UsesDefaultKey bool           `json:"usesDefaultKey"`
}

// Failed reports whether the run ended in an error.
func (r Result) Failed() bool {
	return r.Error != ""
}

// Observer receives every state transition of a run.
type Observer func(runID string, from, to State)

// Options configures a Pipeline.
type Options struct {
	// UsesDefaultKey is reported on every Result.
	UsesDefaultKey bool

	// Observer, when set, is called synchronously on each transition.
	Observer Observer
}

// Pipeline holds the stage clients. It is safe for concurrent runs as long as the
// clients are.
type Pipeline struct {
	ocr       ocr.OCRService
	completer extraction.FieldCompleter
	validator extraction.RecordValidator
	opts      Options
}

// New creates a pipeline.
func New(ocrService ocr.OCRService, completer extraction.FieldCompleter, validator extraction.RecordValidator, opts Options) *Pipeline {
	return &Pipeline{
		ocr:       ocrService,
		completer: completer,
		validator: validator,
		opts:      opts,
	}
}

// run tracks the state of one invocation.
type run struct {
	id    string
	state State
	log   zerolog.Logger
	obs   Observer
}

func (p *Pipeline) newRun() *run {
	id := uuid.NewString()
	return &run{
		id:    id,
		state: StateIdle,
		log:   logger.WithRun("pipeline", id),
		obs:   p.opts.Observer,
	}
}

func (r *run) to(next State) {
	r.log.Debug().Str("from", string(r.state)).Str("to", string(next)).Msg("State transition")
	if r.obs != nil {
		r.obs(r.id, r.state, next)
	}
	r.state = next
}

// ProcessImage runs OCR, completion and normalization on one base64 image.
func (p *Pipeline) ProcessImage(ctx context.Context, base64Image string) Result {
	return p.ProcessImageWithSeed(ctx, base64Image, models.Record{})
}

// ProcessImageWithSeed is ProcessImage with field values that are already known.
func (p *Pipeline) ProcessImageWithSeed(ctx context.Context, base64Image string, seed models.Record) Result {
	r := p.newRun()
	startTime := time.Now()

	r.log.Info().
		Bool("uses_default_key", p.opts.UsesDefaultKey).
		Int("image_length", len(base64Image)).
		Msg("Processing image")

	fail := func(state State, msg string, rawText *string) Result {
		r.to(state)
		r.log.Error().Str("error", msg).Dur("elapsed", time.Since(startTime)).Msg("Pipeline run failed")
		return Result{Error: msg, RawOCRText: rawText, UsesDefaultKey: p.opts.UsesDefaultKey}
	}

	r.to(StateOCRRunning)
	ocrResult, err := p.ocr.Recognize(ctx, base64Image)
	if err != nil {
		return fail(StateOCRFailed, ocrErrorMessage(err), nil)
	}
	if msg, ok := unusableOCR(ocrResult); ok {
		return fail(StateOCRFailed, msg, nil)
	}

	rawText := ocrResult.Text()
	if strings.TrimSpace(rawText) == "" {
		empty := ""
		return fail(StateOCRFailed, MsgNoTextFound, &empty)
	}

	r.log.Info().Int("text_length", len(rawText)).Msg("OCR text received")

	r.to(StateCompletionRunning)
	record, err := p.completer.Complete(ctx, extraction.CompletionInput{OCRText: rawText, Seed: seed})
	if err != nil {
		return fail(StateCompletionFailed, extraction.Message(err), nil)
	}

	normalized := extraction.Normalize(*record)
	r.to(StateReady)

	r.log.Info().
		Strs("missing_fields", normalized.MissingFields()).
		Dur("elapsed", time.Since(startTime)).
		Msg("Pipeline run finished")

	return Result{
		Data:           &normalized,
		RawOCRText:     &rawText,
		UsesDefaultKey: p.opts.UsesDefaultKey,
	}
}

// ValidateRecord asks the model for an assessment of a (possibly edited) record.
func (p *Pipeline) ValidateRecord(ctx context.Context, record models.Record) extraction.ValidationOutcome {
	r := p.newRun()
	r.state = StateReady

	r.to(StateValidationRunning)
	outcome := extraction.Assess(ctx, p.validator, record)
	if outcome.Type == extraction.OutcomeError {
		r.to(StateValidationFailed)
		r.log.Error().Str("error", outcome.Message).Msg("Validation failed")
		return outcome
	}

	r.to(StateValidationDone)
	r.log.Info().Str("outcome", outcome.Type).Msg("Validation finished")
	return outcome
}

// ocrErrorMessage renders an OCR failure for the user. Service-reported failures
// list the service messages; transport failures report the error itself.
func ocrErrorMessage(err error) string {
	if errors.Is(err, ocr.ErrEmptyDocument) {
		return ocrFailedMsgPrefix + ocr.ErrEmptyDocument.Error()
	}
	if errors.Is(err, ocr.ErrProcessingFailed) {
		msgs := ocr.ServiceMessages(err)
		if len(msgs) == 0 {
			return ocrFailedMsgPrefix + msgUnknownOCRError
		}
		return ocrFailedMsgPrefix + strings.Join(msgs, ", ")
	}

	var ocrErr *ocr.OCRError
	if errors.As(err, &ocrErr) {
		if ocrErr.Details != "" {
			return fmt.Sprintf("%v: %s", ocrErr.Err, ocrErr.Details)
		}
		return ocrErr.Err.Error()
	}
	return err.Error()
}

// unusableOCR checks a result the backend returned without error. Backends report
// failures as errors, but the result is checked too so that no stage runs on a
// failed or empty response.
func unusableOCR(result *ocr.Result) (string, bool) {
	if result == nil {
		return ocrFailedMsgPrefix + msgUnknownOCRError, true
	}
	if result.IsErroredOnProcessing {
		msgs := []string(result.ErrorMessage)
		if len(msgs) == 0 {
			return ocrFailedMsgPrefix + msgUnknownOCRError, true
		}
		return ocrFailedMsgPrefix + strings.Join(msgs, ", "), true
	}
	if len(result.ParsedResults) == 0 {
		return ocrFailedMsgPrefix + ocr.ErrEmptyDocument.Error(), true
	}
	return "", false
}
