// Package capture acquires a still frame of an ID card, either from a live video
// device or from an uploaded file, and encodes it as a base64 data URL for OCR.
package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"

	"github.com/rs/zerolog"

	"cardscan/internal/logger"
)

// State is the state of a capture session.
type State string

// Session states.
const (
	StateIdle       State = "idle"
	StateRequesting State = "requesting"
	StateStreaming  State = "streaming"
	StateCaptured   State = "captured"
	StateError      State = "error"
)

var (
	// ErrInvalidState is returned when an operation is not allowed in the current
	// state.
	ErrInvalidState = errors.New("operation not allowed in current capture state")

	// ErrDeviceUnavailable is returned when the device could not be opened.
	ErrDeviceUnavailable = errors.New("capture device unavailable")

	// ErrFrameFailed is returned when no frame could be read from the stream.
	ErrFrameFailed = errors.New("failed to capture frame")
)

// Facing selects the camera on devices that have several.
type Facing string

// Facing modes.
const (
	FacingEnvironment Facing = "environment"
	FacingUser        Facing = "user"
)

// Device is a source of live video.
type Device interface {
	// Open starts a stream. Implementations should honor facing when they can.
	Open(ctx context.Context, facing Facing) (Stream, error)
}

// Stream is an open video stream.
type Stream interface {
	// Frame returns the current frame.
	Frame(ctx context.Context) (image.Image, error)

	// Close stops the stream.
	Close() error
}

// Session is the still-frame acquisition state machine:
//
//	idle -> requesting -> streaming -> captured
//	           \-> error
//
// Reset returns to idle from any state. A Session is safe for concurrent use.
type Session struct {
	mu     sync.Mutex
	device Device
	facing Facing
	state  State
	stream Stream
	image  string
	err    error
	log    zerolog.Logger
}

// NewSession creates an idle session over device using the rear camera.
func NewSession(device Device) *Session {
	return &Session{
		device: device,
		facing: FacingEnvironment,
		state:  StateIdle,
		log:    logger.WithComponent("capture"),
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that moved the session to StateError.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Image returns the captured data URL, or "" before a capture.
func (s *Session) Image() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.image
}

// Start opens the device. It is allowed from idle and error.
func (s *Session) Start(ctx context.Context) error {
	const op = "Start"

	s.mu.Lock()
	if s.state != StateIdle && s.state != StateError {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%s: %w: %s", op, ErrInvalidState, state)
	}
	s.setState(StateRequesting)
	s.err = nil
	s.mu.Unlock()

	// The device may block on a permission prompt, so it is opened unlocked.
	stream, err := s.device.Open(ctx, s.facing)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateRequesting {
		// Reset while the device was opening.
		if stream != nil {
			_ = stream.Close()
		}
		return fmt.Errorf("%s: %w: session reset while opening", op, ErrInvalidState)
	}
	if err != nil {
		s.err = fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
		s.setState(StateError)
		s.log.Error().Err(err).Msg("Failed to open capture device")
		return fmt.Errorf("%s: %w", op, s.err)
	}

	s.stream = stream
	s.setState(StateStreaming)
	return nil
}

// Capture grabs the current frame as a PNG data URL and stops the stream.
func (s *Session) Capture(ctx context.Context) (string, error) {
	const op = "Capture"

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateStreaming {
		return "", fmt.Errorf("%s: %w: %s", op, ErrInvalidState, s.state)
	}

	frame, err := s.stream.Frame(ctx)
	if err != nil {
		s.fail(fmt.Errorf("%w: %v", ErrFrameFailed, err))
		return "", fmt.Errorf("%s: %w", op, s.err)
	}

	dataURL, err := EncodePNGDataURL(frame)
	if err != nil {
		s.fail(fmt.Errorf("%w: %v", ErrFrameFailed, err))
		return "", fmt.Errorf("%s: %w", op, s.err)
	}

	s.closeStream()
	s.image = dataURL
	s.setState(StateCaptured)

	b := frame.Bounds()
	s.log.Info().
		Int("width", b.Dx()).
		Int("height", b.Dy()).
		Int("data_url_length", len(dataURL)).
		Msg("Frame captured")

	return dataURL, nil
}

// Retake discards the captured image and starts the device again.
func (s *Session) Retake(ctx context.Context) error {
	s.Reset()
	return s.Start(ctx)
}

// Reset stops any stream and returns to idle.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closeStream()
	s.image = ""
	s.err = nil
	s.setState(StateIdle)
}

// setState must be called with mu held.
func (s *Session) setState(next State) {
	if s.state != next {
		s.log.Debug().Str("from", string(s.state)).Str("to", string(next)).Msg("Capture state transition")
	}
	s.state = next
}

// fail must be called with mu held.
func (s *Session) fail(err error) {
	s.closeStream()
	s.err = err
	s.setState(StateError)
	s.log.Error().Err(err).Msg("Capture failed")
}

// closeStream must be called with mu held.
func (s *Session) closeStream() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		s.log.Warn().Err(err).Msg("Failed to close capture stream")
	}
	s.stream = nil
}

// EncodePNGDataURL encodes img as a data:image/png;base64 URL.
func EncodePNGDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}
