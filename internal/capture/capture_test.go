package capture

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func testFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 3))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	return img
}

// failingDevice never opens.
type failingDevice struct{}

func (failingDevice) Open(ctx context.Context, _ Facing) (Stream, error) {
	return nil, errors.New("permission denied")
}

// brokenStream opens but cannot deliver frames.
type brokenStream struct{ closed bool }

func (b *brokenStream) Frame(ctx context.Context) (image.Image, error) {
	return nil, errors.New("device disconnected")
}
func (b *brokenStream) Close() error { b.closed = true; return nil }

type brokenDevice struct{ stream *brokenStream }

func (d brokenDevice) Open(ctx context.Context, _ Facing) (Stream, error) { return d.stream, nil }

func TestSessionCapture(t *testing.T) {
	s := NewSession(ImageDevice{Image: testFrame()})
	if s.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", s.State())
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if s.State() != StateStreaming {
		t.Fatalf("state after Start = %s, want streaming", s.State())
	}

	dataURL, err := s.Capture(context.Background())
	if err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if s.State() != StateCaptured {
		t.Errorf("state after Capture = %s, want captured", s.State())
	}
	if s.Image() != dataURL {
		t.Error("Image() differs from the returned data URL")
	}

	const prefix = "data:image/png;base64,"
	if !strings.HasPrefix(dataURL, prefix) {
		t.Fatalf("data URL = %.40q, want png prefix", dataURL)
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURL, prefix))
	if err != nil {
		t.Fatalf("decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Errorf("captured size = %v, want 4x3", img.Bounds())
	}
}

func TestSessionRejectsOutOfOrderCalls(t *testing.T) {
	s := NewSession(ImageDevice{Image: testFrame()})

	if _, err := s.Capture(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Capture() from idle error = %v, want ErrInvalidState", err)
	}

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Start() error = %v, want ErrInvalidState", err)
	}

	if _, err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}
	if _, err := s.Capture(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second Capture() error = %v, want ErrInvalidState", err)
	}
	if err := s.Start(context.Background()); !errors.Is(err, ErrInvalidState) {
		t.Errorf("Start() from captured error = %v, want ErrInvalidState", err)
	}
}

func TestSessionDeviceFailure(t *testing.T) {
	s := NewSession(failingDevice{})

	err := s.Start(context.Background())
	if !errors.Is(err, ErrDeviceUnavailable) {
		t.Fatalf("Start() error = %v, want ErrDeviceUnavailable", err)
	}
	if s.State() != StateError {
		t.Errorf("state = %s, want error", s.State())
	}
	if !errors.Is(s.Err(), ErrDeviceUnavailable) {
		t.Errorf("Err() = %v", s.Err())
	}

	s.Reset()
	if s.State() != StateIdle || s.Err() != nil {
		t.Errorf("after Reset state = %s err = %v", s.State(), s.Err())
	}
}

func TestSessionFrameFailureClosesStream(t *testing.T) {
	stream := &brokenStream{}
	s := NewSession(brokenDevice{stream: stream})

	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := s.Capture(context.Background()); !errors.Is(err, ErrFrameFailed) {
		t.Fatalf("Capture() error = %v, want ErrFrameFailed", err)
	}
	if s.State() != StateError {
		t.Errorf("state = %s, want error", s.State())
	}
	if !stream.closed {
		t.Error("stream left open after failure")
	}
}

func TestSessionRetake(t *testing.T) {
	s := NewSession(ImageDevice{Image: testFrame()})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	if err := s.Retake(context.Background()); err != nil {
		t.Fatalf("Retake() error = %v", err)
	}
	if s.State() != StateStreaming {
		t.Errorf("state after Retake = %s, want streaming", s.State())
	}
	if s.Image() != "" {
		t.Error("captured image survived Retake")
	}
}

func TestDataURL(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, testFrame()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name     string
		data     []byte
		wantMIME string
		wantErr  error
	}{
		{name: "png", data: buf.Bytes(), wantMIME: "image/png"},
		{name: "jpeg magic", data: []byte("\xff\xd8\xff\xe0\x00\x10JFIF\x00"), wantMIME: "image/jpeg"},
		{name: "pdf", data: []byte("%PDF-1.7\n"), wantErr: ErrNotAnImage},
		{name: "text", data: []byte("hello"), wantErr: ErrNotAnImage},
		{name: "empty", data: nil, wantErr: ErrNotAnImage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url, mt, err := DataURL(tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("DataURL() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("DataURL() error = %v", err)
			}
			if mt != tt.wantMIME {
				t.Errorf("mime = %q, want %q", mt, tt.wantMIME)
			}
			if !strings.HasPrefix(url, "data:"+tt.wantMIME+";base64,") {
				t.Errorf("url = %.40q", url)
			}
		})
	}
}

func TestReadUploadTooLarge(t *testing.T) {
	big := bytes.Repeat([]byte{0}, MaxUploadBytes+1)
	if _, _, err := ReadUpload(bytes.NewReader(big)); !errors.Is(err, ErrTooLarge) {
		t.Errorf("ReadUpload() error = %v, want ErrTooLarge", err)
	}
}

func TestFileDevice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "card.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, testFrame()); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	s := NewSession(FileDevice{Path: path})
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := s.Capture(context.Background()); err != nil {
		t.Fatalf("Capture() error = %v", err)
	}

	missing := NewSession(FileDevice{Path: filepath.Join(t.TempDir(), "missing.png")})
	if err := missing.Start(context.Background()); !errors.Is(err, ErrDeviceUnavailable) {
		t.Errorf("Start() on missing file error = %v, want ErrDeviceUnavailable", err)
	}
}
