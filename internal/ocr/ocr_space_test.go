package ocr

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func testImage() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngHeader)
}

func newTestService(t *testing.T, handler http.HandlerFunc) *OCRSpaceService {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOCRSpaceService(OCRSpaceConfig{
		Endpoint:   srv.URL,
		APIKey:     "test-key",
		HTTPClient: srv.Client(),
	})
}

func TestRecognizeSendsDocumentedForm(t *testing.T) {
	var got map[string]string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
			return
		}
		got = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		io.WriteString(w, `{"ParsedResults":[{"ParsedText":"Doe\nJohn"}],"OCRExitCode":1,"IsErroredOnProcessing":false,"ProcessingTimeInMilliseconds":"120"}`)
	})

	result, err := svc.Recognize(context.Background(), testImage())
	if err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if result.Text() != "Doe\nJohn" {
		t.Errorf("Text() = %q, want %q", result.Text(), "Doe\nJohn")
	}

	want := map[string]string{
		"base64Image":       testImage(),
		"apikey":            "test-key",
		"language":          "eng",
		"isOverlayRequired": "false",
		"detectOrientation": "true",
		"scale":             "true",
	}
	if len(got) != len(want) {
		t.Errorf("form has %d fields, want %d: %v", len(got), len(want), got)
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("form field %s = %q, want %q", k, got[k], v)
		}
	}
}

func TestRecognizeAddsDataURLPrefix(t *testing.T) {
	var sent string
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		sent = r.FormValue("base64Image")
		io.WriteString(w, `{"ParsedResults":[{"ParsedText":"x"}],"OCRExitCode":1}`)
	})

	bare := base64.StdEncoding.EncodeToString(pngHeader)
	if _, err := svc.Recognize(context.Background(), bare); err != nil {
		t.Fatalf("Recognize() error = %v", err)
	}
	if !strings.HasPrefix(sent, "data:image/png;base64,") {
		t.Errorf("base64Image = %q, want data URL prefix", sent)
	}
}

func TestRecognizeFailures(t *testing.T) {
	tests := []struct {
		name         string
		status       int
		body         string
		wantErr      error
		wantMessages []string
	}{
		{
			name:    "non-2xx status",
			status:  http.StatusForbidden,
			body:    "The API key is invalid",
			wantErr: ErrRequestFailed,
		},
		{
			name:         "errored on processing",
			status:       http.StatusOK,
			body:         `{"ParsedResults":[],"OCRExitCode":3,"IsErroredOnProcessing":true,"ErrorMessage":["Unable to recognize the file type","E216"]}`,
			wantErr:      ErrProcessingFailed,
			wantMessages: []string{"Unable to recognize the file type", "E216"},
		},
		{
			name:         "exit code not success",
			status:       http.StatusOK,
			body:         `{"ParsedResults":[{"ParsedText":""}],"OCRExitCode":2,"IsErroredOnProcessing":false,"ErrorMessage":"Timed out waiting for results"}`,
			wantErr:      ErrProcessingFailed,
			wantMessages: []string{"Timed out waiting for results"},
		},
		{
			name:         "errored without messages",
			status:       http.StatusOK,
			body:         `{"OCRExitCode":4,"IsErroredOnProcessing":true}`,
			wantErr:      ErrProcessingFailed,
			wantMessages: nil,
		},
		{
			name:    "no parsed results",
			status:  http.StatusOK,
			body:    `{"ParsedResults":[],"OCRExitCode":1,"IsErroredOnProcessing":false}`,
			wantErr: ErrEmptyDocument,
		},
		{
			name:    "malformed json",
			status:  http.StatusOK,
			body:    `<html>maintenance</html>`,
			wantErr: ErrInvalidResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			})

			_, err := svc.Recognize(context.Background(), testImage())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Recognize() error = %v, want %v", err, tt.wantErr)
			}
			msgs := ServiceMessages(err)
			if len(msgs) != len(tt.wantMessages) {
				t.Fatalf("ServiceMessages() = %v, want %v", msgs, tt.wantMessages)
			}
			for i := range msgs {
				if msgs[i] != tt.wantMessages[i] {
					t.Errorf("ServiceMessages()[%d] = %q, want %q", i, msgs[i], tt.wantMessages[i])
				}
			}
		})
	}
}

func TestRecognizeNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	svc := NewOCRSpaceService(OCRSpaceConfig{Endpoint: url, APIKey: "k"})
	_, err := svc.Recognize(context.Background(), testImage())
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("Recognize() error = %v, want ErrRequestFailed", err)
	}
}

func TestRecognizeEmptyImageMakesNoCall(t *testing.T) {
	called := false
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	_, err := svc.Recognize(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyImage) {
		t.Fatalf("Recognize() error = %v, want ErrEmptyImage", err)
	}
	if called {
		t.Error("OCR endpoint was called for an empty image")
	}
}

func TestRecognizeHonoursCancellation(t *testing.T) {
	svc := newTestService(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Recognize(ctx, testImage())
	if !errors.Is(err, ErrRequestFailed) {
		t.Fatalf("Recognize() error = %v, want ErrRequestFailed", err)
	}
}
