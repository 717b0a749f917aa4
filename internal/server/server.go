// Package server exposes the scanning pipeline as a small JSON-over-HTTP API.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"cardscan/internal/capture"
	"cardscan/internal/export"
	"cardscan/internal/logger"
	"cardscan/internal/pipeline"
	"cardscan/pkg/models"
)

// maxJSONBody bounds JSON request bodies; base64 inflates an image by a third.
const maxJSONBody = capture.MaxUploadBytes*4/3 + 1<<16

// Server serves the scan, validate and export endpoints.
type Server struct {
	pipeline *pipeline.Pipeline
	timeout  time.Duration
	log      zerolog.Logger
}

// New creates a server. timeout bounds each request's pipeline work; zero means no
// bound beyond the client's own.
func New(p *pipeline.Pipeline, timeout time.Duration) *Server {
	return &Server{
		pipeline: p,
		timeout:  timeout,
		log:      logger.WithComponent("server"),
	}
}

// scanRequest is the JSON body of POST /api/scan.
type scanRequest struct {
	Image string         `json:"image"`
	Seed  *models.Record `json:"seed,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "ok")
	})

	r.Route("/api", func(r chi.Router) {
		r.Post("/scan", s.handleScan)
		r.Post("/validate", s.handleValidate)
		r.Post("/export/{format}", s.handleExport)
	})

	return r
}

// POST /api/scan
// Accepts {"image": "<base64 or data URL>", "seed": {...}} or a multipart form with
// a "file" part. Pipeline failures are reported in the body with status 200.
func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest

	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		image, err := readMultipartImage(r)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		req.Image = image
	} else if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	if strings.TrimSpace(req.Image) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "image is required"})
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	var seed models.Record
	if req.Seed != nil {
		seed = *req.Seed
	}
	writeJSON(w, http.StatusOK, s.pipeline.ProcessImageWithSeed(ctx, req.Image, seed))
}

// POST /api/validate
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var record models.Record
	if err := decodeJSON(r, &record); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	ctx, cancel := s.withTimeout(r.Context())
	defer cancel()

	writeJSON(w, http.StatusOK, s.pipeline.ValidateRecord(ctx, record))
}

// POST /api/export/{format}
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var record models.Record
	if err := decodeJSON(r, &record); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	var buf bytes.Buffer
	if err := export.Write(&buf, format, record); err != nil {
		s.log.Error().Err(err).Str("format", string(format)).Msg("Export failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "export failed"})
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, format.FileName()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

// requestLogger tags each request with an ID and logs its outcome.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		log := logger.WithRequestID(requestID)
		log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("elapsed", time.Since(start)).
			Msg("HTTP request")
	})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is empty")
		}
		return fmt.Errorf("invalid json: %v", err)
	}
	return nil
}

func readMultipartImage(r *http.Request) (string, error) {
	file, _, err := r.FormFile("file")
	if err != nil {
		return "", fmt.Errorf("file is required: %v", err)
	}
	defer file.Close()

	image, _, err := capture.ReadUpload(file)
	if err != nil {
		return "", err
	}
	return image, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
