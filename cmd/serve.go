package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cardscan/internal/logger"
	"cardscan/internal/pipeline"
	"cardscan/internal/server"
)

// shutdownTimeout bounds how long in-flight requests may run after a signal.
const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the scanning pipeline over HTTP",
	Long: `Start a JSON-over-HTTP API for browser clients.

Endpoints:
  POST /api/scan             {"image": "<base64 or data URL>", "seed": {...}}
                             or multipart form with a "file" part
  POST /api/validate         record JSON -> {"type": "...", "message": "..."}
  POST /api/export/{format}  record JSON -> json, csv, pdf or xlsx file
  GET  /healthz

Scan failures are reported in the response body with status 200.

Configuration:
  HTTP_ADDR            - listen address (default :8080, or --addr)
  HTTP_REQUEST_TIMEOUT - per-request pipeline timeout (default 2m)`,
	Example: `  # Serve on the default address
  cardscan serve

  # Serve on a different port
  cardscan serve --addr :9000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: $HTTP_ADDR or :8080)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	observer := func(runID string, from, to pipeline.State) {
		runLog := logger.WithRun("pipeline", runID)
		runLog.Debug().
			Str("from", string(from)).
			Str("to", string(to)).
			Msg("State transition")
	}

	p, cleanup, err := createPipeline(ctx, cfg, observer, log)
	if err != nil {
		return err
	}
	defer cleanup()

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           server.New(p, cfg.HTTPRequestTimeout).Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().
			Str("addr", addr).
			Dur("request_timeout", cfg.HTTPRequestTimeout).
			Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("HTTP server stopped with error")
		return err
	}

	log.Info().Msg("HTTP server stopped")
	return nil
}
