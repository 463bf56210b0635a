package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"

	"github.com/spherical-ai/kpi-engine/internal/engine"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the answering engine over HTTP",
	Long: `Serve exposes the engine as a small HTTP API:

  POST /v1/ask  {"question": "..."}  ->  {"answer": "..."}
  GET  /healthz

The corpus snapshot is loaded once at startup and shared read-only across
requests.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer string `json:"answer"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	eng, closer, err := buildEngine(ctx, cfg)
	if err != nil {
		return err
	}
	defer closer()

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      newRouter(eng),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case sig := <-stop:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, cfg.Server.GracefulShutdown)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func newRouter(eng *engine.Engine) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "kpi-engine"})
	})

	r.Post("/v1/ask", func(w http.ResponseWriter, r *http.Request) {
		var req askRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
			return
		}
		if strings.TrimSpace(req.Question) == "" {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "question is required"})
			return
		}

		start := time.Now()
		answer, err := eng.Answer(r.Context(), req.Question)
		if err != nil {
			// Model failures are the upstreams' fault, not the client's.
			writeJSON(w, http.StatusBadGateway, errorResponse{Error: "answering temporarily unavailable"})
			return
		}
		logger.Debug().Dur("latency", time.Since(start)).Msg("ask handled")
		writeJSON(w, http.StatusOK, askResponse{Answer: answer})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
