package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"embymerge/internal/config"
	"embymerge/internal/logging"
	"embymerge/internal/merge"
	"embymerge/internal/services"
)

// maxBodyBytes bounds webhook bodies; Emby payloads are a few KiB.
const maxBodyBytes = 1 << 20

// Pipeline runs the webhook merge pipeline.
type Pipeline interface {
	HandleWebhook(ctx context.Context, payload merge.WebhookPayload) merge.Outcome
}

// ScanFunc starts a library scan on behalf of an API caller.
type ScanFunc func(ctx context.Context, opts merge.ScanOptions) (merge.ScanReport, error)

// Server is the HTTP listener for webhooks and operational endpoints.
type Server struct {
	bind        string
	webhookPath string
	pipeline    Pipeline
	scan        ScanFunc
	metrics     http.Handler
	logger      *slog.Logger

	router chi.Router

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// Option customizes a Server.
type Option func(*Server)

// WithMetricsHandler serves h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithScan provides the scan behind POST /api/scan, served when
// server.scan_api is enabled.
func WithScan(fn ScanFunc) Option {
	return func(s *Server) { s.scan = fn }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logging.NewComponentLogger(logger, "webhook") }
}

// New builds the server and its routes. Nothing listens until Start.
func New(cfg *config.Config, pipeline Pipeline, opts ...Option) *Server {
	s := &Server{
		bind:        cfg.Server.Bind,
		webhookPath: cfg.Server.WebhookPath,
		pipeline:    pipeline,
		logger:      logging.NewComponentLogger(nil, "webhook"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !cfg.Server.Metrics {
		s.metrics = nil
	}
	if !cfg.Server.ScanAPI {
		s.scan = nil
	}

	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(accessLog(s.logger))
	r.Use(middleware.Recoverer)

	r.Post(s.webhookPath, s.handleWebhook)
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	if s.scan != nil {
		r.Post("/api/scan", s.handleScan)
	}
	s.router = r
	return s
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the bound listener address once started.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Start binds the listener and serves in the background until ctx is done or
// Stop is called.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("webhook listen: %w", err)
	}
	server := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	s.mu.Lock()
	s.listener = listener
	s.server = server
	s.mu.Unlock()

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "webhook server error", "server_failed", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdown(server)
	}()

	s.logger.Info("webhook server listening",
		logging.String("address", listener.Addr().String()),
		logging.String("webhook_path", s.webhookPath),
	)
	return nil
}

// Stop shuts the server down, waiting briefly for in-flight requests.
func (s *Server) Stop() {
	s.mu.Lock()
	server := s.server
	s.mu.Unlock()
	if server != nil {
		shutdown(server)
	}
}

func shutdown(server *http.Server) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(shutdownCtx)
}

func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	logger := logging.WithContext(r.Context(), s.logger)

	raw, err := readPayload(r)
	if err == nil {
		var payload merge.WebhookPayload
		if payload, err = merge.ParsePayload(raw); err == nil {
			outcome := s.pipeline.HandleWebhook(r.Context(), payload)
			writeText(w, http.StatusOK, outcome.Message())
			return
		}
	}

	logging.WarnWithContext(logger, "webhook payload rejected", "payload_rejected",
		logging.Error(err),
		logging.String(logging.FieldImpact, "no merge attempted"),
		logging.String(logging.FieldErrorHint, "check the Emby webhook sends JSON with an Item object"),
	)
	writeText(w, services.HTTPStatus(err), err.Error())
}

// readPayload returns the form field "data" when the body is a form, and the
// raw body otherwise.
func readPayload(r *http.Request) ([]byte, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(maxBodyBytes); err != nil {
			return nil, services.Wrap(services.ErrMalformedPayload, merge.PipelineWebhook, "read form", "", err)
		}
		return []byte(r.FormValue("data")), nil
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, services.Wrap(services.ErrMalformedPayload, merge.PipelineWebhook, "read form", "", err)
		}
		return []byte(r.PostFormValue("data")), nil
	default:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, services.Wrap(services.ErrMalformedPayload, merge.PipelineWebhook, "read body", "", err)
		}
		return body, nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleScan(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	report, err := s.scan(r.Context(), merge.ScanOptions{DryRun: dryRun})
	if err != nil {
		s.writeJSON(w, services.HTTPStatus(err), map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, NewScanResponse(report))
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}
