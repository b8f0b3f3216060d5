// Package gateway exposes the rewriter and signed-link downloads over HTTP.
package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/praetorian-inc/securelink/pkg/publisher"
	"github.com/praetorian-inc/securelink/pkg/rewriter"
	"github.com/praetorian-inc/securelink/pkg/types"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
	// UserHeader names the user links are bound to on POST /rewrite.
	UserHeader = "X-Securelink-User"

	DefaultMaxBodyBytes = 10 << 20
	shutdownTimeout     = 5 * time.Second
)

// Rewriter is the document rewriter behind POST /rewrite.
type Rewriter interface {
	Rewrite(ctx context.Context, html string) (*rewriter.Result, error)
}

// Server is the HTTP gateway.
type Server struct {
	rw          Rewriter
	signer      *publisher.Signer
	logger      zerolog.Logger
	metrics     *Metrics
	maxBody     int64
	readTimeout time.Duration
	handler     http.Handler
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMaxBodyBytes limits POST /rewrite bodies.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithReadTimeout sets the http.Server read timeout used by ListenAndServe.
func WithReadTimeout(d time.Duration) Option {
	return func(s *Server) { s.readTimeout = d }
}

// WithMetrics replaces the server's metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a gateway. signer may be nil, in which case no download
// route is registered.
func New(rw Rewriter, signer *publisher.Signer, opts ...Option) *Server {
	s := &Server{
		rw:      rw,
		signer:  signer,
		logger:  zerolog.Nop(),
		maxBody: DefaultMaxBodyBytes,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	s.logger = s.logger.With().Str("component", "gateway").Logger()

	mux := http.NewServeMux()
	mux.HandleFunc("POST /rewrite", s.handleRewrite)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.Handler())
	if signer != nil {
		mux.HandleFunc("GET "+signer.Prefix()+"/", s.handleDownload)
	}
	s.handler = s.withRequestID(mux)
	return s
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Metrics returns the server's counters.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.handler,
		ReadTimeout: s.readTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	}
}

func (s *Server) handleRewrite(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.maxBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "too_large", err.Error())
			return
		}
		writeJSONError(w, http.StatusBadRequest, "read_error", err.Error())
		return
	}

	ctx := r.Context()
	if source := r.URL.Query().Get("source"); source != "" {
		ctx = publisher.ContextWithSource(ctx, source)
	}
	if user := r.Header.Get(UserHeader); user != "" {
		ctx = publisher.ContextWithUser(ctx, user)
	}

	result, err := s.rw.Rewrite(ctx, string(body))
	if err != nil {
		s.metrics.failures.Inc()
		var pubErr *types.PublisherError
		if errors.As(err, &pubErr) {
			logger.Warn().Err(err).Str("path", pubErr.Path).Msg("rewrite failed")
			writeJSONError(w, http.StatusUnprocessableEntity, "publish_failed", err.Error())
			return
		}
		logger.Error().Err(err).Msg("rewrite failed")
		writeJSONError(w, http.StatusInternalServerError, "rewrite_failed", err.Error())
		return
	}

	s.metrics.rewrites.Inc()
	s.metrics.published.Add(float64(result.Published))

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	h.Set("X-Securelink-Tags", strconv.Itoa(result.Tags))
	h.Set("X-Securelink-Published", strconv.Itoa(result.Published))
	if result.Skipped > 0 {
		h.Set("X-Securelink-Skipped", strconv.Itoa(result.Skipped))
	}
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, result.HTML)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	logger := requestLogger(r.Context(), s.logger)

	link, err := s.signer.Verify(r.URL.RequestURI())
	if err != nil {
		s.downloadError(w, logger, err)
		return
	}

	full, err := s.signer.Resolve(link.Path)
	if err != nil {
		s.downloadError(w, logger, err)
		return
	}

	f, err := os.Open(full)
	if err != nil {
		s.downloadError(w, logger, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.downloadError(w, logger, err)
		return
	}

	s.metrics.downloads.WithLabelValues("ok").Inc()
	logger.Debug().Str("path", link.Path).Str("user", link.User).Msg("serving download")

	w.Header().Set("Cache-Control", "private, no-store")
	http.ServeContent(w, r, filepath.Base(full), info.ModTime(), f)
}

func (s *Server) downloadError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	code, status := downloadStatus(err)
	s.metrics.downloads.WithLabelValues(status).Inc()
	if code == http.StatusInternalServerError {
		logger.Error().Err(err).Msg("download failed")
	} else {
		logger.Debug().Err(err).Str("status", status).Msg("download refused")
	}
	http.Error(w, http.StatusText(code), code)
}

func downloadStatus(err error) (int, string) {
	switch {
	case errors.Is(err, publisher.ErrBadSignature):
		return http.StatusForbidden, "bad_signature"
	case errors.Is(err, publisher.ErrAccessDenied):
		return http.StatusForbidden, "denied"
	case errors.Is(err, publisher.ErrExpired):
		return http.StatusGone, "expired"
	case errors.Is(err, publisher.ErrNotFound), errors.Is(err, os.ErrNotExist):
		return http.StatusNotFound, "not_found"
	default:
		return http.StatusInternalServerError, "error"
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ErrorResponse is the JSON body of every gateway error except downloads.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, code int, errCode, message string) {
	writeJSON(w, code, ErrorResponse{Error: errCode, Message: message})
}
