// Package http serves the bot's operational endpoints: keep-alive
// probes, Prometheus metrics, and the CSV day export.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spendbot/internal/backend"
	"spendbot/internal/core"
	"spendbot/internal/export"
)

// Server wraps http.Server with the spend store the export handler reads.
type Server struct {
	http.Server

	store backend.Store
	loc   *time.Location

	shutdownOnce sync.Once
}

// NewServer configures routes, returning a ready-to-run http.Server.
func NewServer(addr string, store backend.Store, loc *time.Location) *Server {
	if loc == nil {
		loc = time.UTC
	}
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		store: store,
		loc:   loc,
	}

	mux.HandleFunc("/", withRequestLog(handleRoot))
	mux.HandleFunc("/health", withRequestLog(handleHealth))
	mux.HandleFunc("/export", withRequestLog(s.handleExport))
	// Scraped continuously, not worth a log line per scrape.
	mux.Handle("/metrics", promhttp.Handler())

	return s
}

// Shutdown gracefully shuts down the server. Safe to call more than
// once; only the first call reaches the embedded server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

type ctxKey string

const requestIDKey ctxKey = "request_id"

// withRequestLog adds request logging with a per-request ID.
func withRequestLog(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP(r))

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// clientIP prefers proxy headers over the raw remote address.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

// responseWriter captures the status code for the completion log line.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(b)
}

// handleRoot answers uptime pings. The "/" pattern matches every
// unregistered path, so unknown paths 404 here instead of echoing OK.
func handleRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("healthy"))
}

// handleExport streams one day's records as CSV. The day parameter
// defaults to today in the bot's timezone.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	day := core.NewDay(time.Now(), s.loc)
	if q := r.URL.Query().Get("day"); q != "" {
		parsed, err := core.ParseDay(q)
		if err != nil {
			http.Error(w, "invalid day: want YYYY-MM-DD", http.StatusBadRequest)
			return
		}
		day = parsed
	}

	records, err := s.store.RecordsForDay(r.Context(), day)
	if err != nil {
		slog.ErrorContext(r.Context(), "Export query failed", "day", day, "error", err)
		http.Error(w, "export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=spends-%s.csv", day))
	if err := export.Write(w, records); err != nil {
		slog.ErrorContext(r.Context(), "Export write failed", "day", day, "error", err)
	}
}
