// Package http exposes the ledger as a JSON API.
package http

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"saldo/internal/auth"
	"saldo/internal/cache"
	"saldo/internal/charts"
	"saldo/internal/ledger"
	"saldo/internal/metrics"
	"saldo/internal/service"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	ownerKey     contextKey = "owner"
)

type Server struct {
	http.Server
	ledger        *service.LedgerService
	authenticator *auth.Authenticator
	metrics       *metrics.Metrics
	charts        *charts.ChartGenerator
	rateLimiter   *rateLimiter

	// Derived projections are cheap but hit on every page load; cache
	// per owner and drop on any write.
	trendCache      *cache.LRU[[]ledger.MonthlyBalance]
	cumulativeCache *cache.LRU[[]ledger.BalancePoint]

	stopCacheCleanup chan struct{}
	shutdownOnce     sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server.
func NewServer(addr string, svc *service.LedgerService, authenticator *auth.Authenticator, m *metrics.Metrics) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		ledger:           svc,
		authenticator:    authenticator,
		metrics:          m,
		charts:           charts.NewChartGenerator(),
		rateLimiter:      newRateLimiter(),
		trendCache:       cache.NewLRU[[]ledger.MonthlyBalance](100, 5*time.Minute),
		cumulativeCache:  cache.NewLRU[[]ledger.BalancePoint](100, 5*time.Minute),
		stopCacheCleanup: make(chan struct{}),
	}

	go s.startCacheCleanup()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}

	mux.HandleFunc("POST /api/login", s.wrap("login", s.handleLogin))

	mux.HandleFunc("POST /api/transactions", s.authed("transactions", s.handleCreateTransaction))
	mux.HandleFunc("GET /api/transactions", s.authed("transactions", s.handleListTransactions))
	mux.HandleFunc("GET /api/transactions/{id}", s.authed("transaction", s.handleGetTransaction))
	mux.HandleFunc("PUT /api/transactions/{id}", s.authed("transaction", s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /api/transactions/{id}", s.authed("transaction", s.handleDeleteTransaction))

	mux.HandleFunc("GET /api/months", s.authed("months", s.handleTrend))
	mux.HandleFunc("GET /api/months/{month}", s.authed("month", s.handleMonth))
	mux.HandleFunc("PUT /api/months/{month}/opening", s.authed("opening", s.handleSetOverride))
	mux.HandleFunc("DELETE /api/months/{month}/opening", s.authed("opening", s.handleClearOverride))

	mux.HandleFunc("GET /api/settings/initial-balance", s.authed("initial_balance", s.handleGetInitialBalance))
	mux.HandleFunc("PUT /api/settings/initial-balance", s.authed("initial_balance", s.handleSetInitialBalance))

	mux.HandleFunc("GET /api/cumulative", s.authed("cumulative", s.handleCumulative))
	mux.HandleFunc("GET /api/charts/cumulative.png", s.authed("chart", s.handleCumulativeChart))
	mux.HandleFunc("GET /api/export.csv", s.authed("export", s.handleExportCSV))

	return s
}

func (s *Server) startCacheCleanup() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			trendCleaned := s.trendCache.CleanExpired()
			cumulativeCleaned := s.cumulativeCache.CleanExpired()
			if trendCleaned > 0 || cumulativeCleaned > 0 {
				slog.Debug("Cache cleanup completed",
					"trend_entries_removed", trendCleaned,
					"cumulative_entries_removed", cumulativeCleaned)
			}
		case <-s.stopCacheCleanup:
			return
		}
	}
}

// invalidateCaches drops cached projections for an owner after a write.
func (s *Server) invalidateCaches(owner string) {
	s.trendCache.Delete(owner)
	s.cumulativeCache.Delete(owner)
}

// Shutdown stops the HTTP server and background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		close(s.stopCacheCleanup)
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// wrap adds security headers, rate limiting, request logging, and
// metrics around a handler.
func (s *Server) wrap(route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := r.Header.Get("X-Forwarded-For")
		if clientIP == "" {
			clientIP = r.Header.Get("X-Real-IP")
		}
		if clientIP == "" {
			clientIP = r.RemoteAddr
		}

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		if mutating(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.ObserveRequest(route, rw.statusCode, duration)
		}
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds())
	}
}

// authed wraps a handler with the standard middleware plus bearer-token
// authentication, placing the owner in the request context.
func (s *Server) authed(route string, next http.HandlerFunc) http.HandlerFunc {
	return s.wrap(route, func(w http.ResponseWriter, r *http.Request) {
		owner, err := s.ownerFromRequest(r)
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, err)
			return
		}
		ctx := context.WithValue(r.Context(), ownerKey, owner)
		next(w, r.WithContext(ctx))
	})
}

func (s *Server) ownerFromRequest(r *http.Request) (string, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", auth.ErrMissingToken
	}
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return "", auth.ErrInvalidToken
	}
	return s.authenticator.ValidateToken(token)
}

func ownerFrom(ctx context.Context) string {
	owner, _ := ctx.Value(ownerKey).(string)
	return owner
}

func mutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	// Ready when the store answers a cheap read.
	if _, err := s.ledger.InitialBalance(r.Context(), "readiness-probe"); err != nil {
		http.Error(w, "store unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ready"))
}
