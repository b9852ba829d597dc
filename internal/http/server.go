// Package http exposes the cash-flow services as a JSON API.
package http

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"cashflow/internal/log"
	"cashflow/internal/middleware/ratelimit"
	"cashflow/internal/middleware/security"
	"cashflow/internal/services"
)

const requestIDHeader = "X-Request-ID"

// Options tune the server. Zero values pick defaults.
type Options struct {
	ImportMaxBytes      int64
	ImportRatePerMinute int
	// Ready reports whether dependencies are usable; nil means always ready.
	Ready func(ctx context.Context) error
}

// Server is an http.Server with the API routes mounted.
type Server struct {
	http.Server

	ledger    *services.LedgerService
	imports   *services.ImportService
	dashboard *services.DashboardService

	limiter     *ratelimit.Limiter
	ips         *security.IPResolver
	importLimit int64
	ready       func(ctx context.Context) error
	logger      *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, ls *services.LedgerService, is *services.ImportService, ds *services.DashboardService, opts Options) *Server {
	if opts.ImportMaxBytes <= 0 {
		opts.ImportMaxBytes = 10 << 20
	}
	s := &Server{
		ledger:      ls,
		imports:     is,
		dashboard:   ds,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.ImportRatePerMinute}),
		ips:         security.NewIPResolver(),
		importLimit: opts.ImportMaxBytes,
		ready:       opts.Ready,
		logger:      log.Component(log.ComponentHTTP),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/metrics", s.handleMetrics)
	mux.HandleFunc("GET /api/aggregate/months", s.handleMonths)
	mux.HandleFunc("GET /api/aggregate/categories", s.handleCategoryAggregate)
	mux.HandleFunc("POST /api/simulate", s.handleSimulate)

	mux.HandleFunc("GET /api/transactions", s.handleListTransactions)
	mux.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	mux.HandleFunc("PUT /api/transactions/{id}", s.handleUpdateTransaction)
	mux.HandleFunc("DELETE /api/transactions/{id}", s.handleDeleteTransaction)

	mux.HandleFunc("GET /api/categories", s.handleListCategories)
	mux.HandleFunc("POST /api/categories", s.handleCreateCategory)
	mux.HandleFunc("PUT /api/categories/{id}", s.handleUpdateCategory)
	mux.HandleFunc("DELETE /api/categories/{id}", s.handleDeleteCategory)

	limited := s.limiter.Middleware(s.ips.ClientIP, s.onRateLimit)
	mux.Handle("POST /api/import/preview", limited(http.HandlerFunc(s.handleImportPreview)))
	mux.Handle("POST /api/import/commit", limited(http.HandlerFunc(s.handleImportCommit)))

	var handler http.Handler = mux
	handler = log.Middleware(s.logger, requestIDOf, s.ips.ClientIP)(handler)
	handler = withRequestID(handler)
	handler = security.Headers(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Shutdown stops the rate limiter and gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.ips.ClientIP(r),
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// withRequestID keeps a caller supplied request id or assigns a new one, and
// echoes it on the response.
func withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := sanitizeInput(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 64 {
			id = uuid.NewString()
		}
		r.Header.Set(requestIDHeader, id)
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func requestIDOf(r *http.Request) string {
	return r.Header.Get(requestIDHeader)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			log.FromContext(ctx).WarnContext(ctx, "Readiness check failed", log.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "not ready").Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}

// fail writes the mapped error response. Server errors are logged with the
// request logger; client errors are left to the access log.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldOperation, op,
			log.FieldError, err)
	}
	resp.Write(w)
}

// badRequest answers malformed input that never reached a service.
func badRequest(w http.ResponseWriter, err error) {
	msg := "bad request"
	switch {
	case errors.Is(err, errTooLarge):
		ErrorResponse(http.StatusRequestEntityTooLarge, "request body too large").Write(w)
		return
	case errors.Is(err, errEmptyBody):
		msg = "empty request body"
	case errors.Is(err, errBadQuery):
		msg = "invalid query"
	}
	NewJSONResponse().Status(http.StatusBadRequest).Body(ErrorBody{Error: msg, Details: err.Error()}).Write(w)
}
