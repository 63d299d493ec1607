// Package http exposes the tracker's JSON API.
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

	"sahod/internal/auth"
	"sahod/internal/services"
)

type Server struct {
	http.Server

	tokens       *auth.TokenManager
	authSvc      *services.AuthService
	accounts     *services.AccountService
	transactions *services.TransactionService
	expenses     *services.ExpenseService
	cycles       *services.SalaryCycleService
	dashboard    *services.DashboardService

	rateLimiter  *rateLimiter
	shutdownOnce sync.Once
}

// Simple in-memory rate limiter, applied to credential endpoints.
type rateLimiter struct {
	mu           sync.Mutex
	clients      map[string]*clientInfo
	stopCleanup  chan struct{}
	shutdownOnce sync.Once
}

type clientInfo struct {
	lastRequest time.Time
	requests    int
}

func newRateLimiter() *rateLimiter {
	rl := &rateLimiter{
		clients:     make(map[string]*clientInfo),
		stopCleanup: make(chan struct{}),
	}
	go rl.startCleanup()
	return rl
}

func (rl *rateLimiter) startCleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanupStaleEntries()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *rateLimiter) cleanupStaleEntries() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := time.Now().Add(-10 * time.Minute)
	for ip, client := range rl.clients {
		if client.lastRequest.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

func (rl *rateLimiter) stop() {
	rl.shutdownOnce.Do(func() {
		close(rl.stopCleanup)
	})
}

// allow permits up to 30 requests per client per minute.
func (rl *rateLimiter) allow(clientIP string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	client, exists := rl.clients[clientIP]
	if !exists {
		rl.clients[clientIP] = &clientInfo{lastRequest: now, requests: 1}
		return true
	}

	if now.Sub(client.lastRequest) > time.Minute {
		client.requests = 1
		client.lastRequest = now
		return true
	}

	client.requests++
	client.lastRequest = now
	return client.requests <= 30
}

// Deps bundles everything the server needs.
type Deps struct {
	Tokens       *auth.TokenManager
	Auth         *services.AuthService
	Accounts     *services.AccountService
	Transactions *services.TransactionService
	Expenses     *services.ExpenseService
	Cycles       *services.SalaryCycleService
	Dashboard    *services.DashboardService
}

// NewServer configures routes and returns a ready-to-run server.
func NewServer(addr string, deps Deps) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		tokens:       deps.Tokens,
		authSvc:      deps.Auth,
		accounts:     deps.Accounts,
		transactions: deps.Transactions,
		expenses:     deps.Expenses,
		cycles:       deps.Cycles,
		dashboard:    deps.Dashboard,
		rateLimiter:  newRateLimiter(),
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("POST /api/auth/register", s.wrap(s.withRateLimit(s.handleRegister)))
	mux.HandleFunc("POST /api/auth/login", s.wrap(s.withRateLimit(s.handleLogin)))
	mux.HandleFunc("POST /api/auth/refresh", s.wrap(s.withRateLimit(s.handleRefresh)))
	mux.HandleFunc("POST /api/auth/logout", s.wrap(s.requireAuth(s.handleLogout)))

	mux.HandleFunc("POST /api/accounts", s.wrap(s.requireAuth(s.handleCreateAccount)))
	mux.HandleFunc("GET /api/accounts", s.wrap(s.requireAuth(s.handleListAccounts)))
	mux.HandleFunc("GET /api/accounts/{id}", s.wrap(s.requireAuth(s.handleGetAccount)))
	mux.HandleFunc("PUT /api/accounts/{id}", s.wrap(s.requireAuth(s.handleUpdateAccount)))
	mux.HandleFunc("DELETE /api/accounts/{id}", s.wrap(s.requireAuth(s.handleDeleteAccount)))
	mux.HandleFunc("GET /api/accounts/{id}/transactions", s.wrap(s.requireAuth(s.handleListAccountTransactions)))

	mux.HandleFunc("POST /api/transactions", s.wrap(s.requireAuth(s.handleRecordTransaction)))
	mux.HandleFunc("GET /api/transactions", s.wrap(s.requireAuth(s.handleListTransactions)))

	mux.HandleFunc("POST /api/expenses", s.wrap(s.requireAuth(s.handleCreateExpense)))
	mux.HandleFunc("GET /api/expenses", s.wrap(s.requireAuth(s.handleListExpenses)))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.wrap(s.requireAuth(s.handleDeleteExpense)))

	mux.HandleFunc("POST /api/salary-cycles", s.wrap(s.requireAuth(s.handleCreateCycle)))
	mux.HandleFunc("GET /api/salary-cycles", s.wrap(s.requireAuth(s.handleListCycles)))
	mux.HandleFunc("POST /api/salary-cycles/{id}/execute", s.wrap(s.requireAuth(s.handleExecuteCycle)))
	mux.HandleFunc("GET /api/salary-cycles/next-pay-date", s.wrap(s.requireAuth(s.handleNextPayDate)))

	mux.HandleFunc("GET /api/dashboard", s.wrap(s.requireAuth(s.handleDashboard)))

	return s
}

// Shutdown stops the rate limiter cleanup and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// wrap adds the request ID, security headers and request logging.
func (s *Server) wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		r = r.WithContext(ctx)

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP(r))
	}
}

func (s *Server) withRateLimit(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !s.rateLimiter.allow(ip) {
			slog.WarnContext(r.Context(), "Rate limit exceeded", "client_ip", ip, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, r, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}

// requireAuth verifies the Bearer access token and stashes the user ID in the
// request context.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.tokens.VerifyAccessToken(bearerToken(r))
		if err != nil {
			writeError(w, r, http.StatusUnauthorized, "invalid or missing access token")
			return
		}
		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		next(w, r.WithContext(ctx))
	}
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}

func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
