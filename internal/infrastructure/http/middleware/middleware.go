// Package middleware provides HTTP middleware for the API server:
// request identity, structured request logging, panic recovery, rate
// limiting, and security headers.
package middleware

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/macrocart/v2/internal/infrastructure/config"
	apperrors "github.com/macrocart/v2/pkg/errors"
)

type contextKey string

// RequestIDKey is the context key under which the request ID travels
const RequestIDKey contextKey = "request_id"

// RequestIDHeader is the header checked for an inbound request ID
const RequestIDHeader = "X-Request-ID"

// Middleware bundles the HTTP middleware chain with its shared state
type Middleware struct {
	config *config.Config
	logger *zap.Logger

	skipLogPaths map[string]struct{}

	global *rate.Limiter
	mu     sync.Mutex
	perIP  map[string]*ipLimiter
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates the middleware set. Rate limiters are only allocated when
// rate limiting is enabled in the configuration.
func New(cfg *config.Config, logger *zap.Logger) *Middleware {
	m := &Middleware{
		config: cfg,
		logger: logger,
		skipLogPaths: map[string]struct{}{
			cfg.Monitoring.HealthCheckPath: {},
			cfg.Monitoring.ReadinessPath:   {},
			cfg.Monitoring.LivenessPath:    {},
			cfg.Monitoring.MetricsPath:     {},
		},
	}

	if cfg.RateLimit.Enable {
		m.global = rate.NewLimiter(rate.Limit(cfg.RateLimit.RequestsPerSec), cfg.RateLimit.Burst)
		m.perIP = make(map[string]*ipLimiter)
	}

	return m
}

// RequestID propagates the inbound X-Request-ID header or generates a
// fresh UUID, exposing it on the context and the response.
func (m *Middleware) RequestID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
			w.Header().Set(RequestIDHeader, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestID returns the request ID from the context, if any
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// Logger logs every completed request with a level picked from the
// response status. Health and metrics probes are skipped.
func (m *Middleware) Logger() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, skip := m.skipLogPaths[r.URL.Path]; skip {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			fields := []zap.Field{
				zap.Int("status", status),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("query", r.URL.RawQuery),
				zap.String("ip", clientIP(r)),
				zap.String("user_agent", r.UserAgent()),
				zap.Duration("latency", time.Since(start)),
				zap.Int("bytes", ww.BytesWritten()),
				zap.String("request_id", GetRequestID(r.Context())),
			}

			switch {
			case status >= http.StatusInternalServerError:
				m.logger.Error("Server error", fields...)
			case status >= http.StatusBadRequest:
				m.logger.Warn("Client error", fields...)
			case status >= http.StatusMultipleChoices:
				m.logger.Info("Redirection", fields...)
			default:
				m.logger.Info("Request completed", fields...)
			}
		})
	}
}

// Recovery converts panics into 500 responses and logs the stack trace
func (m *Middleware) Recovery() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					if rvr == http.ErrAbortHandler {
						panic(rvr)
					}

					requestID := GetRequestID(r.Context())
					m.logger.Error("Panic recovered",
						zap.Any("error", rvr),
						zap.String("path", r.URL.Path),
						zap.String("request_id", requestID),
						zap.String("stack", string(debug.Stack())),
					)

					appErr := apperrors.NewInternalError("Internal server error")
					writeError(w, appErr.StatusCode(), apperrors.ToErrorResponse(appErr, requestID))
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimit enforces a global request budget plus a per-client budget
// keyed by IP. Disabled limiters pass requests straight through.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !m.config.RateLimit.Enable {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !m.global.Allow() || !m.limiterFor(clientIP(r)).Allow() {
				requestID := GetRequestID(r.Context())
				m.logger.Warn("Rate limit exceeded",
					zap.String("ip", clientIP(r)),
					zap.String("path", r.URL.Path),
					zap.String("request_id", requestID),
				)

				w.Header().Set("Retry-After", "1")
				appErr := apperrors.NewRateLimitedError("api", 0)
				writeError(w, appErr.StatusCode(), apperrors.ToErrorResponse(appErr, requestID))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (m *Middleware) limiterFor(ip string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.perIP[ip]
	if !ok {
		entry = &ipLimiter{
			limiter: rate.NewLimiter(rate.Limit(m.config.RateLimit.PerIPPerSec), m.config.RateLimit.PerIPBurst),
		}
		m.perIP[ip] = entry
	}
	entry.lastSeen = time.Now()

	return entry.limiter
}

// StartCleanup evicts per-IP limiters not seen for three cleanup
// intervals. It returns immediately when rate limiting is disabled.
func (m *Middleware) StartCleanup(ctx context.Context) {
	if m.perIP == nil || m.config.RateLimit.CleanupInterval <= 0 {
		return
	}

	interval := m.config.RateLimit.CleanupInterval
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-3 * interval)
				m.mu.Lock()
				for ip, entry := range m.perIP {
					if entry.lastSeen.Before(cutoff) {
						delete(m.perIP, ip)
					}
				}
				m.mu.Unlock()
			}
		}
	}()
}

// LimiterCount reports how many per-IP limiters are currently tracked
func (m *Middleware) LimiterCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.perIP)
}

// Security sets defensive response headers on every request
func (m *Middleware) Security() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP extracts the client address. The RealIP middleware runs first
// in the chain, so RemoteAddr already reflects forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeError(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
