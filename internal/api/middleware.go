package api

import (
	"bufio"
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"github.com/gosiva/archive-ui/internal/config"
	"github.com/gosiva/archive-ui/internal/storage"
)

type contextKey string

const (
	userContextKey      contextKey = "user"
	requestIDContextKey contextKey = "request_id"
)

const (
	// RequestIDHeader carries the request ID in both directions.
	RequestIDHeader = "X-Request-ID"
	// TOTPHeader carries the admin one-time code.
	TOTPHeader = "X-TOTP-Code"
)

// Middleware holds middleware dependencies
type Middleware struct {
	db    *storage.DB
	admin config.AdminConfig
	log   *zap.Logger
}

// NewMiddleware creates a new middleware instance. db may be nil, which
// disables admin routes.
func NewMiddleware(db *storage.DB, admin config.AdminConfig, log *zap.Logger) *Middleware {
	if log == nil {
		log = zap.NewNop()
	}
	return &Middleware{
		db:    db,
		admin: admin,
		log:   log.Named("http"),
	}
}

// RequestID reuses the caller's X-Request-ID or assigns a new one
func (m *Middleware) RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.New().String()
		}
		w.Header().Set(RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), requestIDContextKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logging middleware logs all requests
func (m *Middleware) Logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		// Wrap response writer to capture status
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		m.log.Info("Request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", wrapped.statusCode),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", GetRequestID(r)))
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush implements http.Flusher if the underlying ResponseWriter supports it
func (rw *responseWriter) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker if the underlying ResponseWriter supports it
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := rw.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, http.ErrNotSupported
}

// ReadFrom implements io.ReaderFrom if the underlying ResponseWriter supports it.
// Artifact downloads go through http.ServeContent, which uses it.
func (rw *responseWriter) ReadFrom(src io.Reader) (n int64, err error) {
	if readerFrom, ok := rw.ResponseWriter.(io.ReaderFrom); ok {
		return readerFrom.ReadFrom(src)
	}
	return io.Copy(rw.ResponseWriter, src)
}

// SecurityHeaders sets the standard hardening headers
func (m *Middleware) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "SAMEORIGIN")
		w.Header().Set("Referrer-Policy", "same-origin")
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin checks HTTP basic credentials against the users table and,
// when the account has a TOTP secret, the code in X-TOTP-Code.
func (m *Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.db == nil || !m.admin.Enabled() {
			JSONError(w, r, http.StatusForbidden, codeForbidden, "Admin access is not configured")
			return
		}

		username, password, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="archive-ui admin"`)
			JSONError(w, r, http.StatusUnauthorized, codeAuth, "Authentication required")
			return
		}

		ip := getClientIP(r)
		locked, err := m.db.IsLoginLocked(ip, username)
		if err != nil {
			m.log.Error("Failed to check login lockout", zap.Error(err))
			JSONError(w, r, http.StatusInternalServerError, codeInternal, "Authentication failed")
			return
		}
		if locked {
			m.log.Warn("Admin login locked", zap.String("user", username), zap.String("ip", ip))
			JSONError(w, r, http.StatusTooManyRequests, codeLocked, "Too many failed attempts. Try again later")
			return
		}

		user, err := m.db.VerifyPassword(username, password)
		if err != nil {
			m.log.Error("Failed to verify password", zap.Error(err))
			JSONError(w, r, http.StatusInternalServerError, codeInternal, "Authentication failed")
			return
		}
		if user == nil || (user.TOTPSecret != "" && !totp.Validate(r.Header.Get(TOTPHeader), user.TOTPSecret)) {
			if err := m.db.RegisterFailedLogin(ip, username); err != nil {
				m.log.Error("Failed to register failed login", zap.Error(err))
			}
			m.log.Warn("Admin authentication failed", zap.String("user", username), zap.String("ip", ip))
			w.Header().Set("WWW-Authenticate", `Basic realm="archive-ui admin"`)
			JSONError(w, r, http.StatusUnauthorized, codeAuth, "Invalid credentials")
			return
		}

		if err := m.db.ResetFailedLogin(ip, username); err != nil {
			m.log.Error("Failed to reset failed logins", zap.Error(err))
		}

		ctx := context.WithValue(r.Context(), userContextKey, user.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUsername retrieves the username from request context
func GetUsername(r *http.Request) string {
	if username, ok := r.Context().Value(userContextKey).(string); ok {
		return username
	}
	return ""
}

// GetRequestID retrieves the request ID from request context
func GetRequestID(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDContextKey).(string); ok {
		return id
	}
	return ""
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		return strings.TrimSpace(strings.Split(xff, ",")[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
