package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const requestIDHeader = "X-Request-ID"

// requestIDMiddleware adds request ID tracking and timing to all requests.
//
// Behavior:
//   - If X-Request-ID header is present in request, use that value
//   - If not present, generate a new UUID v4
//   - Set X-Request-ID in response headers for client correlation
//   - Store request ID in context for downstream use
func (a *API) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		requestID := sanitizeRequestID(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set(requestIDHeader, requestID)

		ctx := WithRequestID(r.Context(), requestID)

		wrapped := &responseWriterWrapper{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next.ServeHTTP(wrapped, r.WithContext(ctx))

		duration := time.Since(start)
		a.logger.Debugw("request_completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.statusCode,
			"remote_addr", getRealIP(r, a.config.API.TrustProxy, a.config.API.TrustedProxyNetworks),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

// responseWriterWrapper wraps http.ResponseWriter to capture the status code.
type responseWriterWrapper struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader captures the status code before writing it.
func (w *responseWriterWrapper) WriteHeader(code int) {
	if !w.written {
		w.statusCode = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

// Write implements http.ResponseWriter.Write and ensures status code is captured.
func (w *responseWriterWrapper) Write(b []byte) (int, error) {
	if !w.written {
		w.statusCode = http.StatusOK
		w.written = true
	}
	return w.ResponseWriter.Write(b)
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (w *responseWriterWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// sanitizeRequestID cleans request ID to prevent log injection.
// Only allows alphanumeric characters, dashes, and underscores.
// Truncates to maximum 64 characters.
func sanitizeRequestID(id string) string {
	const maxLen = 64

	if id == "" {
		return ""
	}

	if len(id) > maxLen {
		id = id[:maxLen]
	}

	result := make([]byte, 0, len(id))
	for i := 0; i < len(id); i++ {
		c := id[i]
		if (c >= 'a' && c <= 'z') ||
			(c >= 'A' && c <= 'Z') ||
			(c >= '0' && c <= '9') ||
			c == '-' || c == '_' {
			result = append(result, c)
		}
	}

	return string(result)
}

// LogWithRequestID creates a logger with the request ID field pre-attached.
//
// Usage:
//
//	logger := LogWithRequestID(r.Context(), h.logger)
//	logger.Info("processing transaction")  // Will include request_id field
func LogWithRequestID(ctx context.Context, logger *zap.SugaredLogger) *zap.SugaredLogger {
	if logger == nil {
		return nil
	}
	requestID, ok := GetRequestID(ctx)
	if !ok || requestID == "" {
		requestID = "unknown"
	}
	return logger.With("request_id", requestID)
}
