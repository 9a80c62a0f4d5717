package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

const maxErrorMessageLength = 512

var (
	connectionStringPattern = regexp.MustCompile(`(?:mongodb(?:\+srv)?|mysql|postgres|postgresql|redis)://[^\s"']+`)
	credentialPattern       = regexp.MustCompile(`(?i)(password|secret|token|key|credential|auth)[:=]\s*["']?[^"'\s]+["']?`)
	mongoErrorPattern       = regexp.MustCompile(`\((?:ServerSelectionError|MongoError)[^\)]*\)`)
)

// ErrorResponse is the JSON body of an error reply
type ErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// sanitizeErrorMessage removes sensitive information from error messages before sending to clients
func sanitizeErrorMessage(message string) string {
	message = connectionStringPattern.ReplaceAllString(message, "[DATABASE_CONNECTION]")
	message = credentialPattern.ReplaceAllString(message, "$1=[REDACTED]")
	message = mongoErrorPattern.ReplaceAllString(message, "[DATABASE_ERROR]")

	if len(message) > maxErrorMessageLength {
		message = message[:maxErrorMessageLength-3] + "..."
	}
	return message
}

// logError logs the full error internally
func logError(logger *zap.SugaredLogger, statusCode int, message string, err error) {
	if logger == nil {
		return
	}
	if err != nil {
		logger.Errorw(message, "error", err.Error(), "status_code", statusCode)
	} else {
		logger.Errorw(message, "status_code", statusCode)
	}
}

// writeError writes a plain-text error response and logs it
func writeError(w http.ResponseWriter, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	logError(logger, statusCode, message, err)
	http.Error(w, sanitizeErrorMessage(message), statusCode)
}

// RespondJSON writes a JSON response with proper error handling
func RespondJSON(w http.ResponseWriter, data interface{}, statusCode int, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		// Response already started, can't send error to client
		logger.Errorw("Failed to encode JSON response",
			"error", err,
			"data_type", fmt.Sprintf("%T", data))
	}
}

// RespondError writes a sanitized JSON error body. Server errors are logged
// with the underlying cause; client errors are logged at debug level.
func RespondError(w http.ResponseWriter, r *http.Request, statusCode int, message string, err error, logger *zap.SugaredLogger) {
	logger = LogWithRequestID(r.Context(), logger)
	if statusCode >= http.StatusInternalServerError {
		logError(logger, statusCode, message, err)
	} else if logger != nil {
		logger.Debugw(message, "status_code", statusCode, "error", err)
	}

	requestID, _ := GetRequestID(r.Context())
	RespondJSON(w, ErrorResponse{
		Error:     sanitizeErrorMessage(message),
		RequestID: requestID,
	}, statusCode, logger)
}

// getRealIP extracts the real client IP from the request, considering proxy trust settings
func getRealIP(r *http.Request, trustProxy bool, trustedNetworks []string) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}
	if !trustProxy || !isTrustedProxy(directIP, trustedNetworks) {
		return directIP
	}

	// X-Forwarded-For can contain multiple IPs, the first one is the original client
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if ip != "" && net.ParseIP(ip) != nil {
			return ip
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" && net.ParseIP(xri) != nil {
		return xri
	}

	return directIP
}

// isTrustedProxy checks if an IP address is in the list of trusted proxy networks
func isTrustedProxy(ip string, trustedNetworks []string) bool {
	parsedIP := net.ParseIP(ip)
	if parsedIP == nil {
		return false
	}

	for _, network := range trustedNetworks {
		if strings.Contains(network, "/") {
			_, ipNet, err := net.ParseCIDR(network)
			if err == nil && ipNet.Contains(parsedIP) {
				return true
			}
		} else if network == ip {
			return true
		}
	}
	return false
}
