package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"regexp"
	"strings"
	"syscall"
)

var uriCredentials = regexp.MustCompile(`^(mongodb(?:\+srv)?://)[^@/]*@`)

// RedactURI hides the user info of a MongoDB connection string
func RedactURI(uri string) string {
	return uriCredentials.ReplaceAllString(uri, "${1}***@")
}

// ClassifyConnectionError turns a MongoDB connection failure into a remediation hint
func ClassifyConnectionError(err error, uri string) string {
	if err == nil {
		return ""
	}
	if strings.TrimSpace(uri) == "" {
		return "MONGODB_URI is not set. Set it in the environment or .env file, e.g. MONGODB_URI=mongodb://localhost:27017/transactions"
	}

	addr := RedactURI(uri)
	errStr := err.Error()

	if containsIgnoreCase(errStr, "error parsing uri") || containsIgnoreCase(errStr, "scheme must be") {
		return fmt.Sprintf("MONGODB_URI %s is malformed. It must start with mongodb:// or mongodb+srv:// and name at least one host", addr)
	}

	if errors.Is(err, syscall.ECONNREFUSED) || containsIgnoreCase(errStr, "connection refused") ||
		containsIgnoreCase(errStr, "actively refused") {
		return fmt.Sprintf("Connection refused by MongoDB at %s. Check that mongod is running and listening on that port", addr)
	}

	if containsIgnoreCase(errStr, "no such host") || containsIgnoreCase(errStr, "lookup") {
		return fmt.Sprintf("Cannot resolve the hostname in %s. Verify the host name and DNS configuration", addr)
	}

	if containsIgnoreCase(errStr, "authentication") || containsIgnoreCase(errStr, "auth error") ||
		containsIgnoreCase(errStr, "unauthorized") {
		return fmt.Sprintf("Authentication failed for MongoDB at %s. Verify the credentials and authSource in MONGODB_URI", addr)
	}

	var netErr net.Error
	if (errors.As(err, &netErr) && netErr.Timeout()) || errors.Is(err, context.DeadlineExceeded) ||
		containsIgnoreCase(errStr, "server selection") {
		return fmt.Sprintf("Connection to MongoDB at %s timed out. Check that the server is reachable from this host", addr)
	}

	return fmt.Sprintf("Failed to connect to MongoDB at %s. Ensure the server is running and reachable", addr)
}

// containsIgnoreCase checks if a string contains a substring (case-insensitive)
func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
