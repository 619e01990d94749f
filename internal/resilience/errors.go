// Package resilience classifies provider call failures. A failed call is
// never retried at the transport level; classification feeds the error
// category recorded on degraded results so reports can separate rate
// limiting from genuine provider faults.
package resilience

import (
	"context"
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// Error categories recorded on degraded results.
const (
	CategoryTimeout   = "timeout"
	CategoryRateLimit = "rate_limit"
	CategoryTransient = "transient"
	CategoryCancelled = "cancelled"
	CategoryProvider  = "provider"
)

var statusPattern = regexp.MustCompile(`status (\d{3})`)

// Categorize buckets a provider call error. Returns "" for nil.
func Categorize(err error) string {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CategoryCancelled
	}
	if status, ok := statusFromError(err); ok {
		switch {
		case status == 429:
			return CategoryRateLimit
		case IsTransientHTTPStatus(status):
			return CategoryTransient
		default:
			return CategoryProvider
		}
	}
	if IsTransient(err) {
		return CategoryTransient
	}
	return CategoryProvider
}

// statusFromError recovers the HTTP status from a client error message of
// the form "pkg: unexpected status NNN: body".
func statusFromError(err error) (int, bool) {
	m := statusPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return 0, false
	}
	status, convErr := strconv.Atoi(m[1])
	if convErr != nil {
		return 0, false
	}
	return status, true
}

// IsTransient reports whether the error looks like a passing network or
// server fault rather than a deterministic failure.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus reports whether the status code indicates a
// passing server-side issue.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}
