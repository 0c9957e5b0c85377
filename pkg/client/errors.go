package client

import (
	"errors"
	"net/http"

	"github.com/Sternrassler/market-data-gateway/pkg/upstream"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")
)

// StatusRateLimited is the non-standard status some upstreams use when
// their error budget is exhausted.
const StatusRateLimited = 520

// classifyStatus maps an HTTP error status to an error class.
func classifyStatus(status int) upstream.ErrorClass {
	switch {
	case status == http.StatusTooManyRequests || status == StatusRateLimited:
		return upstream.ClassRateLimit
	case status >= 400 && status < 500:
		return upstream.ClassClient
	case status >= 500:
		return upstream.ClassServer
	default:
		return upstream.ClassDecode
	}
}
