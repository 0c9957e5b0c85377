package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors surfaced by the caches.
var (
	// ErrUnavailable matches every *Error. It is recovered locally by cache
	// fallback and never reaches the caller on its own.
	ErrUnavailable = errors.New("upstream unavailable")

	// ErrTotalFailure is returned when a fetch failed and no cached data
	// exists to fall back on.
	ErrTotalFailure = errors.New("total failure: upstream failed and nothing is cached")

	// ErrInvalidRange is returned for malformed range requests before any
	// cache access happens.
	ErrInvalidRange = errors.New("invalid range")
)

// ErrorClass classifies upstream failures.
type ErrorClass string

const (
	// ClassClient represents 4xx responses.
	ClassClient ErrorClass = "client"

	// ClassServer represents 5xx responses.
	ClassServer ErrorClass = "server"

	// ClassRateLimit represents 429/520 responses and calls blocked by the
	// local error budget.
	ClassRateLimit ErrorClass = "rate_limit"

	// ClassNetwork represents transport errors.
	ClassNetwork ErrorClass = "network"

	// ClassTimeout represents a fetch that exceeded its deadline.
	ClassTimeout ErrorClass = "timeout"

	// ClassDecode represents a response body that could not be parsed.
	ClassDecode ErrorClass = "decode"

	// ClassInternal represents unclassified failures, including panics
	// inside a fetch function.
	ClassInternal ErrorClass = "internal"
)

// Retryable reports whether a failure of this class is worth another attempt.
// Client errors are not: repeating them only burns error budget.
func (c ErrorClass) Retryable() bool {
	switch c {
	case ClassServer, ClassRateLimit, ClassNetwork, ClassTimeout:
		return true
	default:
		return false
	}
}

// Error is an upstream failure with its classification.
type Error struct {
	Class      ErrorClass
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("upstream %s error", e.Class)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is makes every *Error match ErrUnavailable.
func (e *Error) Is(target error) bool {
	return target == ErrUnavailable
}

// Classify returns the class of err. *Error values keep their own class.
func Classify(err error) ErrorClass {
	var uerr *Error
	switch {
	case err == nil:
		return ""
	case errors.As(err, &uerr):
		return uerr.Class
	case errors.Is(err, context.DeadlineExceeded):
		return ClassTimeout
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		if nerr.Timeout() {
			return ClassTimeout
		}
		return ClassNetwork
	}
	return ClassInternal
}

// Wrap converts err into an *Error, leaving existing *Error values as is.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var uerr *Error
	if errors.As(err, &uerr) {
		return err
	}
	return &Error{Class: Classify(err), Err: err}
}
