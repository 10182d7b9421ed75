package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind labels a request failure category for logs and metrics.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindConnection  ErrorKind = "connection"
	KindForbidden   ErrorKind = "forbidden"
	KindNotFound    ErrorKind = "not_found"
	KindRateLimited ErrorKind = "rate_limited"
	KindOther       ErrorKind = "other"
)

// RequestError wraps a request failure with its classified kind.
type RequestError struct {
	Kind ErrorKind
	Err  error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// classifyError maps a transport error and HTTP status to a RequestError.
// A nil error with status 0 means there is nothing to classify.
func classifyError(err error, statusCode int) *RequestError {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &RequestError{Kind: KindTimeout, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &RequestError{Kind: KindTimeout, Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return &RequestError{Kind: KindConnection, Err: err}
	}

	wrapped := err
	if wrapped == nil {
		wrapped = fmt.Errorf("http status %d", statusCode)
	}
	switch statusCode {
	case http.StatusForbidden:
		return &RequestError{Kind: KindForbidden, Err: wrapped}
	case http.StatusNotFound:
		return &RequestError{Kind: KindNotFound, Err: wrapped}
	case http.StatusTooManyRequests:
		return &RequestError{Kind: KindRateLimited, Err: wrapped}
	}

	return &RequestError{Kind: KindOther, Err: wrapped}
}

// errorTypeLabel returns the metrics label for an error.
func errorTypeLabel(err *RequestError) string {
	if err == nil {
		return "unknown"
	}
	return string(err.Kind)
}
