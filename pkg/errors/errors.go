package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorType represents the class of a failed remote call
type ErrorType string

const (
	ErrorTypeNetwork     ErrorType = "network"
	ErrorTypeTimeout     ErrorType = "timeout"
	ErrorTypeProxy       ErrorType = "proxy"
	ErrorTypeRateLimit   ErrorType = "rate_limit"
	ErrorTypeChallenge   ErrorType = "challenge"
	ErrorTypeAuth        ErrorType = "auth"
	ErrorTypeParsing     ErrorType = "parsing"
	ErrorTypeNotFound    ErrorType = "not_found"
	ErrorTypeServerError ErrorType = "server_error"
	ErrorTypeUnknown     ErrorType = "unknown"
)

// Sentinel errors shared by the pools, the fetch engine and the harvester.
var (
	ErrAllProxiesExhausted = errors.New("all proxies exhausted")
	ErrAccountBlocked      = errors.New("account blocked")
	ErrProxyBreak          = errors.New("proxy break")
	ErrTimeout             = errors.New("timed out waiting for a healthy account")
	ErrSignIn              = errors.New("sign in failed")
	ErrUnexpectedMediaType = errors.New("unexpected media type")
	ErrRateLimited         = errors.New("rate limited after cooldown")
	ErrNoWorkingAccounts   = errors.New("no working accounts")
	ErrSessionExpired      = errors.New("session expired")
)

// Error represents a classified remote API error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ProxyBreakError is returned when a proxy failed mid-collection. The caller
// is expected to retry with a different proxy.
type ProxyBreakError struct {
	Proxy string
	Err   error
}

func (e *ProxyBreakError) Error() string {
	return fmt.Sprintf("proxy %s broke: %v", e.Proxy, e.Err)
}

func (e *ProxyBreakError) Unwrap() []error {
	return []error{ErrProxyBreak, e.Err}
}

// AccountBlockedError carries the login of an account the platform challenged.
type AccountBlockedError struct {
	Login  string
	Reason string
}

func (e *AccountBlockedError) Error() string {
	return fmt.Sprintf("account %s blocked: %s", e.Login, e.Reason)
}

func (e *AccountBlockedError) Unwrap() error {
	return ErrAccountBlocked
}

// SignInError keeps the raw login response for diagnostics.
type SignInError struct {
	Message    string
	StatusCode int
	Body       string
}

func (e *SignInError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("sign in: %s", e.Message)
	}
	return fmt.Sprintf("sign in: %s (status %d, body %s)", e.Message, e.StatusCode, preview(e.Body, 200))
}

func (e *SignInError) Unwrap() error {
	return ErrSignIn
}

// NewNetworkError wraps a transport failure, separating timeouts and proxy
// dial failures from generic network errors.
func NewNetworkError(err error) *Error {
	t := ErrorTypeNetwork
	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		t = ErrorTypeTimeout
	case errors.Is(err, context.DeadlineExceeded):
		t = ErrorTypeTimeout
	case strings.Contains(strings.ToLower(err.Error()), "proxy"):
		t = ErrorTypeProxy
	}
	return &Error{Type: t, Message: err.Error(), Err: err}
}

// IsTransport reports whether err is a proxy, connection or timeout failure
// that should count against the proxy in use.
func IsTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		switch apiErr.Type {
		case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeProxy:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// IsBlockSignal reports whether err means the platform challenged the account.
func IsBlockSignal(err error) bool {
	if errors.Is(err, ErrAccountBlocked) {
		return true
	}
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Type == ErrorTypeChallenge
}

// ClassifyResponse maps a non-2xx response into an Error. A 400 status or a
// challenge marker anywhere in the body is a block signal.
func ClassifyResponse(statusCode int, body []byte) *Error {
	if statusCode == http.StatusBadRequest || strings.Contains(string(body), "challenge_required") {
		return &Error{Type: ErrorTypeChallenge, Message: "challenge required", Code: statusCode}
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return &Error{Type: ErrorTypeAuth, Message: "authentication required", Code: statusCode}
	case statusCode == http.StatusNotFound:
		return &Error{Type: ErrorTypeNotFound, Message: "resource not found", Code: statusCode}
	case statusCode == http.StatusTooManyRequests:
		return &Error{Type: ErrorTypeRateLimit, Message: "rate limit exceeded", Code: statusCode}
	case statusCode >= 500:
		return &Error{Type: ErrorTypeServerError, Message: "server error", Code: statusCode}
	default:
		return &Error{Type: ErrorTypeUnknown, Message: fmt.Sprintf("unexpected status code: %d", statusCode), Code: statusCode}
	}
}

// IsRetryable checks if an error type should be retried with a fresh proxy
func IsRetryable(errorType ErrorType) bool {
	switch errorType {
	case ErrorTypeNetwork, ErrorTypeTimeout, ErrorTypeProxy, ErrorTypeServerError:
		return true
	default:
		return false
	}
}

func preview(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
