package logger

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// LogHTTPRequest logs a completed remote call at a level matching its status
func LogHTTPRequest(l Logger, method, url string, statusCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": statusCode,
		"duration":    duration,
	}

	switch {
	case statusCode >= 500:
		l.ErrorWithFields("HTTP request server error", fields)
	case statusCode >= 400:
		l.WarnWithFields("HTTP request client error", fields)
	default:
		l.DebugWithFields("HTTP request completed", fields)
	}
}

// LogProxyEvent logs a proxy health transition
func LogProxyEvent(l Logger, address, event string, failCount int, cooldownUntil time.Time) {
	fields := map[string]interface{}{
		"proxy":      address,
		"event":      event,
		"fail_count": failCount,
	}
	if !cooldownUntil.IsZero() {
		fields["cooldown_until"] = cooldownUntil
	}

	if event == "evicted" {
		l.WarnWithFields("Proxy evicted", fields)
		return
	}
	l.DebugWithFields("Proxy state changed", fields)
}

// LogAccountStatus logs an account status transition
func LogAccountStatus(l Logger, login, from, to string) {
	fields := map[string]interface{}{
		"account": login,
		"from":    from,
		"to":      to,
	}
	if to != "working" {
		l.WarnWithFields("Account status changed", fields)
		return
	}
	l.InfoWithFields("Account status changed", fields)
}

// LogCollect logs the outcome of one collection
func LogCollect(l Logger, username string, posts, failed int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"target":   username,
		"posts":    posts,
		"failed":   failed,
		"duration": duration,
	}
	if err != nil {
		l.WithError(err).ErrorWithFields("Collection failed", fields)
		return
	}
	l.InfoWithFields("Collection completed", fields)
}

// NewNopLogger creates a no-operation logger for testing
func NewNopLogger() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (n *nopLogger) Debug(msg string)                                          {}
func (n *nopLogger) Info(msg string)                                           {}
func (n *nopLogger) Warn(msg string)                                           {}
func (n *nopLogger) Error(msg string)                                          {}
func (n *nopLogger) Fatal(msg string)                                          {}
func (n *nopLogger) WithField(key string, value interface{}) Logger            { return n }
func (n *nopLogger) WithFields(fields map[string]interface{}) Logger           { return n }
func (n *nopLogger) WithError(err error) Logger                                { return n }
func (n *nopLogger) WithContext(ctx context.Context) Logger                    { return n }
func (n *nopLogger) DebugWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) InfoWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) WarnWithFields(msg string, fields map[string]interface{})  {}
func (n *nopLogger) ErrorWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) FatalWithFields(msg string, fields map[string]interface{}) {}
func (n *nopLogger) GetZerolog() *zerolog.Logger                               { return nil }
