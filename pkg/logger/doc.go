// Package logger provides the structured logging interface used across igtail.
//
// It wraps zerolog with a small Logger interface so components can be handed a
// logger in their constructors and tests can swap in NewTestLogger or
// NewNopLogger.
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.WithComponent("proxypool")
//	log.WithField("proxy", addr).Warn("Proxy evicted")
//
// Console output is written to stderr in a coloured human readable form. When a
// log file is configured, JSON lines are appended to it as well.
package logger
