package briteverify

import (
	"context"
	"time"
)

// Logger is the narrow logging contract the client writes to. The zap-backed
// logger in internal/logger satisfies it.
type Logger interface {
	InfoObj(msg string, key string, obj interface{})
	DebugObj(msg string, key string, obj interface{})
	WarnObj(msg string, key string, obj interface{})
	ErrorObj(msg string, key string, obj interface{})
}

// NopLogger discards every entry.
type NopLogger struct{}

func (NopLogger) InfoObj(string, string, interface{})  {}
func (NopLogger) DebugObj(string, string, interface{}) {}
func (NopLogger) WarnObj(string, string, interface{})  {}
func (NopLogger) ErrorObj(string, string, interface{}) {}

func ensureLogger(l Logger) Logger {
	if l == nil {
		return NopLogger{}
	}
	return l
}

// RequestInfo describes an outbound request.
type RequestInfo struct {
	ID        string    `json:"id"`
	Operation string    `json:"operation"`
	Method    string    `json:"method"`
	URL       string    `json:"url"`
	StartedAt time.Time `json:"started_at"`
}

// RequestOutcome describes how a request ended. StatusCode is zero when the
// transport failed.
type RequestOutcome struct {
	StatusCode int           `json:"status_code"`
	Duration   time.Duration `json:"duration"`
	Err        error         `json:"-"`
}

// Observer receives a callback around every request the client sends.
// Implementations must be safe for concurrent use and must not block.
type Observer interface {
	RequestStarted(ctx context.Context, info RequestInfo)
	RequestFinished(ctx context.Context, info RequestInfo, outcome RequestOutcome)
}

type nopObserver struct{}

func (nopObserver) RequestStarted(context.Context, RequestInfo)                 {}
func (nopObserver) RequestFinished(context.Context, RequestInfo, RequestOutcome) {}

// LoggingObserver reports requests to log at debug level and failures at warn.
func LoggingObserver(log Logger) Observer {
	return loggingObserver{log: ensureLogger(log)}
}

type loggingObserver struct {
	log Logger
}

func (o loggingObserver) RequestStarted(_ context.Context, info RequestInfo) {
	o.log.DebugObj("briteverify request started", "request", info)
}

func (o loggingObserver) RequestFinished(_ context.Context, info RequestInfo, outcome RequestOutcome) {
	entry := map[string]interface{}{
		"id":          info.ID,
		"operation":   info.Operation,
		"method":      info.Method,
		"url":         info.URL,
		"status_code": outcome.StatusCode,
		"duration_ms": outcome.Duration.Milliseconds(),
	}
	if outcome.Err != nil {
		entry["error"] = outcome.Err.Error()
		o.log.WarnObj("briteverify request failed", "request", entry)
		return
	}
	o.log.DebugObj("briteverify request finished", "request", entry)
}
