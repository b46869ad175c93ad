package guard

import (
	"context"
	"log/slog"
	"time"
)

// Record is one access-log entry, emitted for every chain evaluation.
type Record struct {
	Endpoint string
	Status   string
	ClientIP string
	At       time.Time
}

// AccessLogger receives access records. Implementations must tolerate
// concurrent calls.
type AccessLogger interface {
	Log(ctx context.Context, rec Record)
}

type nopLogger struct{}

func (nopLogger) Log(context.Context, Record) {}

// SlogLogger writes access records as structured log lines.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Log(ctx context.Context, rec Record) {
	l.logger.InfoContext(ctx, "access",
		"endpoint", rec.Endpoint,
		"status", rec.Status,
		"client_ip", rec.ClientIP,
		"at", rec.At.Format(time.RFC3339Nano),
	)
}

// MultiLogger fans records out to several sinks.
type MultiLogger []AccessLogger

func (m MultiLogger) Log(ctx context.Context, rec Record) {
	for _, l := range m {
		l.Log(ctx, rec)
	}
}
