package logging

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEntry is one JSON line in the audit log.
type AuditEntry struct {
	Timestamp  time.Time         `json:"timestamp"`
	TraceID    string            `json:"trace_id"`
	Command    string            `json:"command"`
	Parameters map[string]string `json:"parameters,omitempty"`
	Success    bool              `json:"success"`
	ResultKeys int               `json:"result_keys,omitempty"`
	Error      string            `json:"error,omitempty"`
	DurationMS int64             `json:"duration_ms"`
}

// NewAuditEntry starts an entry for command.
func NewAuditEntry(command, traceID string) *AuditEntry {
	return &AuditEntry{
		Timestamp: time.Now().UTC(),
		TraceID:   traceID,
		Command:   command,
	}
}

// WithParameters records the invocation parameters.
func (e *AuditEntry) WithParameters(params map[string]string) *AuditEntry {
	e.Parameters = params
	return e
}

// WithSuccess marks the entry successful and records the result size.
func (e *AuditEntry) WithSuccess(resultKeys int) *AuditEntry {
	e.Success = true
	e.ResultKeys = resultKeys
	return e
}

// WithError marks the entry failed.
func (e *AuditEntry) WithError(msg string) *AuditEntry {
	e.Success = false
	e.Error = msg
	return e
}

// WithDuration records time elapsed since start.
func (e *AuditEntry) WithDuration(start time.Time) *AuditEntry {
	e.DurationMS = time.Since(start).Milliseconds()
	return e
}

// AuditLogger records audit entries.
type AuditLogger interface {
	Log(ctx context.Context, entry AuditEntry)
	Close() error
}

// AuditLoggerConfig configures NewAuditLogger.
type AuditLoggerConfig struct {
	Enabled bool
	File    string
}

// NewAuditLogger returns a file-backed audit logger, or a no-op logger when
// auditing is disabled or the file cannot be opened.
func NewAuditLogger(cfg AuditLoggerConfig) AuditLogger {
	if !cfg.Enabled || cfg.File == "" {
		return nopAuditLogger{}
	}
	if err := os.MkdirAll(filepath.Dir(cfg.File), 0o700); err != nil {
		return nopAuditLogger{}
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nopAuditLogger{}
	}
	return &fileAuditLogger{file: f}
}

type fileAuditLogger struct {
	mu   sync.Mutex
	file *os.File
}

func (l *fileAuditLogger) Log(ctx context.Context, entry AuditEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		FromContext(ctx).Warn().Ctx(ctx).Err(err).Msg("failed to encode audit entry")
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return
	}
	if _, err = fmt.Fprintln(l.file, string(data)); err != nil {
		FromContext(ctx).Warn().Ctx(ctx).Err(err).Msg("failed to write audit entry")
	}
}

func (l *fileAuditLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

type nopAuditLogger struct{}

func (nopAuditLogger) Log(context.Context, AuditEntry) {}
func (nopAuditLogger) Close() error                    { return nil }

type auditLoggerKey struct{}

// ContextWithAuditLogger stores l in ctx.
func ContextWithAuditLogger(ctx context.Context, l AuditLogger) context.Context {
	return context.WithValue(ctx, auditLoggerKey{}, l)
}

// AuditLoggerFromContext returns the audit logger in ctx, or a no-op one.
func AuditLoggerFromContext(ctx context.Context) AuditLogger {
	if ctx != nil {
		if l, ok := ctx.Value(auditLoggerKey{}).(AuditLogger); ok && l != nil {
			return l
		}
	}
	return nopAuditLogger{}
}
