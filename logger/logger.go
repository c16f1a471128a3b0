// Package logger provides structured logging for vcheckquota.
//
// This package wraps Go's standard library slog with support for
// multiple outputs:
//   - Console (stdout/stderr)
//   - File
//   - Syslog (local)
//
// Whatever a delivery program writes to stderr may be quoted back in
// bounce messages, so the default level is warn.
//
// # Initialization
//
//	logFile, err := logger.Initialize(cfg.Logging)
//	if err != nil {
//		fmt.Fprintln(os.Stderr, err)
//	}
//	if logFile != nil {
//		defer logFile.Close()
//	}
//
// # Usage
//
//	logger.With("maildir", maildir).Info("Quota checked",
//		"verdict", decision.Verdict,
//		"usage", decision.Usage,
//	)
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"log/syslog"
	"os"
	"runtime"
	"strings"

	"github.com/migadu/vquota/config"
)

// SyslogTag identifies log lines sent to syslog.
const SyslogTag = "vcheckquota"

var (
	// Global logger instance
	globalLogger *slog.Logger
)

// syslogHandler wraps syslog.Writer to implement slog.Handler
type syslogHandler struct {
	writer *syslog.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func newSyslogHandler(w *syslog.Writer, level slog.Level) *syslogHandler {
	return &syslogHandler{
		writer: w,
		level:  level,
		attrs:  []slog.Attr{},
		groups: []string{},
	}
}

func (h *syslogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *syslogHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	b.WriteString(r.Message)

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	writeAttr := func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s%s=%v", prefix, a.Key, a.Value.Any())
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)

	msg := b.String()
	switch {
	case r.Level < slog.LevelInfo:
		return h.writer.Debug(msg)
	case r.Level < slog.LevelWarn:
		return h.writer.Info(msg)
	case r.Level < slog.LevelError:
		return h.writer.Warning(msg)
	default:
		return h.writer.Err(msg)
	}
}

func (h *syslogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	copy(newAttrs[len(h.attrs):], attrs)
	return &syslogHandler{
		writer: h.writer,
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *syslogHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name
	return &syslogHandler{
		writer: h.writer,
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}

// Initialize sets up the global logger based on configuration. The
// returned file, if any, is owned by the caller. When the configured
// output cannot be used, logging falls back to stderr and the reason is
// returned as the error; the logger is usable either way.
func Initialize(cfg config.LoggingConfig) (*os.File, error) {
	output := cfg.Output
	if output == "" {
		output = "stderr"
	}
	level := cfg.Level
	if level == "" {
		level = "warn"
	}

	slogLevel := parseLogLevel(level)
	handlerOpts := &slog.HandlerOptions{Level: slogLevel}

	var (
		handler     slog.Handler
		logFile     *os.File
		fallbackErr error
	)

	switch output {
	case "stdout":
		handler = newHandler(os.Stdout, cfg.Format, handlerOpts)

	case "stderr":
		handler = newHandler(os.Stderr, cfg.Format, handlerOpts)

	case "syslog":
		if runtime.GOOS == "windows" {
			fallbackErr = fmt.Errorf("syslog is not supported on windows, logging to stderr")
			handler = newHandler(os.Stderr, cfg.Format, handlerOpts)
			break
		}
		syslogWriter, err := syslog.New(syslog.LOG_INFO|syslog.LOG_MAIL, SyslogTag)
		if err != nil {
			fallbackErr = fmt.Errorf("failed to connect to syslog, logging to stderr: %w", err)
			handler = newHandler(os.Stderr, cfg.Format, handlerOpts)
			break
		}
		handler = newSyslogHandler(syslogWriter, slogLevel)

	default:
		// Anything else is a file path
		f, err := os.OpenFile(output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fallbackErr = fmt.Errorf("failed to open log file '%s', logging to stderr: %w", output, err)
			handler = newHandler(os.Stderr, cfg.Format, handlerOpts)
			break
		}
		logFile = f
		handler = newHandler(f, cfg.Format, handlerOpts)
	}

	globalLogger = slog.New(handler)
	slog.SetDefault(globalLogger)

	return logFile, fallbackErr
}

func newHandler(w io.Writer, format string, opts *slog.HandlerOptions) slog.Handler {
	if format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Get returns the global logger instance
func Get() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger
}

// Debug logs a debug message with optional key-value pairs
func Debug(msg string, args ...any) {
	Get().Debug(msg, args...)
}

// DebugContext logs a debug message with context and optional key-value pairs
func DebugContext(ctx context.Context, msg string, args ...any) {
	Get().DebugContext(ctx, msg, args...)
}

// Warn logs a warning message with optional key-value pairs
func Warn(msg string, args ...any) {
	Get().Warn(msg, args...)
}

// With returns a logger with the given attributes
func With(args ...any) *slog.Logger {
	return Get().With(args...)
}
