package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Logger is a wrapper around zerolog.Logger
type Logger struct {
	logger zerolog.Logger
	closer io.Closer
}

// Config holds logging configuration
type Config struct {
	Level      string // debug, info, warn, error
	Format     string // json, console
	Output     string // stdout, stderr, file path
	TimeFormat string // Go layout, "unix" or "unixms"
	Service    string
}

// NewLogger creates a logger and installs it as the zerolog global logger
func NewLogger(cfg Config) (*Logger, error) {
	output, closer, err := openOutput(cfg.Output)
	if err != nil {
		return nil, err
	}

	timeFormat := cfg.TimeFormat
	if timeFormat == "" {
		timeFormat = time.RFC3339
	}
	switch timeFormat {
	case "unix":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	case "unixms":
		zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	default:
		zerolog.TimeFieldFormat = timeFormat
	}

	if cfg.Format == "console" {
		output = zerolog.ConsoleWriter{Out: output, TimeFormat: timeFormat}
	}

	ctx := zerolog.New(output).Level(parseLevel(cfg.Level)).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Caller().Logger()

	log.Logger = logger
	return &Logger{logger: logger, closer: closer}, nil
}

func openOutput(output string) (io.Writer, io.Closer, error) {
	switch output {
	case "", "stdout":
		return os.Stdout, nil, nil
	case "stderr":
		return os.Stderr, nil, nil
	}

	file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, file, nil
}

// unknown levels log at info
func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

// NewWriterLogger creates a JSON logger writing to w
func NewWriterLogger(w io.Writer, level string) *Logger {
	return &Logger{logger: zerolog.New(w).Level(parseLevel(level)).With().Timestamp().Logger()}
}

// NewNopLogger creates a logger that discards everything
func NewNopLogger() *Logger {
	return &Logger{logger: zerolog.Nop()}
}

// Close releases the log file, if the logger writes to one
func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) with(fn func(zerolog.Context) zerolog.Context) *Logger {
	return &Logger{logger: fn(l.logger.With()).Logger(), closer: l.closer}
}

// WithField adds a field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context {
		return c.Interface(key, value)
	})
}

// WithFields adds fields in key order
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return l.with(func(c zerolog.Context) zerolog.Context {
		for _, k := range keys {
			c = c.Interface(k, fields[k])
		}
		return c
	})
}

func (l *Logger) WithError(err error) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Err(err) })
}

func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("request_id", requestID) })
}

func (l *Logger) WithContentID(contentID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("content_id", contentID) })
}

func (l *Logger) WithAssetID(assetID string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("asset_id", assetID) })
}

func (l *Logger) WithLanguage(language string) *Logger {
	return l.with(func(c zerolog.Context) zerolog.Context { return c.Str("language", language) })
}

func (l *Logger) Debug(msg string) {
	l.logger.Debug().Msg(msg)
}

func (l *Logger) Info(msg string) {
	l.logger.Info().Msg(msg)
}

func (l *Logger) Infof(format string, args ...interface{}) {
	l.logger.Info().Msgf(format, args...)
}

func (l *Logger) Warn(msg string) {
	l.logger.Warn().Msg(msg)
}

// WarnWithErr logs a warning message with an error
func (l *Logger) WarnWithErr(msg string, err error) {
	l.logger.Warn().Err(err).Msg(msg)
}

func (l *Logger) Error(msg string) {
	l.logger.Error().Msg(msg)
}

// ErrorWithErr logs an error message with an error
func (l *Logger) ErrorWithErr(msg string, err error) {
	l.logger.Error().Err(err).Msg(msg)
}

// Fatalf logs a formatted message and exits
func (l *Logger) Fatalf(format string, args ...interface{}) {
	l.logger.Fatal().Msgf(format, args...)
}

// outcome starts an event at level, or at error level with err attached
func (l *Logger) outcome(level zerolog.Level, err error) *zerolog.Event {
	if err != nil {
		return l.logger.Error().Err(err)
	}
	return l.logger.WithLevel(level)
}

// LogHTTPRequest logs a served request; 4xx at warn, 5xx at error
func (l *Logger) LogHTTPRequest(method, path, clientIP string, statusCode int, duration time.Duration) {
	level := zerolog.InfoLevel
	switch {
	case statusCode >= 500:
		level = zerolog.ErrorLevel
	case statusCode >= 400:
		level = zerolog.WarnLevel
	}

	l.logger.WithLevel(level).
		Str("method", method).
		Str("path", path).
		Str("client_ip", clientIP).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("HTTP request")
}

// LogAPICall logs an outbound call to the sourcing API
func (l *Logger) LogAPICall(operation, method, url string, statusCode int, duration time.Duration, err error) {
	l.outcome(zerolog.DebugLevel, err).
		Str("operation", operation).
		Str("method", method).
		Str("url", url).
		Int("status_code", statusCode).
		Dur("duration_ms", duration).
		Msg("API call")
}

// LogCommitEvent logs a step of a transcript commit
func (l *Logger) LogCommitEvent(contentID, step, status string, details map[string]interface{}) {
	evt := l.logger.Info().
		Str("content_id", contentID).
		Str("step", step).
		Str("status", status)
	if len(details) > 0 {
		evt = evt.Fields(details)
	}
	evt.Msg("Commit event")
}

func (l *Logger) LogStorageOperation(operation, bucket, key string, size int64, duration time.Duration, err error) {
	l.outcome(zerolog.DebugLevel, err).
		Str("operation", operation).
		Str("bucket", bucket).
		Str("key", key).
		Int64("size_bytes", size).
		Dur("duration_ms", duration).
		Msg("Storage operation")
}

func (l *Logger) LogDatabaseOperation(operation string, duration time.Duration, err error) {
	l.outcome(zerolog.DebugLevel, err).
		Str("operation", operation).
		Dur("duration_ms", duration).
		Msg("Database operation")
}
