// Package logger provides a global, sugared Zap logger. It supports configuring
// the log level via functional options, emits JSON logs to stdout, and enriches
// every entry with the OpenTelemetry trace and span ids found in the context.
package logger

import (
	"context"
	"io"
	"os"
	"sync"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// logger is the global SugaredLogger instance. It logs nothing until Init runs.
	logger = zap.NewNop().Sugar()

	// initOnce ensures the logger is only configured a single time.
	initOnce sync.Once
)

// config holds configuration options for the logger.
type config struct {
	level  string    // the minimum log level (debug, info, warn, error, panic, fatal)
	output io.Writer // destination of the JSON entries
}

// Option configures the logger before initialization.
type Option func(*config)

// WithLevel sets the minimum log level for the global logger.
// Example levels: "debug", "info", "warn", "error", "panic", "fatal".
func WithLevel(l string) Option {
	return func(c *config) {
		c.level = l
	}
}

// WithOutput redirects log entries to w instead of stdout.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		c.output = w
	}
}

// Init configures the global logger. By default, it logs JSON to stdout at the
// "info" level. Calling Init multiple times has no effect after the first
// successful initialization.
//
// Returns an error if parsing the log level fails.
func Init(opts ...Option) error {
	cfg := config{
		level:  "info",
		output: os.Stdout,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	level, err := zapcore.ParseLevel(cfg.level)
	if err != nil {
		return err
	}

	initOnce.Do(func() {
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(cfg.output),
			level,
		)

		logger = zap.New(core).Sugar()
	})

	return nil
}

// Sync flushes any buffered log entries. It should be called on application
// shutdown to ensure all logs are written out.
func Sync() error {
	return logger.Sync()
}

// withTrace appends the trace and span ids of the span carried by ctx, if any.
func withTrace(ctx context.Context, keysAndValues []any) []any {
	if ctx == nil {
		return keysAndValues
	}

	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return keysAndValues
	}

	return append(keysAndValues,
		"trace_id", sc.TraceID().String(),
		"span_id", sc.SpanID().String(),
	)
}

// Debug logs a debug-level message with optional key/value context.
func Debug(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Debugw(msg, withTrace(ctx, keysAndValues)...)
}

// Info logs an info-level message with optional key/value context.
func Info(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Infow(msg, withTrace(ctx, keysAndValues)...)
}

// Warn logs a warn-level message with optional key/value context.
func Warn(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Warnw(msg, withTrace(ctx, keysAndValues)...)
}

// Error logs an error-level message with optional key/value context.
func Error(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Errorw(msg, withTrace(ctx, keysAndValues)...)
}

// Panic logs a panic-level message (and then panics) with optional key/value context.
func Panic(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Panicw(msg, withTrace(ctx, keysAndValues)...)
}

// Fatal logs a fatal-level message (and then exits) with optional key/value context.
func Fatal(ctx context.Context, msg string, keysAndValues ...any) {
	logger.Fatalw(msg, withTrace(ctx, keysAndValues)...)
}
