package logging

import (
	"context"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type ctxKey int

const loggerKey ctxKey = iota

// ServiceName is attached to every logger built by NewLogger.
const ServiceName = "flashdetail"

var (
	defaultLogger     *zap.Logger
	defaultLoggerOnce sync.Once
)

// Options controls how NewLogger builds the logger.
type Options struct {
	Level  string // debug | info | warn | error
	Format string // json | console
	// Output is "stderr", "stdout" or a file path. Empty means stderr, which
	// keeps CLI stdout free for results.
	Output string
}

// OptionsFromEnv reads FLASHDETAIL_LOG_LEVEL, FLASHDETAIL_LOG_FORMAT and
// FLASHDETAIL_LOG_OUTPUT, falling back to the unprefixed LOG_* names.
// ENV=dev forces console output.
func OptionsFromEnv() Options {
	opts := Options{
		Level:  envFirst("FLASHDETAIL_LOG_LEVEL", "LOG_LEVEL"),
		Format: envFirst("FLASHDETAIL_LOG_FORMAT", "LOG_FORMAT"),
		Output: envFirst("FLASHDETAIL_LOG_OUTPUT", "LOG_OUTPUT"),
	}
	if env := os.Getenv("ENV"); env == "dev" || env == "development" {
		opts.Format = "console"
	}
	return opts
}

func envFirst(keys ...string) string {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// NewLogger builds a zap logger. Unknown levels fall back to info.
func NewLogger(opts Options) (*zap.Logger, error) {
	var config zap.Config

	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "console", "text", "dev":
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		config.Level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	default:
		config = zap.NewProductionConfig()
		config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
		config.Sampling = nil
	}

	if lvl := strings.TrimSpace(opts.Level); lvl != "" {
		var level zapcore.Level
		if err := level.UnmarshalText([]byte(lvl)); err == nil {
			config.Level = zap.NewAtomicLevelAt(level)
		}
	}

	out := strings.TrimSpace(opts.Output)
	if out == "" {
		out = "stderr"
	}
	config.OutputPaths = []string{out}
	config.ErrorOutputPaths = []string{"stderr"}

	logger, err := config.Build()
	if err != nil {
		return nil, err
	}
	return logger.With(zap.String("service", ServiceName)), nil
}

// DefaultLogger is the process-wide fallback used when a context carries no
// logger. A logger that cannot be built from the environment degrades to a
// no-op logger after reporting on stderr.
func DefaultLogger() *zap.Logger {
	defaultLoggerOnce.Do(func() {
		logger, err := NewLogger(OptionsFromEnv())
		if err != nil {
			_, _ = os.Stderr.WriteString("failed to create logger: " + err.Error() + "\n")
			logger = zap.NewNop()
		}
		defaultLogger = logger
	})
	return defaultLogger
}

// WithLogger attaches a logger to ctx.
func WithLogger(ctx context.Context, logger *zap.Logger) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext returns the logger stored in ctx, or the default logger.
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := attached(ctx); ok {
		return logger
	}
	return DefaultLogger()
}

// Attached reports whether ctx carries its own logger.
func Attached(ctx context.Context) bool {
	_, ok := attached(ctx)
	return ok
}

func attached(ctx context.Context) (*zap.Logger, bool) {
	if ctx == nil {
		return nil, false
	}
	logger, ok := ctx.Value(loggerKey).(*zap.Logger)
	return logger, ok && logger != nil
}

func L(ctx context.Context) *zap.Logger {
	return FromContext(ctx)
}

// WithFields adds structured fields to the logger in context.
func WithFields(ctx context.Context, fields ...zap.Field) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(fields...))
}
