package store

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"flashdetail/internal/metrics"
	"flashdetail/pkg/logging/logging"
)

// LoggingStore wraps a Store with logging + metrics.
type LoggingStore struct {
	inner Store
	base  *zap.Logger
}

// NewLoggingStore returns a store that logs and records metrics. base is used
// when the context carries no request logger.
func NewLoggingStore(inner Store, base *zap.Logger) *LoggingStore {
	if base == nil {
		base = zap.NewNop()
	}
	return &LoggingStore{inner: inner, base: base.Named("store")}
}

// Unwrap returns the decorated store.
func (s *LoggingStore) Unwrap() Store { return s.inner }

func (s *LoggingStore) Get(ctx context.Context, table, key string) (Record, bool, error) {
	start := time.Now()
	rec, ok, err := s.inner.Get(ctx, table, key)

	result := "miss"
	if err != nil {
		result = "error"
	} else if ok {
		result = "hit"
	}
	metrics.CacheLookupsTotal.WithLabelValues(table, result).Inc()

	fields := []zap.Field{
		zap.String("table", table),
		zap.String("key", NormalizeKey(key)),
		zap.String("cache_result", result), // hit | miss | error
		zap.Float64("latency_ms", sinceMs(start)),
	}
	if err != nil {
		s.logger(ctx).Error("cache_get", append(fields, zap.Error(err))...)
	} else {
		s.logger(ctx).Debug("cache_get", fields...)
	}

	return rec, ok, err
}

func (s *LoggingStore) Set(ctx context.Context, table, key string, rec Record) error {
	start := time.Now()
	err := s.inner.Set(ctx, table, key, rec)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CacheWritesTotal.WithLabelValues(table, result).Inc()

	fields := []zap.Field{
		zap.String("table", table),
		zap.String("key", NormalizeKey(key)),
		zap.Int("fields", len(rec.Data)),
		zap.Float64("latency_ms", sinceMs(start)),
	}
	if err != nil {
		s.logger(ctx).Error("cache_set", append(fields, zap.Error(err))...)
	} else {
		s.logger(ctx).Info("cache_set", fields...)
	}

	return err
}

func (s *LoggingStore) Update(ctx context.Context, table, key string, fn UpdateFunc) error {
	start := time.Now()
	err := s.inner.Update(ctx, table, key, fn)

	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.CacheWritesTotal.WithLabelValues(table, result).Inc()

	s.logMutation(ctx, "cache_update", err,
		zap.String("table", table),
		zap.String("key", NormalizeKey(key)),
		zap.Float64("latency_ms", sinceMs(start)),
	)
	return err
}

func (s *LoggingStore) Delete(ctx context.Context, table, key string) error {
	err := s.inner.Delete(ctx, table, key)
	s.logMutation(ctx, "cache_delete", err, zap.String("table", table), zap.String("key", NormalizeKey(key)))
	return err
}

func (s *LoggingStore) ClearTable(ctx context.Context, table string) error {
	err := s.inner.ClearTable(ctx, table)
	s.logMutation(ctx, "cache_clear_table", err, zap.String("table", table))
	return err
}

func (s *LoggingStore) DeleteTable(ctx context.Context, table string) error {
	err := s.inner.DeleteTable(ctx, table)
	s.logMutation(ctx, "cache_delete_table", err, zap.String("table", table))
	return err
}

func (s *LoggingStore) Keys(ctx context.Context, table string) ([]string, error) {
	return s.inner.Keys(ctx, table)
}

func (s *LoggingStore) Tables(ctx context.Context) ([]string, error) {
	return s.inner.Tables(ctx)
}

func (s *LoggingStore) logMutation(ctx context.Context, msg string, err error, fields ...zap.Field) {
	switch {
	case err == nil:
		s.logger(ctx).Info(msg, fields...)
	case errors.Is(err, ErrNotFound):
		s.logger(ctx).Debug(msg, append(fields, zap.Error(err))...)
	default:
		s.logger(ctx).Error(msg, append(fields, zap.Error(err))...)
	}
}

func (s *LoggingStore) logger(ctx context.Context) *zap.Logger {
	if logging.Attached(ctx) {
		return logging.FromContext(ctx)
	}
	return s.base
}

func sinceMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
