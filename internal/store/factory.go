package store

import (
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

type Config struct {
	Backend     string
	Path        string
	RedisPrefix string
}

// New builds the configured backend wrapped in a LoggingStore.
func New(cfg Config, redisClient *redis.Client, logger *zap.Logger) (Store, error) {
	var inner Store
	switch cfg.Backend {
	case BackendRedis:
		if redisClient == nil {
			return nil, errors.New("store: redis backend requires a client")
		}
		inner = NewRedisStore(redisClient, RedisConfig{Prefix: cfg.RedisPrefix})
	case BackendFile, "":
		fs, err := NewFileStore(cfg.Path, logger)
		if err != nil {
			return nil, err
		}
		inner = fs
	default:
		return nil, fmt.Errorf("store: unknown backend %q", cfg.Backend)
	}
	return NewLoggingStore(inner, logger), nil
}
