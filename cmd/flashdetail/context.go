package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"flashdetail/internal/config"
	"flashdetail/internal/remote"
	"flashdetail/internal/resolver"
	"flashdetail/internal/store"
	"flashdetail/pkg/logging/logging"
)

// errReported is returned after a command already printed its failure.
var errReported = errors.New("reported")

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	log        *zap.Logger

	redis  *redis.Client
	client *remote.Client
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// logger is built from the loaded config, or from the environment when no
// config is available.
func (c *commandContext) logger() *zap.Logger {
	c.loggerOnce.Do(func() {
		opts := logging.OptionsFromEnv()
		if cfg, err := c.ensureConfig(); err == nil {
			opts = logging.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, Output: cfg.Logging.Output}
		}
		logger, err := logging.NewLogger(opts)
		if err != nil {
			logger = logging.DefaultLogger()
			logger.Warn("falling back to default logger", zap.Error(err))
		}
		c.log = logger
	})
	return c.log
}

// openStore builds the configured cache backend. Redis is pinged first so a
// misconfigured address fails fast.
func (c *commandContext) openStore(ctx context.Context) (store.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := c.logger()

	if cfg.Cache.Backend == store.BackendRedis && c.redis == nil {
		client := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Debug("redis connection established", zap.String("addr", cfg.Cache.RedisAddr))
		c.redis = client
	}

	return store.New(store.Config{
		Backend:     cfg.Cache.Backend,
		Path:        cfg.Cache.Path,
		RedisPrefix: cfg.Cache.RedisPrefix,
	}, c.redis, logger)
}

func (c *commandContext) remoteClient() (*remote.Client, error) {
	if c.client != nil {
		return c.client, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	c.client = remote.NewClient(remote.Config{
		Timeout:   cfg.RemoteTimeout(),
		UserAgent: cfg.Remote.UserAgent,
	}, cfg.Endpoints(), c.logger())
	return c.client, nil
}

func (c *commandContext) newResolver(ctx context.Context) (*resolver.Resolver, store.Store, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := c.remoteClient()
	if err != nil {
		return nil, nil, err
	}
	return resolver.New(st, client, c.logger()), st, nil
}

// saveEndpoints writes the registry's lists back to the config file.
func (c *commandContext) saveEndpoints(eps *remote.Endpoints) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	cfg.SetEndpoints(eps)
	return cfg.Save(c.configPath)
}

// close releases what the command opened. It runs whether or not the
// command succeeded, and is safe to call twice.
func (c *commandContext) close() {
	if c.client != nil {
		_ = c.client.Close()
		c.client = nil
	}
	if c.redis != nil {
		_ = c.redis.Close()
		c.redis = nil
	}
	if c.log != nil {
		_ = c.log.Sync()
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
