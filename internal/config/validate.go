package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCache(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCache() error {
	switch c.Cache.Backend {
	case "file":
		if c.Cache.Path == "" {
			return errors.New("cache.path must be set for the file backend")
		}
	case "redis":
		if c.Cache.RedisAddr == "" {
			return errors.New("cache.redis_addr must be set for the redis backend")
		}
	default:
		return fmt.Errorf("cache.backend must be file or redis, got %q", c.Cache.Backend)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
