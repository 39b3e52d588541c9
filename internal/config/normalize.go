package config

import (
	"fmt"
	"strings"

	"flashdetail/internal/remote"
)

func (c *Config) normalize() error {
	c.normalizeServer()
	if err := c.normalizeCache(); err != nil {
		return err
	}
	c.normalizeRemote()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultBind
	}
	c.Server.AdminToken = strings.TrimSpace(c.Server.AdminToken)
	if c.Server.RequestTimeoutSeconds <= 0 {
		c.Server.RequestTimeoutSeconds = defaultRequestTimeout
	}
}

func (c *Config) normalizeCache() error {
	c.Cache.Backend = strings.ToLower(strings.TrimSpace(c.Cache.Backend))
	if c.Cache.Backend == "" {
		c.Cache.Backend = defaultCacheBackend
	}
	if strings.TrimSpace(c.Cache.Path) == "" {
		c.Cache.Path = defaultCachePath
	}
	var err error
	if c.Cache.Path, err = expandPath(strings.TrimSpace(c.Cache.Path)); err != nil {
		return fmt.Errorf("cache.path: %w", err)
	}
	c.Cache.RedisAddr = strings.TrimSpace(c.Cache.RedisAddr)
	c.Cache.RedisPrefix = strings.TrimSpace(c.Cache.RedisPrefix)
	return nil
}

func (c *Config) normalizeRemote() {
	if c.Remote.TimeoutSeconds <= 0 {
		c.Remote.TimeoutSeconds = defaultRemoteTimeout
	}
	c.Remote.UserAgent = strings.TrimSpace(c.Remote.UserAgent)
	c.Remote.DecodeURLs = normalizeURLs(c.Remote.DecodeURLs)
	c.Remote.ExtraURLs = normalizeURLs(c.Remote.ExtraURLs)
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Output = strings.TrimSpace(c.Logging.Output)
}

func normalizeURLs(urls []string) []string {
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if u = remote.NormalizeBaseURL(u); u != "" {
			out = append(out, u)
		}
	}
	return out
}

// Endpoints builds the runtime endpoint registry from the remote section.
func (c *Config) Endpoints() *remote.Endpoints {
	return remote.NewEndpoints(map[remote.Family][]string{
		remote.FamilyDecode: c.Remote.DecodeURLs,
		remote.FamilyExtra:  c.Remote.ExtraURLs,
	})
}

// SetEndpoints copies the registry's current lists back into the config so
// they can be saved.
func (c *Config) SetEndpoints(eps *remote.Endpoints) {
	snap := eps.Snapshot()
	c.Remote.DecodeURLs = snap[remote.FamilyDecode]
	c.Remote.ExtraURLs = snap[remote.FamilyExtra]
}
