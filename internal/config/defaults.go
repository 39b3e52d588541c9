package config

const (
	defaultConfigPath     = "~/.config/flashdetail/config.toml"
	defaultBind           = ":8080"
	defaultRequestTimeout = 15
	defaultCacheBackend   = "file"
	defaultCachePath      = "~/.local/share/flashdetail/flash_detail_db.json"
	defaultRedisAddr      = "127.0.0.1:6379"
	defaultRedisPrefix    = "flashdetail"
	defaultRemoteTimeout  = 10
	defaultLogLevel       = "info"
	defaultLogFormat      = "json"
)

// Default returns a Config populated with the built-in defaults. Endpoint
// lists start empty.
func Default() Config {
	return Config{
		Server: Server{
			Bind:                  defaultBind,
			RequestTimeoutSeconds: defaultRequestTimeout,
		},
		Cache: Cache{
			Backend:     defaultCacheBackend,
			Path:        defaultCachePath,
			RedisAddr:   defaultRedisAddr,
			RedisPrefix: defaultRedisPrefix,
		},
		Remote: Remote{
			TimeoutSeconds: defaultRemoteTimeout,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
