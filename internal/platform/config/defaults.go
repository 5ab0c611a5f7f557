package config

import "time"

// DefaultConfig returns the configuration used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			IP:   "0.0.0.0",
			Port: 8000,
		},
		Log: LogConfig{
			Level: "INFO",
			Dir:   "data/logs",
			File:  "authgate.log",
		},
		Database: DatabaseConfig{
			Driver: "sqlite",
			DSN:    "data/authgate.db",
		},
		Store: StoreConfig{
			Driver: "redis",
			Redis: RedisStoreConfig{
				Addr: "127.0.0.1:6379",
			},
			Memory: MemoryStoreConfig{
				GCInterval: 5 * time.Minute,
			},
		},
		Auth: AuthConfig{
			SessionTTL:       30 * time.Minute,
			RateLimitMax:     5,
			RateLimitWindow:  15 * time.Minute,
			LockoutThreshold: 5,
			CallTimeout:      3 * time.Second,
			CookieMode:       false,
			InitialAdmin: InitialAdminConfig{
				Enabled:  true,
				Username: "admin",
				Password: "changeme",
			},
		},
	}
}
