package config

import (
	"time"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Store    StoreConfig    `yaml:"store"`
	Auth     AuthConfig     `yaml:"auth"`
}

type ServerConfig struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

type LogConfig struct {
	Level string `yaml:"log_level"`
	Dir   string `yaml:"log_dir"`
	File  string `yaml:"log_file"`
}

// DatabaseConfig selects the durable account store backend.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite or postgres
	DSN    string `yaml:"dsn"`
}

// StoreConfig selects the ephemeral key/value backend used for
// rate-limit counters and session presence.
type StoreConfig struct {
	Driver string            `yaml:"driver"` // redis or memory
	Redis  RedisStoreConfig  `yaml:"redis,omitempty"`
	Memory MemoryStoreConfig `yaml:"memory,omitempty"`
}

type RedisStoreConfig struct {
	Addr     string `yaml:"addr"`
	Username string `yaml:"username,omitempty"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db,omitempty"`
}

type MemoryStoreConfig struct {
	GCInterval time.Duration `yaml:"gc_interval"`
}

// AuthConfig carries the abuse-control and session policy knobs.
type AuthConfig struct {
	Secret           string             `yaml:"secret"`
	SessionTTL       time.Duration      `yaml:"session_ttl"`
	RateLimitMax     int                `yaml:"rate_limit_max"`
	RateLimitWindow  time.Duration      `yaml:"rate_limit_window"`
	LockoutThreshold int                `yaml:"lockout_threshold"`
	CallTimeout      time.Duration      `yaml:"call_timeout"`
	CookieMode       bool               `yaml:"cookie_mode"`
	InitialAdmin     InitialAdminConfig `yaml:"initial_admin"`
}

// InitialAdminConfig seeds a first account when the users table is empty.
type InitialAdminConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Email    string `yaml:"email,omitempty"`
}
