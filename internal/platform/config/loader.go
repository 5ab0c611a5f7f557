package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	platformerrors "authgate/internal/platform/errors"
)

// Loader reads configuration from an optional yaml file layered over
// DefaultConfig, with secrets taken from the environment.
type Loader struct {
	useDotEnv bool
	path      string
}

// NewLoader creates a loader reading ./config.yaml when present.
func NewLoader() *Loader {
	return &Loader{
		useDotEnv: true,
		path:      "config.yaml",
	}
}

// WithDotEnv toggles loading variables from a .env file before reading config.
func (l *Loader) WithDotEnv(enabled bool) *Loader {
	l.useDotEnv = enabled
	return l
}

// WithPath overrides the config file location (useful for tests).
func (l *Loader) WithPath(path string) *Loader {
	if path != "" {
		l.path = path
	}
	return l
}

// Result captures the loaded configuration and its origin.
type Result struct {
	Config *Config
	Path   string
}

// Load assembles the effective configuration: defaults, then the yaml
// file if one exists, then environment overrides.
func (l *Loader) Load() (*Result, error) {
	if l.useDotEnv {
		if err := godotenv.Load(); err != nil {
			fmt.Println("no .env file found, using system environment")
		}
	}

	cfg := DefaultConfig()
	origin := "defaults"

	if data, err := os.ReadFile(l.path); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, platformerrors.Wrap(
				platformerrors.KindConfig,
				"config.load",
				fmt.Sprintf("failed to parse %s", l.path),
				err,
			)
		}
		origin = l.path
	} else if !os.IsNotExist(err) {
		return nil, platformerrors.Wrap(
			platformerrors.KindConfig,
			"config.load",
			fmt.Sprintf("failed to read %s", l.path),
			err,
		)
	}

	applyEnvOverrides(cfg)

	if cfg.Auth.Secret == "" {
		return nil, platformerrors.New(
			platformerrors.KindConfig,
			"config.load",
			"signing secret missing: set SECRET_KEY or auth.secret",
		)
	}

	return &Result{Config: cfg, Path: origin}, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SECRET_KEY"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}

	// Redis settings follow the REDIS_HOST/REDIS_PORT split the deploy
	// environment uses.
	host := os.Getenv("REDIS_HOST")
	port := os.Getenv("REDIS_PORT")
	if host != "" {
		if port == "" {
			port = "6379"
		}
		cfg.Store.Redis.Addr = host + ":" + port
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Store.Redis.Password = v
	}

	if v := os.Getenv("DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if dsn := postgresDSNFromEnv(); dsn != "" {
		cfg.Database.Driver = "postgres"
		cfg.Database.DSN = dsn
	}
}

// postgresDSNFromEnv assembles a DSN from the POSTGRES_* variable set.
func postgresDSNFromEnv() string {
	host := os.Getenv("POSTGRES_HOST")
	if host == "" {
		return ""
	}
	port := os.Getenv("POSTGRES_PORT")
	if port == "" {
		port = "5432"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		host,
		port,
		os.Getenv("POSTGRES_USER"),
		os.Getenv("POSTGRES_PASSWORD"),
		os.Getenv("POSTGRES_DB"),
	)
}
