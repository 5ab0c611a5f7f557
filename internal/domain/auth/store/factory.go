package store

import "fmt"

// Driver identifiers supported by the ephemeral store.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// New creates an ephemeral store based on the provided configuration.
func New(cfg Config) (Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = DriverMemory
	}

	switch driver {
	case DriverMemory:
		return NewMemory(cfg), nil
	case DriverRedis:
		return NewRedis(cfg)
	default:
		return nil, fmt.Errorf("unsupported ephemeral store driver: %s", driver)
	}
}
