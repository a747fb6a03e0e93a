package config

import (
	"fmt"
)

// Environment variable names for lockroot configuration
const (
	EnvStoreType     = "LOCKROOT_STORE"
	EnvDataDir       = "LOCKROOT_DATA_DIR"
	EnvRedisAddress  = "LOCKROOT_REDIS_ADDRESS"
	EnvRedisPassword = "LOCKROOT_REDIS_PASSWORD"
	EnvRedisDB       = "LOCKROOT_REDIS_DB"
	EnvVerbose       = "LOCKROOT_VERBOSE"
)

// StoreType selects the snapshot store backend.
type StoreType string

func (s StoreType) String() string {
	return string(s)
}

const (
	StoreTypeMemory StoreType = "memory"
	StoreTypeBadger StoreType = "badger"
	StoreTypeRedis  StoreType = "redis"
)

// ParseStoreType converts a string into a StoreType.
func ParseStoreType(s string) (StoreType, error) {
	switch StoreType(s) {
	case StoreTypeMemory:
		return StoreTypeMemory, nil
	case StoreTypeBadger:
		return StoreTypeBadger, nil
	case StoreTypeRedis:
		return StoreTypeRedis, nil
	default:
		return "", fmt.Errorf("unsupported store type: %s (supported: memory, badger, redis)", s)
	}
}

// Config represents the complete configuration for lockroot commands that
// touch the snapshot store.
type Config struct {
	// Store backend selection
	StoreType StoreType `json:"store_type"`

	// DataDir is the Badger database directory (badger store only)
	DataDir string `json:"data_dir,omitempty"`

	// Redis connection settings (redis store only)
	RedisAddress  string `json:"redis_address,omitempty"`
	RedisPassword string `json:"redis_password,omitempty"`
	RedisDB       int    `json:"redis_db,omitempty"`

	// Operational settings
	Verbose bool `json:"verbose"`
}

// Validate validates the configuration for the selected store backend.
func (c *Config) Validate() error {
	switch c.StoreType {
	case StoreTypeMemory:
		// No further settings required

	case StoreTypeBadger:
		if c.DataDir == "" {
			return fmt.Errorf("data dir cannot be empty for the badger store (set --data-dir or %s)", EnvDataDir)
		}

	case StoreTypeRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("redis address cannot be empty for the redis store (set --redis-address or %s)", EnvRedisAddress)
		}
		if c.RedisDB < 0 || c.RedisDB > 15 {
			return fmt.Errorf("redis db must be between 0-15, got %d", c.RedisDB)
		}

	default:
		return fmt.Errorf("unsupported store type: %s", c.StoreType)
	}

	return nil
}
