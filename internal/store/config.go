package store

import (
	"errors"
	"time"
)

// Config holds local store settings
type Config struct {
	Path            string        `json:"path" mapstructure:"path"`
	MaxConnections  int           `json:"max_connections" mapstructure:"max_connections"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
	WriteTimeout    time.Duration `json:"write_timeout" mapstructure:"write_timeout"`
	RetryDelay      time.Duration `json:"retry_delay" mapstructure:"retry_delay"`
}

// DefaultConfig returns the settings used by the CLI and gateway.
// FUNCTIONAL DISCOVERY: one user's credentials and warnings never need more
// than a handful of connections
func DefaultConfig() *Config {
	return &Config{
		Path:            "./data/mentorhub.db",
		MaxConnections:  4,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		WriteTimeout:    30 * time.Second,
		RetryDelay:      time.Second,
	}
}

// Validate ensures the configuration is usable
func (c *Config) Validate() error {
	if c.Path == "" {
		return errors.New("store path cannot be empty")
	}
	if c.MaxConnections <= 0 {
		return errors.New("store max connections must be greater than 0")
	}
	if c.ConnMaxLifetime <= 0 {
		return errors.New("store connection max lifetime must be greater than 0")
	}
	if c.ConnMaxIdleTime <= 0 {
		return errors.New("store connection max idle time must be greater than 0")
	}
	if c.WriteTimeout <= 0 {
		return errors.New("store write timeout must be greater than 0")
	}
	if c.RetryDelay < 0 {
		return errors.New("store retry delay cannot be negative")
	}
	return nil
}
