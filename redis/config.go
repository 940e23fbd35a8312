package redis

import (
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	// Addr is the Redis server address (host:port).
	Addr string `mapstructure:"addr" yaml:"addr"`

	// Password is the Redis server password.
	Password string `mapstructure:"password" yaml:"password"`

	// DB is the Redis database number.
	DB int `mapstructure:"db" yaml:"db"`

	// PoolSize is the maximum number of socket connections.
	PoolSize int `mapstructure:"pool_size" yaml:"pool_size"`

	// MaxRetries is the maximum number of command retries (0 = default 3).
	MaxRetries int `mapstructure:"max_retries" yaml:"max_retries"`

	// DialTimeout is the timeout for establishing new connections (e.g. "5s").
	DialTimeout string `mapstructure:"dial_timeout" yaml:"dial_timeout"`

	// ReadTimeout is the timeout for socket reads (e.g. "3s"). Blocking
	// pops extend it by their own timeout.
	ReadTimeout string `mapstructure:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the timeout for socket writes (e.g. "3s").
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// ApplyDefaults sets sensible defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = "localhost:6379"
	}
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be > 0")
	}
	for name, value := range map[string]string{
		"dial_timeout":  c.DialTimeout,
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, value, err)
		}
	}
	return nil
}

// ConfigFromTarget builds a Config from a connection target, either a
// redis:// (or rediss://) URL or a bare host:port address.
func ConfigFromTarget(target string) (Config, error) {
	if !strings.Contains(target, "://") {
		return Config{Addr: target}, nil
	}
	opts, err := goredis.ParseURL(target)
	if err != nil {
		return Config{}, fmt.Errorf("parse redis url: %w", err)
	}
	return Config{Addr: opts.Addr, Password: opts.Password, DB: opts.DB}, nil
}
