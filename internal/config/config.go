// Package config loads service configuration from the environment into a
// typed struct. Defaults are applied first, then overridden by any
// DASHCOLLAB_-prefixed environment variables (e.g. DASHCOLLAB_LISTEN_ADDR).
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "DASHCOLLAB_"

// Config is the full service configuration.
type Config struct {
	// ListenAddr is the HTTP listen address.
	ListenAddr string `koanf:"listen_addr"`
	// JWTSecret signs the anonymous session tokens. Must be set outside
	// local development.
	JWTSecret string `koanf:"jwt_secret"`

	Redis     RedisConfig     `koanf:"redis"`
	RateLimit RateLimitConfig `koanf:"rate_limit"`
	Room      RoomConfig      `koanf:"room"`
	Log       LogConfig       `koanf:"log"`
}

// RedisConfig configures the redis client backing the rate limiter.
type RedisConfig struct {
	Addr     string `koanf:"addr"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// RateLimitConfig is a fixed-window per-IP limit on the HTTP surface.
type RateLimitConfig struct {
	Enabled     bool          `koanf:"enabled"`
	MaxRequests int           `koanf:"max_requests"`
	Window      time.Duration `koanf:"window"`
}

// RoomConfig controls room eviction.
type RoomConfig struct {
	// IdleTTL is how long an empty room survives without activity before
	// the sweeper deletes it.
	IdleTTL time.Duration `koanf:"idle_ttl"`
	// SweepInterval is the sweeper period.
	SweepInterval time.Duration `koanf:"sweep_interval"`
}

// LogConfig configures the global logger.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// Default returns the configuration used when no environment overrides exist.
func Default() Config {
	return Config{
		ListenAddr: ":8080",
		JWTSecret:  "local-dev-secret",
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			MaxRequests: 30,
			Window:      time.Second,
		},
		Room: RoomConfig{
			IdleTTL:       5 * time.Minute,
			SweepInterval: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load builds the configuration from defaults plus the environment.
func Load() (Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("load defaults: %w", err)
	}

	// DASHCOLLAB_ROOM__IDLE_TTL -> room.idle_ttl. Nested keys use a double
	// underscore so single underscores survive inside key names.
	err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Room.IdleTTL <= 0 {
		return fmt.Errorf("room idle_ttl must be positive, got %s", c.Room.IdleTTL)
	}
	if c.Room.SweepInterval <= 0 {
		return fmt.Errorf("room sweep_interval must be positive, got %s", c.Room.SweepInterval)
	}
	if c.RateLimit.Enabled && c.RateLimit.MaxRequests <= 0 {
		return fmt.Errorf("rate_limit max_requests must be positive, got %d", c.RateLimit.MaxRequests)
	}
	return nil
}
