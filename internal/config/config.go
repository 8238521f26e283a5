// Package config loads and sanitizes the server configuration from defaults,
// an optional config file, and ROOST_* environment overrides.
package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// RateLimit defines the per-connection token bucket parameters.
type RateLimit struct {
	Burst          int
	RefillInterval time.Duration
}

// Idle defines the idle monitor sweep parameters.
type Idle struct {
	SweepInterval time.Duration
	Threshold     time.Duration
}

// Config holds every runtime setting of the server.
type Config struct {
	ListenAddr      string
	AllowedOrigins  []string
	MaxMessageSize  int64
	DatabasePath    string
	TokenTTL        time.Duration
	ShutdownTimeout time.Duration
	LogLevel        string
	RateLimit       RateLimit
	Idle            Idle
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:8080"})
	v.SetDefault("server.max_message_size", 4096)
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("db.path", "roost.db")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("log.level", "info")
	v.SetDefault("rate_limit.burst", 10)
	v.SetDefault("rate_limit.refill_interval", "1s")
	v.SetDefault("idle.sweep_interval", "60s")
	v.SetDefault("idle.threshold", "10m")
}

// Load reads configuration from the optional file at path (a roost.yaml in
// the working directory when path is empty) plus environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("ROOST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	} else {
		v.SetConfigName("roost")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, err
			}
		}
	}

	cfg := &Config{
		ListenAddr:      v.GetString("server.listen_addr"),
		AllowedOrigins:  v.GetStringSlice("server.allowed_origins"),
		MaxMessageSize:  v.GetInt64("server.max_message_size"),
		ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		DatabasePath:    v.GetString("db.path"),
		TokenTTL:        v.GetDuration("auth.token_ttl"),
		LogLevel:        v.GetString("log.level"),
		RateLimit: RateLimit{
			Burst:          v.GetInt("rate_limit.burst"),
			RefillInterval: v.GetDuration("rate_limit.refill_interval"),
		},
		Idle: Idle{
			SweepInterval: v.GetDuration("idle.sweep_interval"),
			Threshold:     v.GetDuration("idle.threshold"),
		},
	}
	cfg.sanitize()
	return cfg, nil
}

// Default returns the built-in configuration without touching files or env.
func Default() *Config {
	cfg := &Config{
		ListenAddr:      ":8080",
		AllowedOrigins:  []string{"http://localhost:8080"},
		MaxMessageSize:  4096,
		ShutdownTimeout: 10 * time.Second,
		DatabasePath:    "roost.db",
		TokenTTL:        24 * time.Hour,
		LogLevel:        "info",
		RateLimit:       RateLimit{Burst: 10, RefillInterval: time.Second},
		Idle:            Idle{SweepInterval: 60 * time.Second, Threshold: 10 * time.Minute},
	}
	return cfg
}

// sanitize replaces out-of-range values with defaults rather than failing,
// so a partial config file still yields a runnable server.
func (c *Config) sanitize() {
	def := Default()
	if c.ListenAddr == "" {
		c.ListenAddr = def.ListenAddr
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = def.MaxMessageSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = def.ShutdownTimeout
	}
	if c.DatabasePath == "" {
		c.DatabasePath = def.DatabasePath
	}
	if c.TokenTTL <= 0 {
		c.TokenTTL = def.TokenTTL
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = def.RateLimit.Burst
	}
	if c.RateLimit.RefillInterval <= 0 {
		c.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if c.Idle.SweepInterval <= 0 {
		c.Idle.SweepInterval = def.Idle.SweepInterval
	}
	if c.Idle.Threshold <= 0 {
		c.Idle.Threshold = def.Idle.Threshold
	}
	origins := make([]string, 0, len(c.AllowedOrigins))
	for _, o := range c.AllowedOrigins {
		if trimmed := strings.TrimSpace(o); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	c.AllowedOrigins = origins
}
