package config

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	User     string         `yaml:"user" mapstructure:"user"`
	Resolver ResolverConfig `yaml:"resolver" mapstructure:"resolver"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Filter   FilterConfig   `yaml:"filter" mapstructure:"filter"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// ResolverConfig configures address resolution and the Nominatim client.
type ResolverConfig struct {
	UserAgent     string `yaml:"user_agent" mapstructure:"user_agent"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MinDelayMs    int    `yaml:"min_delay_ms" mapstructure:"min_delay_ms"`
	MaxJitterMs   int    `yaml:"max_jitter_ms" mapstructure:"max_jitter_ms"`
	TimeoutSecs   int    `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int    `yaml:"max_retries" mapstructure:"max_retries"`
	ErrorWaitSecs int    `yaml:"error_wait_secs" mapstructure:"error_wait_secs"`
	Workers       int    `yaml:"workers" mapstructure:"workers"`
	ChunkSize     int    `yaml:"chunk_size" mapstructure:"chunk_size"`
	ChunkPauseMs  int    `yaml:"chunk_pause_ms" mapstructure:"chunk_pause_ms"`
	Offline       bool   `yaml:"offline" mapstructure:"offline"`
}

// MinDelay returns the minimum spacing between geocoding calls.
func (r ResolverConfig) MinDelay() time.Duration {
	return time.Duration(r.MinDelayMs) * time.Millisecond
}

// MaxJitter returns the random addition applied on top of MinDelay.
func (r ResolverConfig) MaxJitter() time.Duration {
	return time.Duration(r.MaxJitterMs) * time.Millisecond
}

// Timeout returns the per-request HTTP timeout.
func (r ResolverConfig) Timeout() time.Duration {
	return time.Duration(r.TimeoutSecs) * time.Second
}

// ErrorWait returns the base delay between retry attempts.
func (r ResolverConfig) ErrorWait() time.Duration {
	return time.Duration(r.ErrorWaitSecs) * time.Second
}

// ChunkPause returns the idle time between resolution chunks.
func (r ResolverConfig) ChunkPause() time.Duration {
	return time.Duration(r.ChunkPauseMs) * time.Millisecond
}

// CacheConfig configures the persistent address cache.
type CacheConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// FilterConfig configures the tax class whitelist.
type FilterConfig struct {
	Classes []string `yaml:"classes" mapstructure:"classes"`
}

// StoreConfig configures the run archive backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// DSN returns the driver-appropriate connection string.
func (s StoreConfig) DSN() string {
	if s.Driver == "postgres" {
		return s.DatabaseURL
	}
	return s.Path
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("TAXROLL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("resolver.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("resolver.min_delay_ms", 1100)
	v.SetDefault("resolver.max_jitter_ms", 400)
	v.SetDefault("resolver.timeout_secs", 10)
	v.SetDefault("resolver.max_retries", 3)
	v.SetDefault("resolver.error_wait_secs", 5)
	v.SetDefault("resolver.workers", 3)
	v.SetDefault("resolver.chunk_size", 10)
	v.SetDefault("resolver.chunk_pause_ms", 1000)
	v.SetDefault("cache.path", "address_cache.json")
	v.SetDefault("filter.classes", []string{"CD", "B9", "B2", "B3", "C0", "B1", "C1", "A9", "C2"})
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "runs.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks constraints that cannot wait until first use. A
// missing user agent with geocoding enabled would get the client
// blocked by the Nominatim usage policy, so it fails here.
func (c *Config) Validate() error {
	if !c.Resolver.Offline && c.Resolver.UserAgent == "" {
		return eris.New("config: resolver.user_agent is required unless resolver.offline is set")
	}
	if len(c.Filter.Classes) == 0 {
		return eris.New("config: filter.classes must not be empty")
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
