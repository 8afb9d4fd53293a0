package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Game        GameConfig        `mapstructure:"game"`
	Store       StoreConfig       `mapstructure:"store"`
	Auth        AuthConfig        `mapstructure:"auth"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Development DevelopmentConfig `mapstructure:"development"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GameConfig holds the clock used when a create request omits one and the
// registry housekeeping intervals.
type GameConfig struct {
	DefaultMinutes   int           `mapstructure:"default_minutes"`
	DefaultIncrement int           `mapstructure:"default_increment"`
	AbandonTimeout   time.Duration `mapstructure:"abandon_timeout"`
	SnapshotInterval time.Duration `mapstructure:"snapshot_interval"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"`
	Dir         string `mapstructure:"dir"`
	RedisURL    string `mapstructure:"redis_url"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

type AuthConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret"`
	Issuer    string `mapstructure:"issuer"`
}

// RateLimitConfig caps requests per client IP within a sliding minute.
type RateLimitConfig struct {
	CreatePerMinute    int `mapstructure:"create_per_minute"`
	WebSocketPerMinute int `mapstructure:"websocket_per_minute"`
}

type DevelopmentConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("game.default_minutes", 10)
	v.SetDefault("game.default_increment", 0)
	v.SetDefault("game.abandon_timeout", "30m")
	v.SetDefault("game.snapshot_interval", "30s")
	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.dir", "./data/games")
	v.SetDefault("store.redis_url", "")
	v.SetDefault("store.postgres_dsn", "")
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("rate_limit.create_per_minute", 5)
	v.SetDefault("rate_limit.websocket_per_minute", 30)
	v.SetDefault("development.debug", false)
	v.SetDefault("development.log_level", "info")
}

// Load reads config.yaml from the working directory or ./config, then
// applies CHESSD_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file path.
func LoadFile(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Enable environment variables
	v.SetEnvPrefix("CHESSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate catches settings that would only fail later at first use.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "file", "redis", "postgres":
	default:
		return fmt.Errorf("store.driver must be one of memory, file, redis, postgres; got %q", c.Store.Driver)
	}
	if c.Auth.Enabled && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth is enabled")
	}
	if c.Game.DefaultMinutes <= 0 || c.Game.DefaultIncrement < 0 {
		return fmt.Errorf("invalid default time control %d+%d", c.Game.DefaultMinutes, c.Game.DefaultIncrement)
	}
	return nil
}
