package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration for the forecasting service.
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Forecast    ForecastConfig `mapstructure:"forecast"`
}

type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ConnectionString builds a pgx-compatible DSN.
func (d DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
	CacheTTL string `mapstructure:"cache_ttl"`
}

// Addr returns the host:port pair for the Redis client.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// ForecastConfig controls model defaults used when a request does not
// override them.
type ForecastConfig struct {
	DefaultHorizon  int     `mapstructure:"default_horizon"`
	MaxHorizon      int     `mapstructure:"max_horizon"`
	ARIMAOrder      []int   `mapstructure:"arima_order"`
	RidgeLambda     float64 `mapstructure:"ridge_lambda"`
	EnsembleMethod  string  `mapstructure:"ensemble_method"`
	YearlySeasonal  bool    `mapstructure:"yearly_seasonal"`
	WeeklySeasonal  bool    `mapstructure:"weekly_seasonal"`
	DailySeasonal   bool    `mapstructure:"daily_seasonal"`
	MinSeriesLength int     `mapstructure:"min_series_length"`
}

// Load reads configuration from configs/config.yaml plus environment
// variables. A missing config file is not an error; env vars and defaults
// still apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	v.SetEnvPrefix("DEMANDCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
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

// Validate checks cross-field constraints that viper cannot express.
func (c *Config) Validate() error {
	if c.Forecast.DefaultHorizon <= 0 {
		return fmt.Errorf("forecast.default_horizon must be positive, got %d", c.Forecast.DefaultHorizon)
	}
	if c.Forecast.MaxHorizon < c.Forecast.DefaultHorizon {
		return fmt.Errorf("forecast.max_horizon (%d) must be >= default_horizon (%d)",
			c.Forecast.MaxHorizon, c.Forecast.DefaultHorizon)
	}
	if len(c.Forecast.ARIMAOrder) != 3 {
		return fmt.Errorf("forecast.arima_order must have exactly 3 elements, got %d", len(c.Forecast.ARIMAOrder))
	}
	for _, v := range c.Forecast.ARIMAOrder {
		if v < 0 {
			return fmt.Errorf("forecast.arima_order elements must be non-negative, got %v", c.Forecast.ARIMAOrder)
		}
	}
	if c.Forecast.RidgeLambda < 0 {
		return fmt.Errorf("forecast.ridge_lambda must be non-negative, got %f", c.Forecast.RidgeLambda)
	}
	switch c.Forecast.EnsembleMethod {
	case "mean", "median":
	default:
		return fmt.Errorf("forecast.ensemble_method must be mean or median, got %q", c.Forecast.EnsembleMethod)
	}
	if c.Redis.Enabled {
		if _, err := time.ParseDuration(c.Redis.CacheTTL); err != nil {
			return fmt.Errorf("redis.cache_ttl is not a valid duration: %w", err)
		}
	}
	return nil
}

// CacheTTLDuration returns the parsed Redis cache TTL, falling back to 15
// minutes when unset or invalid.
func (c *Config) CacheTTLDuration() time.Duration {
	d, err := time.ParseDuration(c.Redis.CacheTTL)
	if err != nil || d <= 0 {
		return 15 * time.Minute
	}
	return d
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "demandcast")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "demandcast")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.enabled", false)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.cache_ttl", "15m")

	v.SetDefault("forecast.default_horizon", 12)
	v.SetDefault("forecast.max_horizon", 60)
	v.SetDefault("forecast.arima_order", []int{1, 1, 1})
	v.SetDefault("forecast.ridge_lambda", 1.0)
	v.SetDefault("forecast.ensemble_method", "mean")
	v.SetDefault("forecast.yearly_seasonal", true)
	v.SetDefault("forecast.weekly_seasonal", false)
	v.SetDefault("forecast.daily_seasonal", false)
	v.SetDefault("forecast.min_series_length", 6)
}
