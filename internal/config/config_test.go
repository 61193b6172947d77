package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(old) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 12, cfg.Forecast.DefaultHorizon)
	assert.Equal(t, 60, cfg.Forecast.MaxHorizon)
	assert.Equal(t, []int{1, 1, 1}, cfg.Forecast.ARIMAOrder)
	assert.Equal(t, "mean", cfg.Forecast.EnsembleMethod)
	assert.True(t, cfg.Forecast.YearlySeasonal)
	assert.False(t, cfg.Database.Enabled)
	assert.False(t, cfg.Redis.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "configs"), 0o755))
	yaml := `
environment: production
log_level: warn
forecast:
  default_horizon: 6
  ensemble_method: median
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "configs", "config.yaml"), []byte(yaml), 0o644))
	chdir(t, dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Environment)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, 6, cfg.Forecast.DefaultHorizon)
	assert.Equal(t, "median", cfg.Forecast.EnsembleMethod)
	// Non-overridden values keep their defaults.
	assert.Equal(t, 60, cfg.Forecast.MaxHorizon)
}

func TestLoadEnvOverride(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("DEMANDCAST_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			Forecast: ForecastConfig{
				DefaultHorizon: 12,
				MaxHorizon:     60,
				ARIMAOrder:     []int{1, 1, 1},
				RidgeLambda:    1.0,
				EnsembleMethod: "mean",
			},
			Redis: RedisConfig{CacheTTL: "15m"},
		}
	}

	assert.NoError(t, base().Validate())

	c := base()
	c.Forecast.DefaultHorizon = 0
	assert.Error(t, c.Validate())

	c = base()
	c.Forecast.MaxHorizon = 3
	assert.Error(t, c.Validate())

	c = base()
	c.Forecast.ARIMAOrder = []int{1, 1}
	assert.Error(t, c.Validate())

	c = base()
	c.Forecast.ARIMAOrder = []int{1, -1, 1}
	assert.Error(t, c.Validate())

	c = base()
	c.Forecast.RidgeLambda = -0.5
	assert.Error(t, c.Validate())

	c = base()
	c.Forecast.EnsembleMethod = "mode"
	assert.Error(t, c.Validate())

	c = base()
	c.Redis.Enabled = true
	c.Redis.CacheTTL = "often"
	assert.Error(t, c.Validate())
}

func TestCacheTTLDuration(t *testing.T) {
	c := &Config{Redis: RedisConfig{CacheTTL: "30m"}}
	assert.Equal(t, 30*time.Minute, c.CacheTTLDuration())

	c.Redis.CacheTTL = "bogus"
	assert.Equal(t, 15*time.Minute, c.CacheTTLDuration())
}

func TestConnectionString(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "demand", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=demand sslmode=disable", d.ConnectionString())
}

func TestRedisAddr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6379}
	assert.Equal(t, "cache:6379", r.Addr())
}
