package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")
	t.Setenv("DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "8000", cfg.Port)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "*.jsonl", cfg.TransportGlob)
	assert.Equal(t, "weather_*.jsonl", cfg.WeatherGlob)
	assert.Equal(t, "Europe/Berlin", cfg.Timezone)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: "9000"
data_dir: /var/lib/delays
timezone: UTC
allowed_origins:
  - https://dashboard.example
weather_timeout_seconds: 3
`), 0o644))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "9100")
	t.Setenv("ALLOWED_ORIGINS", "")
	t.Setenv("DATA_DIR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "9100", cfg.Port, "env wins over yaml")
	assert.Equal(t, "/var/lib/delays", cfg.DataDir)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, []string{"https://dashboard.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 3, cfg.WeatherTimeout)
	assert.Equal(t, 15, cfg.StationsTimeout, "unset keys keep defaults")
}

func TestLoad_UnknownYAMLKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("prot: 1\n"), 0o644))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_EnvParsing(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("WEATHER_LAT", "48.1")
	t.Setenv("REQUEST_TIMEOUT_SECONDS", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 48.1, cfg.WeatherLat)
	assert.Equal(t, 10, cfg.RequestTimeout)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Timezone = "Mars/Olympus"
	cfg.WeatherTimeout = 0
	cfg.DataDir = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TIMEZONE")
	assert.Contains(t, err.Error(), "WEATHER_TIMEOUT_SECONDS")
	assert.Contains(t, err.Error(), "DATA_DIR")
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DELAY_API_TEST_A=base\nDELAY_API_TEST_B=base\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.local"), []byte("DELAY_API_TEST_B=local\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("DELAY_API_TEST_A")
		os.Unsetenv("DELAY_API_TEST_B")
	})

	LoadDotEnv(dir)
	assert.Equal(t, "base", os.Getenv("DELAY_API_TEST_A"))
	assert.Equal(t, "local", os.Getenv("DELAY_API_TEST_B"))
}
