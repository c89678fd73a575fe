package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the delay API and historyctl
type Config struct {
	// Server
	Port           string   `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	StaticDir      string   `yaml:"static_dir"`
	RequestTimeout int      `yaml:"request_timeout_seconds"`

	// History snapshot
	DataDir        string `yaml:"data_dir"`
	TransportGlob  string `yaml:"transport_glob"`
	WeatherGlob    string `yaml:"weather_glob"`
	Timezone       string `yaml:"timezone"`
	SnapshotDBPath string `yaml:"snapshot_db_path"`

	// Prediction models
	ModelDir string `yaml:"model_dir"`

	// Station directory
	StationsCacheFile   string `yaml:"stations_cache_file"`
	StationsDatabaseURL string `yaml:"stations_database_url"`
	GeofoxURL           string `yaml:"geofox_url"`
	GTIUser             string `yaml:"gti_user"`
	GTIPassword         string `yaml:"gti_password"`
	StationsTimeout     int    `yaml:"stations_timeout_seconds"`

	// Current weather
	WeatherURL     string  `yaml:"weather_url"`
	WeatherLat     float64 `yaml:"weather_lat"`
	WeatherLon     float64 `yaml:"weather_lon"`
	WeatherTimeout int     `yaml:"weather_timeout_seconds"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Port:           "8000",
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		RequestTimeout: 10,

		DataDir:       "data",
		TransportGlob: "*.jsonl",
		WeatherGlob:   "weather_*.jsonl",
		Timezone:      "Europe/Berlin",

		ModelDir: "models",

		StationsCacheFile: "data/stations_cache.json",
		GeofoxURL:         "https://gti.geofox.de",
		StationsTimeout:   15,

		WeatherURL:     "https://api.open-meteo.com",
		WeatherLat:     53.5511,
		WeatherLon:     9.9937,
		WeatherTimeout: 5,
	}
}

// LoadDotEnv loads .env then lets .env.local override it. Missing files are ignored.
func LoadDotEnv(dir string) {
	_ = godotenv.Load(joinPath(dir, ".env"))
	_ = godotenv.Overload(joinPath(dir, ".env.local"))
}

// Load builds the configuration from defaults, the optional YAML file named by
// CONFIG_FILE, and environment variables, in increasing precedence.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) loadYAML(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	// Server
	c.Port = getEnv("PORT", c.Port)
	c.AllowedOrigins = getEnvList("ALLOWED_ORIGINS", c.AllowedOrigins)
	c.StaticDir = getEnv("STATIC_DIR", c.StaticDir)
	c.RequestTimeout = getEnvInt("REQUEST_TIMEOUT_SECONDS", c.RequestTimeout)

	// History snapshot
	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.TransportGlob = getEnv("TRANSPORT_GLOB", c.TransportGlob)
	c.WeatherGlob = getEnv("WEATHER_GLOB", c.WeatherGlob)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)
	c.SnapshotDBPath = getEnv("SNAPSHOT_DB_PATH", c.SnapshotDBPath)

	// Prediction models
	c.ModelDir = getEnv("MODEL_DIR", c.ModelDir)

	// Station directory
	c.StationsCacheFile = getEnv("STATIONS_CACHE_FILE", c.StationsCacheFile)
	c.StationsDatabaseURL = getEnv("STATIONS_DATABASE_URL", c.StationsDatabaseURL)
	c.GeofoxURL = getEnv("GEOFOX_URL", c.GeofoxURL)
	c.GTIUser = getEnv("GTI_USER", c.GTIUser)
	c.GTIPassword = getEnv("GTI_PASSWORD", c.GTIPassword)
	c.StationsTimeout = getEnvInt("STATIONS_TIMEOUT_SECONDS", c.StationsTimeout)

	// Current weather
	c.WeatherURL = getEnv("WEATHER_URL", c.WeatherURL)
	c.WeatherLat = getEnvFloat("WEATHER_LAT", c.WeatherLat)
	c.WeatherLon = getEnvFloat("WEATHER_LON", c.WeatherLon)
	c.WeatherTimeout = getEnvInt("WEATHER_TIMEOUT_SECONDS", c.WeatherTimeout)
}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	var errs []error
	if c.DataDir == "" {
		errs = append(errs, errors.New("DATA_DIR must not be empty"))
	}
	if c.TransportGlob == "" {
		errs = append(errs, errors.New("TRANSPORT_GLOB must not be empty"))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err))
	}
	for name, v := range map[string]int{
		"REQUEST_TIMEOUT_SECONDS":  c.RequestTimeout,
		"STATIONS_TIMEOUT_SECONDS": c.StationsTimeout,
		"WEATHER_TIMEOUT_SECONDS":  c.WeatherTimeout,
	} {
		if v <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, v))
		}
	}
	return errors.Join(errs...)
}

// Location returns the configured time zone, falling back to UTC
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Timeout helpers

func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) StationsTimeoutDuration() time.Duration {
	return time.Duration(c.StationsTimeout) * time.Second
}

func (c *Config) WeatherTimeoutDuration() time.Duration {
	return time.Duration(c.WeatherTimeout) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated value, dropping empty entries
func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func joinPath(dir, name string) string {
	if dir == "" {
		return name
	}
	return strings.TrimSuffix(dir, "/") + "/" + name
}
