package profiling

import (
	"log/slog"
	"os"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// InitProfiling starts continuous profiling when PYROSCOPE_PROFILING_ENABLED is
// set. The returned function stops the profiler; it is a no-op otherwise.
func InitProfiling(version string) func() {
	if !isTrue(getEnv("PYROSCOPE_PROFILING_ENABLED", "false")) {
		slog.Debug("Pyroscope profiling is disabled")
		return func() {}
	}

	serverAddress := getEnv("PYROSCOPE_SERVER_ADDRESS", "http://localhost:4040")
	applicationName := getEnv("PYROSCOPE_APPLICATION_NAME", "delay-api")

	config := pyroscope.Config{
		ApplicationName: applicationName,
		ServerAddress:   serverAddress,
		Logger:          pyroscope.StandardLogger,
		Tags: map[string]string{
			"service": "delay-api",
			"version": version,
		},
		ProfileTypes: []pyroscope.ProfileType{
			pyroscope.ProfileCPU,
			pyroscope.ProfileAllocObjects,
			pyroscope.ProfileAllocSpace,
			pyroscope.ProfileInuseObjects,
			pyroscope.ProfileInuseSpace,
		},
	}

	basicAuthUser := getEnv("PYROSCOPE_BASIC_AUTH_USER", "")
	basicAuthPassword := getEnv("PYROSCOPE_BASIC_AUTH_PASSWORD", "")
	if basicAuthUser != "" && basicAuthPassword != "" {
		config.BasicAuthUser = basicAuthUser
		config.BasicAuthPassword = basicAuthPassword
	}

	profiler, err := pyroscope.Start(config)
	if err != nil {
		slog.Warn("Failed to start Pyroscope profiler", "error", err)
		return func() {}
	}

	slog.Info("Pyroscope profiling started", "server", serverAddress, "application", applicationName)

	return func() {
		if err := profiler.Stop(); err != nil {
			slog.Error("Error stopping Pyroscope profiler", "error", err)
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}
