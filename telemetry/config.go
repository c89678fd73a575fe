package telemetry

import (
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Protocol represents OTLP transport protocol
type Protocol string

const (
	ProtocolGRPC         Protocol = "grpc"
	ProtocolHTTPProtobuf Protocol = "http/protobuf"
)

// SignalType represents the OTEL signal type
type SignalType string

const (
	SignalTraces  SignalType = "traces"
	SignalMetrics SignalType = "metrics"
)

// ExporterConfig holds parsed OTLP exporter configuration for a signal
type ExporterConfig struct {
	Endpoint    string
	Protocol    Protocol
	Headers     map[string]string
	Timeout     time.Duration
	Insecure    bool
	Compression string
}

// IsTracingEnabled returns true if OTEL tracing is enabled
func IsTracingEnabled() bool {
	return isTrue(getEnv("OTEL_TRACING_ENABLED", "false"))
}

// IsMetricsEnabled returns true if OTEL metrics is enabled
func IsMetricsEnabled() bool {
	return isTrue(getEnv("OTEL_METRICS_ENABLED", "false"))
}

// GetExporterConfig resolves the exporter configuration for a signal.
// Signal-specific variables (OTEL_EXPORTER_OTLP_METRICS_*) win over the base
// OTEL_EXPORTER_OTLP_* variables.
func GetExporterConfig(signal SignalType) ExporterConfig {
	signalUpper := strings.ToUpper(string(signal))

	protocol := ProtocolHTTPProtobuf
	if strings.EqualFold(getEnvWithFallback(
		"OTEL_EXPORTER_OTLP_"+signalUpper+"_PROTOCOL",
		"OTEL_EXPORTER_OTLP_PROTOCOL",
		"http/protobuf",
	), "grpc") {
		protocol = ProtocolGRPC
	}

	endpoint := resolveEndpoint(signal, signalUpper, protocol)

	headers := parseHeaders(getEnvWithFallback(
		"OTEL_EXPORTER_OTLP_"+signalUpper+"_HEADERS",
		"OTEL_EXPORTER_OTLP_HEADERS",
		"",
	))

	timeout := parseDuration(getEnvWithFallback(
		"OTEL_EXPORTER_OTLP_"+signalUpper+"_TIMEOUT",
		"OTEL_EXPORTER_OTLP_TIMEOUT",
		"10s",
	), 10*time.Second)

	insecure := strings.HasPrefix(endpoint, "http://")
	if v := getEnvWithFallback(
		"OTEL_EXPORTER_OTLP_"+signalUpper+"_INSECURE",
		"OTEL_EXPORTER_OTLP_INSECURE",
		"",
	); v != "" {
		insecure = isTrue(v)
	}

	return ExporterConfig{
		Endpoint: endpoint,
		Protocol: protocol,
		Headers:  headers,
		Timeout:  timeout,
		Insecure: insecure,
		Compression: getEnvWithFallback(
			"OTEL_EXPORTER_OTLP_"+signalUpper+"_COMPRESSION",
			"OTEL_EXPORTER_OTLP_COMPRESSION",
			"",
		),
	}
}

func resolveEndpoint(signal SignalType, signalUpper string, protocol Protocol) string {
	// Signal-specific endpoint is used as-is
	if ep := getEnv("OTEL_EXPORTER_OTLP_"+signalUpper+"_ENDPOINT", ""); ep != "" {
		return normalizeEndpoint(ep, protocol)
	}

	if base := getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""); base != "" {
		return appendSignalPath(normalizeEndpoint(base, protocol), signal, protocol)
	}

	if protocol == ProtocolGRPC {
		return "localhost:4317"
	}
	return "http://localhost:4318/v1/" + string(signal)
}

// normalizeEndpoint strips scheme and path for gRPC and adds a scheme for HTTP
func normalizeEndpoint(endpoint string, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		endpoint = strings.TrimPrefix(endpoint, "http://")
		endpoint = strings.TrimPrefix(endpoint, "https://")
		if idx := strings.Index(endpoint, "/"); idx != -1 {
			endpoint = endpoint[:idx]
		}
		return endpoint
	}

	if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
		endpoint = "https://" + endpoint
	}
	return endpoint
}

func appendSignalPath(endpoint string, signal SignalType, protocol Protocol) string {
	if protocol == ProtocolGRPC {
		return endpoint
	}

	signalPath := "/v1/" + string(signal)
	u, err := url.Parse(endpoint)
	if err != nil {
		return strings.TrimSuffix(endpoint, "/") + signalPath
	}
	if strings.HasSuffix(u.Path, signalPath) {
		return endpoint
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + signalPath
	return u.String()
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvWithFallback(signalSpecific, base, defaultValue string) string {
	if value := os.Getenv(signalSpecific); value != "" {
		return value
	}
	if value := os.Getenv(base); value != "" {
		return value
	}
	return defaultValue
}

func isTrue(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// parseHeaders parses "key1=value1,key2=value2"; values keep any '=' they contain
func parseHeaders(headerStr string) map[string]string {
	headers := make(map[string]string)
	if headerStr == "" {
		return headers
	}

	for _, pair := range strings.Split(headerStr, ",") {
		pair = strings.TrimSpace(pair)
		if idx := strings.Index(pair, "="); idx > 0 {
			key := strings.TrimSpace(pair[:idx])
			headers[key] = pair[idx+1:]
			slog.Debug("Parsed OTEL header", "key", key)
		}
	}
	return headers
}

// parseDuration accepts Go durations ("10s") and OTEL milliseconds ("10000")
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(s); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return defaultVal
}
