package telemetry

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ServiceName is the name reported to the telemetry backend
const ServiceName = "delay-api"

// Version is set at build time via -ldflags
// e.g., go build -ldflags="-X github.com/dbpranger/delay-api/telemetry.Version=1.2.3"
var Version = "dev"

// NewResource creates the resource shared by the tracer and meter providers
func NewResource() (*resource.Resource, error) {
	instanceID := os.Getenv("OTEL_SERVICE_INSTANCE_ID")
	if instanceID == "" {
		if hostname, err := os.Hostname(); err == nil && hostname != "" {
			instanceID = hostname
		} else {
			instanceID = fmt.Sprintf("%s-%d", ServiceName, os.Getpid())
		}
	}

	return resource.New(context.Background(),
		resource.WithFromEnv(),
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithAttributes(
			semconv.ServiceName(ServiceName),
			semconv.ServiceVersion(Version),
			semconv.ServiceNamespace(getEnv("OTEL_SERVICE_NAMESPACE", "transit")),
			semconv.ServiceInstanceID(instanceID),
			semconv.DeploymentEnvironment(getEnv("OTEL_DEPLOYMENT_ENVIRONMENT", "production")),
			semconv.ProcessRuntimeName("go"),
			semconv.ProcessRuntimeVersion(runtime.Version()),
		),
	)
}
