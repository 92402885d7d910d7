// Package metrics wires the process-wide OpenTelemetry metrics pipeline.
// Individual packages (currently only jobs) declare their own
// instruments against otel.Meter(...) at init time; the global provider is
// a no-op until Init runs, so those instruments compile and increment
// safely in tests without an exporter attached.
package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
)

// Init starts a periodic stdout metric exporter and installs it as the
// global MeterProvider. The returned shutdown func flushes and stops the
// exporter; callers should defer it.
func Init(interval time.Duration) (shutdown func(context.Context) error, err error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, err
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(resource.NewSchemaless(attribute.String("service.name", "clinotect"))),
	)
	otel.SetMeterProvider(provider)
	return provider.Shutdown, nil
}
