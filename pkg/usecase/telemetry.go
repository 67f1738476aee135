package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/m-mizutani/cistat"

// Tracer returns the tracer of the globally registered provider, a no-op
// unless SetupTracing installed an exporter.
func Tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}

func noopTracer() trace.Tracer {
	return Tracer()
}

// SetupTracing installs an OTLP/HTTP tracer provider configured from the
// standard OTEL_EXPORTER_OTLP_* environment variables. The returned function
// flushes pending spans and must be called before exit.
func SetupTracing(ctx context.Context, serviceName string) (func(context.Context) error, error) {
	r, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to build telemetry resource")
	}

	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create OTLP exporter")
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(r),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})

	return tp.Shutdown, nil
}
