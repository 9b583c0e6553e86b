package tracing

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Init installs the W3C propagator and, when endpoint is non-empty, an OTLP
// gRPC span exporter. The returned shutdown must be called on exit.
func Init(ctx context.Context, endpoint, service string) (func(context.Context) error, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if endpoint == "" {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create otlp exporter: %w", err)
	}

	res := resource.NewWithAttributes("",
		attribute.String("service.name", service),
	)

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}

// propagationKeys are the custom-property names carried on every job.
var propagationKeys = []string{"traceparent", "tracestate", "baggage"}

// InjectMap serializes the current span context into a fresh map suitable
// for a job's custom properties.
func InjectMap(ctx context.Context) map[string]interface{} {
	carrier := propagation.MapCarrier{}
	otel.GetTextMapPropagator().Inject(ctx, carrier)

	out := make(map[string]interface{}, len(carrier))
	for _, k := range carrier.Keys() {
		out[k] = carrier.Get(k)
	}
	return out
}

// ExtractCustom attaches a remote parent span to ctx using lookup over a
// consumed job's custom properties. Non-string values are ignored.
func ExtractCustom(ctx context.Context, lookup func(key string) (interface{}, bool)) context.Context {
	carrier := propagation.MapCarrier{}
	for _, key := range propagationKeys {
		v, ok := lookup(key)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok && s != "" {
			carrier.Set(key, s)
		}
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
