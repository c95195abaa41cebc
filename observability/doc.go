// Package observability sets up OpenTelemetry tracing.
//
//	shutdown, err := observability.InitTracer(ctx, cfg.Tracing, "api-gateway", version, env)
//	defer shutdown(ctx)
//
//	ctx, span := observability.StartSpan(ctx, observability.SpanForward)
//	defer span.End()
//
// Metrics are served by the metrics package in Prometheus format.
package observability
