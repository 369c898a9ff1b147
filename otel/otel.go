// Package otel installs the OpenTelemetry tracer provider of a battery run
// and wraps span creation for the rest of pagecheck.
package otel

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.20.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	serviceName = "pagecheck"
	tracerName  = "pagecheck"
)

// ErrInvalidEndpoint is returned for collector endpoints that can't be used.
var ErrInvalidEndpoint = errors.New("invalid trace endpoint")

// Exporter says where the spans of a run are sent.
type Exporter struct {
	// Endpoint is an OTLP/HTTP collector, either host:port or an http(s)
	// URL. A URL path replaces the default /v1/traces. Empty disables
	// exporting.
	Endpoint string
	// Insecure sends host:port endpoints over plain HTTP. http:// URLs are
	// always plain.
	Insecure bool
	// RunID is recorded on every span's resource.
	RunID string
}

// Provider is the tracer provider installed for a run.
type Provider struct {
	trace.TracerProvider

	shutdown func(ctx context.Context) error
}

// Install builds the provider described by exp and makes it the global one.
func Install(ctx context.Context, exp Exporter) (*Provider, error) {
	if exp.Endpoint == "" {
		prov := noop.NewTracerProvider()
		otel.SetTracerProvider(prov)
		return &Provider{TracerProvider: prov}, nil
	}

	ep, err := parseEndpoint(exp.Endpoint, exp.Insecure)
	if err != nil {
		return nil, err
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(ep.host)}
	if ep.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	if ep.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(ep.path))
	}

	exporter, err := otlptrace.New(ctx, otlptracehttp.NewClient(opts...))
	if err != nil {
		return nil, fmt.Errorf("creating trace exporter: %w", err)
	}
	prov := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(newResource(exp.RunID)),
	)
	otel.SetTracerProvider(prov)

	return &Provider{TracerProvider: prov, shutdown: prov.Shutdown}, nil
}

// Shutdown flushes pending spans. It is a no-op for a provider that doesn't
// export.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

type endpoint struct {
	host     string
	path     string
	insecure bool
}

func parseEndpoint(raw string, insecure bool) (endpoint, error) {
	if !strings.Contains(raw, "://") {
		if strings.ContainsAny(raw, "/ ") {
			return endpoint{}, fmt.Errorf("%w %q: want host:port or a URL", ErrInvalidEndpoint, raw)
		}
		return endpoint{host: raw, insecure: insecure}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return endpoint{}, fmt.Errorf("%w %q: %w", ErrInvalidEndpoint, raw, err)
	}
	ep := endpoint{host: u.Host, insecure: insecure}
	switch u.Scheme {
	case "http":
		ep.insecure = true
	case "https":
	default:
		return endpoint{}, fmt.Errorf("%w %q: scheme must be http or https", ErrInvalidEndpoint, raw)
	}
	if ep.host == "" {
		return endpoint{}, fmt.Errorf("%w %q: missing host", ErrInvalidEndpoint, raw)
	}
	if u.Path != "" && u.Path != "/" {
		ep.path = u.Path
	}

	return ep, nil
}

func newResource(runID string) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(serviceName)}
	if runID != "" {
		attrs = append(attrs, attribute.String("pagecheck.run_id", runID))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

// Trace starts a span named spanName, a child of the span in ctx if there is
// one. The span must be ended, usually with End.
func Trace(ctx context.Context, spanName string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, spanName, opts...)
}

// End records err on span, if any, and ends it.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// CheckAttributes are the attributes attached to a check's span.
func CheckAttributes(name, description string) trace.SpanStartOption {
	return trace.WithAttributes(
		attribute.String("check.name", name),
		attribute.String("check.description", description),
	)
}

// URLAttribute is the attribute attached to a navigation span.
func URLAttribute(siteURL string) trace.SpanStartOption {
	return trace.WithAttributes(attribute.String("url.full", siteURL))
}
