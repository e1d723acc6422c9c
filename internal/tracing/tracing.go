package tracing

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"

	"github.com/therealutkarshpriyadarshi/sourcing/internal/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Init installs a Jaeger tracer as the global tracer. With tracing disabled
// the opentracing no-op tracer stays in place and Close does nothing.
func Init(cfg config.TracingConfig) (io.Closer, error) {
	if !cfg.Enabled {
		return nopCloser{}, nil
	}
	_, closer, err := InitTracer(cfg)
	return closer, err
}

// InitTracer builds the Jaeger tracer for cfg and makes it global. A
// SampleRate in (0,1) samples probabilistically, anything else samples all.
func InitTracer(cfg config.TracingConfig) (opentracing.Tracer, io.Closer, error) {
	sampler := &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeConst, Param: 1}
	if cfg.SampleRate > 0 && cfg.SampleRate < 1 {
		sampler = &jaegercfg.SamplerConfig{Type: jaeger.SamplerTypeProbabilistic, Param: cfg.SampleRate}
	}

	tracer, closer, err := (&jaegercfg.Configuration{
		ServiceName: cfg.ServiceName,
		Sampler:     sampler,
		Reporter:    &jaegercfg.ReporterConfig{CollectorEndpoint: cfg.Endpoint},
	}).NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create jaeger tracer for %s: %w", cfg.ServiceName, err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}

// StartClientSpan starts a span for an outbound HTTP call
func StartClientSpan(ctx context.Context, operationName, method, url string) (opentracing.Span, context.Context) {
	span, ctx := opentracing.StartSpanFromContext(ctx, operationName, ext.SpanKindRPCClient)
	ext.HTTPMethod.Set(span, method)
	ext.HTTPUrl.Set(span, url)
	return span, ctx
}

// Inject writes the span context of ctx into outbound request headers
func Inject(ctx context.Context, header http.Header) {
	span := opentracing.SpanFromContext(ctx)
	if span == nil {
		return
	}
	span.Tracer().Inject(span.Context(), opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(header))
}

// StartServerSpan starts a span for an inbound request, continuing the
// caller's trace when its headers carry one.
func StartServerSpan(r *http.Request, operationName string) (opentracing.Span, context.Context) {
	tracer := opentracing.GlobalTracer()
	parent, err := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(r.Header))

	opts := []opentracing.StartSpanOption{ext.SpanKindRPCServer}
	if err == nil {
		opts = append(opts, ext.RPCServerOption(parent))
	}
	span := tracer.StartSpan(operationName, opts...)
	ext.HTTPMethod.Set(span, r.Method)
	ext.HTTPUrl.Set(span, r.URL.Path)
	return span, opentracing.ContextWithSpan(r.Context(), span)
}

func FinishSpan(span opentracing.Span) {
	if span != nil {
		span.Finish()
	}
}

// LogError marks span as failed; nil errors are ignored
func LogError(span opentracing.Span, err error) {
	if span == nil || err == nil {
		return
	}
	ext.LogError(span, err)
}

func SetTag(span opentracing.Span, key string, value interface{}) {
	if span != nil {
		span.SetTag(key, value)
	}
}
