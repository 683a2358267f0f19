// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Provider owns the tracer provider built from a TracingConfig.
type Provider struct {
	sdk  *sdktrace.TracerProvider
	noop trace.TracerProvider
}

// Option customizes Setup.
type Option func(*setupOptions)

type setupOptions struct {
	consoleWriter io.Writer
	global        bool
}

// WithConsoleWriter sends console exporter output to w instead of stdout.
func WithConsoleWriter(w io.Writer) Option {
	return func(o *setupOptions) { o.consoleWriter = w }
}

// WithGlobal installs the provider and a W3C propagator as the otel globals.
func WithGlobal() Option {
	return func(o *setupOptions) { o.global = true }
}

// Setup builds a Provider. A disabled config yields a no-op provider.
func Setup(ctx context.Context, config *TracingConfig, opts ...Option) (*Provider, error) {
	if config == nil {
		return nil, fmt.Errorf("tracing config cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tracing config: %w", err)
	}
	o := &setupOptions{}
	for _, opt := range opts {
		opt(o)
	}

	if !config.Enabled {
		return &Provider{noop: noop.NewTracerProvider()}, nil
	}

	res := newResource(config)
	exporter, err := newSpanExporter(ctx, config.Exporter, o.consoleWriter)
	if err != nil {
		return nil, err
	}

	var processor sdktrace.SpanProcessor
	if config.Exporter.Type == "console" {
		processor = sdktrace.NewSimpleSpanProcessor(exporter)
	} else {
		processor = sdktrace.NewBatchSpanProcessor(exporter,
			sdktrace.WithMaxExportBatchSize(512),
			sdktrace.WithMaxQueueSize(2048),
		)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(processor),
		sdktrace.WithSampler(newSampler(config.Sampling)),
	)
	if o.global {
		otel.SetTracerProvider(tp)
		otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{}, propagation.Baggage{}))
	}
	return &Provider{sdk: tp}, nil
}

// TracerProvider returns the provider to hand to the orchestrator.
func (p *Provider) TracerProvider() trace.TracerProvider {
	if p.sdk != nil {
		return p.sdk
	}
	return p.noop
}

// Enabled reports whether spans are recorded and exported.
func (p *Provider) Enabled() bool {
	return p.sdk != nil
}

// Shutdown flushes pending spans and stops the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.sdk == nil {
		return nil
	}
	return p.sdk.Shutdown(ctx)
}

func newResource(config *TracingConfig) *resource.Resource {
	attrs := []attribute.KeyValue{semconv.ServiceName(config.ServiceName)}
	for key, value := range config.ResourceAttributes {
		attrs = append(attrs, attribute.String(key, value))
	}
	return resource.NewWithAttributes(semconv.SchemaURL, attrs...)
}

func newSampler(config SamplingConfig) sdktrace.Sampler {
	switch config.Type {
	case "always_off":
		return sdktrace.NeverSample()
	case "traceidratio":
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(config.Rate))
	default:
		return sdktrace.AlwaysSample()
	}
}
