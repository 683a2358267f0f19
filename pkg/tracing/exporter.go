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
	"os"
	"time"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/trace"
)

const defaultExportTimeout = 10 * time.Second

// newSpanExporter creates the exporter named by config.Type. Console output goes to w.
func newSpanExporter(ctx context.Context, config ExporterConfig, w io.Writer) (trace.SpanExporter, error) {
	switch config.Type {
	case "console":
		if w == nil {
			w = os.Stdout
		}
		exporter, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("failed to create console exporter: %w", err)
		}
		return exporter, nil
	case "otlp":
		if config.Protocol == "grpc" {
			return newOTLPGRPCExporter(ctx, config)
		}
		return newOTLPHTTPExporter(ctx, config)
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", config.Type)
	}
}

func exportTimeout(config ExporterConfig) time.Duration {
	if config.Timeout > 0 {
		return config.Timeout
	}
	return defaultExportTimeout
}

func newOTLPHTTPExporter(ctx context.Context, config ExporterConfig) (trace.SpanExporter, error) {
	options := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(config.Endpoint),
		otlptracehttp.WithTimeout(exportTimeout(config)),
	}
	if config.Insecure {
		options = append(options, otlptracehttp.WithInsecure())
	}
	if len(config.Headers) > 0 {
		options = append(options, otlptracehttp.WithHeaders(config.Headers))
	}

	exporter, err := otlptracehttp.New(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp http exporter: %w", err)
	}
	return exporter, nil
}

func newOTLPGRPCExporter(ctx context.Context, config ExporterConfig) (trace.SpanExporter, error) {
	options := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(config.Endpoint),
		otlptracegrpc.WithTimeout(exportTimeout(config)),
	}
	if config.Insecure {
		options = append(options, otlptracegrpc.WithInsecure())
	}
	if len(config.Headers) > 0 {
		options = append(options, otlptracegrpc.WithHeaders(config.Headers))
	}

	exporter, err := otlptracegrpc.New(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("failed to create otlp grpc exporter: %w", err)
	}
	return exporter, nil
}
