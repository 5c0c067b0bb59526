/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package traces configures OpenTelemetry for the process.
package traces

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Providers carries the configured SDK providers.
type Providers struct {
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
	shutdownFuncs  []func(context.Context) error
}

// Shutdown flushes and stops every provider, joining their errors.
func (p *Providers) Shutdown(ctx context.Context) error {
	var err error
	for i := len(p.shutdownFuncs) - 1; i >= 0; i-- {
		err = errors.Join(err, p.shutdownFuncs[i](ctx))
	}
	p.shutdownFuncs = nil
	return err
}

// SetupOTelSDK installs a global tracer provider exporting over OTLP/HTTP and
// a logger provider writing to stdout. An empty endpoint defers to the
// standard OTEL_EXPORTER_OTLP_* environment variables.
func SetupOTelSDK(ctx context.Context, serviceName, endpoint string) (*Providers, error) {
	p := &Providers{}

	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(attribute.String("service.name", serviceName)))
	if err != nil {
		return nil, err
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	var opts []otlptracehttp.Option
	if endpoint != "" {
		opts = append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	traceExporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, err
	}
	p.TracerProvider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	p.shutdownFuncs = append(p.shutdownFuncs, p.TracerProvider.Shutdown)
	otel.SetTracerProvider(p.TracerProvider)

	logExporter, err := stdoutlog.New()
	if err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}
	p.LoggerProvider = sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExporter)),
		sdklog.WithResource(res),
	)
	p.shutdownFuncs = append(p.shutdownFuncs, p.LoggerProvider.Shutdown)

	return p, nil
}
