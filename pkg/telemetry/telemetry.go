// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

// Package telemetry installs the global TracerProvider that the notification
// package uses for dispatch spans.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/zapr"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/version"
)

// Values accepted in telemetry.exporter. An empty value means ExporterOTLP.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

const flushTimeout = 5 * time.Second

// ShutdownFunc flushes pending dispatch spans and stops the provider.
type ShutdownFunc func(ctx context.Context) error

func noopShutdown(context.Context) error { return nil }

// Setup installs the TracerProvider described by cfg as the global provider.
// With tracing disabled a no-op provider is installed.
func Setup(ctx context.Context, cfg config.Telemetry, log *zap.SugaredLogger) (ShutdownFunc, error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if !cfg.Enabled {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return noopShutdown, nil
	}

	spanProcessor, err := newSpanProcessor(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rate := cfg.GetSamplingRate()
	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(buildResource(version.GetBuildInfo())),
		sdktrace.WithSampler(sampler(rate)),
	}
	if spanProcessor != nil {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(spanProcessor))
	}
	tp := sdktrace.NewTracerProvider(tpOpts...)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	otel.SetLogger(zapr.NewLogger(log.Desugar().Named("otel")))
	otel.SetErrorHandler(otel.ErrorHandlerFunc(func(err error) {
		log.Warnw("Failed to export dispatch spans", "error", err)
	}))

	log.Infow("Dispatch tracing enabled", "exporter", exporterName(cfg), "endpoint", cfg.Endpoint, "samplingRate", rate)

	return func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			return fmt.Errorf("flush dispatch spans: %w", err)
		}
		return nil
	}, nil
}

// newSpanProcessor returns nil for ExporterNone: spans are sampled and carry
// trace ids into audit events, but are not exported.
func newSpanProcessor(ctx context.Context, cfg config.Telemetry) (sdktrace.SpanProcessor, error) {
	switch exporterName(cfg) {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create otlp exporter: %w", err)
		}
		return sdktrace.NewBatchSpanProcessor(exp), nil
	case ExporterStdout:
		exp, err := stdouttrace.New()
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		// "send" exits right after one dispatch.
		return sdktrace.NewSimpleSpanProcessor(exp), nil
	case ExporterNone:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown telemetry exporter %q (want %s, %s or %s)",
			cfg.Exporter, ExporterOTLP, ExporterStdout, ExporterNone)
	}
}

func exporterName(cfg config.Telemetry) string {
	if cfg.Exporter == "" {
		return ExporterOTLP
	}
	return cfg.Exporter
}

func buildResource(info version.BuildInfo) *resource.Resource {
	return resource.NewSchemaless(
		attribute.String("service.name", info.Name),
		attribute.String("service.version", info.Version),
		attribute.String("vcs.revision", info.GitCommit),
		attribute.String("build.date", info.BuildDate),
		attribute.String("build.platform", info.Platform),
		attribute.String("process.runtime.version", info.GoVersion),
	)
}

func sampler(rate float64) sdktrace.Sampler {
	if rate >= 1 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}
	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
}
