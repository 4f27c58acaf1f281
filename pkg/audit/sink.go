/*
Copyright 2026.

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

package audit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/metrics"
)

// Sink defines the interface for audit event destinations.
type Sink interface {
	// Write sends an audit event to the sink.
	Write(ctx context.Context, event *Event) error

	// Close releases any resources held by the sink.
	Close() error

	// Name returns the sink's identifier.
	Name() string
}

// LogSink writes audit events to a structured logger.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink creates a new LogSink.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{logger: logger.Named("audit")}
}

// Write logs the audit event.
func (s *LogSink) Write(_ context.Context, event *Event) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.Time("timestamp", event.Timestamp),
		zap.String("kind", event.Kind),
		zap.Int("recipients", event.Recipients),
	}

	if event.PolicyID != "" {
		fields = append(fields, zap.String("policy_id", event.PolicyID))
	}
	if event.ResourceID != "" {
		fields = append(fields, zap.String("resource_id", event.ResourceID))
	}
	if event.Action != "" {
		fields = append(fields, zap.String("action", event.Action))
	}
	if event.Template != "" {
		fields = append(fields, zap.String("template", event.Template))
	}
	if event.Resources > 0 {
		fields = append(fields, zap.Int("resources", event.Resources))
	}
	if event.Transport != "" {
		fields = append(fields, zap.String("transport", event.Transport))
	}
	if event.CorrelationID != "" {
		fields = append(fields, zap.String("correlation_id", event.CorrelationID))
	}
	if event.TraceID != "" {
		fields = append(fields, zap.String("trace_id", event.TraceID))
	}
	if event.Error != "" {
		fields = append(fields, zap.String("error", event.Error))
	}

	s.logger.Info("audit_event", fields...)
	metrics.AuditEventsWritten.WithLabelValues(s.Name()).Inc()
	return nil
}

// Close is a no-op for LogSink.
func (s *LogSink) Close() error {
	return nil
}

// Name returns the sink identifier.
func (s *LogSink) Name() string {
	return "log"
}

// MultiSink fans an event out to every configured sink. A failing sink does
// not stop delivery to the others; the errors are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink combines sinks. Nil entries are ignored.
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Write implements Sink.
func (m *MultiSink) Write(ctx context.Context, event *Event) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close implements Sink.
func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Name implements Sink.
func (m *MultiSink) Name() string {
	return "multi"
}

// Sinks returns the wrapped sinks.
func (m *MultiSink) Sinks() []Sink {
	return m.sinks
}

// Health reports the state of every queued sink in the chain.
func (m *MultiSink) Health() []QueuedSinkHealth {
	var out []QueuedSinkHealth
	for _, s := range m.sinks {
		if qs, ok := s.(*QueuedSink); ok {
			out = append(out, qs.Health())
		}
	}
	return out
}

// NewFromConfig builds the audit sink chain: the log sink always, plus a Kafka
// sink when brokers are configured. The Kafka sink sits behind a circuit
// breaker and, when audit.queueSize is set, its own async queue.
func NewFromConfig(cfg config.Audit, logger *zap.Logger) (*MultiSink, error) {
	sinks := []Sink{NewLogSink(logger)}
	if len(cfg.Kafka.Brokers) > 0 {
		kafkaSink, err := NewKafkaSink(cfg.Kafka, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka audit sink: %w", err)
		}
		sinks = append(sinks, wrapRemoteSink(kafkaSink, cfg, logger))
	}
	return NewMultiSink(sinks...), nil
}

func wrapRemoteSink(sink Sink, cfg config.Audit, logger *zap.Logger) Sink {
	var wrapped Sink = NewCircuitBreakerSink(sink, CircuitBreakerConfigFrom(cfg.CircuitBreaker), logger)
	if cfg.QueueSize > 0 {
		wrapped = NewQueuedSink(wrapped, QueuedSinkConfig{
			QueueSize:   cfg.QueueSize,
			WorkerCount: cfg.Workers,
		}, logger)
	}
	return wrapped
}
