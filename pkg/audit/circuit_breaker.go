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
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/metrics"
)

// CircuitState represents the current state of the circuit breaker.
type CircuitState int32

const (
	// CircuitClosed lets writes through.
	CircuitClosed CircuitState = iota
	// CircuitOpen rejects writes until OpenTimeout has passed.
	CircuitOpen
	// CircuitHalfOpen lets a single probe write through.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures before opening the circuit.
	// Default: 5
	FailureThreshold int

	// SuccessThreshold is the number of consecutive half-open successes that close the circuit.
	// Default: 1
	SuccessThreshold int

	// OpenTimeout is how long to wait before transitioning from open to half-open.
	// Default: 30s
	OpenTimeout time.Duration
}

// CircuitBreakerConfigFrom converts the audit.circuitBreaker block, applying defaults.
func CircuitBreakerConfigFrom(cfg config.CircuitBreaker) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: cfg.FailureThreshold,
		OpenTimeout:      config.ParseDurationOrDefault(cfg.OpenTimeout, 30*time.Second),
	}
}

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreaker stops calling a failing audit destination for a while so a
// dead broker does not add its timeout to every dispatch.
type CircuitBreaker struct {
	name   string
	config CircuitBreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu               sync.Mutex
	state            CircuitState
	consecutiveFails int
	consecutiveSuccs int
	probing          bool
	openedAt         time.Time

	rejections atomic.Int64
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(name string, cfg CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 1
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	metrics.AuditCircuitBreakerState.WithLabelValues(name).Set(float64(CircuitClosed))
	return &CircuitBreaker{
		name:   name,
		config: cfg,
		logger: logger.Named("circuit-breaker").With(zap.String("sink", name)),
		now:    time.Now,
	}
}

// Execute runs fn unless the circuit is open, in which case ErrCircuitOpen is
// returned without calling fn.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if !cb.allow() {
		cb.rejections.Add(1)
		metrics.AuditCircuitBreakerRejections.WithLabelValues(cb.name).Inc()
		return ErrCircuitOpen
	}
	err := fn(ctx)
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case CircuitClosed:
		return true
	case CircuitOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.OpenTimeout {
			return false
		}
		cb.transitionLocked(CircuitHalfOpen)
		cb.probing = true
		return true
	case CircuitHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return false
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.probing = false
	if err != nil {
		cb.consecutiveSuccs = 0
		cb.consecutiveFails++
		if cb.state == CircuitHalfOpen || cb.consecutiveFails >= cb.config.FailureThreshold {
			cb.logger.Warn("audit sink failing, opening circuit",
				zap.Int("consecutive_fails", cb.consecutiveFails), zap.Error(err))
			cb.transitionLocked(CircuitOpen)
		}
		return
	}

	cb.consecutiveFails = 0
	cb.consecutiveSuccs++
	if cb.state == CircuitHalfOpen && cb.consecutiveSuccs >= cb.config.SuccessThreshold {
		cb.transitionLocked(CircuitClosed)
	}
}

func (cb *CircuitBreaker) transitionLocked(to CircuitState) {
	from := cb.state
	if from == to {
		return
	}
	cb.state = to
	cb.consecutiveFails = 0
	cb.consecutiveSuccs = 0
	if to == CircuitOpen {
		cb.openedAt = cb.now()
	}
	cb.logger.Info("circuit breaker state changed",
		zap.String("from", from.String()),
		zap.String("to", to.String()))
	metrics.AuditCircuitBreakerState.WithLabelValues(cb.name).Set(float64(to))
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Rejections returns how many writes were refused while the circuit was open.
func (cb *CircuitBreaker) Rejections() int64 {
	return cb.rejections.Load()
}

// CircuitBreakerSink wraps a Sink with circuit breaker protection.
type CircuitBreakerSink struct {
	sink    Sink
	breaker *CircuitBreaker
	logger  *zap.Logger
}

// NewCircuitBreakerSink wraps a sink with circuit breaker protection.
func NewCircuitBreakerSink(sink Sink, cfg CircuitBreakerConfig, logger *zap.Logger) *CircuitBreakerSink {
	return &CircuitBreakerSink{
		sink:    sink,
		breaker: NewCircuitBreaker(sink.Name(), cfg, logger),
		logger:  logger.Named("cb-sink").With(zap.String("sink", sink.Name())),
	}
}

// Write implements Sink with circuit breaker protection.
func (s *CircuitBreakerSink) Write(ctx context.Context, event *Event) error {
	return s.breaker.Execute(ctx, func(ctx context.Context) error {
		return s.sink.Write(ctx, event)
	})
}

// Close closes the underlying sink.
func (s *CircuitBreakerSink) Close() error {
	s.logger.Info("closing circuit breaker sink", zap.String("state", s.breaker.State().String()))
	return s.sink.Close()
}

// Name returns the sink name.
func (s *CircuitBreakerSink) Name() string {
	return s.sink.Name()
}

// CircuitBreaker returns the underlying circuit breaker for status checks.
func (s *CircuitBreakerSink) CircuitBreaker() *CircuitBreaker {
	return s.breaker
}
