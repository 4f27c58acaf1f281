package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telekom/autofix-notifier/pkg/config"
	"github.com/telekom/autofix-notifier/pkg/metrics"
)

var errBroker = errors.New("broker unreachable")

func newTestBreaker(t *testing.T, name string, threshold int) (*CircuitBreaker, *time.Time) {
	t.Helper()
	cb := NewCircuitBreaker(name, CircuitBreakerConfig{FailureThreshold: threshold, OpenTimeout: time.Minute}, zap.NewNop())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb.now = func() time.Time { return now }
	return cb, &now
}

func failing(context.Context) error    { return errBroker }
func succeeding(context.Context) error { return nil }

func TestCircuitStateString(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(42).String())
}

func TestCircuitBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker("defaults", CircuitBreakerConfig{}, zap.NewNop())
	assert.Equal(t, 5, cb.config.FailureThreshold)
	assert.Equal(t, 1, cb.config.SuccessThreshold)
	assert.Equal(t, 30*time.Second, cb.config.OpenTimeout)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerConfigFrom(t *testing.T) {
	cfg := CircuitBreakerConfigFrom(config.CircuitBreaker{FailureThreshold: 3, OpenTimeout: "10s"})
	assert.Equal(t, 3, cfg.FailureThreshold)
	assert.Equal(t, 10*time.Second, cfg.OpenTimeout)

	assert.Equal(t, 30*time.Second, CircuitBreakerConfigFrom(config.CircuitBreaker{OpenTimeout: "bogus"}).OpenTimeout)
}

func TestCircuitBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(t, "cb-open", 3)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, cb.Execute(ctx, failing), errBroker)
		assert.Equal(t, CircuitClosed, cb.State())
	}
	assert.ErrorIs(t, cb.Execute(ctx, failing), errBroker)
	assert.Equal(t, CircuitOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error { called = true; return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
	assert.Equal(t, int64(1), cb.Rejections())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.AuditCircuitBreakerRejections.WithLabelValues("cb-open")))
	assert.Equal(t, float64(CircuitOpen), testutil.ToFloat64(metrics.AuditCircuitBreakerState.WithLabelValues("cb-open")))
}

func TestCircuitBreakerSuccessResetsFailures(t *testing.T) {
	cb, _ := newTestBreaker(t, "cb-reset", 2)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	require.NoError(t, cb.Execute(ctx, succeeding))
	_ = cb.Execute(ctx, failing)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenRecovery(t *testing.T) {
	cb, now := newTestBreaker(t, "cb-recover", 1)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(time.Minute)
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, now := newTestBreaker(t, "cb-reopen", 1)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	*now = now.Add(2 * time.Minute)
	assert.ErrorIs(t, cb.Execute(ctx, failing), errBroker)
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)
}

func TestCircuitBreakerHalfOpenAllowsSingleProbe(t *testing.T) {
	cb, now := newTestBreaker(t, "cb-probe", 1)
	ctx := context.Background()

	_ = cb.Execute(ctx, failing)
	*now = now.Add(time.Minute)

	release := make(chan struct{})
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		done <- cb.Execute(ctx, func(context.Context) error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	assert.ErrorIs(t, cb.Execute(ctx, succeeding), ErrCircuitOpen)
	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreakerSink(t *testing.T) {
	inner := &recordingSink{name: "kafka-test", err: errBroker}
	s := NewCircuitBreakerSink(inner, CircuitBreakerConfig{FailureThreshold: 1, OpenTimeout: time.Hour}, zap.NewNop())
	ctx := context.Background()

	assert.Equal(t, "kafka-test", s.Name())
	assert.ErrorIs(t, s.Write(ctx, NewEvent(EventNotificationSent, "plain")), errBroker)
	assert.ErrorIs(t, s.Write(ctx, NewEvent(EventNotificationSent, "plain")), ErrCircuitOpen)
	assert.Len(t, inner.events, 1)
	assert.Equal(t, CircuitOpen, s.CircuitBreaker().State())

	inner.err = nil
	require.NoError(t, s.Close())
	assert.True(t, inner.closed)
}
