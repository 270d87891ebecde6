package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transientErr() error {
	return NewTransientError(eris.New("503"), 503)
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return transientErr() })
	}
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(ctx, func(ctx context.Context) error {
		t.Fatal("must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitBreaker_NonTransientDoesNotTrip(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_ = cb.Execute(ctx, func(ctx context.Context) error { return eris.New("parse error") })
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenAndRecovery(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return transientErr() })
	require.Equal(t, CircuitOpen, cb.State())

	now = now.Add(31 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	// Successful probe closes the circuit.
	require.NoError(t, cb.Execute(ctx, func(ctx context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: 30 * time.Second}).
		WithNow(func() time.Time { return now })
	ctx := context.Background()

	_ = cb.Execute(ctx, func(ctx context.Context) error { return transientErr() })
	now = now.Add(31 * time.Second)
	require.Equal(t, CircuitHalfOpen, cb.State())

	_ = cb.Execute(ctx, func(ctx context.Context) error { return transientErr() })
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestExecuteVal(t *testing.T) {
	t.Parallel()

	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	got, err := ExecuteVal(context.Background(), cb, func(ctx context.Context) (int, error) {
		return 12, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 12, got)
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	t.Parallel()

	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(context.Background(), func(ctx context.Context) error { return transientErr() })
	assert.Equal(t, []string{"closed->open"}, transitions)
}
