package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/offers/internal/domain"
)

// scriptedInventory возвращает errs по очереди, затем успех.
type scriptedInventory struct {
	mu    sync.Mutex
	errs  []error
	calls int
}

func (s *scriptedInventory) next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls <= len(s.errs) {
		return s.errs[s.calls-1]
	}
	return nil
}

func (s *scriptedInventory) Reserve(context.Context, string, string, int64) (string, error) {
	if err := s.next(); err != nil {
		return "", err
	}
	return "res-ok", nil
}

func (s *scriptedInventory) Release(context.Context, string) error { return s.next() }

func (s *scriptedInventory) Available(context.Context, string, string) (int64, error) {
	if err := s.next(); err != nil {
		return 0, err
	}
	return 7, nil
}

func repeatErr(err error, n int) []error {
	errs := make([]error, n)
	for i := range errs {
		errs[i] = err
	}
	return errs
}

func TestResilientClient_Retries(t *testing.T) {
	temporary := domain.ErrInventoryTemporary

	tests := []struct {
		name      string
		errs      []error
		attempts  int
		wantErr   error
		wantCalls int
		wantSleep []time.Duration
	}{
		{
			name:      "recovers after temporary errors",
			errs:      repeatErr(temporary, 2),
			attempts:  3,
			wantCalls: 3,
			wantSleep: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:      "gives up after max attempts",
			errs:      repeatErr(temporary, 10),
			attempts:  3,
			wantErr:   temporary,
			wantCalls: 3,
			wantSleep: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
		},
		{
			name:      "out of stock is final",
			errs:      []error{domain.ErrInventoryUnavailable},
			attempts:  3,
			wantErr:   domain.ErrInventoryUnavailable,
			wantCalls: 1,
		},
		{
			name:      "canceled call is not repeated",
			errs:      []error{context.Canceled},
			attempts:  3,
			wantErr:   context.Canceled,
			wantCalls: 1,
		},
		{
			name:      "zero attempts still calls once",
			errs:      []error{temporary},
			attempts:  0,
			wantErr:   temporary,
			wantCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			inner := &scriptedInventory{errs: tc.errs}
			cfg := DefaultRetryConfig()
			cfg.MaxAttempts = tc.attempts
			client := NewResilientClient(inner, cfg, nil, nil)

			var slept []time.Duration
			client.sleep = func(_ context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}

			id, err := client.Reserve(context.Background(), "variant-1", "main", 2)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
			} else {
				require.NoError(t, err)
				require.Equal(t, "res-ok", id)
			}
			require.Equal(t, tc.wantCalls, inner.calls)
			require.Equal(t, tc.wantSleep, slept)
		})
	}
}

func TestResilientClient_StopsWhenContextEndsDuringBackoff(t *testing.T) {
	inner := &scriptedInventory{errs: repeatErr(domain.ErrInventoryTemporary, 5)}
	client := NewResilientClient(inner, RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour}, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := client.Release(ctx, "res-1")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.Equal(t, 1, inner.calls)
}

func TestRetryConfig_DelayIsCapped(t *testing.T) {
	cfg := RetryConfig{InitialDelay: 100 * time.Millisecond, MaxDelay: 300 * time.Millisecond, BackoffFactor: 2}

	require.Equal(t, 100*time.Millisecond, cfg.delay(1))
	require.Equal(t, 200*time.Millisecond, cfg.delay(2))
	require.Equal(t, 300*time.Millisecond, cfg.delay(3))
	require.Equal(t, 300*time.Millisecond, cfg.delay(10))
}

func TestCircuitBreaker_OpensAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(2, time.Minute, nil)
	breaker.now = func() time.Time { return now }

	failing := func() error { return domain.ErrInventoryTemporary }
	require.Error(t, breaker.Execute("reserve", failing))
	require.Equal(t, CircuitClosed, breaker.State())
	require.Error(t, breaker.Execute("reserve", failing))
	require.Equal(t, CircuitOpen, breaker.State())
	require.Equal(t, "inventory circuit breaker is open", breaker.Reason())

	called := false
	err := breaker.Execute("reserve", func() error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	require.ErrorIs(t, err, domain.ErrInventoryTemporary)
	require.False(t, called)

	now = now.Add(2 * time.Minute)
	require.NoError(t, breaker.Execute("reserve", func() error { return nil }))
	require.Equal(t, CircuitClosed, breaker.State())
	require.Empty(t, breaker.Reason())
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(1, time.Minute, nil)
	breaker.now = func() time.Time { return now }

	require.Error(t, breaker.Execute("available", func() error { return domain.ErrInventoryTemporary }))
	now = now.Add(time.Minute)

	require.ErrorIs(t, breaker.Execute("available", func() error { return domain.ErrInventoryTemporary }), domain.ErrInventoryTemporary)
	require.Equal(t, CircuitOpen, breaker.State())

	now = now.Add(30 * time.Second)
	require.ErrorIs(t, breaker.Execute("available", func() error { return nil }), domain.ErrCircuitOpen)
}

func TestCircuitBreaker_SingleProbeWhileHalfOpen(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	breaker := NewCircuitBreaker(1, time.Minute, nil)
	breaker.now = func() time.Time { return now }

	require.Error(t, breaker.Execute("reserve", func() error { return domain.ErrInventoryTemporary }))
	now = now.Add(2 * time.Minute)

	probeStarted := make(chan struct{})
	releaseProbe := make(chan struct{})
	probeDone := make(chan error, 1)
	go func() {
		probeDone <- breaker.Execute("reserve", func() error {
			close(probeStarted)
			<-releaseProbe
			return nil
		})
	}()

	<-probeStarted
	require.Equal(t, CircuitHalfOpen, breaker.State())
	require.ErrorIs(t, breaker.Execute("reserve", func() error { return nil }), domain.ErrCircuitOpen)

	close(releaseProbe)
	require.NoError(t, <-probeDone)
	require.Equal(t, CircuitClosed, breaker.State())
}

func TestCircuitBreaker_IgnoresBusinessErrors(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Minute, nil)
	for _, err := range []error{domain.ErrInventoryUnavailable, domain.ErrReservationNotFound, domain.ErrItemQtyInvalid} {
		require.True(t, errors.Is(breaker.Execute("reserve", func() error { return err }), err))
	}
	require.Equal(t, CircuitClosed, breaker.State())
}

func TestResilientClient_BreakerRejectionIsNotRetried(t *testing.T) {
	inner := &scriptedInventory{errs: repeatErr(domain.ErrInventoryTemporary, 10)}
	breaker := NewCircuitBreaker(1, time.Hour, nil)
	client := NewResilientClient(inner, RetryConfig{MaxAttempts: 5}, breaker, nil)
	client.sleep = func(context.Context, time.Duration) error { return nil }

	_, err := client.Available(context.Background(), "variant-1", "main")
	require.ErrorIs(t, err, domain.ErrCircuitOpen)
	require.ErrorIs(t, err, domain.ErrInventoryTemporary)
	require.Equal(t, 1, inner.calls)
}
