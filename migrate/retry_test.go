package migrate

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/poiesic/shuttle/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUnavailable = core.NewTransportError("insert batch", errors.New("unavailable"))

func testPolicy(maxRetries int, delay time.Duration) retryPolicy {
	return newRetryPolicy(&Config{MaxRetries: maxRetries, RetryDelay: delay}, slog.New(slog.DiscardHandler))
}

// failing returns an op that fails with err for its first n calls.
func failing(n int, err error) (func() error, *int) {
	calls := 0
	return func() error {
		calls++
		if calls <= n {
			return err
		}
		return nil
	}, &calls
}

func TestRetryPolicy_Do(t *testing.T) {
	tests := []struct {
		name       string
		maxRetries int
		failures   int
		err        error
		wantCalls  int
		wantErr    bool
	}{
		{"first call succeeds", 2, 0, errUnavailable, 1, false},
		{"succeeds on a retry", 4, 2, errUnavailable, 3, false},
		{"retries exhausted", 2, 10, errUnavailable, 3, true},
		{"no retries configured", 0, 1, errUnavailable, 1, true},
		{"plain error is not retried", 3, 1, errors.New("bad request"), 1, true},
		{"panic is not retried", 3, 1, core.NewTransportError("insert batch", ErrSinkPanicked), 1, true},
		{"missing result is not retried", 3, 1, core.NewTransportError("insert batch", ErrNilResult), 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op, calls := failing(tt.failures, tt.err)

			err := testPolicy(tt.maxRetries, time.Millisecond).do(context.Background(), op)
			if tt.wantErr {
				assert.ErrorIs(t, err, tt.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, *calls)
		})
	}
}

func TestRetryPolicy_InvalidAttempts(t *testing.T) {
	op, calls := failing(0, nil)
	p := testPolicy(0, time.Millisecond)
	p.attempts = 0

	assert.ErrorIs(t, p.do(context.Background(), op), ErrInvalidMaxAttempts)
	assert.Equal(t, 0, *calls)
}

func TestRetryPolicy_Backoff(t *testing.T) {
	p := testPolicy(3, 10*time.Millisecond)

	assert.Equal(t, 10*time.Millisecond, p.backoff(1))
	assert.Equal(t, 20*time.Millisecond, p.backoff(2))
	assert.Equal(t, 40*time.Millisecond, p.backoff(3))
	assert.Equal(t, p.backoff(maxBackoffShift+1), p.backoff(maxBackoffShift+20), "doubling is capped")
}

func TestRetryPolicy_CanceledDuringBackoffKeepsSinkError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	op := func() error {
		calls++
		cancel()
		return errUnavailable
	}

	err := testPolicy(5, time.Hour).do(ctx, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, errUnavailable, "the sink's error must survive cancellation")
	assert.True(t, core.IsTransportError(err))
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_TimeoutStopsRetries(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	op, calls := failing(100, errUnavailable)
	err := testPolicy(100, 20*time.Millisecond).do(ctx, op)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.ErrorIs(t, err, errUnavailable)
	assert.LessOrEqual(t, *calls, 3)
}

func TestRetryPolicy_FirstCallIgnoresCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	op, calls := failing(10, errUnavailable)
	err := testPolicy(3, time.Millisecond).do(ctx, op)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, *calls, "a dispatched batch is always attempted once")
}
