package retrier

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tempErr struct{ temp bool }

func (e tempErr) Error() string   { return "temp" }
func (e tempErr) Temporary() bool { return e.temp }

func newTestRetrier(t *testing.T, strategy BackoffStrategy) *Retrier {
	t.Helper()
	r, err := New(Config{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		MaxDelay:    5 * time.Millisecond,
		Factor:      2,
		Strategy:    strategy,
	})
	require.NoError(t, err)
	return r
}

func TestNewValidates(t *testing.T) {
	base := Config{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Second, Factor: 1}

	cfg := base
	cfg.MaxAttempts = 0
	_, err := New(cfg)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)

	cfg = base
	cfg.BaseDelay = time.Microsecond
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidBaseDelay)

	cfg = base
	cfg.MaxDelay = 0
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidMaxDelay)

	cfg = base
	cfg.Factor = 0.5
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidFactor)

	cfg = base
	cfg.Jitter = 2
	_, err = New(cfg)
	assert.ErrorIs(t, err, ErrInvalidJitter)
}

func TestRunRetriesTemporaryErrors(t *testing.T) {
	r := newTestRetrier(t, ExponentialBackoff)

	calls := 0
	err := r.Run(context.Background(), func() error {
		calls++
		if calls < 3 {
			return io.EOF
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRunStopsOnPermanentError(t *testing.T) {
	r := newTestRetrier(t, LinearBackoff)
	permanent := errors.New("WRONGTYPE")

	calls := 0
	err := r.Run(context.Background(), func() error {
		calls++
		return permanent
	})
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestRunExhaustsAttempts(t *testing.T) {
	r := newTestRetrier(t, FibonacciBackoff)

	var retries []int
	r.cfg.OnRetry = func(attempt int, _ time.Duration, _ error) {
		retries = append(retries, attempt)
	}

	calls := 0
	err := r.Run(context.Background(), func() error {
		calls++
		return tempErr{temp: true}
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retry attempts reached")
	assert.ErrorAs(t, err, new(tempErr))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestRunHonoursCancelledContext(t *testing.T) {
	r := newTestRetrier(t, ExponentialBackoff)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := r.Run(ctx, func() error {
		calls++
		return io.EOF
	})
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 1, calls)
}

func TestCalculateDelayCapped(t *testing.T) {
	r := newTestRetrier(t, ExponentialBackoff)
	assert.Equal(t, time.Millisecond, r.calculateDelay(0))
	assert.Equal(t, 5*time.Millisecond, r.calculateDelay(10))

	fib := newTestRetrier(t, FibonacciBackoff)
	assert.Equal(t, time.Millisecond, fib.calculateDelay(0))
	assert.Equal(t, 2*time.Millisecond, fib.calculateDelay(2))
	assert.Equal(t, 5*time.Millisecond, fib.calculateDelay(6))
}

func TestIsTemporary(t *testing.T) {
	assert.True(t, IsTemporary(io.EOF))
	assert.True(t, IsTemporary(tempErr{temp: true}))
	assert.False(t, IsTemporary(tempErr{temp: false}))
	assert.False(t, IsTemporary(errors.New("boom")))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("Linear")
	require.NoError(t, err)
	assert.Equal(t, LinearBackoff, s)

	s, err = ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, ExponentialBackoff, s)

	_, err = ParseStrategy("random")
	assert.Error(t, err)
}
