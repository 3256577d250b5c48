// Package retrier re-runs store calls that failed with a temporary error.
package retrier

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"sync"
	"time"
)

const (
	minMaxAttempts = 1
	minBaseDelay   = time.Millisecond
	minFactor      = 1.0
	maxJitter      = 1.0
	delayCeiling   = time.Hour
)

// Backoff strategies.
const (
	ExponentialBackoff BackoffStrategy = iota
	LinearBackoff
	FibonacciBackoff
)

var (
	// ErrInvalidMaxAttempts is returned when the max attempts parameter is invalid.
	ErrInvalidMaxAttempts = errors.New("max attempts must be at least 1")
	// ErrInvalidBaseDelay is returned when the base delay parameter is invalid.
	ErrInvalidBaseDelay = errors.New("base delay must be at least 1ms")
	// ErrInvalidMaxDelay is returned when the max delay is below the base delay.
	ErrInvalidMaxDelay = errors.New("max delay must not be below base delay")
	// ErrInvalidFactor is returned when the factor parameter is invalid.
	ErrInvalidFactor = errors.New("factor must be at least 1.0")
	// ErrInvalidJitter is returned when the jitter parameter is invalid.
	ErrInvalidJitter = errors.New("jitter must be between 0 and 1")
)

// BackoffStrategy defines the strategy used for calculating backoff intervals in retry mechanisms.
type BackoffStrategy int

// ParseStrategy maps a configuration name to a BackoffStrategy.
func ParseStrategy(name string) (BackoffStrategy, error) {
	switch strings.ToLower(name) {
	case "", "exponential":
		return ExponentialBackoff, nil
	case "linear":
		return LinearBackoff, nil
	case "fibonacci":
		return FibonacciBackoff, nil
	default:
		return 0, fmt.Errorf("unknown backoff strategy %q", name)
	}
}

// Config holds the retry policy.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	Jitter      float64
	Strategy    BackoffStrategy

	// TempErrorFunc decides which errors are retried. IsTemporary is used when nil.
	TempErrorFunc func(error) bool
	// OnRetry is called before sleeping ahead of the next attempt.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Retrier provides functionality to execute a function with retry logic based on different backoff strategies.
type Retrier struct {
	cfg      Config
	randPool *sync.Pool

	fibMu          sync.Mutex
	fibonacciCache []time.Duration
}

// New validates cfg and returns a Retrier.
func New(cfg Config) (*Retrier, error) {
	if cfg.MaxAttempts < minMaxAttempts {
		return nil, ErrInvalidMaxAttempts
	}
	if cfg.BaseDelay < minBaseDelay {
		return nil, ErrInvalidBaseDelay
	}
	if cfg.MaxDelay < cfg.BaseDelay {
		return nil, ErrInvalidMaxDelay
	}
	if cfg.Factor < minFactor {
		return nil, ErrInvalidFactor
	}
	if cfg.Jitter < 0 || cfg.Jitter > maxJitter {
		return nil, ErrInvalidJitter
	}
	if cfg.TempErrorFunc == nil {
		cfg.TempErrorFunc = IsTemporary
	}

	return &Retrier{
		cfg: cfg,
		randPool: &sync.Pool{
			New: func() any {
				return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
			},
		},
		fibonacciCache: []time.Duration{cfg.BaseDelay, cfg.BaseDelay},
	}, nil
}

// Run calls fn until it succeeds, fails with a permanent error, the attempts
// run out or ctx is done. Permanent errors are returned unwrapped.
func (r *Retrier) Run(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if ctx.Err() != nil || !r.cfg.TempErrorFunc(err) {
			return err
		}
		if attempt == r.cfg.MaxAttempts-1 {
			break
		}

		delay := r.calculateDelay(attempt)
		if r.cfg.OnRetry != nil {
			r.cfg.OnRetry(attempt+1, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return fmt.Errorf("max retry attempts reached: %w", err)
}

// calculateDelay computes the delay duration based on the retry attempt and backoff strategy.
func (r *Retrier) calculateDelay(attempt int) time.Duration {
	var delay float64

	switch r.cfg.Strategy {
	case LinearBackoff:
		delay = float64(r.cfg.BaseDelay) * float64(attempt+1)
	case FibonacciBackoff:
		delay = float64(r.fibonacciDelay(attempt))
	default:
		delay = float64(r.cfg.BaseDelay) * math.Pow(r.cfg.Factor, float64(attempt))
	}

	if delay > float64(r.cfg.MaxDelay) {
		delay = float64(r.cfg.MaxDelay)
	}

	rng := r.randPool.Get().(*rand.Rand)
	delay += rng.Float64() * r.cfg.Jitter * delay
	r.randPool.Put(rng)

	return min(time.Duration(delay), delayCeiling)
}

func (r *Retrier) fibonacciDelay(attempt int) time.Duration {
	r.fibMu.Lock()
	defer r.fibMu.Unlock()

	for len(r.fibonacciCache) <= attempt {
		n := len(r.fibonacciCache)
		next := min(r.fibonacciCache[n-1]+r.fibonacciCache[n-2], r.cfg.MaxDelay)
		r.fibonacciCache = append(r.fibonacciCache, next)
	}
	return r.fibonacciCache[attempt]
}
