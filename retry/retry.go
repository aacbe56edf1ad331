// Package retry provides a bounded exponential-backoff executor for
// asynchronous operations. The attempt progression is an explicit state
// machine (Idle -> Attempting -> Succeeded | Exhausted) driven by a pure
// delay function, so it can be tested without real timers.
package retry

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// State describes where a Retrier is in its attempt progression.
type State int

const (
	StateIdle State = iota
	StateAttempting
	StateSucceeded
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttempting:
		return "attempting"
	case StateSucceeded:
		return "succeeded"
	case StateExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Policy holds the backoff parameters. The delay for attempt n is
// min(MaxDelay, InitialDelay * BackoffFactor^(n-1)), optionally spread by
// Jitter (a fraction of the computed delay, 0..1).
type Policy struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration
	Jitter        float64
}

// DefaultPolicy matches the profile-fetch defaults: three attempts, half a
// second initial delay doubling up to eight seconds, 20% jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:   3,
		InitialDelay:  500 * time.Millisecond,
		BackoffFactor: 2.0,
		MaxDelay:      8 * time.Second,
		Jitter:        0.2,
	}
}

// Delay returns the backoff delay before the given attempt (1-based),
// without jitter. Pure so it can be table-tested.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return min(p.MaxDelay, p.InitialDelay)
	}
	d := float64(p.InitialDelay) * math.Pow(p.BackoffFactor, float64(attempt-1))
	if d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

// SleepFunc suspends for d or until ctx is done, in which case it returns
// the context's error.
type SleepFunc func(ctx context.Context, d time.Duration) error

func defaultSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retrier executes operations under a Policy. It is safe for use by a single
// goroutine at a time; the bootstrap controller guarantees that with its
// busy flag.
type Retrier struct {
	policy        Policy
	sleep         SleepFunc
	randFloat     func() float64
	onRetry       func(attempt int, err error)
	onMaxAttempts func(attempt int, err error)

	mu      sync.Mutex
	state   State
	attempt int
	lastErr error
}

// Option modifies a Retrier at construction time.
type Option func(*Retrier)

// WithSleep replaces the sleep function (primarily for testing).
func WithSleep(sleep SleepFunc) Option {
	return func(r *Retrier) { r.sleep = sleep }
}

// WithRand replaces the jitter source (primarily for testing).
func WithRand(f func() float64) Option {
	return func(r *Retrier) { r.randFloat = f }
}

// WithOnRetry sets a hook invoked synchronously before each re-attempt with
// the attempt number about to run and the error that caused it.
func WithOnRetry(hook func(attempt int, err error)) Option {
	return func(r *Retrier) { r.onRetry = hook }
}

// WithOnMaxAttemptsReached sets a hook invoked synchronously when the final
// attempt fails.
func WithOnMaxAttemptsReached(hook func(attempt int, err error)) Option {
	return func(r *Retrier) { r.onMaxAttempts = hook }
}

// New creates a Retrier for the given policy.
func New(policy Policy, options ...Option) *Retrier {
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if policy.BackoffFactor <= 0 {
		policy.BackoffFactor = 1
	}
	r := &Retrier{
		policy:    policy,
		sleep:     defaultSleep,
		randFloat: rand.Float64,
		state:     StateIdle,
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

// permanentError marks an error that must not be retried.
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so Do stops immediately instead of retrying.
// Authentication failures use this: retrying a rejected token cannot help.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs op until it succeeds, the policy is exhausted, op returns a
// Permanent error, or ctx is cancelled. The wrapped operation never runs
// more than Policy.MaxAttempts times.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	r.setState(StateAttempting, 0, nil)

	var lastErr error
	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		r.setState(StateAttempting, attempt, lastErr)

		err := op(ctx)
		if err == nil {
			r.setState(StateSucceeded, attempt, nil)
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			r.setState(StateExhausted, attempt, perm.err)
			return perm.err
		}

		lastErr = err
		if attempt == r.policy.MaxAttempts {
			break
		}

		if r.onRetry != nil {
			r.onRetry(attempt+1, err)
		}
		if sleepErr := r.sleep(ctx, r.jitteredDelay(attempt+1)); sleepErr != nil {
			r.setState(StateExhausted, attempt, lastErr)
			return errors.Wrap(lastErr, "[Retrier.Do] cancelled while waiting to retry")
		}
	}

	r.setState(StateExhausted, r.policy.MaxAttempts, lastErr)
	if r.onMaxAttempts != nil {
		r.onMaxAttempts(r.policy.MaxAttempts, lastErr)
	}
	return errors.Wrapf(lastErr, "[Retrier.Do] exhausted after %d attempts", r.policy.MaxAttempts)
}

// ManualRetry resets the attempt counters and runs op fresh. Used for
// user-initiated "try again" actions after exhaustion.
func (r *Retrier) ManualRetry(ctx context.Context, op func(ctx context.Context) error) error {
	r.setState(StateIdle, 0, nil)
	return r.Do(ctx, op)
}

// Attempt returns the most recent attempt number (0 before the first run).
func (r *Retrier) Attempt() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempt
}

// LastErr returns the error from the most recent failed attempt.
func (r *Retrier) LastErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastErr
}

// State returns the current state of the attempt progression.
func (r *Retrier) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Retrier) setState(state State, attempt int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = state
	r.attempt = attempt
	r.lastErr = err
}

func (r *Retrier) jitteredDelay(attempt int) time.Duration {
	d := r.policy.Delay(attempt)
	if r.policy.Jitter <= 0 {
		return d
	}
	// Spread the delay by +/- jitter/2 so concurrent clients do not retry
	// in lockstep.
	spread := (r.randFloat() - 0.5) * r.policy.Jitter * float64(d)
	return d + time.Duration(spread)
}
