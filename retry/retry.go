// Package retry runs fallible remote calls with bounded exponential backoff.
//
// Do blocks the calling goroutine while backing off. DoAsync runs the same
// schedule on its own goroutine and abandons the wait as soon as the
// context is done. Both share Backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/natexcvi/go-chatgpt/engines"
	"github.com/samber/mo"
	log "github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts    = 5
	DefaultInitialBackoff = time.Second
)

var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

type Policy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	// Retryable decides whether a failure is worth another attempt.
	// Defaults to engines.IsRemoteServiceError.
	Retryable func(error) bool
	// Sleep waits between attempts. Do defaults to BlockingSleep,
	// DoAsync to ContextSleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		InitialBackoff: DefaultInitialBackoff,
		Retryable:      engines.IsRemoteServiceError,
	}
}

// Backoff returns the wait after the given failed attempt (1-based):
// initial * 2^(attempt-1).
func Backoff(initial time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return initial << (attempt - 1)
}

func BlockingSleep(_ context.Context, d time.Duration) error {
	time.Sleep(d)
	return nil
}

func ContextSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func Do[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) (T, error) {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = BlockingSleep
	}
	return run(ctx, policy, sleep, op)
}

func DoAsync[T any](ctx context.Context, policy Policy, op func(ctx context.Context) (T, error)) <-chan mo.Result[T] {
	sleep := policy.Sleep
	if sleep == nil {
		sleep = ContextSleep
	}
	result := make(chan mo.Result[T], 1)
	go func() {
		defer close(result)
		value, err := run(ctx, policy, sleep, op)
		if err != nil {
			result <- mo.Err[T](err)
			return
		}
		result <- mo.Ok(value)
	}()
	return result
}

func run[T any](ctx context.Context, policy Policy, sleep func(context.Context, time.Duration) error, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := policy.Retryable
	if retryable == nil {
		retryable = engines.IsRemoteServiceError
	}
	var zero T
	for attempt := 1; ; attempt++ {
		value, err := op(ctx)
		if err == nil {
			return value, nil
		}
		if !retryable(err) {
			return zero, err
		}
		if attempt >= attempts {
			return zero, fmt.Errorf("%w after %d attempts: %w", ErrMaxRetriesExceeded, attempt, err)
		}
		wait := Backoff(policy.InitialBackoff, attempt)
		log.Warnf("attempt %d/%d failed, retrying in %s: %s", attempt, attempts, wait, err)
		if err := sleep(ctx, wait); err != nil {
			return zero, err
		}
	}
}
