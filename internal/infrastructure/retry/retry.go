// Package retry implements the backoff policy wrapped around every
// dispatched platform call: transient failures are retried with jittered
// exponential backoff honoring server-supplied retry hints, permanent
// failures propagate immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Error classification
// ---------------------------------------------------------------------------

// Class is the retry classification of a failure.
type Class string

const (
	// ClassTransient failures are retried with backoff
	ClassTransient Class = "transient"
	// ClassPermanent failures require human intervention and are never retried
	ClassPermanent Class = "permanent"
)

// HTTPError carries the destination's HTTP failure details through the
// adapter boundary so the policy can classify it.
type HTTPError struct {
	// StatusCode is the HTTP response status
	StatusCode int
	// RetryAfter is the server-supplied retry hint (zero when absent)
	RetryAfter time.Duration
	// Message is the condensed response body or status text
	Message string
}

// Error implements the error interface
func (e *HTTPError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("retry: http %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("retry: http %d", e.StatusCode)
}

// Classify categorizes a failure by status code and error value.
//
//	no status, network/connection failure  -> transient
//	429, 408, 5xx                          -> transient
//	401, 403, any other 4xx                -> permanent
func Classify(statusCode int, err error) Class {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ClassTransient
	case statusCode == http.StatusRequestTimeout:
		return ClassTransient
	case statusCode >= 500 && statusCode < 600:
		return ClassTransient
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return ClassPermanent
	case statusCode >= 400 && statusCode < 500:
		return ClassPermanent
	case statusCode != 0:
		// Unexpected non-error status reported as a failure; do not retry.
		return ClassPermanent
	}

	if isNetworkError(err) {
		return ClassTransient
	}
	return ClassPermanent
}

// isNetworkError reports whether err looks like a connection-level failure.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"no such host",
		"network is unreachable",
		"timeout",
		"timed out",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Policy
// ---------------------------------------------------------------------------

// Options configures the retry policy.
type Options struct {
	// MaxRetries is the number of retries after the first attempt
	MaxRetries int
	// BaseDelay is the first backoff delay
	BaseDelay time.Duration
	// MaxDelay caps every delay, including Retry-After hints
	MaxDelay time.Duration
	// BackoffMultiplier grows the delay per attempt
	BackoffMultiplier float64
}

// DefaultOptions returns the policy defaults.
func DefaultOptions() Options {
	return Options{
		MaxRetries:        3,
		BaseDelay:         time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2,
	}
}

// Policy retries transient failures with jittered exponential backoff.
type Policy struct {
	opts   Options
	logger *zap.Logger

	// sleep and jitter are injectable for tests
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(d time.Duration) time.Duration
}

// NewPolicy creates a retry policy with the given options.
func NewPolicy(opts Options, logger *zap.Logger) *Policy {
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.BackoffMultiplier < 1 {
		opts.BackoffMultiplier = 2
	}
	return &Policy{
		opts:   opts,
		logger: logger,
		sleep:  sleepWithContext,
		jitter: additiveJitter,
	}
}

// Do runs fn, retrying transient failures up to MaxRetries times. Permanent
// failures propagate immediately without consuming retry budget. On
// exhaustion the last error is returned annotated with the attempt count.
func (p *Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		statusCode, retryAfter := httpDetails(lastErr)
		if Classify(statusCode, lastErr) == ClassPermanent {
			return lastErr
		}
		if attempt >= p.opts.MaxRetries {
			return fmt.Errorf("%w (after %d attempts)", lastErr, attempt+1)
		}

		delay := p.delayFor(attempt, statusCode, retryAfter)
		p.logger.Debug("Transient failure, backing off",
			zap.Int("attempt", attempt+1),
			zap.Int("status_code", statusCode),
			zap.Duration("delay", delay),
			zap.Error(lastErr),
		)

		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
	}
}

// delayFor computes the backoff before the next attempt. A Retry-After hint
// on 429 overrides the exponential schedule, capped at MaxDelay. Jitter is
// only ever added, never subtracted, to avoid synchronized retry storms.
func (p *Policy) delayFor(attempt, statusCode int, retryAfter time.Duration) time.Duration {
	if statusCode == http.StatusTooManyRequests && retryAfter > 0 {
		if retryAfter > p.opts.MaxDelay {
			return p.opts.MaxDelay
		}
		return retryAfter
	}

	delay := time.Duration(float64(p.opts.BaseDelay) * pow(p.opts.BackoffMultiplier, attempt))
	if delay > p.opts.MaxDelay {
		delay = p.opts.MaxDelay
	}
	return delay + p.jitter(delay)
}

// httpDetails extracts the status code and retry hint when err wraps an HTTPError.
func httpDetails(err error) (int, time.Duration) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, httpErr.RetryAfter
	}
	return 0, 0
}

// additiveJitter returns up to 30% of d, uniformly random.
func additiveJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(d)*3/10 + 1))
}

// pow is an integer-exponent power without importing math.
func pow(base float64, exp int) float64 {
	result := 1.0
	for i := 0; i < exp; i++ {
		result *= base
	}
	return result
}

// sleepWithContext sleeps for d or until the context is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
