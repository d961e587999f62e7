package prober

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"net"
	"syscall"
	"time"
)

const (
	defaultRetryTries     = 2
	defaultRetryBaseDelay = 400 * time.Millisecond
	retryJitterMax        = 250 * time.Millisecond
)

// Op is one attempt of a probe.
type Op func(ctx context.Context) (*Response, error)

// Retry runs op with the default attempt count and base delay.
func Retry(ctx context.Context, op Op) (*Response, error) {
	return RetryWith(ctx, op, defaultRetryTries, defaultRetryBaseDelay)
}

// RetryWith runs op up to tries times. Between attempts it sleeps
// baseDelay*attempt plus uniform jitter. Only aborts and transient network
// errors are retried; an HTTP status is a result, never a retry trigger.
func RetryWith(ctx context.Context, op Op, tries int, baseDelay time.Duration) (*Response, error) {
	if tries < 1 {
		tries = 1
	}

	var lastErr error
	for attempt := 1; attempt <= tries; attempt++ {
		resp, err := op(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == tries || !IsTransient(err) {
			break
		}

		select {
		case <-time.After(retryDelay(attempt, baseDelay)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

// retryDelay grows linearly with the attempt number and adds uniform
// jitter in [0, retryJitterMax).
func retryDelay(attempt int, baseDelay time.Duration) time.Duration {
	return time.Duration(attempt)*baseDelay + time.Duration(rand.Int63n(int64(retryJitterMax)))
}

// IsAbort reports whether err is a deadline or cancellation rather than an
// origin failure.
func IsAbort(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsTransient reports whether err is worth one more attempt: aborts,
// resets, refused connections, DNS failures, unreachable networks, and
// truncated reads.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if IsAbort(err) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, syscall.ENETUNREACH) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
