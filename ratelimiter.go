package room

import (
	"context"
	"time"
)

// ingressLimiter is a per-stream soft rate limiter: a content-bytes-only
// token bucket that refills every second and throttles an abusive peer
// with a sleep rather than closing the connection.
//
// It is hand-rolled rather than built on golang.org/x/time/rate because
// its sleep formula — sleep(rate/max_stream_rate) seconds, then keep
// accumulating in the same window — has no equivalent in a generic
// token-bucket Wait/Allow API. The egress throttle in service.go uses
// rate.Limiter precisely because it has no such constraint.
type ingressLimiter struct {
	maxRate     int64
	windowStart time.Time
	rate        int64
}

func newIngressLimiter(maxRate int64) *ingressLimiter {
	return &ingressLimiter{maxRate: maxRate, windowStart: time.Now()}
}

// observe records n newly-received content bytes and blocks, honoring
// ctx cancellation, if the running total for the current window exceeds
// maxRate.
//
// rate resets to maxRate after a sleep rather than keeping its over-cap
// value, so a single burst is penalized once rather than compounding
// into an ever-growing sleep on every subsequent message of the same
// window (see DESIGN.md).
func (l *ingressLimiter) observe(ctx context.Context, n int64) error {
	if l.maxRate <= 0 {
		return nil
	}

	now := time.Now()
	if now.Sub(l.windowStart) >= time.Second {
		l.rate = 0
		l.windowStart = now
	}
	l.rate += n

	if l.rate > l.maxRate {
		sleepFor := time.Duration(float64(l.rate) / float64(l.maxRate) * float64(time.Second))
		timer := time.NewTimer(sleepFor)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
		l.rate = l.maxRate
	}

	return nil
}
