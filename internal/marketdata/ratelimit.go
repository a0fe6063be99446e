package marketdata

import (
	"context"
	"sync"
	"time"
)

const (
	maxBackoffMultiplier = 5.0
	backoffDecayWindow   = time.Minute
)

// RateLimiter enforces a minimum delay between outbound calls, scaled by a
// backoff multiplier that grows on rate-limit errors and decays back toward
// 1.0 after a clean minute. The state is shared across all calls from one
// provider instance, so every access goes through the mutex.
type RateLimiter struct {
	mu           sync.Mutex
	baseDelay    time.Duration
	multiplier   float64
	lastCall     time.Time
	lastLimitErr time.Time
}

// NewRateLimiter creates a limiter with the given base inter-call delay.
func NewRateLimiter(baseDelay time.Duration) *RateLimiter {
	return &RateLimiter{
		baseDelay:  baseDelay,
		multiplier: 1.0,
	}
}

// Wait blocks until the enforced inter-call delay has elapsed, or the
// context is cancelled.
func (l *RateLimiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	delay := time.Duration(float64(l.baseDelay) * l.multiplier)
	elapsed := time.Since(l.lastCall)
	remaining := delay - elapsed
	l.lastCall = time.Now().Add(max(remaining, 0))
	l.mu.Unlock()

	if remaining <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(remaining):
		return nil
	}
}

// OnRateLimit records a rate-limit error, doubling the backoff multiplier
// up to the cap.
func (l *RateLimiter) OnRateLimit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastLimitErr = time.Now()
	l.multiplier *= 2
	if l.multiplier > maxBackoffMultiplier {
		l.multiplier = maxBackoffMultiplier
	}
}

// OnSuccess decays the multiplier toward 1.0 once a full minute has passed
// without rate-limit errors.
func (l *RateLimiter) OnSuccess() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.multiplier > 1.0 && time.Since(l.lastLimitErr) >= backoffDecayWindow {
		l.multiplier /= 2
		if l.multiplier < 1.0 {
			l.multiplier = 1.0
		}
	}
}

// Multiplier returns the current backoff multiplier.
func (l *RateLimiter) Multiplier() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.multiplier
}
