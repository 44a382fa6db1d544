package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a token bucket that can additionally be paused when the remote
// side asks us to back off (HTTP 429 with Retry-After). Each API client and
// the notifier own their own instance.
type Limiter struct {
	limiter     *rate.Limiter
	mu          sync.Mutex
	pausedUntil time.Time
	pauses      int
}

type Config struct {
	RequestsPerSecond float64
	BurstSize         int
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2.0,
		BurstSize:         1,
	}
}

// NewLimiter creates a limiter. A non-positive rate means unlimited.
func NewLimiter(config Config) *Limiter {
	limit := rate.Limit(config.RequestsPerSecond)
	if config.RequestsPerSecond <= 0 {
		limit = rate.Inf
	}
	burst := config.BurstSize
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(limit, burst),
	}
}

// Wait blocks until any pause has elapsed and a token is available.
func (l *Limiter) Wait(ctx context.Context) error {
	l.mu.Lock()
	delay := time.Until(l.pausedUntil)
	l.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return l.limiter.Wait(ctx)
}

// PauseFor holds every caller of Wait for at least d. Overlapping pauses
// keep the later deadline.
func (l *Limiter) PauseFor(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	until := time.Now().Add(d)
	if until.After(l.pausedUntil) {
		l.pausedUntil = until
	}
	l.pauses++
}

func (l *Limiter) Allow() bool {
	l.mu.Lock()
	paused := time.Now().Before(l.pausedUntil)
	l.mu.Unlock()
	if paused {
		return false
	}
	return l.limiter.Allow()
}

func (l *Limiter) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	return Stats{
		Limit:       float64(l.limiter.Limit()),
		BurstSize:   l.limiter.Burst(),
		PausedUntil: l.pausedUntil,
		Pauses:      l.pauses,
	}
}

type Stats struct {
	Limit       float64
	BurstSize   int
	PausedUntil time.Time
	Pauses      int
}
