package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter applies a token bucket per key, usually one key per upstream provider
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64 // Requests per second
	burst    int     // Burst capacity
}

// NewLimiter creates a new rate limiter with the specified RPS and burst capacity.
// A non-positive rps disables limiting.
func NewLimiter(rps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rps,
		burst:    burst,
	}
}

func (l *Limiter) limit() rate.Limit {
	if l.rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(l.rps)
}

// getLimiter returns or creates the bucket for key
func (l *Limiter) getLimiter(key string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[key]
	l.mu.RUnlock()

	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, exists := l.limiters[key]; exists {
		return limiter
	}

	limiter = rate.NewLimiter(l.limit(), l.burst)
	l.limiters[key] = limiter
	return limiter
}

// Allow reports whether a call for key may happen now, consuming a token if so
func (l *Limiter) Allow(key string) bool {
	return l.getLimiter(key).Allow()
}

// Stats returns statistics for every key seen so far
func (l *Limiter) Stats() map[string]LimiterStats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := make(map[string]LimiterStats, len(l.limiters))
	now := time.Now()

	for key, limiter := range l.limiters {
		if l.rps <= 0 {
			// rate.Inf has no meaningful token count
			stats[key] = LimiterStats{Key: key, Burst: l.burst, TokensAvailable: float64(l.burst), NextAllowedAt: now}
			continue
		}

		reservation := limiter.ReserveN(now, 1)
		delay := reservation.DelayFrom(now)
		reservation.CancelAt(now) // only peeking

		stats[key] = LimiterStats{
			Key:             key,
			RPS:             l.rps,
			Burst:           limiter.Burst(),
			TokensAvailable: limiter.TokensAt(now),
			NextAllowedAt:   now.Add(delay),
			Delay:           delay,
		}
	}

	return stats
}

// LimiterStats represents statistics for a single key
type LimiterStats struct {
	Key             string        `json:"key"`
	RPS             float64       `json:"rps"` // 0: unlimited
	Burst           int           `json:"burst"`
	TokensAvailable float64       `json:"tokens_available"`
	NextAllowedAt   time.Time     `json:"next_allowed_at"`
	Delay           time.Duration `json:"delay"`
}

// IsThrottled returns true if the limiter is currently throttling requests
func (s *LimiterStats) IsThrottled() bool {
	return s.Delay > 0
}
