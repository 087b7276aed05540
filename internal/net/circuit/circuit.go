package circuit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker is open
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRequestTimeout is returned when a request outlives Config.RequestTimeout
	ErrRequestTimeout = errors.New("request timeout")
)

// State represents the circuit breaker state
type State int

const (
	StateClosed   State = iota // Circuit is closed, requests allowed
	StateOpen                  // Circuit is open, requests blocked
	StateHalfOpen              // Circuit is half-open, probing requests allowed
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

func fromGobreaker(s gobreaker.State) State {
	switch s {
	case gobreaker.StateOpen:
		return StateOpen
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateClosed
	}
}

// Config represents circuit breaker configuration
type Config struct {
	FailureThreshold int           // Consecutive failures to open circuit
	SuccessThreshold int           // Consecutive successes to close circuit from half-open
	Timeout          time.Duration // Time to wait before transitioning to half-open
	RequestTimeout   time.Duration // Individual request deadline, 0 disables it
}

// DefaultConfig suits a single slow upstream call such as a grounded model generation
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		SuccessThreshold: 1,
		Timeout:          30 * time.Second,
		RequestTimeout:   45 * time.Second,
	}
}

// StateChangeFunc is notified on every transition
type StateChangeFunc func(name string, from, to State)

// Breaker bounds every call with a deadline and stops calling a failing upstream
type Breaker struct {
	name     string
	config   Config
	onChange StateChangeFunc

	mu       sync.RWMutex
	cb       *gobreaker.CircuitBreaker
	timeouts atomic.Int64
}

// NewBreaker creates a new circuit breaker with the specified configuration
func NewBreaker(name string, config Config, onChange StateChangeFunc) *Breaker {
	b := &Breaker{
		name:     name,
		config:   config,
		onChange: onChange,
	}
	b.cb = b.newGobreaker()
	return b
}

func (b *Breaker) newGobreaker() *gobreaker.CircuitBreaker {
	threshold := uint32(b.config.FailureThreshold)
	if threshold == 0 {
		threshold = 1
	}
	successes := uint32(b.config.SuccessThreshold)
	if successes == 0 {
		successes = 1
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        b.name,
		MaxRequests: successes,
		Timeout:     b.config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// The caller walking away is not the upstream's fault
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if b.onChange != nil {
				b.onChange(name, fromGobreaker(from), fromGobreaker(to))
			}
		},
	})
}

// Name returns the breaker name
func (b *Breaker) Name() string {
	return b.name
}

// Call executes fn if the breaker allows it, cancelling fn's context at the request deadline
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	b.mu.RLock()
	cb := b.cb
	b.mu.RUnlock()

	_, err := cb.Execute(func() (interface{}, error) {
		return nil, b.run(ctx, fn)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

func (b *Breaker) run(ctx context.Context, fn func(ctx context.Context) error) error {
	if b.config.RequestTimeout <= 0 {
		return fn(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, b.config.RequestTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- fn(timeoutCtx)
	}()

	var err error
	select {
	case err = <-done:
		if err == nil {
			return nil
		}
	case <-timeoutCtx.Done():
		err = timeoutCtx.Err()
	}

	// Distinguish our deadline from the caller's cancellation or deadline
	if ctx.Err() == nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		b.timeouts.Add(1)
		return ErrRequestTimeout
	}
	return err
}

// State returns the current circuit breaker state
func (b *Breaker) State() State {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return fromGobreaker(b.cb.State())
}

// Stats represents circuit breaker statistics since the last state change
type Stats struct {
	Name                 string  `json:"name"`
	State                State   `json:"state"`
	TotalRequests        uint32  `json:"total_requests"`
	TotalSuccesses       uint32  `json:"total_successes"`
	TotalFailures        uint32  `json:"total_failures"`
	ConsecutiveFailures  uint32  `json:"consecutive_failures"`
	ConsecutiveSuccesses uint32  `json:"consecutive_successes"`
	TotalTimeouts        int64   `json:"total_timeouts"`
	SuccessRate          float64 `json:"success_rate"`
}

// Stats returns current circuit breaker statistics
func (b *Breaker) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := b.cb.Counts()
	successRate := float64(0)
	if counts.Requests > 0 {
		successRate = float64(counts.TotalSuccesses) / float64(counts.Requests)
	}

	return Stats{
		Name:                 b.name,
		State:                fromGobreaker(b.cb.State()),
		TotalRequests:        counts.Requests,
		TotalSuccesses:       counts.TotalSuccesses,
		TotalFailures:        counts.TotalFailures,
		ConsecutiveFailures:  counts.ConsecutiveFailures,
		ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
		TotalTimeouts:        b.timeouts.Load(),
		SuccessRate:          successRate,
	}
}

// IsHealthy returns true if the circuit breaker indicates healthy service
func (s *Stats) IsHealthy() bool {
	return s.State == StateClosed
}

