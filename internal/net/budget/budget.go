package budget

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrBudgetExhausted is returned when the daily call budget is used up
	ErrBudgetExhausted = errors.New("daily budget exhausted")
	// ErrBudgetWarning is returned when usage crosses the warning threshold
	ErrBudgetWarning = errors.New("budget warning threshold exceeded")
)

// ExhaustedError provides detailed information about budget exhaustion
type ExhaustedError struct {
	Provider string
	Used     int64
	Limit    int64
	ETA      time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("budget exhausted for %s: %d/%d calls used, resets at %s",
		e.Provider, e.Used, e.Limit, e.ETA.Format("15:04 UTC"))
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrBudgetExhausted
}

// WarningError is informational: the call was counted and may proceed
type WarningError struct {
	Provider  string
	Used      int64
	Limit     int64
	Threshold float64
}

func (e *WarningError) Error() string {
	utilization := float64(e.Used) / float64(e.Limit) * 100
	return fmt.Sprintf("budget warning for %s: %.1f%% used (%d/%d), threshold %.1f%%",
		e.Provider, utilization, e.Used, e.Limit, e.Threshold*100)
}

func (e *WarningError) Is(target error) bool {
	return target == ErrBudgetWarning
}

// Tracker counts billable provider calls per UTC day
type Tracker struct {
	mu            sync.Mutex
	provider      string
	limit         int64   // 0 disables the budget
	used          int64
	resetHour     int     // UTC hour to reset (0-23)
	warnThreshold float64 // Warning threshold (0.0-1.0)
	lastReset     time.Time
	now           func() time.Time
}

// NewTracker creates a new budget tracker
func NewTracker(provider string, limit int64, resetHour int, warnThreshold float64) *Tracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	if warnThreshold <= 0 || warnThreshold > 1 {
		warnThreshold = 0.8
	}

	t := &Tracker{
		provider:      provider,
		limit:         limit,
		resetHour:     resetHour,
		warnThreshold: warnThreshold,
		now:           func() time.Time { return time.Now().UTC() },
	}
	t.lastReset = lastResetTime(t.now(), resetHour)
	return t
}

// lastResetTime calculates the most recent reset instant at or before now
func lastResetTime(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

// rollover must be called with mu held
func (t *Tracker) rollover() {
	now := t.now()
	if !now.Before(t.lastReset.Add(24 * time.Hour)) {
		t.used = 0
		t.lastReset = lastResetTime(now, t.resetHour)
	}
}

// Consume counts one call. It returns an *ExhaustedError without counting when the
// budget is used up, and a *WarningError after counting once usage reaches the threshold.
func (t *Tracker) Consume() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.limit <= 0 {
		return nil
	}
	t.rollover()

	if t.used >= t.limit {
		return &ExhaustedError{
			Provider: t.provider,
			Used:     t.used,
			Limit:    t.limit,
			ETA:      t.lastReset.Add(24 * time.Hour),
		}
	}

	t.used++
	if float64(t.used)/float64(t.limit) >= t.warnThreshold {
		return &WarningError{
			Provider:  t.provider,
			Used:      t.used,
			Limit:     t.limit,
			Threshold: t.warnThreshold,
		}
	}
	return nil
}

// Stats represents budget tracker statistics
type Stats struct {
	Provider        string    `json:"provider"`
	Limit           int64     `json:"limit"`
	Used            int64     `json:"used"`
	Remaining       int64     `json:"remaining"`
	UtilizationRate float64   `json:"utilization_rate"`
	NextReset       time.Time `json:"next_reset"`
	IsWarning       bool      `json:"is_warning"`
	IsExhausted     bool      `json:"is_exhausted"`
}

// Stats returns current budget statistics
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.rollover()

	s := Stats{
		Provider:  t.provider,
		Limit:     t.limit,
		Used:      t.used,
		NextReset: t.lastReset.Add(24 * time.Hour),
	}
	if t.limit > 0 {
		s.Remaining = t.limit - t.used
		s.UtilizationRate = float64(t.used) / float64(t.limit)
		s.IsWarning = s.UtilizationRate >= t.warnThreshold
		s.IsExhausted = t.used >= t.limit
	}
	return s
}

