package http

import (
	"time"

	"github.com/sawpanic/brlpulse/internal/convert"
	"github.com/sawpanic/brlpulse/internal/market"
	"github.com/sawpanic/brlpulse/internal/metrics"
	"github.com/sawpanic/brlpulse/internal/net/budget"
	"github.com/sawpanic/brlpulse/internal/net/circuit"
	"github.com/sawpanic/brlpulse/internal/net/ratelimit"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Code      string    `json:"code"`
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`
}

// ConvertResponse represents a BRL amount converted at the current snapshot
type ConvertResponse struct {
	Amount    string          `json:"amount"`
	AmountBRL float64         `json:"amount_brl"`
	Valid     bool            `json:"valid"` // false: amount was not a number and every result is 0
	Result    convert.Result  `json:"result"`
	Formatted FormattedResult `json:"formatted"`
	Snapshot  market.Snapshot `json:"snapshot"`
}

// FormattedResult holds display strings for a conversion
type FormattedResult struct {
	USD  string `json:"usd"`
	BTC  string `json:"btc"`
	Gold string `json:"gold"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string                            `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time                         `json:"timestamp"`
	Uptime    string                            `json:"uptime"`
	Version   string                            `json:"version"`
	Breaker   circuit.Stats                     `json:"breaker"`
	Budget    budget.Stats                      `json:"budget"`
	RateLimit map[string]ratelimit.LimiterStats `json:"rate_limit"`
	Fetches   *metrics.Summary                  `json:"fetches,omitempty"`
	Clients   int                               `json:"ws_clients"`
	Checks    map[string]CheckResult            `json:"checks"`
}

// CheckResult represents individual health check results
type CheckResult struct {
	Status  string `json:"status"` // "pass", "warn", "fail"
	Message string `json:"message"`
}
