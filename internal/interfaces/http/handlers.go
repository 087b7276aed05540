package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/brlpulse/internal/convert"
	"github.com/sawpanic/brlpulse/internal/dashboard"
	"github.com/sawpanic/brlpulse/internal/market"
	"github.com/sawpanic/brlpulse/internal/metrics"
	"github.com/sawpanic/brlpulse/internal/net/budget"
	"github.com/sawpanic/brlpulse/internal/net/circuit"
	"github.com/sawpanic/brlpulse/internal/net/ratelimit"
)

// HealthSource reports the state of the provider path
type HealthSource interface {
	Breaker() *circuit.Breaker
	BudgetStats() budget.Stats
	LimiterStats() map[string]ratelimit.LimiterStats
	InFlight() bool
}

// Handlers manages all HTTP endpoint handlers
type Handlers struct {
	service       *dashboard.Service
	health        HealthSource
	metrics       *metrics.Registry
	defaultAmount string
	version       string
	startTime     time.Time
}

// NewHandlers creates a new handlers instance
func NewHandlers(service *dashboard.Service, health HealthSource, m *metrics.Registry, defaultAmount, version string) *Handlers {
	if defaultAmount == "" {
		defaultAmount = convert.DefaultAmount
	}
	return &Handlers{
		service:       service,
		health:        health,
		metrics:       m,
		defaultAmount: defaultAmount,
		version:       version,
		startTime:     time.Now(),
	}
}

// writeJSON writes JSON response with proper error handling
func (h *Handlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

// writeError writes standardized error response
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	h.writeJSON(w, status, ErrorResponse{
		Error:     http.StatusText(status),
		Message:   message,
		Code:      code,
		RequestID: requestID(r),
		Timestamp: time.Now().UTC(),
	})
}

// NotFound handles 404 responses
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	h.writeError(w, r, http.StatusNotFound, "endpoint_not_found",
		"The requested endpoint does not exist")
}

// Market returns the current dashboard view
func (h *Handlers) Market(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.service.Board().View())
}

// Refresh runs one fetch cycle and returns its FetchResult
func (h *Handlers) Refresh(w http.ResponseWriter, r *http.Request) {
	// a browser navigating away must not abort a paid provider call; the breaker deadline bounds it
	result := h.service.Refresh(context.WithoutCancel(r.Context()))

	if result.ErrorKind == market.KindFetchInFlight {
		h.writeJSON(w, http.StatusConflict, result)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

// Convert converts ?amount= reais at the current snapshot
func (h *Handlers) Convert(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.service.Board().Snapshot()
	if !ok {
		h.writeError(w, r, http.StatusNotFound, "no_snapshot",
			"No market data has been fetched yet")
		return
	}

	amount := r.URL.Query().Get("amount")
	if amount == "" {
		amount = h.defaultAmount
	}
	brl, valid := convert.ParseAmount(amount)
	result := convert.Convert(amount, snap)

	if !result.Finite() {
		h.writeError(w, r, http.StatusUnprocessableEntity, "non_finite_result",
			"The current snapshot has a zero rate, so the conversion is undefined")
		return
	}

	h.writeJSON(w, http.StatusOK, ConvertResponse{
		Amount:    amount,
		AmountBRL: brl,
		Valid:     valid,
		Result:    result,
		Formatted: FormattedResult{
			USD:  result.FormatUSD(),
			BTC:  result.FormatBTC(),
			Gold: result.FormatGold(),
		},
		Snapshot: snap,
	})
}

// WebSocket streams dashboard views
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.service.Hub().ServeWS(w, r, h.service.Board().View())
}

// Metrics serves the Prometheus registry
func (h *Handlers) Metrics() http.Handler {
	return h.metrics.Handler()
}

// Close disconnects dashboard clients
func (h *Handlers) Close() {
	h.service.Hub().Close()
}
