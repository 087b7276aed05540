package http

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/brlpulse/internal/metrics"
	"github.com/sawpanic/brlpulse/internal/net/circuit"
	"github.com/sawpanic/brlpulse/internal/net/ratelimit"
)

// Health implements the health check endpoint
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	response := h.gatherHealthInfo()

	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	status := http.StatusOK
	if response.Status == "unhealthy" {
		status = http.StatusServiceUnavailable
	}
	h.writeJSON(w, status, response)
}

// gatherHealthInfo collects all health information
func (h *Handlers) gatherHealthInfo() HealthResponse {
	response := HealthResponse{
		Timestamp: time.Now().UTC(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Version:   h.version,
		Breaker:   h.health.Breaker().Stats(),
		Budget:    h.health.BudgetStats(),
		RateLimit: h.health.LimiterStats(),
		Clients:   h.service.Hub().Count(),
		Checks:    make(map[string]CheckResult),
	}

	if summary, err := h.metrics.Summary(); err == nil {
		response.Fetches = &summary
		response.Checks["fetch_history"] = fetchHistoryCheck(summary)
	} else {
		log.Warn().Err(err).Msg("Failed to gather metrics for health")
	}

	h.addProviderChecks(&response)
	h.addFetchCheck(&response)
	response.Status = overallStatus(response.Checks)
	return response
}

func (h *Handlers) addProviderChecks(response *HealthResponse) {
	switch {
	case response.Breaker.IsHealthy():
		response.Checks["provider_circuit"] = CheckResult{Status: "pass", Message: "Provider circuit is closed"}
	case response.Breaker.State == circuit.StateHalfOpen:
		response.Checks["provider_circuit"] = CheckResult{Status: "warn", Message: "Provider circuit is probing"}
	default:
		response.Checks["provider_circuit"] = CheckResult{Status: "fail", Message: "Provider circuit is open"}
	}

	response.Checks["rate_limit"] = rateLimitCheck(response.RateLimit)

	b := response.Budget
	switch {
	case b.Limit == 0:
		response.Checks["budget"] = CheckResult{Status: "pass", Message: "No daily call budget configured"}
	case b.IsExhausted:
		response.Checks["budget"] = CheckResult{Status: "fail",
			Message: fmt.Sprintf("Daily call budget exhausted (%d/%d)", b.Used, b.Limit)}
	case b.IsWarning:
		response.Checks["budget"] = CheckResult{Status: "warn",
			Message: fmt.Sprintf("Daily call budget at %.0f%%", b.UtilizationRate*100)}
	default:
		response.Checks["budget"] = CheckResult{Status: "pass",
			Message: fmt.Sprintf("%d of %d daily calls left", b.Remaining, b.Limit)}
	}
}

func (h *Handlers) addFetchCheck(response *HealthResponse) {
	view := h.service.Board().View()
	switch {
	case h.health.InFlight():
		response.Checks["last_fetch"] = CheckResult{Status: "pass", Message: "Fetch in progress"}
	case view.FetchedAt == nil:
		response.Checks["last_fetch"] = CheckResult{Status: "warn", Message: "No fetch yet"}
	case view.Error != "":
		response.Checks["last_fetch"] = CheckResult{Status: "warn",
			Message: fmt.Sprintf("Last fetch failed (%s)", view.ErrorKind)}
	default:
		response.Checks["last_fetch"] = CheckResult{Status: "pass",
			Message: fmt.Sprintf("Last fetch succeeded at %s", view.FetchedAt.UTC().Format(time.RFC3339))}
	}
}

// rateLimitCheck warns while any outbound bucket is empty; a refresh now would be refused
func rateLimitCheck(stats map[string]ratelimit.LimiterStats) CheckResult {
	if len(stats) == 0 {
		return CheckResult{Status: "pass", Message: "No provider calls yet"}
	}

	keys := make([]string, 0, len(stats))
	for key := range stats {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		st := stats[key]
		if st.IsThrottled() {
			return CheckResult{Status: "warn",
				Message: fmt.Sprintf("Calls to %s throttled for %s", key, st.Delay.Round(time.Second))}
		}
	}
	return CheckResult{Status: "pass", Message: "Outbound calls within rate limit"}
}

func fetchHistoryCheck(summary metrics.Summary) CheckResult {
	outcomes := summary.Outcomes()
	if len(outcomes) == 0 {
		return CheckResult{Status: "pass", Message: "No fetches recorded"}
	}

	parts := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		parts = append(parts, fmt.Sprintf("%s=%.0f", o, summary.Fetches[o]))
	}
	return CheckResult{Status: "pass", Message: strings.Join(parts, ", ")}
}

// overallStatus: any failing check is unhealthy, any warning degraded
func overallStatus(checks map[string]CheckResult) string {
	status := "healthy"
	for _, check := range checks {
		switch check.Status {
		case "fail":
			return "unhealthy"
		case "warn":
			status = "degraded"
		}
	}
	return status
}
