package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/brlpulse/internal/dashboard"
	"github.com/sawpanic/brlpulse/internal/market"
	"github.com/sawpanic/brlpulse/internal/metrics"
	"github.com/sawpanic/brlpulse/internal/net/budget"
	"github.com/sawpanic/brlpulse/internal/net/circuit"
	"github.com/sawpanic/brlpulse/internal/net/ratelimit"
)

type fetcherFunc func(ctx context.Context) market.FetchResult

func (f fetcherFunc) Fetch(ctx context.Context) market.FetchResult { return f(ctx) }

type stubHealth struct {
	breaker  *circuit.Breaker
	budget   budget.Stats
	limiter  map[string]ratelimit.LimiterStats
	inFlight bool
}

func (s *stubHealth) Breaker() *circuit.Breaker { return s.breaker }
func (s *stubHealth) BudgetStats() budget.Stats { return s.budget }
func (s *stubHealth) InFlight() bool            { return s.inFlight }

func (s *stubHealth) LimiterStats() map[string]ratelimit.LimiterStats { return s.limiter }

func okFetch(ctx context.Context) market.FetchResult {
	return market.FetchResult{
		ID:       "fetch-1",
		Snapshot: &market.Snapshot{BTC: 50000, Gold: 2000, USDToBRL: 5, CapturedAt: time.Now()},
		Sources:  []market.Citation{{Title: "Quotes", URL: "https://example.com/q"}},
		RawText:  "DATA_START\nBTC: 50000\nGOLD: 2000\nUSD_BRL: 5\nDATA_END",
	}
}

type fixture struct {
	server  *Server
	service *dashboard.Service
	health  *stubHealth
	metrics *metrics.Registry
}

func newFixture(t *testing.T, fetch fetcherFunc) *fixture {
	t.Helper()
	reg := metrics.NewRegistry()
	svc := dashboard.NewService(fetch, dashboard.NewBoard(), dashboard.NewHub(reg.SetWSClients))
	health := &stubHealth{
		breaker: circuit.NewBreaker("gemini", circuit.DefaultConfig(), nil),
		budget:  budget.NewTracker("gemini", 0, 0, 0.8).Stats(),
	}
	h := NewHandlers(svc, health, reg, "1000", "test")
	srv := NewServer(ServerConfig{Addr: "127.0.0.1:0", HandlerTimeout: 5 * time.Second}, h)
	t.Cleanup(h.Close)
	return &fixture{server: srv, service: svc, health: health, metrics: reg}
}

func (f *fixture) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth_NoFetchYetIsDegraded(t *testing.T) {
	f := newFixture(t, okFetch)

	rec := f.do(t, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "warn", resp.Checks["last_fetch"].Status)
	assert.Equal(t, "pass", resp.Checks["provider_circuit"].Status)
	assert.Equal(t, "pass", resp.Checks["budget"].Status)
	assert.Equal(t, "pass", resp.Checks["rate_limit"].Status)
	assert.Equal(t, "No provider calls yet", resp.Checks["rate_limit"].Message)
	assert.Equal(t, "No fetches recorded", resp.Checks["fetch_history"].Message)
	assert.Equal(t, "test", resp.Version)
	require.NotNil(t, resp.Fetches)
}

func TestHealth_Healthy(t *testing.T) {
	f := newFixture(t, okFetch)
	f.service.Refresh(context.Background())

	var resp HealthResponse
	rec := f.do(t, http.MethodGet, "/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "healthy", resp.Status)
}

func TestHealth_OpenCircuitIsUnhealthy(t *testing.T) {
	f := newFixture(t, okFetch)
	f.service.Refresh(context.Background())

	boom := errors.New("boom")
	for i := 0; i < circuit.DefaultConfig().FailureThreshold; i++ {
		_ = f.health.breaker.Call(context.Background(), func(ctx context.Context) error { return boom })
	}
	require.Equal(t, circuit.StateOpen, f.health.breaker.State())

	rec := f.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "unhealthy", resp.Status)
	assert.Equal(t, "fail", resp.Checks["provider_circuit"].Status)
}

func TestHealth_BudgetChecks(t *testing.T) {
	tests := []struct {
		name   string
		stats  budget.Stats
		status string
	}{
		{name: "warning", stats: budget.Stats{Limit: 10, Used: 9, Remaining: 1, UtilizationRate: 0.9, IsWarning: true}, status: "warn"},
		{name: "exhausted", stats: budget.Stats{Limit: 10, Used: 10, UtilizationRate: 1, IsWarning: true, IsExhausted: true}, status: "fail"},
		{name: "plenty", stats: budget.Stats{Limit: 10, Used: 1, Remaining: 9, UtilizationRate: 0.1}, status: "pass"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, okFetch)
			f.health.budget = tt.stats

			var resp HealthResponse
			rec := f.do(t, http.MethodGet, "/health")
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Checks["budget"].Status)
		})
	}
}

func TestMarket_ReturnsView(t *testing.T) {
	f := newFixture(t, okFetch)

	rec := f.do(t, http.MethodGet, "/api/market")
	require.Equal(t, http.StatusOK, rec.Code)
	var empty dashboard.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &empty))
	assert.Nil(t, empty.Snapshot)

	f.service.Refresh(context.Background())

	rec = f.do(t, http.MethodGet, "/api/market")
	var view dashboard.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.NotNil(t, view.Snapshot)
	assert.Equal(t, 50000.0, view.Snapshot.BTC)
	assert.Equal(t, 250000.0, view.BTCInBRL)
	assert.Len(t, view.Sources, 1)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, okFetch)

	rec := f.do(t, http.MethodPost, "/api/market/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var result market.FetchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.OK())
	assert.Equal(t, "fetch-1", result.ID)

	_, ok := f.service.Board().Snapshot()
	assert.True(t, ok)

	rec = f.do(t, http.MethodGet, "/api/market/refresh")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRefresh_FailureIsStillAResult(t *testing.T) {
	f := newFixture(t, func(ctx context.Context) market.FetchResult {
		return market.FetchResult{ID: "x", Sources: []market.Citation{}, Error: "timed out", ErrorKind: market.KindTimeout}
	})

	rec := f.do(t, http.MethodPost, "/api/market/refresh")
	require.Equal(t, http.StatusOK, rec.Code)

	var result market.FetchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, market.KindTimeout, result.ErrorKind)
}

func TestRefresh_InFlightConflict(t *testing.T) {
	f := newFixture(t, func(ctx context.Context) market.FetchResult {
		return market.FetchResult{Sources: []market.Citation{}, Error: "a fetch is already running", ErrorKind: market.KindFetchInFlight}
	})

	rec := f.do(t, http.MethodPost, "/api/market/refresh")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRefresh_SurvivesClientDisconnect(t *testing.T) {
	var sawCancel bool
	f := newFixture(t, func(ctx context.Context) market.FetchResult {
		sawCancel = ctx.Err() != nil
		return okFetch(ctx)
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/api/market/refresh", nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.False(t, sawCancel, "the fetch must not inherit the request's cancellation")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth_RateLimitChecks(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name    string
		stats   map[string]ratelimit.LimiterStats
		status  string
		message string
	}{
		{
			name:    "tokens_left",
			stats:   map[string]ratelimit.LimiterStats{"gemini": {Key: "gemini", RPS: 0.2, Burst: 2, TokensAvailable: 1.5, NextAllowedAt: now}},
			status:  "pass",
			message: "Outbound calls within rate limit",
		},
		{
			name:    "throttled",
			stats:   map[string]ratelimit.LimiterStats{"gemini": {Key: "gemini", RPS: 0.2, Burst: 2, NextAllowedAt: now.Add(4 * time.Second), Delay: 4 * time.Second}},
			status:  "warn",
			message: "Calls to gemini throttled for 4s",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, okFetch)
			f.service.Refresh(context.Background())
			f.health.limiter = tt.stats

			var resp HealthResponse
			rec := f.do(t, http.MethodGet, "/health")
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.status, resp.Checks["rate_limit"].Status)
			assert.Equal(t, tt.message, resp.Checks["rate_limit"].Message)
			assert.Contains(t, resp.RateLimit, "gemini")
		})
	}
}

func TestHealth_FetchHistoryIsOrdered(t *testing.T) {
	f := newFixture(t, okFetch)
	f.service.Refresh(context.Background())

	ok := okFetch(context.Background())
	timedOut := market.FetchResult{ID: "t", Error: "deadline", ErrorKind: market.KindTimeout}
	unavailable := market.FetchResult{ID: "u", Error: "open", ErrorKind: market.KindProviderUnavailable}
	for _, r := range []market.FetchResult{timedOut, ok, unavailable, ok, timedOut} {
		f.metrics.RecordFetch(r)
	}

	var resp HealthResponse
	rec := f.do(t, http.MethodGet, "/health")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	check := resp.Checks["fetch_history"]
	assert.Equal(t, "pass", check.Status)
	assert.Equal(t, "provider_unavailable=1, success=2, timeout=2", check.Message)
	assert.Equal(t, "healthy", resp.Status)
}

func TestConvert(t *testing.T) {
	f := newFixture(t, okFetch)

	rec := f.do(t, http.MethodGet, "/api/convert?amount=1000")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "no_snapshot", errResp.Code)
	assert.NotEmpty(t, errResp.RequestID)

	f.service.Refresh(context.Background())

	tests := []struct {
		name   string
		target string
		valid  bool
		usd    float64
		btc    float64
		gold   float64
		fmtUSD string
	}{
		{name: "explicit", target: "/api/convert?amount=1000", valid: true, usd: 200, btc: 0.004, gold: 0.1, fmtUSD: "US$ 200.00"},
		{name: "default_amount", target: "/api/convert", valid: true, usd: 200, btc: 0.004, gold: 0.1, fmtUSD: "US$ 200.00"},
		{name: "grouped", target: "/api/convert?amount=1.500,00", valid: true, usd: 300, btc: 0.006, gold: 0.15, fmtUSD: "US$ 300.00"},
		{name: "not_a_number", target: "/api/convert?amount=abc", valid: false, fmtUSD: "US$ 0.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodGet, tt.target)
			require.Equal(t, http.StatusOK, rec.Code)

			var resp ConvertResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.valid, resp.Valid)
			assert.InDelta(t, tt.usd, resp.Result.USD, 1e-9)
			assert.InDelta(t, tt.btc, resp.Result.BTC, 1e-12)
			assert.InDelta(t, tt.gold, resp.Result.GoldOunces, 1e-12)
			assert.Equal(t, tt.fmtUSD, resp.Formatted.USD)
		})
	}
}

func TestConvert_ZeroRateIsUnprocessable(t *testing.T) {
	f := newFixture(t, func(ctx context.Context) market.FetchResult {
		return market.FetchResult{
			ID:       "zero",
			Snapshot: &market.Snapshot{BTC: 0, Gold: 2000, USDToBRL: 5},
			Sources:  []market.Citation{},
		}
	})
	f.service.Refresh(context.Background())

	rec := f.do(t, http.MethodGet, "/api/convert?amount=1000")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "non_finite_result", errResp.Code)
}

func TestIndex(t *testing.T) {
	f := newFixture(t, okFetch)

	rec := f.do(t, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	body := rec.Body.String()
	assert.Contains(t, body, `value="1000"`)
	assert.Contains(t, body, "brlpulse test")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t, okFetch)

	rec := f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestNotFound(t *testing.T) {
	f := newFixture(t, okFetch)

	rec := f.do(t, http.MethodGet, "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &errResp))
	assert.Equal(t, "endpoint_not_found", errResp.Code)
}

func TestCORS(t *testing.T) {
	f := newFixture(t, okFetch)

	req := httptest.NewRequest(http.MethodOptions, "/api/market/refresh", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/market", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec = httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestWebSocket_ThroughMiddleware(t *testing.T) {
	f := newFixture(t, okFetch)
	f.service.Refresh(context.Background())

	ts := httptest.NewServer(f.server.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var view dashboard.View
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	require.NoError(t, conn.ReadJSON(&view))
	require.NotNil(t, view.Snapshot)
	assert.Equal(t, 50000.0, view.Snapshot.BTC)

	require.Eventually(t, func() bool { return f.service.Hub().Count() == 1 }, time.Second, 10*time.Millisecond)

	go f.service.Refresh(context.Background())
	require.NoError(t, conn.ReadJSON(&view))
	assert.True(t, view.Loading)
}
