package metrics

import (
	"net/http"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	dto "github.com/prometheus/client_model/go"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/brlpulse/internal/market"
)

const namespace = "brlpulse"

// Registry holds all Prometheus metrics for the market data pipeline
type Registry struct {
	registry *prometheus.Registry

	// Fetch cycle metrics
	FetchTotal    *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Parser metrics
	FieldParse *prometheus.CounterVec

	// Latest figures
	Quote       *prometheus.GaugeVec
	Citations   prometheus.Gauge
	LastSuccess prometheus.Gauge

	// Dashboard push
	WSClients prometheus.Gauge
}

// NewRegistry creates a registry with the pipeline metrics plus Go and process collectors
func NewRegistry() *Registry {
	m := &Registry{
		registry: prometheus.NewRegistry(),

		FetchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fetch_total",
				Help:      "Total number of market data fetch cycles by outcome",
			},
			[]string{"outcome"},
		),

		FetchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "fetch_duration_seconds",
				Help:      "Duration of market data fetch cycles in seconds",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
			},
			[]string{"outcome"},
		),

		FieldParse: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "field_parse_total",
				Help:      "Parsed data block fields by label and status (ok, missing, garbled)",
			},
			[]string{"field", "status"},
		),

		Quote: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "quote",
				Help:      "Latest successfully parsed figure per asset",
			},
			[]string{"asset"},
		),

		Citations: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "citations",
				Help:      "Number of citations attached to the latest fetch",
			},
		),

		LastSuccess: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_success_timestamp_seconds",
				Help:      "Unix time of the latest successful fetch",
			},
		),

		WSClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_clients",
				Help:      "Number of connected dashboard websocket clients",
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.FetchTotal,
		m.FetchDuration,
		m.FieldParse,
		m.Quote,
		m.Citations,
		m.LastSuccess,
		m.WSClients,
	)

	return m
}

// RecordFetch records one finished fetch cycle
func (m *Registry) RecordFetch(result market.FetchResult) {
	outcome := result.Outcome()
	m.FetchTotal.WithLabelValues(outcome).Inc()
	m.FetchDuration.WithLabelValues(outcome).Observe(result.Duration.Seconds())

	for _, f := range result.Fields {
		m.FieldParse.WithLabelValues(f.Label, string(f.Status)).Inc()
	}

	// an overlapping call says nothing about the provider
	if result.ErrorKind == market.KindFetchInFlight {
		return
	}
	m.Citations.Set(float64(len(result.Sources)))

	if result.OK() {
		s := result.Snapshot
		m.Quote.WithLabelValues("btc_usd").Set(s.BTC)
		m.Quote.WithLabelValues("gold_usd").Set(s.Gold)
		m.Quote.WithLabelValues("usd_brl").Set(s.USDToBRL)
		m.LastSuccess.Set(float64(s.CapturedAt.Unix()))
	}

	log.Debug().Str("outcome", outcome).Dur("duration", result.Duration).Msg("Fetch metrics recorded")
}

// SetWSClients publishes the websocket client count
func (m *Registry) SetWSClients(n int) {
	m.WSClients.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Summary is a compact view of the fetch counters for health reporting
type Summary struct {
	Fetches     map[string]float64 `json:"fetches"`
	LastSuccess *time.Time         `json:"last_success,omitempty"`
}

// Summary gathers the registry and folds the fetch counters by outcome
func (m *Registry) Summary() (Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Summary{}, err
	}

	s := Summary{Fetches: map[string]float64{}}
	for _, mf := range families {
		switch mf.GetName() {
		case namespace + "_fetch_total":
			for _, metric := range mf.GetMetric() {
				s.Fetches[labelValue(metric, "outcome")] += metric.GetCounter().GetValue()
			}
		case namespace + "_last_success_timestamp_seconds":
			if metrics := mf.GetMetric(); len(metrics) > 0 {
				if v := metrics[0].GetGauge().GetValue(); v > 0 {
					t := time.Unix(int64(v), 0).UTC()
					s.LastSuccess = &t
				}
			}
		}
	}
	return s, nil
}

// Outcomes returns the outcome labels seen so far, sorted
func (s Summary) Outcomes() []string {
	outcomes := make([]string, 0, len(s.Fetches))
	for o := range s.Fetches {
		outcomes = append(outcomes, o)
	}
	sort.Strings(outcomes)
	return outcomes
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
