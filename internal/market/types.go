package market

import (
	"time"
)

// ErrorKind classifies why a fetch cycle did not produce a snapshot
type ErrorKind string

const (
	KindConfigurationMissing ErrorKind = "configuration_missing"
	KindParseFailure         ErrorKind = "parse_failure"
	KindFieldMissing         ErrorKind = "field_missing"
	KindFieldGarbled         ErrorKind = "field_garbled"
	KindTransportFailure     ErrorKind = "transport_failure"
	KindTimeout              ErrorKind = "timeout"
	KindProviderUnavailable  ErrorKind = "provider_unavailable"
	KindFetchInFlight        ErrorKind = "fetch_in_flight"
)

// Snapshot is one fully populated set of market figures captured at a point in time.
// All prices are finite and non-negative; a Snapshot is never partially filled.
type Snapshot struct {
	BTC        float64   `json:"btc"`     // USD per bitcoin
	Gold       float64   `json:"gold"`    // USD per troy ounce (XAU spot)
	USDToBRL   float64   `json:"usd_brl"` // BRL per US dollar
	CapturedAt time.Time `json:"captured_at"`
}

// BTCInBRL returns the implied bitcoin price in reais
func (s Snapshot) BTCInBRL() float64 {
	return s.BTC * s.USDToBRL
}

// GoldInBRL returns the implied price of one troy ounce of gold in reais
func (s Snapshot) GoldInBRL() float64 {
	return s.Gold * s.USDToBRL
}

// Citation is a title/URL pair asserting provenance for the reported figures
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// FieldStatus is the extraction outcome of one labeled field
type FieldStatus string

const (
	FieldOK      FieldStatus = "ok"
	FieldMissing FieldStatus = "missing"
	FieldGarbled FieldStatus = "garbled"
)

// FieldReport describes what the parser found for a single label
type FieldReport struct {
	Label  string      `json:"label"`
	Raw    string      `json:"raw,omitempty"`
	Value  float64     `json:"value"`
	Status FieldStatus `json:"status"`
}

// FetchResult is the outcome of one fetch-and-normalize cycle.
// Exactly one of Snapshot or Error is populated.
type FetchResult struct {
	ID        string        `json:"id"`
	Snapshot  *Snapshot     `json:"snapshot,omitempty"`
	Sources   []Citation    `json:"sources"`
	RawText   string        `json:"raw_text"`
	Fields    []FieldReport `json:"fields,omitempty"`
	Error     string        `json:"error,omitempty"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
	Duration  time.Duration `json:"duration_ns"`
}

// OK reports whether the fetch produced a snapshot
func (r FetchResult) OK() bool {
	return r.Snapshot != nil && r.Error == ""
}

// Outcome returns a short label for metrics and logs
func (r FetchResult) Outcome() string {
	if r.OK() {
		return "success"
	}
	return string(r.ErrorKind)
}
