// Package dashboard keeps what the browser dashboard shows and pushes it to websocket clients.
package dashboard

import (
	"sync"
	"time"

	"github.com/sawpanic/brlpulse/internal/market"
)

// View is an immutable copy of the dashboard state
type View struct {
	Snapshot  *market.Snapshot  `json:"snapshot,omitempty"`
	BTCInBRL  float64           `json:"btc_brl,omitempty"`
	GoldInBRL float64           `json:"gold_brl,omitempty"`
	Sources   []market.Citation `json:"sources"`
	Loading   bool              `json:"loading"`
	FetchID   string            `json:"fetch_id,omitempty"`
	FetchedAt *time.Time        `json:"fetched_at,omitempty"`
	Error     string            `json:"error,omitempty"`
	ErrorKind market.ErrorKind  `json:"error_kind,omitempty"`
	RawText   string            `json:"raw_text,omitempty"` // only kept for failed fetches
}

// Board holds the last good snapshot and the outcome of the latest fetch
type Board struct {
	mu        sync.RWMutex
	snapshot  *market.Snapshot
	sources   []market.Citation
	loading   bool
	fetchID   string
	fetchedAt time.Time
	errMsg    string
	errKind   market.ErrorKind
	rawText   string
	now       func() time.Time
}

// NewBoard creates an empty board
func NewBoard() *Board {
	return &Board{
		sources: []market.Citation{},
		now:     time.Now,
	}
}

// SetLoading marks a fetch as started or finished and returns the new view
func (b *Board) SetLoading(loading bool) View {
	b.mu.Lock()
	b.loading = loading
	b.mu.Unlock()
	return b.View()
}

// Apply folds a fetch result into the board. Successful results replace the
// snapshot and sources wholesale; failures keep the previous figures and expose the error.
func (b *Board) Apply(result market.FetchResult) View {
	if result.ErrorKind == market.KindFetchInFlight {
		return b.View()
	}

	b.mu.Lock()
	b.loading = false
	b.fetchID = result.ID
	b.fetchedAt = b.now()

	if result.OK() {
		snap := *result.Snapshot
		b.snapshot = &snap
		b.sources = append([]market.Citation{}, result.Sources...)
		b.errMsg, b.errKind, b.rawText = "", "", ""
	} else {
		b.errMsg = result.Error
		b.errKind = result.ErrorKind
		b.rawText = result.RawText
	}
	b.mu.Unlock()

	return b.View()
}

// Snapshot returns the last good snapshot, if any
func (b *Board) Snapshot() (market.Snapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.snapshot == nil {
		return market.Snapshot{}, false
	}
	return *b.snapshot, true
}

// View returns a copy of the current state with implied BRL prices
func (b *Board) View() View {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v := View{
		Sources:   append([]market.Citation{}, b.sources...),
		Loading:   b.loading,
		FetchID:   b.fetchID,
		Error:     b.errMsg,
		ErrorKind: b.errKind,
		RawText:   b.rawText,
	}
	if !b.fetchedAt.IsZero() {
		t := b.fetchedAt
		v.FetchedAt = &t
	}
	if b.snapshot != nil {
		snap := *b.snapshot
		v.Snapshot = &snap
		v.BTCInBRL = snap.BTCInBRL()
		v.GoldInBRL = snap.GoldInBRL()
	}
	return v
}
