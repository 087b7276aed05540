package dashboard

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/brlpulse/internal/market"
)

type fetcherFunc func(ctx context.Context) market.FetchResult

func (f fetcherFunc) Fetch(ctx context.Context) market.FetchResult { return f(ctx) }

func TestService_Refresh(t *testing.T) {
	board := NewBoard()
	var sawLoading atomic.Bool

	svc := NewService(fetcherFunc(func(ctx context.Context) market.FetchResult {
		sawLoading.Store(board.View().Loading)
		return okResult(50000)
	}), board, NewHub(nil))

	result := svc.Refresh(context.Background())

	assert.True(t, result.OK())
	assert.True(t, sawLoading.Load(), "board is marked loading while the fetch runs")
	assert.False(t, svc.Board().View().Loading)
	snap, ok := board.Snapshot()
	require.True(t, ok)
	assert.Equal(t, 50000.0, snap.BTC)
}

func TestService_Run(t *testing.T) {
	var calls atomic.Int64
	svc := NewService(fetcherFunc(func(ctx context.Context) market.FetchResult {
		calls.Add(1)
		return okResult(50000)
	}), NewBoard(), NewHub(nil))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool { return calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run should return once the context is cancelled")
	}
}
