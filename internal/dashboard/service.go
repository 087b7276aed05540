package dashboard

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/brlpulse/internal/market"
)

// Fetcher runs one market data fetch cycle
type Fetcher interface {
	Fetch(ctx context.Context) market.FetchResult
}

// Service refreshes the board from a Fetcher and pushes every change to the hub
type Service struct {
	fetcher Fetcher
	board   *Board
	hub     *Hub
}

// NewService wires a fetcher to a board and hub
func NewService(fetcher Fetcher, board *Board, hub *Hub) *Service {
	return &Service{fetcher: fetcher, board: board, hub: hub}
}

func (s *Service) Board() *Board { return s.board }

func (s *Service) Hub() *Hub { return s.hub }

// Refresh runs one fetch, announcing the loading state first
func (s *Service) Refresh(ctx context.Context) market.FetchResult {
	s.hub.Broadcast(s.board.SetLoading(true))
	result := s.fetcher.Fetch(ctx)
	s.hub.Broadcast(s.board.Apply(result))
	return result
}

// Run refreshes every interval until ctx is done
func (s *Service) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().Dur("interval", interval).Msg("Auto refresh started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("Auto refresh stopped")
			return
		case <-ticker.C:
			s.Refresh(ctx)
		}
	}
}
