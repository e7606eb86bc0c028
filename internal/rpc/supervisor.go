package rpc

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Peer names one remote service and how to reach it.
type Peer struct {
	Name  string
	URL   string
	Token string
}

// Supervisor drives reconnection on a fixed interval, keeping the transport
// itself free of retry policy. Each cycle reconnects only the down links; a
// failed attempt is logged and retried next cycle.
type Supervisor struct {
	transport *Transport
	peers     []Peer
	interval  time.Duration
}

func NewSupervisor(transport *Transport, peers []Peer, interval time.Duration) *Supervisor {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Supervisor{
		transport: transport,
		peers:     peers,
		interval:  interval,
	}
}

// Start runs the reconnect loop until the context is cancelled. The first
// pass runs immediately so peers are dialled at startup.
func (s *Supervisor) Start(ctx context.Context) {
	logger := log.With().Str("component", "rpc_supervisor").Logger()
	logger.Info().Dur("interval", s.interval).Int("peers", len(s.peers)).Msg("starting reconnect supervisor")

	s.checkPeers()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down reconnect supervisor")
			return
		case <-ticker.C:
			s.checkPeers()
		}
	}
}

func (s *Supervisor) checkPeers() {
	logger := log.With().Str("component", "rpc_supervisor").Logger()

	for _, peer := range s.peers {
		if s.transport.IsConnected(peer.Name) {
			continue
		}
		if err := s.transport.Connect(peer.Name, peer.URL, peer.Token); err != nil {
			logger.Warn().Err(err).Str("service", peer.Name).Msg("reconnect attempt failed")
		}
	}
}
