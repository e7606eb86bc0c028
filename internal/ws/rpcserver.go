package ws

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/types"
)

// RPCHandlerFunc serves one request kind arriving on the internal channel.
type RPCHandlerFunc func(data json.RawMessage) (interface{}, error)

// RPCServer dispatches correlated requests from peer services to registered
// handlers and produces the matching response envelopes.
type RPCServer struct {
	mu       sync.RWMutex
	handlers map[string]RPCHandlerFunc
}

func NewRPCServer() *RPCServer {
	return &RPCServer{
		handlers: make(map[string]RPCHandlerFunc),
	}
}

// Register binds a request type (e.g. "auction.getByItemId") to its handler.
func (s *RPCServer) Register(requestType string, fn RPCHandlerFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers[requestType] = fn
}

// Handle serves a single request envelope. Handler errors and unknown
// request types come back as error envelopes echoing the correlation id;
// Handle itself never fails so the connection read loop keeps running.
func (s *RPCServer) Handle(req types.Envelope) types.Envelope {
	s.mu.RLock()
	fn, ok := s.handlers[req.Type]
	s.mu.RUnlock()

	if !ok {
		log.Warn().Str("request_type", req.Type).Msg("unknown rpc request type")
		return types.Envelope{
			RequestID: req.RequestID,
			Error:     fmt.Sprintf("unknown request type: %s", req.Type),
		}
	}

	result, err := fn(req.Data)
	if err != nil {
		return types.Envelope{
			RequestID: req.RequestID,
			Error:     err.Error(),
		}
	}

	resp, err := types.NewEnvelope(req.RequestID, "", result)
	if err != nil {
		log.Error().Err(err).Str("request_type", req.Type).Msg("failed to marshal rpc response")
		return types.Envelope{
			RequestID: req.RequestID,
			Error:     "failed to marshal response",
		}
	}
	return resp
}
