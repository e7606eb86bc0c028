package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/types"
)

var (
	ErrNotConnected = errors.New("no connection to service")
	ErrTimeout      = errors.New("rpc request timed out")
)

// InternalTokenHeader mirrors the header checked by the peer's internal
// websocket endpoint during the upgrade handshake.
const InternalTokenHeader = "X-Internal-Token"

const defaultTimeout = 10 * time.Second

type result struct {
	data json.RawMessage
	err  error
}

type peerConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

// Transport turns one long-lived websocket per peer service into a
// request/response primitive. It holds no retry policy: a failed Connect or
// a dropped link surfaces to the caller, and the Supervisor drives
// reconnection.
type Transport struct {
	mu      sync.RWMutex
	conns   map[string]*peerConn
	pending sync.Map // correlation id -> chan result
	timeout time.Duration
	dialer  *websocket.Dialer
}

func NewTransport(timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Transport{
		conns:   make(map[string]*peerConn),
		timeout: timeout,
		dialer:  websocket.DefaultDialer,
	}
}

// Connect establishes the single connection to a named peer, carrying the
// shared secret in the handshake headers. An existing connection to the same
// peer is replaced. Connect does not retry; that is the Supervisor's job.
func (t *Transport) Connect(serviceName, url, token string) error {
	header := http.Header{}
	header.Set(InternalTokenHeader, token)

	conn, resp, err := t.dialer.Dial(url, header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
		}
		return fmt.Errorf("connect to %s at %s: %w", serviceName, url, err)
	}

	pc := &peerConn{conn: conn}

	t.mu.Lock()
	if old, ok := t.conns[serviceName]; ok {
		old.conn.Close()
	}
	t.conns[serviceName] = pc
	t.mu.Unlock()

	go t.readLoop(serviceName, pc)

	log.Info().Str("service", serviceName).Str("url", url).Msg("connected to peer service")
	return nil
}

// IsConnected is a pure liveness probe for the reconnect supervisor.
func (t *Transport) IsConnected(serviceName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.conns[serviceName]
	return ok
}

// Send writes a correlated request to the named peer and suspends the caller
// until the matching response arrives, the bounded timeout elapses, or the
// context is cancelled. It fails immediately with ErrNotConnected when no
// link is open; it never buffers.
func (t *Transport) Send(ctx context.Context, serviceName, requestType string, payload interface{}) (json.RawMessage, error) {
	t.mu.RLock()
	pc, ok := t.conns[serviceName]
	t.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, serviceName)
	}

	requestID := uuid.New().String()
	env, err := types.NewEnvelope(requestID, requestType, payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request payload: %w", err)
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal request envelope: %w", err)
	}

	// The slot is buffered so a response racing the timeout never blocks the
	// read loop; the deferred delete evicts a timed-out slot so a very late
	// reply is dropped harmlessly.
	ch := make(chan result, 1)
	t.pending.Store(requestID, ch)
	defer t.pending.Delete(requestID)

	pc.writeMu.Lock()
	err = pc.conn.WriteMessage(websocket.TextMessage, frame)
	pc.writeMu.Unlock()
	if err != nil {
		t.dropConn(serviceName, pc)
		return nil, fmt.Errorf("%w: %s", ErrNotConnected, serviceName)
	}

	timer := time.NewTimer(t.timeout)
	defer timer.Stop()

	select {
	case res := <-ch:
		return res.data, res.err
	case <-timer.C:
		return nil, fmt.Errorf("%w: %s %s", ErrTimeout, serviceName, requestType)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// readLoop resolves pending requests from inbound frames. Malformed or
// unsolicited frames are dropped; nothing thrown here escapes the loop.
func (t *Transport) readLoop(serviceName string, pc *peerConn) {
	logger := log.With().Str("component", "rpc_transport").Str("service", serviceName).Logger()

	for {
		_, msg, err := pc.conn.ReadMessage()
		if err != nil {
			logger.Info().Err(err).Msg("peer connection closed")
			t.dropConn(serviceName, pc)
			return
		}

		var env types.Envelope
		if err := json.Unmarshal(msg, &env); err != nil {
			logger.Warn().Err(err).Msg("malformed response frame, dropping")
			continue
		}
		if env.RequestID == "" {
			logger.Debug().Str("type", env.Type).Msg("unsolicited frame, dropping")
			continue
		}

		v, ok := t.pending.LoadAndDelete(env.RequestID)
		if !ok {
			logger.Debug().Str("request_id", env.RequestID).Msg("no pending request, dropping late reply")
			continue
		}

		ch := v.(chan result)
		if env.Error != "" {
			ch <- result{err: errors.New(env.Error)}
		} else {
			ch <- result{data: env.Data}
		}
	}
}

// dropConn removes the connection only if it is still the current one for
// the peer, so a reconnect that already replaced it is left alone.
func (t *Transport) dropConn(serviceName string, pc *peerConn) {
	t.mu.Lock()
	if current, ok := t.conns[serviceName]; ok && current == pc {
		delete(t.conns, serviceName)
	}
	t.mu.Unlock()
	pc.conn.Close()
}

// Close tears down every peer connection.
func (t *Transport) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	for name, pc := range t.conns {
		pc.conn.Close()
		delete(t.conns, name)
	}
}
