package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/finalcall/auction-api/internal/types"
)

const testToken = "test-internal-token"

// newPeerServer stands in for a sibling service's internal endpoint. Each
// inbound request envelope is passed to handle; a nil response suppresses
// the reply.
func newPeerServer(t *testing.T, handle func(req types.Envelope) *types.Envelope) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(InternalTokenHeader) != testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			var req types.Envelope
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			if resp := handle(req); resp != nil {
				if err := conn.WriteJSON(resp); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func peerURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func echoHandler(req types.Envelope) *types.Envelope {
	return &types.Envelope{RequestID: req.RequestID, Data: req.Data}
}

func TestSendWithoutConnection(t *testing.T) {
	transport := NewTransport(time.Second)
	defer transport.Close()

	start := time.Now()
	_, err := transport.Send(context.Background(), "auth", "user.getById", map[string]int64{"userId": 1})
	require.ErrorIs(t, err, ErrNotConnected)
	require.Less(t, time.Since(start), 100*time.Millisecond, "NotConnected must fail fast, not wait out the timeout")
}

func TestSendRoundTrip(t *testing.T) {
	server := newPeerServer(t, echoHandler)

	transport := NewTransport(time.Second)
	defer transport.Close()
	require.NoError(t, transport.Connect("auth", peerURL(server), testToken))
	require.True(t, transport.IsConnected("auth"))

	data, err := transport.Send(context.Background(), "auth", "user.getById", map[string]int64{"userId": 7})
	require.NoError(t, err)

	var req struct {
		UserID int64 `json:"userId"`
	}
	require.NoError(t, json.Unmarshal(data, &req))
	require.Equal(t, int64(7), req.UserID)
}

func TestSendErrorEnvelope(t *testing.T) {
	server := newPeerServer(t, func(req types.Envelope) *types.Envelope {
		return &types.Envelope{RequestID: req.RequestID, Error: "user not found"}
	})

	transport := NewTransport(time.Second)
	defer transport.Close()
	require.NoError(t, transport.Connect("auth", peerURL(server), testToken))

	_, err := transport.Send(context.Background(), "auth", "user.getById", map[string]int64{"userId": 404})
	require.EqualError(t, err, "user not found")
}

func TestSendTimeoutAndLateReply(t *testing.T) {
	// Replies arrive well after the transport timeout.
	server := newPeerServer(t, func(req types.Envelope) *types.Envelope {
		time.Sleep(300 * time.Millisecond)
		return &types.Envelope{RequestID: req.RequestID, Data: req.Data}
	})

	transport := NewTransport(50 * time.Millisecond)
	defer transport.Close()
	require.NoError(t, transport.Connect("auth", peerURL(server), testToken))

	_, err := transport.Send(context.Background(), "auth", "user.getById", map[string]int64{"userId": 1})
	require.ErrorIs(t, err, ErrTimeout)

	// The timed-out slot was evicted, so the late reply is dropped
	// harmlessly and the link keeps serving later requests.
	time.Sleep(400 * time.Millisecond)
	server2 := newPeerServer(t, echoHandler)
	require.NoError(t, transport.Connect("auth", peerURL(server2), testToken))
	_, err = transport.Send(context.Background(), "auth", "user.getById", map[string]int64{"userId": 2})
	require.NoError(t, err)
}

func TestSendContextCancelled(t *testing.T) {
	server := newPeerServer(t, func(types.Envelope) *types.Envelope { return nil })

	transport := NewTransport(10 * time.Second)
	defer transport.Close()
	require.NoError(t, transport.Connect("auth", peerURL(server), testToken))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := transport.Send(ctx, "auth", "user.getById", map[string]int64{"userId": 1})
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConnectRejectedByBadToken(t *testing.T) {
	server := newPeerServer(t, echoHandler)

	transport := NewTransport(time.Second)
	defer transport.Close()
	require.Error(t, transport.Connect("auth", peerURL(server), "wrong-token"))
	require.False(t, transport.IsConnected("auth"))
}

func TestDroppedConnectionSurfaces(t *testing.T) {
	server := newPeerServer(t, echoHandler)

	transport := NewTransport(time.Second)
	defer transport.Close()
	require.NoError(t, transport.Connect("auth", peerURL(server), testToken))

	server.CloseClientConnections()
	require.Eventually(t, func() bool {
		return !transport.IsConnected("auth")
	}, 2*time.Second, 10*time.Millisecond)

	_, err := transport.Send(context.Background(), "auth", "user.getById", map[string]int64{"userId": 1})
	require.ErrorIs(t, err, ErrNotConnected)
}

func TestSupervisorReconnectsDownPeers(t *testing.T) {
	server := newPeerServer(t, echoHandler)

	transport := NewTransport(time.Second)
	defer transport.Close()

	supervisor := NewSupervisor(transport, []Peer{
		{Name: "auth", URL: peerURL(server), Token: testToken},
		{Name: "catalogue", URL: "ws://127.0.0.1:1/ws/internal", Token: testToken},
	}, 20*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go supervisor.Start(ctx)

	// The reachable peer connects; the unreachable one fails quietly and is
	// retried without affecting the healthy link.
	require.Eventually(t, func() bool {
		return transport.IsConnected("auth")
	}, 2*time.Second, 10*time.Millisecond)
	require.False(t, transport.IsConnected("catalogue"))

	// After the link drops, the next cycle restores it.
	server.CloseClientConnections()
	require.Eventually(t, func() bool {
		return !transport.IsConnected("auth")
	}, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return transport.IsConnected("auth")
	}, 2*time.Second, 10*time.Millisecond)
}
