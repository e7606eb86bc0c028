package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// sendBuffer bounds the per-subscriber backlog. A subscriber that falls
	// further behind than this is treated as dead and pruned.
	sendBuffer   = 32
	writeTimeout = 10 * time.Second
)

var errSlowSubscriber = errors.New("subscriber send buffer full")

// Session is one live subscriber connection bound to a single topic. The
// registry owns topic membership; the session owns the connection lifecycle.
type Session struct {
	conn  *websocket.Conn
	topic string

	send      chan []byte
	closeOnce sync.Once
	done      chan struct{}
}

func NewSession(conn *websocket.Conn, topic string) *Session {
	return &Session{
		conn:  conn,
		topic: topic,
		send:  make(chan []byte, sendBuffer),
		done:  make(chan struct{}),
	}
}

func (s *Session) Topic() string {
	return s.topic
}

// Send queues a pre-serialized frame for delivery. It never blocks the
// caller: a full buffer fails fast so the broadcast path stays decoupled
// from slow subscribers.
func (s *Session) Send(msg []byte) error {
	select {
	case <-s.done:
		return errors.New("session closed")
	default:
	}

	select {
	case s.send <- msg:
		return nil
	default:
		return errSlowSubscriber
	}
}

// WritePump drains the send queue onto the connection. Run it in its own
// goroutine; it returns when the session is closed or a write fails.
func (s *Session) WritePump() {
	for {
		select {
		case <-s.done:
			return
		case msg := <-s.send:
			s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				s.Close()
				return
			}
		}
	}
}

// Close tears the connection down. Safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if s.conn != nil {
			s.conn.Close()
		}
	})
}
