package ws

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/finalcall/auction-api/internal/types"
)

// Registry tracks live subscriber sessions per topic and fans messages out
// to them. It is owned by the composition root and internally synchronized;
// callers never lock.
type Registry struct {
	mu     sync.RWMutex
	topics map[string]map[*Session]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		topics: make(map[string]map[*Session]struct{}),
	}
}

// Subscribe adds the session to its topic's subscriber set.
func (r *Registry) Subscribe(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[s.Topic()]
	if !ok {
		set = make(map[*Session]struct{})
		r.topics[s.Topic()] = set
	}
	set[s] = struct{}{}
}

// Unsubscribe removes the session from its topic. Idempotent: a session
// that was never subscribed, or was already removed, is a no-op. The last
// unsubscribe prunes the topic entry so empty topics hold no memory.
func (r *Registry) Unsubscribe(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.topics[s.Topic()]
	if !ok {
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(r.topics, s.Topic())
	}
}

// Broadcast serializes the message once and queues it to every subscriber of
// the topic. A failed send is isolated: the dead session is removed and
// closed, and delivery to the rest continues.
func (r *Registry) Broadcast(topic, msgType string, payload interface{}) {
	env, err := types.NewEnvelope("", msgType, payload)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Str("message_type", msgType).Msg("failed to marshal broadcast payload")
		return
	}
	frame, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("topic", topic).Msg("failed to marshal broadcast envelope")
		return
	}

	r.mu.RLock()
	sessions := make([]*Session, 0, len(r.topics[topic]))
	for s := range r.topics[topic] {
		sessions = append(sessions, s)
	}
	r.mu.RUnlock()

	for _, s := range sessions {
		if err := s.Send(frame); err != nil {
			log.Warn().Err(err).Str("topic", topic).Msg("dropping dead subscriber")
			r.Unsubscribe(s)
			s.Close()
		}
	}
}

// SendInitialState pushes the current snapshot to a single session,
// typically right after it subscribes to an auction topic.
func (r *Registry) SendInitialState(s *Session, msgType string, payload interface{}) error {
	env, err := types.NewEnvelope("", msgType, payload)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return s.Send(frame)
}

// SubscriberCount reports the live subscriber count for a topic.
func (r *Registry) SubscriberCount(topic string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics[topic])
}

// TopicCount reports how many topics currently hold at least one subscriber.
func (r *Registry) TopicCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.topics)
}
