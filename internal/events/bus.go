package events

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Update is one change notification pushed to subscribers
type Update struct {
	Topic       string    `json:"topic"`
	Kind        string    `json:"kind"` // e.g. "stake", "request", "vote", "challenge"
	ChallengeID uuid.UUID `json:"challenge_id"`
	UserID      uint      `json:"user_id,omitempty"`
	At          time.Time `json:"at"`
	Payload     any       `json:"payload,omitempty"`
}

// Subscription receives the update sequence for one topic. Updates within a
// subscription are ordered; no ordering holds across subscriptions.
type Subscription struct {
	topic string
	ch    chan Update
	bus   *Bus
	once  sync.Once
}

// Updates returns the subscriber's receive channel
func (s *Subscription) Updates() <-chan Update {
	return s.ch
}

// Close detaches the subscription from the bus
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.unsubscribe(s)
		close(s.ch)
	})
}

// Bus is an in-process publish/subscribe channel for entity updates. It
// replaces ambient cross-view refresh globals with an explicit contract:
// consumers register interest in a topic and receive every subsequent update.
type Bus struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscription]struct{}
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// ChallengeTopic is the topic carrying all updates for one challenge
func ChallengeTopic(challengeID uuid.UUID) string {
	return fmt.Sprintf("challenge:%s", challengeID)
}

// UserTopic is the topic carrying all updates affecting one user
func UserTopic(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

// Subscribe registers interest in a topic
func (b *Bus) Subscribe(topic string) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan Update, 64),
		bus:   b,
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[*Subscription]struct{})
	}
	b.subs[topic][sub] = struct{}{}

	return sub
}

func (b *Bus) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if set, ok := b.subs[sub.topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.topic)
		}
	}
}

// Publish delivers an update to every subscriber of its topic. Slow consumers
// that have filled their buffer miss the update rather than block writers.
func (b *Bus) Publish(update Update) {
	if update.At.IsZero() {
		update.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[update.Topic] {
		select {
		case sub.ch <- update:
		default:
			log.Printf("Warning: subscriber on %s is lagging, dropping update", update.Topic)
		}
	}
}
