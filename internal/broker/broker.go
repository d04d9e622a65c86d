// Package broker implements the in-process publish/subscribe hub that fans
// events out to stream sessions. Delivery is at-most-once: a full subscriber
// buffer drops the event for that subscriber only, and publish never blocks.
package broker

import (
	"sync"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"fieldops-gateway/internal/metrics"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Event is one unit delivered to subscribers: a name plus an encoded payload.
type Event struct {
	Name string
	Data json.RawMessage
}

// Subscriber is a bounded delivery channel owned by exactly one stream
// session. The broker holds it only to route publishes.
type Subscriber struct {
	id string
	ch chan Event
}

// ID identifies the subscriber in logs.
func (s *Subscriber) ID() string { return s.id }

// Events is the receive side drained by the owning session.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Broker holds the registered subscriber set. Registration is guarded by a
// mutex; publish snapshots the set and delivers without holding the lock.
type Broker struct {
	mu     sync.Mutex
	subs   map[string]*Subscriber
	buffer int
	log    zerolog.Logger
}

// New constructs a broker with the given per-subscriber buffer size.
func New(buffer int, log zerolog.Logger) *Broker {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Broker{
		subs:   make(map[string]*Subscriber),
		buffer: buffer,
		log:    log,
	}
}

// Subscribe registers and returns a new subscriber.
func (b *Broker) Subscribe() *Subscriber {
	sub := &Subscriber{
		id: uuid.NewString(),
		ch: make(chan Event, b.buffer),
	}
	b.mu.Lock()
	b.subs[sub.id] = sub
	n := len(b.subs)
	b.mu.Unlock()

	metrics.ActiveSubscribers.Set(float64(n))
	b.log.Debug().Str("subscriber", sub.id).Int("active", n).Msg("stream subscriber registered")
	return sub
}

// Unsubscribe removes the subscriber if present. Safe to call more than
// once. The channel is never closed here: a publish racing with removal may
// still hold a snapshot that references it.
func (b *Broker) Unsubscribe(sub *Subscriber) {
	if sub == nil {
		return
	}
	b.mu.Lock()
	_, ok := b.subs[sub.id]
	if ok {
		delete(b.subs, sub.id)
	}
	n := len(b.subs)
	b.mu.Unlock()

	if ok {
		metrics.ActiveSubscribers.Set(float64(n))
		b.log.Debug().Str("subscriber", sub.id).Int("active", n).Msg("stream subscriber removed")
	}
}

// Publish encodes payload and delivers it to every currently registered
// subscriber with a non-blocking send. Full subscribers miss this event.
func (b *Broker) Publish(name string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error().Err(err).Str("event", name).Msg("drop unencodable event")
		return
	}
	evt := Event{Name: name, Data: data}

	b.mu.Lock()
	snapshot := make([]*Subscriber, 0, len(b.subs))
	for _, sub := range b.subs {
		snapshot = append(snapshot, sub)
	}
	b.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(name).Inc()
	for _, sub := range snapshot {
		select {
		case sub.ch <- evt:
		default:
			metrics.EventsDropped.Inc()
		}
	}
}

// Subscribers reports the current registration count.
func (b *Broker) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
