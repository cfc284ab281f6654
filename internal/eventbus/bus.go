// Package eventbus fans decoded channel events out to in-process consumers.
//
// Every broadcaster id has its own topic, created on first use by either a
// publisher or a subscriber and kept for the life of the process. Each
// subscription owns a bounded buffer; when a consumer falls behind, the
// oldest buffered event is discarded so publishing never blocks.
package eventbus

import (
	"slices"
	"sync"
	"sync/atomic"

	"github.com/Guliveer/twitch-eventsub-relay/internal/constants"
	"github.com/Guliveer/twitch-eventsub-relay/internal/model"
)

// Subscriber is the consumer-facing side of the bus.
type Subscriber interface {
	Subscribe(broadcasterID string) *Subscription
}

// Publisher is the producer-facing side of the bus.
type Publisher interface {
	Publish(event *model.ChannelEvent)
}

// Bus is a keyed broadcast registry. The zero value is not usable; call New.
type Bus struct {
	mu       sync.Mutex
	topics   map[string]*topic
	capacity int
}

// New creates a Bus whose subscriptions buffer up to capacity events.
// A capacity below one falls back to constants.DefaultBusCapacity.
func New(capacity int) *Bus {
	if capacity < 1 {
		capacity = constants.DefaultBusCapacity
	}
	return &Bus{
		topics:   make(map[string]*topic),
		capacity: capacity,
	}
}

type topic struct {
	key string

	mu   sync.Mutex
	subs map[*Subscription]struct{}

	published atomic.Uint64
}

// topic returns the topic for key, creating it if needed.
func (b *Bus) topic(key string) *topic {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[key]
	if !ok {
		t = &topic{key: key, subs: make(map[*Subscription]struct{})}
		b.topics[key] = t
	}
	return t
}

// Subscribe registers a new receiver for broadcasterID. It only sees events
// published after it was created.
func (b *Bus) Subscribe(broadcasterID string) *Subscription {
	t := b.topic(broadcasterID)
	sub := &Subscription{
		topic: t,
		ch:    make(chan *model.ChannelEvent, b.capacity),
	}

	t.mu.Lock()
	t.subs[sub] = struct{}{}
	t.mu.Unlock()
	return sub
}

// Publish delivers event to every current subscriber of its broadcaster.
// It never blocks and an event without subscribers is dropped.
func (b *Bus) Publish(event *model.ChannelEvent) {
	if event == nil {
		return
	}
	t := b.topic(event.BroadcasterID)
	t.published.Add(1)

	t.mu.Lock()
	defer t.mu.Unlock()
	for sub := range t.subs {
		sub.deliver(event)
	}
}

// Keys returns the broadcaster ids that have a topic, sorted.
func (b *Bus) Keys() []string {
	b.mu.Lock()
	keys := make([]string, 0, len(b.topics))
	for key := range b.topics {
		keys = append(keys, key)
	}
	b.mu.Unlock()

	slices.Sort(keys)
	return keys
}

// SubscriberCount returns the number of open subscriptions for
// broadcasterID without creating its topic.
func (b *Bus) SubscriberCount(broadcasterID string) int {
	b.mu.Lock()
	t, ok := b.topics[broadcasterID]
	b.mu.Unlock()
	if !ok {
		return 0
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.subs)
}

// TopicStats describes one topic of the bus.
type TopicStats struct {
	BroadcasterID string `json:"broadcaster_id"`
	Subscribers   int    `json:"subscribers"`
	Published     uint64 `json:"published"`
	Dropped       uint64 `json:"dropped"`
}

// Stats returns per-topic counters sorted by broadcaster id.
func (b *Bus) Stats() []TopicStats {
	stats := make([]TopicStats, 0)
	for _, key := range b.Keys() {
		b.mu.Lock()
		t := b.topics[key]
		b.mu.Unlock()

		t.mu.Lock()
		s := TopicStats{BroadcasterID: key, Subscribers: len(t.subs), Published: t.published.Load()}
		for sub := range t.subs {
			s.Dropped += sub.Dropped()
		}
		t.mu.Unlock()

		stats = append(stats, s)
	}
	return stats
}

// Subscription is one receiver of a topic.
type Subscription struct {
	topic   *topic
	ch      chan *model.ChannelEvent
	dropped atomic.Uint64
	once    sync.Once
}

// C returns the channel events are delivered on, in publish order. It is
// closed by Close.
func (s *Subscription) C() <-chan *model.ChannelEvent {
	return s.ch
}

// BroadcasterID returns the key this subscription listens to.
func (s *Subscription) BroadcasterID() string {
	return s.topic.key
}

// Dropped returns how many events were discarded because the buffer was full.
func (s *Subscription) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the subscription and closes its channel. Safe to call more
// than once.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.topic.mu.Lock()
		delete(s.topic.subs, s)
		close(s.ch)
		s.topic.mu.Unlock()
	})
}

// deliver enqueues event, evicting the oldest buffered events while the
// buffer is full. Callers hold the topic lock, so deliver is the only sender.
func (s *Subscription) deliver(event *model.ChannelEvent) {
	for {
		select {
		case s.ch <- event:
			return
		default:
		}

		select {
		case <-s.ch:
			s.dropped.Add(1)
		default:
		}
	}
}
