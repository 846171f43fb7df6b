package events

import (
	"sync"
	"sync/atomic"
)

const defaultBufSize = 256

// EventBus is a channel-based pub-sub event bus.
// Subscribers either follow one topic or every topic. Publishing never blocks:
// a full subscriber misses the event and the drop is counted.
type EventBus struct {
	mu      sync.RWMutex
	subs    map[string][]chan Event // topic -> subscriber channels
	allSubs []chan Event            // channels subscribed to all topics
	closed  bool
	dropped atomic.Int64
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		subs: make(map[string][]chan Event),
	}
}

// Subscribe returns a channel receiving events published to topic.
// bufSize defaults to 256 if <= 0.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	ch := newChannel(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.subs[topic] = append(b.subs[topic], ch)
	return ch
}

// SubscribeAll returns a channel receiving events from every topic.
// bufSize defaults to 256 if <= 0.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	ch := newChannel(bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(ch)
		return ch
	}
	b.allSubs = append(b.allSubs, ch)
	return ch
}

// Unsubscribe detaches and closes a channel returned by Subscribe or SubscribeAll.
// Unknown channels are ignored.
func (b *EventBus) Unsubscribe(sub <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}

	for topic, channels := range b.subs {
		if kept, ch := without(channels, sub); ch != nil {
			b.subs[topic] = kept
			close(ch)
			return
		}
	}
	if kept, ch := without(b.allSubs, sub); ch != nil {
		b.allSubs = kept
		close(ch)
	}
}

// Publish sends event to subscribers of topic and to all-topic subscribers.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, ch := range b.subs[topic] {
		b.send(ch, event)
	}
	for _, ch := range b.allSubs {
		b.send(ch, event)
	}
}

// Dropped returns how many deliveries were skipped because a subscriber was full.
func (b *EventBus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes the bus and every subscriber channel. Idempotent.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, channels := range b.subs {
		for _, ch := range channels {
			close(ch)
		}
	}
	for _, ch := range b.allSubs {
		close(ch)
	}
}

func (b *EventBus) send(ch chan Event, event Event) {
	select {
	case ch <- event:
	default:
		b.dropped.Add(1)
	}
}

func newChannel(bufSize int) chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	return make(chan Event, bufSize)
}

// without removes sub from channels, returning the remaining slice and the
// removed channel (nil if absent).
func without(channels []chan Event, sub <-chan Event) ([]chan Event, chan Event) {
	for i, ch := range channels {
		if (<-chan Event)(ch) == sub {
			kept := append(channels[:i:i], channels[i+1:]...)
			return kept, ch
		}
	}
	return channels, nil
}
