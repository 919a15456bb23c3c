// Package events carries orchestration progress to observers.
package events

import (
	"sync"
)

const defaultBufSize = 256

// Publisher is the write side of the bus.
type Publisher interface {
	Publish(topic string, event Event)
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(string, Event) {}

type subscriber struct {
	ch     chan Event
	topic  string // empty means every topic
	filter func(Event) bool
}

func (s *subscriber) wants(topic string, e Event) bool {
	if s.topic != "" && s.topic != topic {
		return false
	}
	return s.filter == nil || s.filter(e)
}

// EventBus is a channel-based pub-sub event bus.
// Publishing never blocks: a subscriber whose buffer is full misses the event.
type EventBus struct {
	mu     sync.RWMutex
	subs   []*subscriber
	closed bool
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe receives events published to topic.
func (b *EventBus) Subscribe(topic string, bufSize int) <-chan Event {
	return b.add(&subscriber{topic: topic}, bufSize)
}

// SubscribeAll receives events from every topic.
func (b *EventBus) SubscribeAll(bufSize int) <-chan Event {
	return b.add(&subscriber{}, bufSize)
}

// SubscribeSession receives every event that belongs to one session.
func (b *EventBus) SubscribeSession(sessionID string, bufSize int) <-chan Event {
	return b.add(&subscriber{filter: func(e Event) bool {
		return e.SessionID() == sessionID
	}}, bufSize)
}

// SubscribeFunc receives every event for which keep returns true.
func (b *EventBus) SubscribeFunc(bufSize int, keep func(Event) bool) <-chan Event {
	return b.add(&subscriber{filter: keep}, bufSize)
}

func (b *EventBus) add(s *subscriber, bufSize int) <-chan Event {
	if bufSize <= 0 {
		bufSize = defaultBufSize
	}
	s.ch = make(chan Event, bufSize)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		close(s.ch)
		return s.ch
	}
	b.subs = append(b.subs, s)
	return s.ch
}

// Unsubscribe detaches and closes a channel returned by one of the
// Subscribe methods. Unknown channels are ignored.
func (b *EventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.ch == ch {
			close(s.ch)
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

// Publish fans the event out to matching subscribers.
func (b *EventBus) Publish(topic string, event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}

	for _, s := range b.subs {
		if !s.wants(topic, event) {
			continue
		}
		select {
		case s.ch <- event:
		default:
		}
	}
}

// Close closes the bus and all subscriber channels. Safe to call twice.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true

	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}
