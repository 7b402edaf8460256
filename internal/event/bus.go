// Package event provides the in-process maintenance event bus.
package event

import (
	"sync"

	"codescope/internal/common"
)

// Topic identifies a maintenance event class. The set is closed.
type Topic string

const (
	TopicCacheClear    Topic = "cache_clear"
	TopicIndexClear    Topic = "index_clear"
	TopicIndexRebuild  Topic = "index_rebuild"
	TopicIndexOptimize Topic = "index_optimize"
	TopicBackupCreate  Topic = "backup_create"
)

// Event carries a topic plus its optional scope payload.
type Event struct {
	Topic Topic
	// Namespace scopes CacheClear events; empty means all namespaces.
	Namespace string
	// Collection scopes the index topics; empty means all collections.
	Collection string
	// Path is the destination for BackupCreate events.
	Path string
}

// Handler consumes events for one subscription.
type Handler func(Event)

// Bus is a process-wide publish/subscribe fanout. Publishing enqueues the
// event for every subscriber before returning; delivery happens on each
// subscriber's own goroutine so a slow or panicking subscriber cannot block
// or starve the others.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]*subscription
	closed bool
}

type subscription struct {
	ch   chan Event
	done chan struct{}
}

const subscriberBuffer = 64

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Topic][]*subscription)}
}

// Subscribe registers a handler for a topic. The returned cancel function
// stops delivery and releases the subscription goroutine.
func (b *Bus) Subscribe(topic Topic, h Handler) (cancel func()) {
	sub := &subscription{
		ch:   make(chan Event, subscriberBuffer),
		done: make(chan struct{}),
	}
	go func() {
		for {
			select {
			case ev := <-sub.ch:
				deliver(h, ev)
			case <-sub.done:
				return
			}
		}
	}()

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(sub.done)
			b.mu.Lock()
			defer b.mu.Unlock()
			list := b.subs[topic]
			for i, s := range list {
				if s == sub {
					b.subs[topic] = append(list[:i], list[i+1:]...)
					break
				}
			}
		})
	}
}

// Publish enqueues ev for all subscribers of its topic. The event is in every
// subscriber's queue by the time Publish returns; if a subscriber's queue is
// full the event is dropped for that subscriber only.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, sub := range b.subs[ev.Topic] {
		select {
		case sub.ch <- ev:
		default:
			common.Component("event").Warn("subscriber queue full, dropping event",
				"topic", string(ev.Topic))
		}
	}
}

// Close stops accepting publishes and releases all subscriptions.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, list := range b.subs {
		for _, sub := range list {
			close(sub.done)
		}
	}
	b.subs = make(map[Topic][]*subscription)
}

// deliver isolates handler panics so one subscriber cannot take down the bus.
func deliver(h Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			common.Component("event").Error("subscriber panicked",
				"topic", string(ev.Topic), "panic", r)
		}
	}()
	h(ev)
}
