// Package annotbus fans detection annotations out to subscribers.
//
// Publish never blocks the render loop: when a subscriber's channel is
// full the annotation is dropped for that subscriber and counted.
package annotbus

import (
	"errors"
	"sync"
	"sync/atomic"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

var (
	ErrBusClosed          = errors.New("annotbus: bus is closed")
	ErrSubscriberExists   = errors.New("annotbus: subscriber already exists")
	ErrSubscriberNotFound = errors.New("annotbus: subscriber not found")
	ErrNilChannel         = errors.New("annotbus: nil channel provided")
)

// SubscriberStats tracks delivery to one subscriber.
type SubscriberStats struct {
	Sent    uint64
	Dropped uint64
}

type subscriber struct {
	ch      chan<- faceoverlay.Annotation
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// Bus distributes annotations. It implements faceoverlay.AnnotationPublisher.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[string]*subscriber
	published   atomic.Uint64
	closed      bool
}

var _ faceoverlay.AnnotationPublisher = (*Bus)(nil)

// New creates an empty bus.
func New() *Bus {
	return &Bus{subscribers: make(map[string]*subscriber)}
}

// Subscribe registers ch under id.
func (b *Bus) Subscribe(id string, ch chan<- faceoverlay.Annotation) error {
	if ch == nil {
		return ErrNilChannel
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBusClosed
	}
	if _, exists := b.subscribers[id]; exists {
		return ErrSubscriberExists
	}
	b.subscribers[id] = &subscriber{ch: ch}
	return nil
}

// Unsubscribe removes id. The channel is not closed.
func (b *Bus) Unsubscribe(id string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[id]; !exists {
		return ErrSubscriberNotFound
	}
	delete(b.subscribers, id)
	return nil
}

// Publish offers a to every subscriber without blocking.
func (b *Bus) Publish(a faceoverlay.Annotation) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return
	}
	b.published.Add(1)

	for _, sub := range b.subscribers {
		select {
		case sub.ch <- a:
			sub.sent.Add(1)
		default:
			sub.dropped.Add(1)
		}
	}
}

// Published returns the number of annotations accepted by the bus.
func (b *Bus) Published() uint64 {
	return b.published.Load()
}

// Stats returns delivery counters for id.
func (b *Bus) Stats(id string) (SubscriberStats, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	sub, exists := b.subscribers[id]
	if !exists {
		return SubscriberStats{}, ErrSubscriberNotFound
	}
	return SubscriberStats{
		Sent:    sub.sent.Load(),
		Dropped: sub.dropped.Load(),
	}, nil
}

// Close drops all subscribers. Later publishes are ignored. Idempotent.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	b.subscribers = nil
}
