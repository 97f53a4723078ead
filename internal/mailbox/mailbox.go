// Package mailbox holds the newest value published by a producer goroutine.
//
// Put never blocks: a new value replaces the previous one, and a value
// replaced before anyone read it is counted as a drop. Readers see the
// latest value only, which is what a render loop sampling a decoder wants.
package mailbox

import (
	"sync"
	"sync/atomic"
	"time"
)

// Stats is a snapshot of mailbox activity.
type Stats struct {
	// Published counts every Put.
	Published uint64
	// Drops counts values overwritten before they were read.
	Drops uint64
	// LastPutAt is the time of the latest Put (zero if none).
	LastPutAt time.Time
}

// Mailbox is a single-slot, overwrite-on-write holder. The zero value is ready to use.
type Mailbox[T any] struct {
	mu     sync.Mutex
	value  T
	has    bool
	unread bool
	seq    uint64
	putAt  time.Time

	drops atomic.Uint64
}

// Put stores v, replacing the previous value.
func (m *Mailbox[T]) Put(v T) {
	m.mu.Lock()
	if m.unread {
		m.drops.Add(1)
	}
	m.value = v
	m.has = true
	m.unread = true
	m.seq++
	m.putAt = time.Now()
	m.mu.Unlock()
}

// Latest returns the newest value and its sequence number (1-based).
// ok is false if nothing was ever put or the mailbox was cleared.
func (m *Mailbox[T]) Latest() (v T, seq uint64, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.has {
		return v, 0, false
	}
	m.unread = false
	return m.value, m.seq, true
}

// Clear drops the held value. Sequence numbers keep increasing.
func (m *Mailbox[T]) Clear() {
	m.mu.Lock()
	var zero T
	m.value = zero
	m.has = false
	m.unread = false
	m.mu.Unlock()
}

// Stats returns current counters.
func (m *Mailbox[T]) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{
		Published: m.seq,
		Drops:     m.drops.Load(),
		LastPutAt: m.putAt,
	}
}
