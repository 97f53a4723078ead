// Package eventloop runs posted tasks and animation-frame callbacks on a
// single goroutine.
//
// Every mutation of session state happens inside a task or a frame
// callback, so callers never need their own locking. Frame callbacks are
// dispatched once per tick in the order they were requested; a callback
// requested while a tick is being dispatched runs on the following tick.
//
// Two clock modes exist:
//   - New(interval) with interval > 0 ticks on a time.Ticker (display refresh)
//   - New(0) never ticks on its own; Tick drives frames explicitly (tests)
package eventloop

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Handle identifies a scheduled frame callback. Zero means "none".
type Handle uint64

// FrameFunc is invoked on the loop goroutine with the tick time.
type FrameFunc func(now time.Time)

// ErrClosed is returned by Tick once Run has returned.
var ErrClosed = errors.New("eventloop: loop is closed")

// Loop is a cooperative single-goroutine scheduler.
type Loop struct {
	interval time.Duration

	mu      sync.Mutex
	tasks   []func()
	frames  map[Handle]FrameFunc
	next    Handle
	running bool
	closed  bool
	wake    chan struct{}
	done    chan struct{}

	// set while a caller runs tasks inline after close
	draining bool
}

// New creates a loop. interval is the refresh period; 0 selects manual mode.
func New(interval time.Duration) *Loop {
	return &Loop{
		interval: interval,
		frames:   make(map[Handle]FrameFunc),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// Post queues fn for execution on the loop goroutine. Tasks run in FIFO
// order.
//
// Once Run has returned, the posting goroutine drains the queue itself.
// Only one goroutine drains at a time, so tasks stay serialized; a task
// posted while another caller is draining runs on that caller.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.tasks = append(l.tasks, fn)
	closed := l.closed
	l.mu.Unlock()

	if closed {
		l.drainInline()
		return
	}

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Call posts fn and waits for it to finish, or for ctx to end.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	l.Post(func() {
		defer close(finished)
		fn()
	})

	// Already ran inline.
	select {
	case <-finished:
		return nil
	default:
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RequestFrame schedules cb for the next tick and returns its handle.
func (l *Loop) RequestFrame(cb FrameFunc) Handle {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.next++
	l.frames[l.next] = cb
	return l.next
}

// CancelFrame removes a scheduled callback. Unknown or zero handles are ignored.
func (l *Loop) CancelFrame(h Handle) {
	if h == 0 {
		return
	}
	l.mu.Lock()
	delete(l.frames, h)
	l.mu.Unlock()
}

// Pending returns the number of scheduled frame callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.frames)
}

// Tick dispatches one frame on the loop goroutine and waits for it.
// Intended for manual mode.
func (l *Loop) Tick(ctx context.Context, now time.Time) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return l.Call(ctx, func() { l.dispatchFrames(now) })
}

// Run processes tasks (and ticks, when interval > 0) until ctx is done.
// Pending tasks are drained before returning.
func (l *Loop) Run(ctx context.Context) error {
	l.mu.Lock()
	if l.running || l.closed {
		l.mu.Unlock()
		return errors.New("eventloop: already running")
	}
	l.running = true
	l.mu.Unlock()

	var tick <-chan time.Time
	if l.interval > 0 {
		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	slog.Debug("eventloop: running", "interval", l.interval)

	defer l.close()

	for {
		l.drain()

		select {
		case <-ctx.Done():
			l.drain()
			return nil
		case <-l.wake:
		case now := <-tick:
			l.dispatchFrames(now)
		}
	}
}

// Done is closed once Run has returned.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.mu.Unlock()
			return
		}
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.runTask(fn)
		}
	}
}

// drainInline runs queued tasks on the caller goroutine after close.
func (l *Loop) drainInline() {
	l.mu.Lock()
	if l.draining {
		l.mu.Unlock()
		return
	}
	l.draining = true
	l.mu.Unlock()

	for {
		l.mu.Lock()
		if len(l.tasks) == 0 {
			l.draining = false
			l.mu.Unlock()
			return
		}
		batch := l.tasks
		l.tasks = nil
		l.mu.Unlock()

		for _, fn := range batch {
			l.runTask(fn)
		}
	}
}

func (l *Loop) runTask(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("eventloop: task panicked", "panic", r)
		}
	}()
	fn()
}

// dispatchFrames runs every callback scheduled before this tick, in handle order.
func (l *Loop) dispatchFrames(now time.Time) {
	l.mu.Lock()
	if len(l.frames) == 0 {
		l.mu.Unlock()
		return
	}
	handles := make([]Handle, 0, len(l.frames))
	for h := range l.frames {
		handles = append(handles, h)
	}
	l.mu.Unlock()

	sort.Slice(handles, func(i, j int) bool { return handles[i] < handles[j] })

	for _, h := range handles {
		l.mu.Lock()
		cb, ok := l.frames[h]
		delete(l.frames, h)
		l.mu.Unlock()

		// Cancelled by an earlier callback in this same tick.
		if !ok {
			continue
		}
		l.runTask(func() { cb(now) })
	}
}

func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.running = false
	l.frames = make(map[Handle]FrameFunc)
	l.mu.Unlock()

	// Tasks posted between the final drain and close still get to run.
	l.drainInline()
	close(l.done)
}
