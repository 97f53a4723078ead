package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func runLoop(t *testing.T, interval time.Duration) *Loop {
	t.Helper()
	l := New(interval)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-l.Done()
	})
	return l
}

func TestPostOrder(t *testing.T) {
	l := runLoop(t, 0)

	var got []int
	for i := 0; i < 5; i++ {
		i := i
		l.Post(func() { got = append(got, i) })
	}
	if err := l.Call(context.Background(), func() {}); err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4}, got); diff != "" {
		t.Errorf("task order mismatch (-want +got):\n%s", diff)
	}
}

func TestCallContextDone(t *testing.T) {
	l := runLoop(t, 0)

	block := make(chan struct{})
	l.Post(func() { <-block })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	ran := make(chan struct{})
	err := l.Call(ctx, func() { close(ran) })
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Call() = %v, want deadline exceeded", err)
	}

	// The task was already queued, so it still runs.
	close(block)
	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Error("queued task never ran")
	}
}

func TestFrames(t *testing.T) {
	l := runLoop(t, 0)
	ctx := context.Background()

	var order []string
	var cancelMe Handle
	l.Call(ctx, func() {
		l.RequestFrame(func(time.Time) { order = append(order, "a") })
		cancelMe = l.RequestFrame(func(time.Time) { order = append(order, "cancelled") })
		l.RequestFrame(func(time.Time) {
			order = append(order, "c")
			// Requested during dispatch: runs on the next tick.
			l.RequestFrame(func(time.Time) { order = append(order, "next") })
		})
	})
	l.CancelFrame(cancelMe)
	l.CancelFrame(0)

	if got := l.Pending(); got != 2 {
		t.Fatalf("Pending() = %d, want 2", got)
	}

	if err := l.Tick(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "c"}, order); diff != "" {
		t.Errorf("first tick mismatch (-want +got):\n%s", diff)
	}

	if err := l.Tick(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"a", "c", "next"}, order); diff != "" {
		t.Errorf("second tick mismatch (-want +got):\n%s", diff)
	}
	if got := l.Pending(); got != 0 {
		t.Errorf("Pending() = %d, want 0", got)
	}
}

func TestFrameCancelledBySibling(t *testing.T) {
	l := runLoop(t, 0)
	ctx := context.Background()

	ran := false
	var second Handle
	l.Call(ctx, func() {
		l.RequestFrame(func(time.Time) { l.CancelFrame(second) })
		second = l.RequestFrame(func(time.Time) { ran = true })
	})
	if err := l.Tick(ctx, time.Now()); err != nil {
		t.Fatal(err)
	}
	l.Call(ctx, func() {})

	if ran {
		t.Error("frame cancelled earlier in the same tick still ran")
	}
}

func TestPanicRecovered(t *testing.T) {
	l := runLoop(t, 0)

	l.Post(func() { panic("boom") })
	ran := false
	if err := l.Call(context.Background(), func() { ran = true }); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("loop stopped after a panicking task")
	}
}

func TestTickerMode(t *testing.T) {
	l := runLoop(t, time.Millisecond)

	fired := make(chan time.Time, 1)
	l.RequestFrame(func(now time.Time) { fired <- now })

	select {
	case now := <-fired:
		if now.IsZero() {
			t.Error("frame got a zero timestamp")
		}
	case <-time.After(time.Second):
		t.Fatal("frame never dispatched by the ticker")
	}
}

func TestClosed(t *testing.T) {
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.Done()

	if err := l.Tick(context.Background(), time.Now()); !errors.Is(err, ErrClosed) {
		t.Errorf("Tick() after close = %v, want ErrClosed", err)
	}

	ran := false
	l.Post(func() { ran = true })
	if !ran {
		t.Error("Post after close did not run inline")
	}

	if err := l.Run(context.Background()); err == nil {
		t.Error("Run after close should fail")
	}
}

func closedLoop(t *testing.T) *Loop {
	t.Helper()
	l := New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()
	<-l.Done()
	return l
}

func TestClosedNestedPostRunsAfterTask(t *testing.T) {
	l := closedLoop(t)

	var order []string
	l.Post(func() {
		l.Post(func() { order = append(order, "inner") })
		order = append(order, "outer")
	})

	if diff := cmp.Diff([]string{"outer", "inner"}, order); diff != "" {
		t.Errorf("task order mismatch (-want +got):\n%s", diff)
	}
}

func TestClosedSerializesCallers(t *testing.T) {
	l := closedLoop(t)

	const callers, perCaller = 4, 250
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perCaller; j++ {
				if err := l.Call(context.Background(), func() { counter++ }); err != nil {
					t.Errorf("Call() = %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	if counter != callers*perCaller {
		t.Errorf("counter = %d, want %d", counter, callers*perCaller)
	}
}
