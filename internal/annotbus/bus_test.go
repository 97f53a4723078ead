package annotbus

import (
	"errors"
	"testing"
	"time"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

// TestBasicPublishSubscribe verifies basic functionality.
func TestBasicPublishSubscribe(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch := make(chan faceoverlay.Annotation, 10)
	if err := bus.Subscribe("mqtt", ch); err != nil {
		t.Fatalf("Subscribe failed: %v", err)
	}

	bus.Publish(faceoverlay.Annotation{Seq: 1, Width: 640, Height: 480})

	select {
	case got := <-ch:
		if got.Seq != 1 || got.Width != 640 {
			t.Errorf("got %+v, want seq 1 width 640", got)
		}
	case <-time.After(time.Second):
		t.Fatal("Timeout waiting for annotation")
	}
}

// TestNonBlockingPublish verifies a full subscriber drops instead of blocking.
func TestNonBlockingPublish(t *testing.T) {
	bus := New()
	defer bus.Close()

	ch := make(chan faceoverlay.Annotation, 1)
	if err := bus.Subscribe("slow", ch); err != nil {
		t.Fatal(err)
	}

	done := make(chan struct{})
	go func() {
		bus.Publish(faceoverlay.Annotation{Seq: 1})
		bus.Publish(faceoverlay.Annotation{Seq: 2})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Publish blocked (should be non-blocking)")
	}

	if got := <-ch; got.Seq != 1 {
		t.Errorf("Expected seq 1, got %d", got.Seq)
	}

	stats, err := bus.Stats("slow")
	if err != nil {
		t.Fatal(err)
	}
	if stats.Sent != 1 || stats.Dropped != 1 {
		t.Errorf("stats = %+v, want 1 sent 1 dropped", stats)
	}
	if bus.Published() != 2 {
		t.Errorf("Published = %d, want 2", bus.Published())
	}
}

func TestSubscribeErrors(t *testing.T) {
	bus := New()
	ch := make(chan faceoverlay.Annotation, 1)

	tests := []struct {
		name string
		run  func() error
		want error
	}{
		{"nil channel", func() error { return bus.Subscribe("a", nil) }, ErrNilChannel},
		{"first subscribe", func() error { return bus.Subscribe("a", ch) }, nil},
		{"duplicate", func() error { return bus.Subscribe("a", ch) }, ErrSubscriberExists},
		{"unsubscribe unknown", func() error { return bus.Unsubscribe("b") }, ErrSubscriberNotFound},
		{"unsubscribe", func() error { return bus.Unsubscribe("a") }, nil},
		{"stats after unsubscribe", func() error { _, err := bus.Stats("a"); return err }, ErrSubscriberNotFound},
		{"closed", func() error { bus.Close(); return bus.Subscribe("c", ch) }, ErrBusClosed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.want) {
				t.Errorf("got %v, want %v", err, tt.want)
			}
		})
	}
}

func TestPublishAfterClose(t *testing.T) {
	bus := New()
	ch := make(chan faceoverlay.Annotation, 1)
	bus.Subscribe("a", ch)
	bus.Close()
	bus.Close()

	bus.Publish(faceoverlay.Annotation{Seq: 1})

	if len(ch) != 0 {
		t.Error("annotation delivered after Close")
	}
	if bus.Published() != 0 {
		t.Errorf("Published = %d, want 0", bus.Published())
	}
}
