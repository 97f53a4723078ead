package faceoverlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// pendingAcquisition is one acquisition attempt. settle delivers exactly
// one outcome; later calls are ignored. Only touched on the scheduler goroutine.
type pendingAcquisition struct {
	done    chan error
	settled bool
}

func newPendingAcquisition() *pendingAcquisition {
	return &pendingAcquisition{done: make(chan error, 1)}
}

func (p *pendingAcquisition) settle(err error) bool {
	if p.settled {
		return false
	}
	p.settled = true
	p.done <- err
	return true
}

// Acquirer obtains a playable source and starts playback.
//
// A live Stream acquired here is kept until Release, which the Session calls
// during teardown.
type Acquirer struct {
	sched   Scheduler
	element Element
	surface Surface
	ui      UI
	devices MediaDevices

	videoSource string
	camera      VideoConstraints

	stream   Stream
	pending  *pendingAcquisition
	resized  bool
	released bool

	// set by Abort; later attempts settle with it
	aborted error
}

// NewAcquirer creates an acquirer. videoSource == "" selects the camera.
func NewAcquirer(sched Scheduler, element Element, surface Surface, ui UI, devices MediaDevices, videoSource string, camera VideoConstraints) *Acquirer {
	return &Acquirer{
		sched:       sched,
		element:     element,
		surface:     surface,
		ui:          ui,
		devices:     devices,
		videoSource: videoSource,
		camera:      camera,
	}
}

// Acquire returns nil once metadata is loaded, the surface is sized and
// playback has started. It blocks; call it from outside the scheduler goroutine.
func (a *Acquirer) Acquire(ctx context.Context) error {
	src := FileSource(a.videoSource)

	if a.videoSource == "" {
		stream, err := a.openCamera(ctx)
		if err != nil {
			return err
		}

		var handErr error
		if err := a.sched.Call(ctx, func() { handErr = a.adoptStream(stream) }); err != nil {
			return err
		}
		if handErr != nil {
			return handErr
		}
		src = StreamSource(stream)
	}

	p := newPendingAcquisition()
	if err := a.sched.Call(ctx, func() { a.attach(p, src) }); err != nil {
		a.sched.Post(func() { p.settle(err) })
		return err
	}

	select {
	case err := <-p.done:
		return err
	case <-ctx.Done():
		a.sched.Post(func() { p.settle(ctx.Err()) })
		return ctx.Err()
	}
}

// openCamera requests the preferred camera mode and, when that mode cannot
// be satisfied, makes exactly one request with DegradedConstraints.
func (a *Acquirer) openCamera(ctx context.Context) (Stream, error) {
	preferred := a.camera
	preferred.Exact = false
	stream, err := a.devices.GetUserMedia(ctx, Constraints{Video: &preferred})
	if err == nil {
		return stream, nil
	}

	if !Classify(err).Retryable {
		return nil, err
	}

	slog.Warn("face-overlay: camera constraints unsatisfiable, retrying with any camera",
		"facing_mode", preferred.FacingMode,
		"width", preferred.Width,
		"height", preferred.Height,
		"error", err,
	)

	stream, err = a.devices.GetUserMedia(ctx, DegradedConstraints())
	if err != nil {
		return nil, fmt.Errorf("degraded camera request: %w", err)
	}
	return stream, nil
}

// adoptStream takes ownership of stream, or stops it when already released.
func (a *Acquirer) adoptStream(stream Stream) error {
	if a.released {
		stopTracks(stream)
		return ErrDisposed
	}
	a.stream = stream
	slog.Info("face-overlay: camera stream acquired", "stream_id", stream.ID(), "tracks", len(stream.Tracks()))
	return nil
}

// attach registers the event handler and assigns the source in one task, so
// a metadata event can never be missed.
func (a *Acquirer) attach(p *pendingAcquisition, src MediaSource) {
	if p.settled {
		return
	}
	if a.released {
		p.settle(ErrDisposed)
		return
	}
	if a.aborted != nil {
		p.settle(a.aborted)
		return
	}
	a.pending = p

	if err := a.element.SetSource(src); err != nil {
		a.fail(&Error{Kind: KindStreamError, Err: fmt.Errorf("set source: %w", err)})
		return
	}
	if !src.IsStream() {
		if err := a.element.Load(); err != nil {
			a.fail(&Error{Kind: KindStreamError, Err: fmt.Errorf("load %q: %w", src.URL(), err)})
			return
		}
	}

	if a.element.ReadyState() >= HaveCurrentData {
		a.onReady()
	}
}

// HandleEvent routes element events that concern acquisition. It reports
// whether the event was consumed. Called on the scheduler goroutine.
func (a *Acquirer) HandleEvent(ev MediaEvent) bool {
	if a.pending == nil || a.pending.settled {
		return false
	}

	switch ev.Type {
	case EventLoadedMetadata:
		a.onReady()
		return true
	case EventError:
		err := ev.Err
		if err == nil {
			err = errors.New("media element error")
		}
		a.fail(&Error{Kind: KindStreamError, Err: err})
		return true
	default:
		return false
	}
}

func (a *Acquirer) onReady() {
	if a.pending == nil || a.pending.settled {
		return
	}

	w, h := a.element.VideoSize()
	if !a.resized {
		a.surface.Resize(w, h)
		a.resized = true
	}
	a.ui.SetLoading(false)
	a.element.SetVisible(true)

	if err := a.element.Play(); err != nil {
		a.fail(&Error{Kind: KindPlaybackRejected, Err: err})
		return
	}

	slog.Info("face-overlay: source ready", "width", w, "height", h, "stream", a.stream != nil)
	a.pending.settle(nil)
}

func (a *Acquirer) fail(err error) {
	if a.pending != nil {
		a.pending.settle(err)
	}
}

// Abort settles any in-flight attempt with err, and any later one too.
// The stream stays owned until Release.
func (a *Acquirer) Abort(err error) {
	if a.released || a.aborted != nil {
		return
	}
	a.aborted = err
	if a.pending != nil {
		a.pending.settle(err)
	}
}

// Release stops every track of an owned stream, detaches the source and
// settles any in-flight attempt with ErrDisposed. Idempotent.
func (a *Acquirer) Release() {
	if a.released {
		return
	}
	a.released = true

	if a.pending != nil {
		a.pending.settle(ErrDisposed)
	}
	if a.stream != nil {
		stopTracks(a.stream)
		a.stream = nil
	}
	if err := a.element.SetSource(MediaSource{}); err != nil {
		slog.Warn("face-overlay: detach source failed", "error", err)
	}
}

func stopTracks(s Stream) {
	for _, t := range s.Tracks() {
		if err := t.Stop(); err != nil {
			slog.Warn("face-overlay: stop track failed", "stream_id", s.ID(), "kind", t.Kind(), "error", err)
		}
	}
}
