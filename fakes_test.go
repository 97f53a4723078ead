package faceoverlay

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/eventloop"
)

// startLoop runs a manual-mode loop for the duration of the test.
func startLoop(t *testing.T) *eventloop.Loop {
	t.Helper()
	loop := eventloop.New(0)
	ctx, cancel := context.WithCancel(context.Background())
	go loop.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-loop.Done()
	})
	return loop
}

// flush waits until every task posted so far has run.
func flush(t *testing.T, loop *eventloop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := loop.Call(ctx, func() {}); err != nil {
		t.Fatalf("loop barrier: %v", err)
	}
}

// onLoop runs fn on the loop goroutine, then flushes the events it caused.
func onLoop(t *testing.T, loop *eventloop.Loop, fn func()) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := loop.Call(ctx, fn); err != nil {
		t.Fatalf("loop call: %v", err)
	}
	flush(t, loop)
}

func tick(t *testing.T, loop *eventloop.Loop) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := loop.Tick(ctx, time.Now()); err != nil {
		t.Fatalf("tick: %v", err)
	}
}

// fakeElement loads metadata as soon as a source is set (streams) or
// loaded (files), and emits play/pause like a media element.
type fakeElement struct {
	mu sync.Mutex

	handler func(MediaEvent)
	source  MediaSource
	width   int
	height  int
	ready   ReadyState
	paused  bool
	ended   bool
	visible bool
	frame   image.Image

	playErr    error
	loadErr    error
	noMetadata bool

	plays   int
	sources []MediaSource
}

func newFakeElement(width, height int) *fakeElement {
	return &fakeElement{
		width:  width,
		height: height,
		paused: true,
		frame:  image.NewRGBA(image.Rect(0, 0, width, height)),
	}
}

func (e *fakeElement) SetEventHandler(h func(MediaEvent)) {
	e.mu.Lock()
	e.handler = h
	e.mu.Unlock()
}

func (e *fakeElement) SetSource(src MediaSource) error {
	e.mu.Lock()
	e.source = src
	e.sources = append(e.sources, src)
	e.ready = HaveNothing
	e.paused = true
	e.mu.Unlock()

	if src.IsStream() {
		e.loadMetadata()
	}
	return nil
}

func (e *fakeElement) Load() error {
	if e.loadErr != nil {
		return e.loadErr
	}
	e.loadMetadata()
	return nil
}

func (e *fakeElement) loadMetadata() {
	e.mu.Lock()
	if e.noMetadata {
		e.mu.Unlock()
		return
	}
	e.ready = HaveMetadata
	e.mu.Unlock()
	e.emit(MediaEvent{Type: EventLoadedMetadata})
}

func (e *fakeElement) Play() error {
	e.mu.Lock()
	e.plays++
	if e.playErr != nil {
		e.mu.Unlock()
		return e.playErr
	}
	was := e.paused
	e.paused = false
	e.ended = false
	e.mu.Unlock()

	if was {
		e.emit(MediaEvent{Type: EventPlay})
	}
	return nil
}

func (e *fakeElement) Pause() error {
	e.mu.Lock()
	was := e.paused
	e.paused = true
	e.mu.Unlock()

	if !was {
		e.emit(MediaEvent{Type: EventPause})
	}
	return nil
}

// end simulates reaching the end of a file.
func (e *fakeElement) end() {
	e.mu.Lock()
	e.ended = true
	e.paused = true
	e.mu.Unlock()
	e.emit(MediaEvent{Type: EventEnded})
}

func (e *fakeElement) fault(err error) {
	e.emit(MediaEvent{Type: EventError, Err: err})
}

func (e *fakeElement) Paused() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.paused
}

func (e *fakeElement) Ended() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ended
}

func (e *fakeElement) ReadyState() ReadyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready
}

func (e *fakeElement) VideoSize() (int, int) {
	return e.width, e.height
}

func (e *fakeElement) CurrentFrame() image.Image {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frame
}

func (e *fakeElement) SetVisible(v bool) {
	e.mu.Lock()
	e.visible = v
	e.mu.Unlock()
}

func (e *fakeElement) isVisible() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.visible
}

func (e *fakeElement) playCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plays
}

func (e *fakeElement) currentSource() MediaSource {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.source
}

func (e *fakeElement) emit(ev MediaEvent) {
	e.mu.Lock()
	h := e.handler
	e.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

// fakeSurface records every drawing operation.
type fakeSurface struct {
	mu      sync.Mutex
	width   int
	height  int
	resizes []image.Point
	ops     []string
}

func (s *fakeSurface) Resize(w, h int) {
	s.mu.Lock()
	s.width, s.height = w, h
	s.resizes = append(s.resizes, image.Pt(w, h))
	s.mu.Unlock()
}

func (s *fakeSurface) Size() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.width, s.height
}

func (s *fakeSurface) DrawFrame(image.Image) { s.record("frame") }

func (s *fakeSurface) StrokeRect(r Rectangle, style StrokeStyle) {
	s.record(fmt.Sprintf("stroke %s #%02x%02x%02x/%d", r, style.Color.R, style.Color.G, style.Color.B, style.Thickness))
}

func (s *fakeSurface) Snapshot() image.Image {
	w, h := s.Size()
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

func (s *fakeSurface) Present() { s.record("present") }

func (s *fakeSurface) record(op string) {
	s.mu.Lock()
	s.ops = append(s.ops, op)
	s.mu.Unlock()
}

func (s *fakeSurface) takeOps() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ops := s.ops
	s.ops = nil
	return ops
}

func (s *fakeSurface) resizeCalls() []image.Point {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]image.Point(nil), s.resizes...)
}

type fakeUI struct {
	mu      sync.Mutex
	loading []bool
	errors  []string
}

func (u *fakeUI) SetLoading(v bool) {
	u.mu.Lock()
	u.loading = append(u.loading, v)
	u.mu.Unlock()
}

func (u *fakeUI) ShowError(msg string) {
	u.mu.Lock()
	u.errors = append(u.errors, msg)
	u.mu.Unlock()
}

func (u *fakeUI) shownErrors() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.errors...)
}

type fakeTrack struct {
	mu      sync.Mutex
	kind    string
	stopped int
}

func (t *fakeTrack) Kind() string { return t.kind }

func (t *fakeTrack) Stop() error {
	t.mu.Lock()
	t.stopped++
	t.mu.Unlock()
	return nil
}

func (t *fakeTrack) stops() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStream struct {
	id     string
	tracks []*fakeTrack
}

func newFakeStream(id string) *fakeStream {
	return &fakeStream{id: id, tracks: []*fakeTrack{{kind: "video"}}}
}

func (s *fakeStream) ID() string { return s.id }

func (s *fakeStream) Tracks() []Track {
	out := make([]Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *fakeStream) ReadFrame() (image.Image, error) {
	return nil, errors.New("fake stream has no frames")
}

func (s *fakeStream) allStopped() bool {
	for _, t := range s.tracks {
		if t.stops() == 0 {
			return false
		}
	}
	return true
}

// mediaResult is one scripted GetUserMedia outcome.
type mediaResult struct {
	stream Stream
	err    error
}

type fakeDevices struct {
	mu      sync.Mutex
	results []mediaResult
	calls   []Constraints

	// gate, when set, blocks GetUserMedia until closed
	gate    chan struct{}
	entered chan struct{}
}

func (d *fakeDevices) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	d.calls = append(d.calls, c)
	gate, entered := d.gate, d.entered
	var res mediaResult
	if len(d.results) > 0 {
		res = d.results[0]
		d.results = d.results[1:]
	} else {
		res = mediaResult{err: &DeviceError{Name: DeviceErrNotFound}}
	}
	d.mu.Unlock()

	if entered != nil {
		close(entered)
	}
	if gate != nil {
		<-gate
	}
	return res.stream, res.err
}

func (d *fakeDevices) requests() []Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Constraints(nil), d.calls...)
}

type fakeDetector struct {
	mu       sync.Mutex
	initOK   bool
	initErr  error
	objects  []DetectedObject
	detects  int
	disposed int
}

func (d *fakeDetector) Init(ctx context.Context) (bool, error) {
	return d.initOK, d.initErr
}

func (d *fakeDetector) Detect(Surface) []DetectedObject {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.detects++
	return d.objects
}

func (d *fakeDetector) Dispose() {
	d.mu.Lock()
	d.disposed++
	d.mu.Unlock()
}

func (d *fakeDetector) disposals() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.disposed
}

// factoryFor returns a DetectorFactory that hands out det.
func factoryFor(det *fakeDetector) DetectorFactory {
	return func(string) (Detector, error) { return det, nil }
}

type recordingPublisher struct {
	mu          sync.Mutex
	annotations []Annotation
}

func (p *recordingPublisher) Publish(a Annotation) {
	p.mu.Lock()
	p.annotations = append(p.annotations, a)
	p.mu.Unlock()
}

func (p *recordingPublisher) all() []Annotation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Annotation(nil), p.annotations...)
}
