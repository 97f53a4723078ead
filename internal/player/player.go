// Package player implements faceoverlay.Element on top of a live capture
// stream or a GStreamer file pipeline.
//
// Decoded frames land in a single-slot mailbox; the render loop samples the
// newest one with CurrentFrame. Media events are delivered to the installed
// handler from whichever goroutine produced them.
package player

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/gstsource"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/mailbox"
)

// ErrNoSource is returned by Load and Play when no source is attached.
var ErrNoSource = errors.New("player: no source attached")

// FileSource is a decoding pipeline for a file or URI.
type FileSource interface {
	Preroll() error
	Play() error
	Pause() error
	Close() error
}

// FileOpener opens a FileSource for location.
type FileOpener func(location string, cb gstsource.Callbacks) (FileSource, error)

// Option customizes a Player.
type Option func(*Player)

// WithFileOpener replaces the GStreamer opener.
func WithFileOpener(open FileOpener) Option {
	return func(p *Player) { p.open = open }
}

// Stats is a snapshot of player activity.
type Stats struct {
	Frames mailbox.Stats
	Width  int
	Height int
}

// Player is a playable media element.
type Player struct {
	open FileOpener

	frames mailbox.Mailbox[image.Image]

	mu      sync.Mutex
	handler func(faceoverlay.MediaEvent)
	source  faceoverlay.MediaSource
	file    FileSource
	cancel  context.CancelFunc
	gen     uint64
	width   int
	height  int
	ready   faceoverlay.ReadyState
	paused  bool
	ended   bool
	visible bool
}

var _ faceoverlay.Element = (*Player)(nil)

// New creates a detached, paused player.
func New(opts ...Option) *Player {
	p := &Player{
		open: func(location string, cb gstsource.Callbacks) (FileSource, error) {
			src, err := gstsource.Open(location, cb)
			if err != nil {
				return nil, err
			}
			return src, nil
		},
		paused: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// SetEventHandler installs the event sink.
func (p *Player) SetEventHandler(h func(faceoverlay.MediaEvent)) {
	p.mu.Lock()
	p.handler = h
	p.mu.Unlock()
}

// SetSource replaces the current source. A stream starts delivering frames
// at once; a file waits for Load. The zero MediaSource detaches.
func (p *Player) SetSource(src faceoverlay.MediaSource) error {
	p.mu.Lock()
	old, oldCancel := p.file, p.cancel
	p.gen++
	gen := p.gen
	p.source = src
	p.file = nil
	p.cancel = nil
	p.width, p.height = 0, 0
	p.ready = faceoverlay.HaveNothing
	p.paused = true
	p.ended = false
	p.frames.Clear()
	p.mu.Unlock()

	if oldCancel != nil {
		oldCancel()
	}
	if old != nil {
		if err := old.Close(); err != nil {
			slog.Warn("player: closing previous source failed", "error", err)
		}
	}

	if stream := src.Stream(); stream != nil {
		ctx, cancel := context.WithCancel(context.Background())
		p.mu.Lock()
		p.cancel = cancel
		p.mu.Unlock()
		go p.readStream(ctx, gen, stream)
		slog.Debug("player: stream attached", "stream_id", stream.ID())
	}
	return nil
}

// Load opens and prerolls a file source. No-op for streams.
func (p *Player) Load() error {
	p.mu.Lock()
	src, gen := p.source, p.gen
	p.mu.Unlock()

	if src.IsZero() {
		return ErrNoSource
	}
	if src.IsStream() {
		return nil
	}

	file, err := p.open(src.URL(), gstsource.Callbacks{
		OnMetadata: func(w, h int) { p.onMetadata(gen, w, h) },
		OnFrame:    func(frame *image.RGBA) { p.onFrame(gen, frame) },
		OnEOS:      func() { p.onEnded(gen) },
		OnError:    func(err error) { p.onError(gen, err) },
	})
	if err != nil {
		return fmt.Errorf("player: open %q: %w", src.URL(), err)
	}

	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return file.Close()
	}
	p.file = file
	p.mu.Unlock()

	return file.Preroll()
}

// Play starts playback and emits EventPlay.
func (p *Player) Play() error {
	p.mu.Lock()
	src, file := p.source, p.file
	if src.IsZero() {
		p.mu.Unlock()
		return ErrNoSource
	}
	p.mu.Unlock()

	if file != nil {
		if err := file.Play(); err != nil {
			return err
		}
	} else if !src.IsStream() {
		return fmt.Errorf("player: %q not loaded", src.URL())
	}

	p.mu.Lock()
	wasPaused := p.paused
	p.paused = false
	p.ended = false
	p.mu.Unlock()

	if wasPaused {
		p.emit(faceoverlay.MediaEvent{Type: faceoverlay.EventPlay})
	}
	return nil
}

// Pause pauses playback and emits EventPause.
func (p *Player) Pause() error {
	p.mu.Lock()
	file, wasPaused := p.file, p.paused
	p.paused = true
	p.mu.Unlock()

	if file != nil {
		if err := file.Pause(); err != nil {
			return err
		}
	}
	if !wasPaused {
		p.emit(faceoverlay.MediaEvent{Type: faceoverlay.EventPause})
	}
	return nil
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

func (p *Player) Ended() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ended
}

func (p *Player) ReadyState() faceoverlay.ReadyState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ready
}

func (p *Player) VideoSize() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

// CurrentFrame returns the newest decoded frame.
func (p *Player) CurrentFrame() image.Image {
	frame, _, ok := p.frames.Latest()
	if !ok {
		return nil
	}
	return frame
}

func (p *Player) SetVisible(visible bool) {
	p.mu.Lock()
	p.visible = visible
	p.mu.Unlock()
}

// Visible reports the last SetVisible value.
func (p *Player) Visible() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible
}

// Stats returns frame delivery counters.
func (p *Player) Stats() Stats {
	w, h := p.VideoSize()
	return Stats{Frames: p.frames.Stats(), Width: w, Height: h}
}

// Close detaches the source and releases the pipeline.
func (p *Player) Close() error {
	return p.SetSource(faceoverlay.MediaSource{})
}

// readStream pulls frames until ctx is canceled or the stream fails.
func (p *Player) readStream(ctx context.Context, gen uint64, stream faceoverlay.Stream) {
	for ctx.Err() == nil {
		frame, err := stream.ReadFrame()
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			p.onError(gen, fmt.Errorf("read frame: %w", err))
			return
		}
		if frame == nil {
			continue
		}

		b := frame.Bounds()
		p.onMetadata(gen, b.Dx(), b.Dy())
		p.onFrame(gen, frame)
	}
}

// onMetadata records the size and emits EventLoadedMetadata once per source.
func (p *Player) onMetadata(gen uint64, w, h int) {
	p.mu.Lock()
	if gen != p.gen || p.ready >= faceoverlay.HaveMetadata {
		p.mu.Unlock()
		return
	}
	p.width, p.height = w, h
	p.ready = faceoverlay.HaveMetadata
	p.mu.Unlock()

	slog.Debug("player: metadata loaded", "width", w, "height", h)
	p.emit(faceoverlay.MediaEvent{Type: faceoverlay.EventLoadedMetadata})
}

func (p *Player) onFrame(gen uint64, frame image.Image) {
	p.mu.Lock()
	if gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.ready = faceoverlay.HaveEnoughData
	p.frames.Put(frame)
	p.mu.Unlock()
}

func (p *Player) onEnded(gen uint64) {
	p.mu.Lock()
	if gen != p.gen || p.ended {
		p.mu.Unlock()
		return
	}
	p.ended = true
	p.paused = true
	p.mu.Unlock()

	p.emit(faceoverlay.MediaEvent{Type: faceoverlay.EventEnded})
}

func (p *Player) onError(gen uint64, err error) {
	p.mu.Lock()
	stale := gen != p.gen
	p.mu.Unlock()
	if stale {
		return
	}
	p.emit(faceoverlay.MediaEvent{Type: faceoverlay.EventError, Err: err})
}

func (p *Player) emit(ev faceoverlay.MediaEvent) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(ev)
	}
}
