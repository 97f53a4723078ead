package faceoverlay

import (
	"context"
	"image"

	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/eventloop"
)

// AnimationHandle identifies a scheduled render callback. Zero means none.
type AnimationHandle = eventloop.Handle

// Scheduler is the single-goroutine event queue every Session mutation runs on.
//
// Implementations must guarantee:
//   - Post and Call run functions on one goroutine, in FIFO order
//   - RequestFrame callbacks run on that same goroutine at the next refresh
//   - CancelFrame of a handle that already ran (or of 0) is a no-op
//
// Call must never be invoked from the scheduler goroutine itself.
type Scheduler interface {
	Post(fn func())
	Call(ctx context.Context, fn func()) error
	RequestFrame(cb eventloop.FrameFunc) AnimationHandle
	CancelFrame(h AnimationHandle)
}

// Element is a playable media element (the preview video).
//
// Event handlers may be invoked from any goroutine; the Session re-posts
// them to its Scheduler. All other methods are called from the scheduler
// goroutine only.
type Element interface {
	// SetEventHandler installs the single event sink.
	SetEventHandler(h func(MediaEvent))

	// SetSource assigns (or, with the zero MediaSource, detaches) the source.
	SetSource(src MediaSource) error

	// Load starts loading a file source explicitly.
	Load() error

	// Play starts playback. An error means playback was refused.
	Play() error

	// Pause pauses playback.
	Pause() error

	Paused() bool
	Ended() bool
	ReadyState() ReadyState

	// VideoSize returns the intrinsic frame size, valid once metadata is loaded.
	VideoSize() (width, height int)

	// CurrentFrame returns the latest decoded frame, or nil if none yet.
	CurrentFrame() image.Image

	// SetVisible shows or hides the element.
	SetVisible(visible bool)
}

// Surface is the 2D overlay layered above the element.
type Surface interface {
	// Resize sets the surface dimensions.
	Resize(width, height int)
	Size() (width, height int)

	// DrawFrame copies frame onto the surface, scaled to the full surface size.
	DrawFrame(frame image.Image)

	// StrokeRect outlines r with style.
	StrokeRect(r Rectangle, style StrokeStyle)

	// Snapshot returns the current raster (the detector samples it).
	Snapshot() image.Image

	// Present flushes the cycle's drawing to the display.
	Present()
}

// UI is the host page chrome around the preview.
type UI interface {
	// SetLoading toggles the loading indicator.
	SetLoading(visible bool)

	// ShowError replaces any displayed error message with message.
	ShowError(message string)
}

// MediaDevices acquires permission-gated capture streams.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}

// Stream is a live capture handle.
type Stream interface {
	ID() string
	Tracks() []Track

	// ReadFrame blocks until the next frame is available.
	ReadFrame() (image.Image, error)
}

// Track is one stoppable media track of a Stream.
type Track interface {
	Kind() string
	Stop() error
}

// Constraints describes a capture request.
type Constraints struct {
	Audio bool
	Video *VideoConstraints
}

// VideoConstraints are preferences for the video track. Zero fields mean "any".
type VideoConstraints struct {
	// FacingMode is "user" (front) or "environment" (rear)
	FacingMode string
	// Width and Height are ideal dimensions
	Width  int
	Height int
	// Exact turns Width/Height into hard requirements
	Exact bool
}

// DegradedConstraints is the broadest video request: any camera, any mode.
func DegradedConstraints() Constraints {
	return Constraints{Video: &VideoConstraints{}}
}

// Detector is the external object-detection capability.
type Detector interface {
	// Init loads classifier data. false means the detector is unavailable.
	Init(ctx context.Context) (bool, error)

	// Detect runs synchronously against the surface's current raster.
	Detect(surface Surface) []DetectedObject

	// Dispose releases classifier resources.
	Dispose()
}

// DetectorFactory constructs a Detector for a classifier asset path.
type DetectorFactory func(assetPath string) (Detector, error)

// AnnotationPublisher receives per-frame detection results. Publish must not block.
type AnnotationPublisher interface {
	Publish(a Annotation)
}
