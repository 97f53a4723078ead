package faceoverlay

import (
	"fmt"
	"image/color"
	"time"
)

// Rectangle is an axis-aligned region in surface pixel coordinates.
type Rectangle struct {
	X      int
	Y      int
	Width  int
	Height int
}

// String returns "WxH+X+Y".
func (r Rectangle) String() string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Width, r.Height, r.X, r.Y)
}

// DetectedObject is a primary region (a face) and the regions nested in it (eyes).
type DetectedObject struct {
	Rect     Rectangle
	Children []Rectangle
}

// SessionState is the lifecycle state of a Session.
type SessionState int32

const (
	StateInitializing SessionState = iota
	StateAcquiring
	StateDetectorLoading
	StateRunning
	StatePaused
	StateError
	StateDisposed
)

// String returns a human-readable state name.
func (s SessionState) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateAcquiring:
		return "acquiring"
	case StateDetectorLoading:
		return "detector-loading"
	case StateRunning:
		return "running"
	case StatePaused:
		return "paused"
	case StateError:
		return "error"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// MediaSource is either a live Stream or a file/URI reference. The zero
// value detaches the element from any source.
type MediaSource struct {
	stream Stream
	url    string
}

// StreamSource wraps a live capture stream.
func StreamSource(s Stream) MediaSource {
	return MediaSource{stream: s}
}

// FileSource references a recorded asset by path or URI.
func FileSource(url string) MediaSource {
	return MediaSource{url: url}
}

// Stream returns the live stream, or nil for file sources.
func (m MediaSource) Stream() Stream { return m.stream }

// URL returns the file reference, or "" for stream sources.
func (m MediaSource) URL() string { return m.url }

// IsStream reports whether the source is a live stream.
func (m MediaSource) IsStream() bool { return m.stream != nil }

// IsZero reports whether no source is set.
func (m MediaSource) IsZero() bool { return m.stream == nil && m.url == "" }

// ReadyState mirrors the readiness levels of a playable media element.
type ReadyState int

const (
	HaveNothing ReadyState = iota
	HaveMetadata
	HaveCurrentData
	HaveFutureData
	HaveEnoughData
)

// MediaEventType enumerates the element events the core observes.
type MediaEventType int

const (
	EventLoadedMetadata MediaEventType = iota
	EventPlay
	EventPause
	EventEnded
	EventError
)

// String returns the event name.
func (t MediaEventType) String() string {
	switch t {
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// MediaEvent is emitted by an Element. Err is set for EventError.
type MediaEvent struct {
	Type MediaEventType
	Err  error
}

// StrokeStyle is a fixed rectangle outline style.
type StrokeStyle struct {
	Color     color.RGBA
	Thickness int
}

var (
	// DefaultPrimaryStyle outlines faces.
	DefaultPrimaryStyle = StrokeStyle{Color: color.RGBA{R: 0, G: 255, B: 0, A: 255}, Thickness: 2}
	// DefaultChildStyle outlines eyes.
	DefaultChildStyle = StrokeStyle{Color: color.RGBA{R: 0, G: 128, B: 255, A: 255}, Thickness: 1}
)

// Annotation is the detection result of one rendered frame.
type Annotation struct {
	SessionID string
	Seq       uint64
	Timestamp time.Time
	Width     int
	Height    int
	Objects   []DetectedObject
}

// RenderStats is a snapshot of render loop activity.
type RenderStats struct {
	// FramesDrawn counts cycles that drew and ran the detector
	FramesDrawn uint64
	// FramesSkipped counts cycles skipped by the guard (paused, ended, no frame, no detector)
	FramesSkipped uint64
	// Detections is the total number of primary objects found
	Detections uint64
	// DetectOverruns counts detections slower than one frame budget
	DetectOverruns uint64
	// FPSMean is the measured draw rate over the recent window
	FPSMean float64
	// FPSStdDev is the standard deviation of instantaneous FPS
	FPSStdDev float64
	// JitterMean is the mean inter-frame interval deviation in seconds
	JitterMean float64
	// IsStable is true when FPS and jitter are within stability thresholds
	IsStable bool
}
