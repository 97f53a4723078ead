package faceoverlay

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/framerate"
)

// RenderOptions configures a RenderLoop.
type RenderOptions struct {
	PrimaryStyle StrokeStyle
	ChildStyle   StrokeStyle

	// FrameBudget is the refresh period; detections slower than this count as overruns.
	FrameBudget time.Duration

	// Publisher receives one Annotation per drawn frame (optional).
	Publisher AnnotationPublisher
	SessionID string
}

// RenderLoop draws the current frame, runs detection and strokes the
// results once per display refresh.
//
// At most one frame callback is outstanding at any time. All methods except
// Stats and Handle must be called on the scheduler goroutine.
type RenderLoop struct {
	sched    Scheduler
	element  Element
	surface  Surface
	detector *DetectorAdapter
	opts     RenderOptions

	handle atomic.Uint64
	seq    uint64
	meter  *framerate.Meter

	framesDrawn    atomic.Uint64
	framesSkipped  atomic.Uint64
	detections     atomic.Uint64
	detectOverruns atomic.Uint64
}

// NewRenderLoop wires a loop to its collaborators. Nothing is scheduled until Start.
func NewRenderLoop(sched Scheduler, element Element, surface Surface, detector *DetectorAdapter, opts RenderOptions) *RenderLoop {
	return &RenderLoop{
		sched:    sched,
		element:  element,
		surface:  surface,
		detector: detector,
		opts:     opts,
		meter:    framerate.NewMeter(framerate.DefaultWindow),
	}
}

// Start schedules the first cycle. No-op when already running.
func (r *RenderLoop) Start() {
	if r.handle.Load() != 0 {
		return
	}
	r.meter.Reset()
	r.schedule()
	slog.Debug("face-overlay: render loop started", "session_id", r.opts.SessionID)
}

// Stop cancels the outstanding cycle. No-op when idle.
func (r *RenderLoop) Stop() {
	h := AnimationHandle(r.handle.Swap(0))
	if h == 0 {
		return
	}
	r.sched.CancelFrame(h)
	slog.Debug("face-overlay: render loop stopped", "session_id", r.opts.SessionID)
}

// Running reports whether a cycle is scheduled.
func (r *RenderLoop) Running() bool {
	return r.handle.Load() != 0
}

// Handle returns the outstanding handle, or 0.
func (r *RenderLoop) Handle() AnimationHandle {
	return AnimationHandle(r.handle.Load())
}

// Stats returns a snapshot of loop counters and draw-rate statistics.
func (r *RenderLoop) Stats() RenderStats {
	fps := r.meter.Stats()
	return RenderStats{
		FramesDrawn:    r.framesDrawn.Load(),
		FramesSkipped:  r.framesSkipped.Load(),
		Detections:     r.detections.Load(),
		DetectOverruns: r.detectOverruns.Load(),
		FPSMean:        fps.FPSMean,
		FPSStdDev:      fps.FPSStdDev,
		JitterMean:     fps.JitterMean,
		IsStable:       fps.IsStable,
	}
}

func (r *RenderLoop) schedule() {
	r.handle.Store(uint64(r.sched.RequestFrame(r.step)))
}

// step is one render cycle. It never blocks and always reschedules itself.
func (r *RenderLoop) step(now time.Time) {
	r.handle.Store(0)

	frame := r.element.CurrentFrame()
	if r.element.Paused() || r.element.Ended() || frame == nil || !r.detector.Ready() {
		r.framesSkipped.Add(1)
		r.schedule()
		return
	}

	r.surface.DrawFrame(frame)

	started := time.Now()
	objects := r.detector.Detect(r.surface)
	if elapsed := time.Since(started); r.opts.FrameBudget > 0 && elapsed > r.opts.FrameBudget {
		r.detectOverruns.Add(1)
		slog.Debug("face-overlay: detection overran frame budget",
			"elapsed", elapsed,
			"budget", r.opts.FrameBudget,
		)
	}

	for _, obj := range objects {
		r.surface.StrokeRect(obj.Rect, r.opts.PrimaryStyle)
		for _, child := range obj.Children {
			r.surface.StrokeRect(child, r.opts.ChildStyle)
		}
	}
	r.surface.Present()

	r.framesDrawn.Add(1)
	r.detections.Add(uint64(len(objects)))
	r.meter.Observe(now)

	if r.opts.Publisher != nil {
		r.seq++
		w, h := r.surface.Size()
		r.opts.Publisher.Publish(Annotation{
			SessionID: r.opts.SessionID,
			Seq:       r.seq,
			Timestamp: now,
			Width:     w,
			Height:    h,
			Objects:   objects,
		})
	}

	r.schedule()
}
