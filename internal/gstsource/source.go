// Package gstsource decodes a file or URI into RGBA frames with GStreamer.
//
// Pipeline structure:
//
//	uridecodebin → videoconvert → capsfilter(video/x-raw,format=RGBA) → appsink
//
// uridecodebin exposes its video pad dynamically; it is linked in the
// pad-added callback. Pausing prerolls the first frame, which is how the
// intrinsic size becomes known before playback starts.
package gstsource

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// Callbacks receive pipeline events. They run on GStreamer streaming
// threads or the bus monitor goroutine and must not block.
type Callbacks struct {
	// OnMetadata fires once, when the first frame reveals the video size.
	OnMetadata func(width, height int)
	// OnFrame fires for the preroll frame and every decoded frame.
	OnFrame func(frame *image.RGBA)
	OnEOS   func()
	OnError func(err error)
}

// Stats is a snapshot of source activity.
type Stats struct {
	TraceID       string
	FramesDecoded uint64
	BytesRead     uint64
	Errors        uint64
}

// Source is one decoding pipeline for one location.
type Source struct {
	uri     string
	traceID string
	cb      Callbacks

	pipeline *gst.Pipeline
	sink     *app.Sink

	metadataOnce sync.Once
	frames       atomic.Uint64
	bytes        atomic.Uint64
	errors       atomic.Uint64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

// Open builds the pipeline for location (a path or URI) and starts the bus
// monitor. The pipeline stays in NULL until Preroll or Play.
func Open(location string, cb Callbacks) (*Source, error) {
	uri, err := ToURI(location)
	if err != nil {
		return nil, err
	}

	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	s := &Source{
		uri:     uri,
		traceID: uuid.New().String(),
		cb:      cb,
	}
	if err := s.build(); err != nil {
		return nil, err
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.wg.Add(1)
	go s.monitorBus()

	slog.Info("gstsource: pipeline created", "uri", uri, "trace_id", s.traceID)
	return s, nil
}

func (s *Source) build() error {
	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("gstsource: failed to create pipeline: %w", err)
	}

	decodebin, err := gst.NewElement("uridecodebin")
	if err != nil {
		return fmt.Errorf("gstsource: failed to create uridecodebin: %w", err)
	}
	decodebin.SetProperty("uri", s.uri)

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return fmt.Errorf("gstsource: failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", 0) // 0 = auto-detect cores

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return fmt.Errorf("gstsource: failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGBA"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("gstsource: failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", true)     // present at the file's own rate
	appsink.SetProperty("max-buffers", 1) // Keep only latest frame
	appsink.SetProperty("drop", true)     // Drop old frames

	appsink.SetCallbacks(&app.SinkCallbacks{
		NewPrerollFunc: func(sink *app.Sink) gst.FlowReturn {
			return s.onSample(sink.PullPreroll())
		},
		NewSampleFunc: func(sink *app.Sink) gst.FlowReturn {
			return s.onSample(sink.PullSample())
		},
	})

	if err := pipeline.AddMany(decodebin, converter, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("gstsource: failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(converter, capsfilter, appsink.Element); err != nil {
		return fmt.Errorf("gstsource: failed to link pipeline elements: %w", err)
	}

	decodebin.Connect("pad-added", func(self *gst.Element, srcPad *gst.Pad) {
		onPadAdded(srcPad, converter)
	})

	s.pipeline = pipeline
	s.sink = appsink
	return nil
}

// onPadAdded links the first video pad of uridecodebin to videoconvert.
// Audio and any further video pads are left unlinked.
func onPadAdded(srcPad *gst.Pad, converter *gst.Element) {
	caps := srcPad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		caps = srcPad.QueryCaps(nil)
	}
	if caps == nil || caps.GetSize() == 0 || !strings.HasPrefix(caps.GetStructureAt(0).Name(), "video/") {
		slog.Debug("gstsource: ignoring non-video pad", "pad", srcPad.GetName())
		return
	}

	sinkPad := converter.GetStaticPad("sink")
	if sinkPad == nil {
		slog.Error("gstsource: failed to get sink pad from videoconvert")
		return
	}
	if sinkPad.IsLinked() {
		return
	}

	if ret := srcPad.Link(sinkPad); ret != gst.PadLinkOK {
		slog.Error("gstsource: failed to link pads",
			"src_pad", srcPad.GetName(),
			"sink_pad", sinkPad.GetName(),
			"ret", ret,
		)
		return
	}

	slog.Debug("gstsource: pads linked successfully", "src_pad", srcPad.GetName())
}

// onSample converts a sample and hands it to the callbacks.
//
// A bad sample is skipped instead of terminating the stream.
func (s *Source) onSample(sample *gst.Sample) gst.FlowReturn {
	img, err := sampleImage(sample)
	if err != nil {
		slog.Warn("gstsource: skipping frame", "error", err, "trace_id", s.traceID)
		return gst.FlowOK
	}

	s.frames.Add(1)
	s.bytes.Add(uint64(len(img.Pix)))

	s.metadataOnce.Do(func() {
		b := img.Bounds()
		slog.Info("gstsource: metadata loaded", "width", b.Dx(), "height", b.Dy(), "trace_id", s.traceID)
		if s.cb.OnMetadata != nil {
			s.cb.OnMetadata(b.Dx(), b.Dy())
		}
	})

	if s.cb.OnFrame != nil {
		s.cb.OnFrame(img)
	}
	return gst.FlowOK
}

// Preroll moves the pipeline to PAUSED so the first frame and the size arrive.
func (s *Source) Preroll() error {
	if err := s.pipeline.SetState(gst.StatePaused); err != nil {
		return fmt.Errorf("gstsource: failed to pause pipeline: %w", err)
	}
	return nil
}

// Play moves the pipeline to PLAYING.
func (s *Source) Play() error {
	if err := s.pipeline.SetState(gst.StatePlaying); err != nil {
		return fmt.Errorf("gstsource: failed to start pipeline: %w", err)
	}
	return nil
}

// Pause moves the pipeline to PAUSED.
func (s *Source) Pause() error {
	return s.Preroll()
}

// Stats returns a snapshot of source counters.
func (s *Source) Stats() Stats {
	return Stats{
		TraceID:       s.traceID,
		FramesDecoded: s.frames.Load(),
		BytesRead:     s.bytes.Load(),
		Errors:        s.errors.Load(),
	}
}

// Close stops the bus monitor and sets the pipeline to NULL.
// Idempotent.
func (s *Source) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		s.wg.Wait()

		if setErr := s.pipeline.SetState(gst.StateNull); setErr != nil {
			err = fmt.Errorf("gstsource: failed to set pipeline to NULL: %w", setErr)
		}
		slog.Debug("gstsource: pipeline closed",
			"uri", s.uri,
			"frames_decoded", s.frames.Load(),
			"trace_id", s.traceID,
		)
	})
	return err
}

// monitorBus polls the pipeline bus for EOS and errors until Close.
func (s *Source) monitorBus() {
	defer s.wg.Done()

	bus := s.pipeline.GetPipelineBus()

	for {
		select {
		case <-s.ctx.Done():
			return
		default:
		}

		// Poll for messages with short timeout for responsive shutdown
		msg := bus.TimedPop(50 * time.Millisecond)
		if msg == nil {
			continue
		}

		switch msg.Type() {
		case gst.MessageEOS:
			slog.Info("gstsource: end of stream received",
				"uri", s.uri,
				"frames_decoded", s.frames.Load(),
			)
			if s.cb.OnEOS != nil {
				s.cb.OnEOS()
			}

		case gst.MessageError:
			perr := newPipelineError(msg.ParseError())
			s.errors.Add(1)

			slog.Error("gstsource: pipeline error",
				"error", perr.Message,
				"debug", perr.Debug,
				"category", perr.Category.String(),
				"uri", s.uri,
				"trace_id", s.traceID,
			)
			if s.cb.OnError != nil {
				s.cb.OnError(perr)
			}

		case gst.MessageStateChanged:
			if msg.Source() == s.pipeline.GetName() {
				old, next := msg.ParseStateChanged()
				slog.Debug("gstsource: pipeline state changed", "from", old, "to", next)
			}
		}
	}
}
