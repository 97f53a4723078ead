package faceoverlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultClassifierAssetPath is where cascade data is looked up.
	DefaultClassifierAssetPath = "/cascades/"

	// DefaultRefreshRate is the display refresh rate assumed for the frame budget (Hz).
	DefaultRefreshRate = 60
)

// Config is constant for the lifetime of a Session.
type Config struct {
	// VideoSource is a file path or URI; empty selects the camera.
	VideoSource string

	// ClassifierAssetPath is passed to the DetectorFactory.
	ClassifierAssetPath string

	// Camera holds the preferred (non-exact) camera mode.
	Camera VideoConstraints

	PrimaryStyle StrokeStyle
	ChildStyle   StrokeStyle

	// RefreshRate in Hz; sets the detection overrun budget.
	RefreshRate int
}

func (c Config) withDefaults() Config {
	if c.ClassifierAssetPath == "" {
		c.ClassifierAssetPath = DefaultClassifierAssetPath
	}
	if c.Camera.FacingMode == "" {
		c.Camera.FacingMode = "user"
	}
	if c.PrimaryStyle.Thickness <= 0 {
		c.PrimaryStyle = DefaultPrimaryStyle
	}
	if c.ChildStyle.Thickness <= 0 {
		c.ChildStyle = DefaultChildStyle
	}
	if c.RefreshRate <= 0 {
		c.RefreshRate = DefaultRefreshRate
	}
	return c
}

// Host bundles the host capabilities a Session drives.
// Devices may be nil when Config.VideoSource is set.
type Host struct {
	Element Element
	Surface Surface
	UI      UI
	Devices MediaDevices
}

// Option customizes a Session.
type Option func(*Session)

// WithPublisher sends every rendered frame's detections to p.
func WithPublisher(p AnnotationPublisher) Option {
	return func(s *Session) { s.publisher = p }
}

// WithSessionID overrides the generated session ID.
func WithSessionID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// Session is the lifecycle controller of one preview.
//
// State machine:
//
//	Initializing → Acquiring → DetectorLoading → Running ⇄ Paused
//	Acquiring | DetectorLoading | Running | Paused → Error (terminal)
//	any → Disposed
//
// Every state change executes on the Scheduler goroutine. Start, Dispose,
// State, Err and Stats may be called from any goroutine.
type Session struct {
	id        string
	cfg       Config
	host      Host
	sched     Scheduler
	publisher AnnotationPublisher

	acquirer *Acquirer
	detector *DetectorAdapter
	loop     *RenderLoop

	state   atomic.Int32
	started atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc

	// scheduler goroutine only
	disposed bool
	bound    bool

	errMu sync.Mutex
	err   error
}

// New validates the host and builds a Session in StateInitializing.
//
// A missing host capability fails immediately with KindMissingUIElements;
// no asynchronous work is started.
func New(sched Scheduler, host Host, detectors DetectorFactory, cfg Config, opts ...Option) (*Session, error) {
	if err := preflight(sched, host, cfg); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := &Session{
		id:    uuid.New().String(),
		cfg:   cfg,
		host:  host,
		sched: sched,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	s.acquirer = NewAcquirer(sched, host.Element, host.Surface, host.UI, host.Devices, cfg.VideoSource, cfg.Camera)
	s.detector = NewDetectorAdapter(detectors, cfg.ClassifierAssetPath)
	s.loop = NewRenderLoop(sched, host.Element, host.Surface, s.detector, RenderOptions{
		PrimaryStyle: cfg.PrimaryStyle,
		ChildStyle:   cfg.ChildStyle,
		FrameBudget:  time.Second / time.Duration(cfg.RefreshRate),
		Publisher:    s.publisher,
		SessionID:    s.id,
	})

	host.Element.SetEventHandler(func(ev MediaEvent) {
		sched.Post(func() { s.handleEvent(ev) })
	})

	slog.Info("face-overlay: session created",
		"session_id", s.id,
		"source", sourceLabel(cfg.VideoSource),
		"asset_path", cfg.ClassifierAssetPath,
	)
	return s, nil
}

func preflight(sched Scheduler, host Host, cfg Config) error {
	var missing []string
	if sched == nil {
		missing = append(missing, "scheduler")
	}
	if host.Element == nil {
		missing = append(missing, "element")
	}
	if host.Surface == nil {
		missing = append(missing, "surface")
	}
	if host.UI == nil {
		missing = append(missing, "ui")
	}
	if host.Devices == nil && cfg.VideoSource == "" {
		missing = append(missing, "devices")
	}
	if len(missing) == 0 {
		return nil
	}
	return &Error{Kind: KindMissingUIElements, Err: fmt.Errorf("missing host capabilities: %v", missing)}
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// Err returns the failure that moved the session to StateError, or nil.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// Stats returns render loop statistics.
func (s *Session) Stats() RenderStats {
	return s.loop.Stats()
}

// Start acquires the source, loads the detector and enters StateRunning.
//
// It blocks until the session is running or has failed. The returned error
// is the classified failure (also available from Err), ErrDisposed when
// Dispose interrupted the start, or ErrAlreadyStarted.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := s.do(ctx, func() error { return s.enter(StateAcquiring) }); err != nil {
		return s.fail(err)
	}

	if err := s.acquirer.Acquire(ctx); err != nil {
		return s.fail(err)
	}

	if err := s.do(ctx, func() error { return s.enter(StateDetectorLoading) }); err != nil {
		return s.fail(err)
	}

	det, loadErr := s.detector.Load(ctx)
	installed := false
	if err := s.sched.Call(ctx, func() { installed = s.detector.Install(det, loadErr == nil) }); err != nil {
		return s.fail(err)
	}
	if !installed {
		return ErrDisposed
	}
	if loadErr != nil {
		return s.fail(loadErr)
	}

	if err := s.do(ctx, s.bind); err != nil {
		return s.fail(err)
	}

	slog.Info("face-overlay: session running", "session_id", s.id, "state", s.State())
	return nil
}

// Dispose releases everything the session acquired: the scheduled frame,
// the detector, camera tracks and the element source. Idempotent.
func (s *Session) Dispose(ctx context.Context) error {
	s.cancel()
	return s.sched.Call(ctx, s.dispose)
}

func (s *Session) dispose() {
	if s.disposed {
		return
	}
	s.disposed = true

	s.loop.Stop()
	s.detector.Dispose()
	s.acquirer.Release()
	s.setState(StateDisposed)

	slog.Info("face-overlay: session disposed", "session_id", s.id)
}

// do runs fn on the scheduler goroutine and returns its error.
func (s *Session) do(ctx context.Context, fn func() error) error {
	var ferr error
	if err := s.sched.Call(ctx, func() { ferr = fn() }); err != nil {
		return err
	}
	return ferr
}

func (s *Session) closing() bool {
	return s.disposed || s.ctx.Err() != nil
}

// enter moves to next unless the session is closing or already failed.
func (s *Session) enter(next SessionState) error {
	if s.closing() {
		return ErrDisposed
	}
	if s.State() == StateError {
		return s.Err()
	}
	s.setState(next)
	return nil
}

// bind enters StateRunning and starts following playback events.
func (s *Session) bind() error {
	if err := s.enter(StateRunning); err != nil {
		return err
	}
	s.bound = true

	if s.host.Element.Paused() || s.host.Element.Ended() {
		s.setState(StatePaused)
		return nil
	}
	s.loop.Start()
	return nil
}

// fail moves the session to StateError unless it is being disposed.
func (s *Session) fail(err error) error {
	if errors.Is(err, ErrDisposed) {
		return ErrDisposed
	}

	var out error
	// Call with Background: the failure must be recorded even when the
	// caller's context is what failed.
	if callErr := s.sched.Call(context.Background(), func() { out = s.failLocked(err) }); callErr != nil {
		return callErr
	}
	return out
}

func (s *Session) failLocked(err error) error {
	if s.closing() {
		return ErrDisposed
	}
	if s.State() == StateError {
		return s.Err()
	}

	cls := Classify(err)
	if _, typed := err.(*Error); !typed {
		err = &Error{Kind: cls.Kind, Err: err}
	}

	s.errMu.Lock()
	s.err = err
	s.errMu.Unlock()

	s.loop.Stop()
	s.acquirer.Abort(err)
	s.bound = false
	if pauseErr := s.host.Element.Pause(); pauseErr != nil {
		slog.Debug("face-overlay: pause on error failed", "error", pauseErr)
	}
	s.host.Element.SetVisible(false)
	s.host.UI.SetLoading(false)
	s.host.UI.ShowError(cls.Message)
	s.setState(StateError)

	slog.Error("face-overlay: session failed",
		"session_id", s.id,
		"kind", cls.Kind,
		"error", err,
	)
	return err
}

// handleEvent runs on the scheduler goroutine for every element event.
func (s *Session) handleEvent(ev MediaEvent) {
	if s.closing() {
		return
	}
	if s.acquirer.HandleEvent(ev) {
		return
	}

	if ev.Type == EventError {
		cause := ev.Err
		if cause == nil {
			cause = errors.New("media element error")
		}
		if st := s.State(); st != StateError && st != StateInitializing {
			s.failLocked(&Error{Kind: KindStreamError, Err: cause})
		}
		return
	}

	if !s.bound {
		return
	}

	switch ev.Type {
	case EventPlay:
		s.setState(StateRunning)
		s.loop.Start()
	case EventPause, EventEnded:
		s.loop.Stop()
		s.setState(StatePaused)
	}
}

func (s *Session) setState(next SessionState) {
	prev := SessionState(s.state.Swap(int32(next)))
	if prev != next {
		slog.Debug("face-overlay: state transition", "session_id", s.id, "from", prev, "to", next)
	}
}

func sourceLabel(videoSource string) string {
	if videoSource == "" {
		return "camera"
	}
	return videoSource
}
