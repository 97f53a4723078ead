package faceoverlay

import (
	"context"
	"fmt"
	"log/slog"
)

// DetectorAdapter owns the lifecycle of one Detector instance.
//
// Loading is split in two so the blocking part never touches adapter state:
// Load constructs and initializes on the caller goroutine, Install hands the
// result over on the scheduler goroutine. A detector that failed to
// initialize is still installed so that Dispose releases it.
type DetectorAdapter struct {
	factory   DetectorFactory
	assetPath string

	detector Detector
	ready    bool
	disposed bool
}

// NewDetectorAdapter records what to construct; nothing is loaded yet.
func NewDetectorAdapter(factory DetectorFactory, assetPath string) *DetectorAdapter {
	return &DetectorAdapter{
		factory:   factory,
		assetPath: assetPath,
	}
}

// Init is Load followed by Install, for single-goroutine callers.
func (a *DetectorAdapter) Init(ctx context.Context) error {
	if a.disposed {
		return ErrDisposed
	}
	det, err := a.Load(ctx)
	a.Install(det, err == nil)
	return err
}

// Load constructs the detector and waits for it to initialize.
//
// The returned detector is non-nil whenever construction succeeded, even if
// initialization failed. Errors:
//   - *Error{KindDetectorUnavailable, ErrDetectorUnavailable} when Init reports false
//   - *Error{KindDetectorUnavailable, cause} when construction or Init fails
func (a *DetectorAdapter) Load(ctx context.Context) (Detector, error) {
	if a.factory == nil {
		return nil, &Error{Kind: KindDetectorUnavailable, Err: fmt.Errorf("no detector factory configured")}
	}

	det, err := a.factory(a.assetPath)
	if err != nil {
		return nil, &Error{Kind: KindDetectorUnavailable, Err: fmt.Errorf("construct detector: %w", err)}
	}

	ok, err := det.Init(ctx)
	if err != nil {
		return det, &Error{Kind: KindDetectorUnavailable, Err: fmt.Errorf("init detector: %w", err)}
	}
	if !ok {
		slog.Warn("face-overlay: detector reported unavailable", "asset_path", a.assetPath)
		return det, &Error{Kind: KindDetectorUnavailable, Err: ErrDetectorUnavailable}
	}

	slog.Info("face-overlay: detector ready", "asset_path", a.assetPath)
	return det, nil
}

// Install takes ownership of det. After Dispose, det is released at once
// and Install reports false.
func (a *DetectorAdapter) Install(det Detector, ready bool) bool {
	if a.disposed {
		if det != nil {
			det.Dispose()
		}
		return false
	}
	if a.detector != nil && a.detector != det {
		a.detector.Dispose()
	}
	a.detector = det
	a.ready = ready && det != nil
	return true
}

// Ready reports whether a working detector is installed.
func (a *DetectorAdapter) Ready() bool {
	return a.ready && !a.disposed
}

// Detect runs the detector against surface; nil when not ready.
func (a *DetectorAdapter) Detect(surface Surface) []DetectedObject {
	if !a.Ready() {
		return nil
	}
	return a.detector.Detect(surface)
}

// Dispose releases the detector. Idempotent; safe before Load ever ran.
func (a *DetectorAdapter) Dispose() {
	if a.disposed {
		return
	}
	a.disposed = true
	a.ready = false

	if a.detector != nil {
		a.detector.Dispose()
		a.detector = nil
		slog.Debug("face-overlay: detector disposed")
	}
}
