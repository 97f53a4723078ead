// Package faceoverlay provides a live video preview with face and eye
// outlines drawn over every displayed frame.
//
// A Session acquires a video source (a camera through MediaDevices, or a
// file/URI played by an Element), loads a Detector once playback has
// started, and then runs a render loop at display refresh rate: the current
// frame is drawn onto a Surface, the detector samples that surface, and each
// detected face and its eyes are outlined with fixed stroke styles.
//
// # Quick Start
//
//	loop := eventloop.New(time.Second / 60)
//
//	session, err := faceoverlay.New(loop, faceoverlay.Host{
//	    Element: player.New(),
//	    Surface: canvas.NewSurface(window),
//	    UI:      window,
//	    Devices: webcam.New(),
//	}, cascade.New, faceoverlay.Config{ClassifierAssetPath: "/cascades/"})
//	if err != nil {
//	    log.Fatal(err) // KindMissingUIElements
//	}
//
//	go session.Start(ctx)
//	loop.Run(ctx)
//	session.Dispose(context.Background())
//
// # Lifecycle
//
//	Initializing → Acquiring → DetectorLoading → Running ⇄ Paused
//	                   └──────────────┴──────────────┴────────┴→ Error
//	any → Disposed
//
// Every failure is classified into an ErrorKind with a fixed user-facing
// message (see Classify). Error is terminal; there is no automatic retry,
// except for a single camera request with DegradedConstraints when the
// preferred camera mode cannot be satisfied.
//
// # Concurrency
//
// All session state is owned by the Scheduler goroutine. Start blocks on
// acquisition and detector loading outside that goroutine and hands every
// state change over with Scheduler.Call; Element events are re-posted to
// it. At most one render callback is scheduled at any time.
//
// # Annotations
//
// With WithPublisher, each drawn frame's detections are delivered as an
// Annotation (internal/annotbus fans them out; internal/emitter publishes
// them over MQTT).
package faceoverlay
