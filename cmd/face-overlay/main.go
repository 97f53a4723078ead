package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/annotbus"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/canvas"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/cascade"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/config"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/emitter"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/eventloop"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/player"
	"github.com/e7canasta/orion-care-sensor/modules/face-overlay/internal/webcam"
)

// annotationBuffer is the MQTT subscriber queue depth.
const annotationBuffer = 32

func init() {
	// The window system and the event loop share the main thread.
	runtime.LockOSThread()
}

func main() {
	os.Exit(run())
}

// run returns the process exit code so deferred cleanup always runs.
func run() int {
	configPath := flag.String("config", "", "Path to configuration file (defaults apply when empty)")
	source := flag.String("source", "", "Video file or URI; overrides video_source, camera when empty")
	cascades := flag.String("cascades", "", "Directory with cascade XML files; overrides classifier_asset_path")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	cfg, err := loadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load configuration", "config", *configPath, "error", err)
		return 1
	}
	if *source != "" {
		cfg.VideoSource = *source
	}
	if *cascades != "" {
		cfg.ClassifierAssetPath = *cascades
	}

	slog.Info("starting face-overlay",
		"instance_id", cfg.InstanceID,
		"config", *configPath,
		"source", cfg.VideoSource,
		"cascades", cfg.ClassifierAssetPath,
		"debug", *debug,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	loop := eventloop.New(time.Second / time.Duration(cfg.Render.RefreshHz))

	var window *canvas.Window
	var ui faceoverlay.UI = logUI{}
	var presenter canvas.Presenter
	if cfg.WindowEnabled() {
		window = canvas.NewWindow(cfg.Window.Title)
		defer window.Close()
		ui, presenter = window, window
	}

	surface := canvas.NewSurface(presenter)
	defer surface.Close()

	element := player.New()
	defer element.Close()

	host := faceoverlay.Host{
		Element: element,
		Surface: surface,
		UI:      ui,
	}
	if cfg.VideoSource == "" {
		host.Devices = webcam.New()
	}

	bus := annotbus.New()
	defer bus.Close()

	var mqttEmitter *emitter.MQTTEmitter
	if cfg.MQTT.Broker != "" {
		mqttEmitter = startEmitter(ctx, cfg, bus)
		if mqttEmitter != nil {
			defer mqttEmitter.Disconnect()
		}
	}

	session, err := faceoverlay.New(loop, host, cascade.New, cfg.Session(), faceoverlay.WithPublisher(bus))
	if err != nil {
		slog.Error("failed to create session", "error", err)
		return 1
	}

	started := make(chan struct{})
	go func() {
		defer close(started)
		if err := session.Start(ctx); err != nil {
			if errors.Is(err, faceoverlay.ErrDisposed) {
				return
			}
			// The error screen stays up until interrupted.
			slog.Error("session failed to start", "kind", faceoverlay.Classify(err).Kind, "error", err)
		}
	}()

	if window != nil {
		var poll eventloop.FrameFunc
		poll = func(time.Time) {
			if window.Poll() {
				slog.Info("preview window closed")
				stop()
				return
			}
			loop.RequestFrame(poll)
		}
		loop.RequestFrame(poll)
	}

	if err := loop.Run(ctx); err != nil {
		slog.Error("event loop failed", "error", err)
	}

	shutdownTimeout := cfg.ShutdownTimeout()
	slog.Info("shutting down gracefully", "timeout", shutdownTimeout)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Start observes the cancelled ctx. Once it has returned, Dispose is the
	// only caller left and runs inline on this thread.
	select {
	case <-started:
	case <-shutdownCtx.Done():
		slog.Warn("session start still running at shutdown")
	}
	if err := session.Dispose(shutdownCtx); err != nil {
		slog.Error("shutdown failed", "error", err)
	}

	stats := session.Stats()
	slog.Info("face-overlay stopped",
		"session_id", session.ID(),
		"state", session.State(),
		"frames_drawn", stats.FramesDrawn,
		"frames_skipped", stats.FramesSkipped,
		"detections", stats.Detections,
		"detect_overruns", stats.DetectOverruns,
		"fps_mean", stats.FPSMean,
		"annotations_published", bus.Published(),
	)
	if mqttEmitter != nil {
		es := mqttEmitter.Stats()
		slog.Info("mqtt emitter stats", "published", es.Published, "errors", es.Errors)
	}
	return 0
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

// startEmitter connects to the broker and forwards bus annotations to it.
// A broker that cannot be reached disables publishing; the preview still runs.
func startEmitter(ctx context.Context, cfg *config.Config, bus *annotbus.Bus) *emitter.MQTTEmitter {
	e := emitter.NewMQTTEmitter(emitter.Options{
		Broker:   cfg.MQTT.Broker,
		ClientID: cfg.InstanceID,
		Topic:    cfg.MQTT.Topic,
		QoS:      cfg.MQTT.QoS,
	})
	if err := e.Connect(ctx); err != nil {
		slog.Warn("mqtt unavailable, annotations will not be published", "broker", cfg.MQTT.Broker, "error", err)
		return nil
	}

	ch := make(chan faceoverlay.Annotation, annotationBuffer)
	if err := bus.Subscribe("mqtt", ch); err != nil {
		slog.Error("failed to subscribe emitter", "error", err)
		_ = e.Disconnect()
		return nil
	}
	go e.Run(ctx, ch)
	return e
}

// logUI reports loading and error state to the log when no window is open.
type logUI struct{}

func (logUI) SetLoading(visible bool) {
	slog.Info("preview loading", "visible", visible)
}

func (logUI) ShowError(message string) {
	slog.Error("preview error", "message", message)
}
