package config

import (
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	want := &Config{
		InstanceID:          "face-overlay",
		ClassifierAssetPath: "/cascades/",
		ShutdownTimeoutS:    5,
		Camera:              CameraConfig{FacingMode: "user", Width: 1280, Height: 720},
		Render: RenderConfig{
			RefreshHz:    60,
			PrimaryStyle: StyleConfig{Color: "#00ff00", Thickness: 2},
			ChildStyle:   StyleConfig{Color: "#0080ff", Thickness: 1},
		},
		Window: WindowConfig{Title: "Face Overlay"},
		MQTT:   MQTTConfig{Topic: "face-overlay/face-overlay/detections"},
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Default() mismatch (-want +got):\n%s", diff)
	}
	if !cfg.WindowEnabled() {
		t.Error("window should be enabled by default")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "face-overlay.yaml")
	data := `
instance_id: lobby-kiosk
video_source: clip.mp4
render:
  refresh_hz: 30
  primary_style:
    color: "#ff0000"
    thickness: 3
window:
  enabled: false
mqtt:
  broker: localhost:1883
  qos: 1
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.MQTT.Topic != "face-overlay/lobby-kiosk/detections" {
		t.Errorf("MQTT.Topic = %q", cfg.MQTT.Topic)
	}
	if cfg.WindowEnabled() {
		t.Error("window.enabled: false was ignored")
	}

	got := cfg.Session()
	want := faceoverlay.Config{
		VideoSource:         "clip.mp4",
		ClassifierAssetPath: "/cascades/",
		Camera:              faceoverlay.VideoConstraints{FacingMode: "user", Width: 1280, Height: 720},
		PrimaryStyle:        faceoverlay.StrokeStyle{Color: color.RGBA{R: 255, A: 255}, Thickness: 3},
		ChildStyle:          faceoverlay.StrokeStyle{Color: color.RGBA{G: 128, B: 255, A: 255}, Thickness: 1},
		RefreshRate:         30,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Session() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"bad instance id", "instance_id: Lobby_1", "instance_id"},
		{"bad facing mode", "camera:\n  facing_mode: sideways", "camera.facing_mode"},
		{"negative size", "camera:\n  width: -1", "camera.width"},
		{"refresh too high", "render:\n  refresh_hz: 1000", "render.refresh_hz"},
		{"bad color", "render:\n  child_style:\n    color: blue", "render.child_style.color"},
		{"negative thickness", "render:\n  primary_style:\n    thickness: -2", "render.primary_style.thickness"},
		{"bad qos", "mqtt:\n  qos: 3", "mqtt.qos"},
		{"not yaml", "render: [", "failed to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    color.RGBA
		wantErr bool
	}{
		{"#00ff00", color.RGBA{G: 255, A: 255}, false},
		{"#0080FF", color.RGBA{G: 128, B: 255, A: 255}, false},
		{"00ff00", color.RGBA{}, true},
		{"#00ff0", color.RGBA{}, true},
		{"#gg0000", color.RGBA{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseColor(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseColor(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("parseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}
