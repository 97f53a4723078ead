package config

import (
	"fmt"
	"image/color"
	"regexp"
	"strconv"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

var (
	instanceIDPattern = regexp.MustCompile(`^[a-z0-9\-]+$`)
	colorPattern      = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)
)

// Validate checks if the configuration is valid and fills defaults
func Validate(cfg *Config) error {
	// Validate instance_id
	if cfg.InstanceID == "" {
		cfg.InstanceID = "face-overlay"
	}
	if !instanceIDPattern.MatchString(cfg.InstanceID) {
		return fmt.Errorf("instance_id must match pattern [a-z0-9-]+")
	}

	if cfg.ClassifierAssetPath == "" {
		cfg.ClassifierAssetPath = "/cascades/"
	}
	if cfg.ShutdownTimeoutS <= 0 {
		cfg.ShutdownTimeoutS = 5
	}

	// Validate camera preferences
	switch cfg.Camera.FacingMode {
	case "":
		cfg.Camera.FacingMode = "user"
	case "user", "environment":
	default:
		return fmt.Errorf("camera.facing_mode must be 'user' or 'environment', got '%s'", cfg.Camera.FacingMode)
	}
	if cfg.Camera.Width < 0 || cfg.Camera.Height < 0 {
		return fmt.Errorf("camera.width and camera.height must be >= 0")
	}
	if cfg.Camera.Width == 0 && cfg.Camera.Height == 0 {
		cfg.Camera.Width = 1280
		cfg.Camera.Height = 720
	}

	// Validate render settings
	if cfg.Render.RefreshHz < 0 || cfg.Render.RefreshHz > 240 {
		return fmt.Errorf("render.refresh_hz must be within 1..240, got %d", cfg.Render.RefreshHz)
	}
	if cfg.Render.RefreshHz == 0 {
		cfg.Render.RefreshHz = 60
	}
	if err := validateStyle("render.primary_style", &cfg.Render.PrimaryStyle, "#00ff00", 2); err != nil {
		return err
	}
	if err := validateStyle("render.child_style", &cfg.Render.ChildStyle, "#0080ff", 1); err != nil {
		return err
	}

	if cfg.Window.Title == "" {
		cfg.Window.Title = "Face Overlay"
	}

	// Validate MQTT settings (broker is optional)
	if cfg.MQTT.QoS > 2 {
		return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", cfg.MQTT.QoS)
	}
	if cfg.MQTT.Topic == "" {
		cfg.MQTT.Topic = fmt.Sprintf("face-overlay/%s/detections", cfg.InstanceID)
	}

	return nil
}

func validateStyle(field string, s *StyleConfig, defColor string, defThickness int) error {
	if s.Color == "" {
		s.Color = defColor
	}
	if s.Thickness == 0 {
		s.Thickness = defThickness
	}
	if s.Thickness < 0 {
		return fmt.Errorf("%s.thickness must be > 0, got %d", field, s.Thickness)
	}
	if _, err := parseColor(s.Color); err != nil {
		return fmt.Errorf("%s.color: %w", field, err)
	}
	return nil
}

// parseColor decodes "#rrggbb" into an opaque color
func parseColor(s string) (color.RGBA, error) {
	if !colorPattern.MatchString(s) {
		return color.RGBA{}, fmt.Errorf("must match #rrggbb, got '%s'", s)
	}
	v, err := strconv.ParseUint(s[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, err
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 255}, nil
}

func parseStyle(s StyleConfig) (faceoverlay.StrokeStyle, error) {
	c, err := parseColor(s.Color)
	if err != nil {
		return faceoverlay.StrokeStyle{}, err
	}
	return faceoverlay.StrokeStyle{Color: c, Thickness: s.Thickness}, nil
}
