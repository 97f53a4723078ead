package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	faceoverlay "github.com/e7canasta/orion-care-sensor/modules/face-overlay"
)

// Config represents the complete face-overlay configuration
type Config struct {
	InstanceID          string       `yaml:"instance_id"`
	VideoSource         string       `yaml:"video_source"`          // file path or URI; empty = camera
	ClassifierAssetPath string       `yaml:"classifier_asset_path"` // directory holding cascade XML files
	ShutdownTimeoutS    int          `yaml:"shutdown_timeout_s"`    // graceful shutdown timeout in seconds (default: 5)
	Camera              CameraConfig `yaml:"camera"`
	Render              RenderConfig `yaml:"render"`
	Window              WindowConfig `yaml:"window"`
	MQTT                MQTTConfig   `yaml:"mqtt"`
}

// CameraConfig contains preferred camera settings
type CameraConfig struct {
	FacingMode string `yaml:"facing_mode"` // user, environment
	Width      int    `yaml:"width"`       // ideal width
	Height     int    `yaml:"height"`      // ideal height
}

// RenderConfig contains render loop settings
type RenderConfig struct {
	RefreshHz    int         `yaml:"refresh_hz"`
	PrimaryStyle StyleConfig `yaml:"primary_style"`
	ChildStyle   StyleConfig `yaml:"child_style"`
}

// StyleConfig is a rectangle outline style
type StyleConfig struct {
	Color     string `yaml:"color"` // #rrggbb
	Thickness int    `yaml:"thickness"`
}

// WindowConfig contains preview window settings
type WindowConfig struct {
	Title   string `yaml:"title"`
	Enabled *bool  `yaml:"enabled,omitempty"` // default true
}

// MQTTConfig contains annotation publishing settings. An empty broker disables publishing.
type MQTTConfig struct {
	Broker string `yaml:"broker"`
	Topic  string `yaml:"topic"`
	QoS    byte   `yaml:"qos"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML configuration bytes
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a validated configuration with every default applied
func Default() *Config {
	var cfg Config
	// Validate cannot fail on the zero config.
	_ = Validate(&cfg)
	return &cfg
}

// WindowEnabled reports whether the preview window should be opened
func (c *Config) WindowEnabled() bool {
	return c.Window.Enabled == nil || *c.Window.Enabled
}

// ShutdownTimeout returns the graceful shutdown budget
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutS) * time.Second
}

// Session converts the file configuration into a session configuration.
// Colors are already validated, so parse errors cannot occur here.
func (c *Config) Session() faceoverlay.Config {
	primary, _ := parseStyle(c.Render.PrimaryStyle)
	child, _ := parseStyle(c.Render.ChildStyle)

	return faceoverlay.Config{
		VideoSource:         c.VideoSource,
		ClassifierAssetPath: c.ClassifierAssetPath,
		Camera: faceoverlay.VideoConstraints{
			FacingMode: c.Camera.FacingMode,
			Width:      c.Camera.Width,
			Height:     c.Camera.Height,
		},
		PrimaryStyle: primary,
		ChildStyle:   child,
		RefreshRate:  c.Render.RefreshHz,
	}
}
