// Package facemoji wires the camera, detector, presenter, scene and web
// server into the running overlay.
package facemoji

import (
	"fmt"
	"time"

	"github.com/teslashibe/facemoji/internal/config"
	"github.com/teslashibe/facemoji/pkg/camera"
	"github.com/teslashibe/facemoji/pkg/detection"
	"github.com/teslashibe/facemoji/pkg/detection/rekognition"
	"github.com/teslashibe/facemoji/pkg/events"
)

// Config holds all configuration for the FaceMoji application.
// Flag parsing is done in cmd/facemoji/main.go; this struct is data only.
type Config struct {
	Debug       bool
	DebugFrames bool

	// Web
	Port    string // empty runs the hubs without listening
	WebRoot string

	// Detection
	Backend        string
	ModelURI       string
	ModelCacheDir  string
	RemoteURL      string
	RemoteTimeout  time.Duration
	ScoreThreshold float64
	AWSRegion      string

	// Expression events; empty MQTTBroker disables them
	MQTTBroker string
	MQTTTopic  string

	Camera camera.Config

	// Display is the coordinate space glyphs are drawn in.
	Display   detection.Size
	FPS       int
	StreamFPS int
}

// DefaultConfig returns the defaults used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Port:           "8181",
		WebRoot:        "./web",
		Backend:        config.BackendLocal,
		ModelURI:       "./models",
		ModelCacheDir:  "./models/.cache",
		RemoteURL:      detection.DefaultRemoteConfig().BaseURL,
		RemoteTimeout:  10 * time.Second,
		ScoreThreshold: detection.DefaultConfig().ScoreThreshold,
		AWSRegion:      rekognition.DefaultConfig().Region,
		MQTTTopic:      events.DefaultConfig().Topic,
		Camera:         camera.DefaultConfig(),
		Display:        detection.Size{Width: 960, Height: 720},
		FPS:            60,
		StreamFPS:      15,
	}
}

// FromEnv builds an application config from environment settings.
func FromEnv(env *config.Config) Config {
	cfg := DefaultConfig()
	cfg.Port = env.Port
	cfg.WebRoot = env.WebRoot
	cfg.Backend = env.Backend
	cfg.ModelURI = env.ModelURI
	cfg.ModelCacheDir = env.ModelCacheDir
	cfg.RemoteURL = env.RemoteURL
	cfg.RemoteTimeout = env.RemoteTimeout
	cfg.ScoreThreshold = env.ScoreThreshold
	cfg.AWSRegion = env.AWSRegion
	cfg.MQTTBroker = env.MQTTBroker
	cfg.MQTTTopic = env.MQTTTopic
	cfg.Camera.Device = env.CameraDevice
	cfg.Display = detection.Size{Width: env.DisplayWidth, Height: env.DisplayHeight}
	cfg.FPS = env.FPS
	cfg.StreamFPS = env.StreamFPS
	return cfg
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	switch c.Backend {
	case config.BackendLocal:
		if c.ModelURI == "" {
			return &ConfigError{Field: "ModelURI", Message: "a model directory or URL is required for the local backend"}
		}
	case config.BackendRemote:
		if c.RemoteURL == "" {
			return &ConfigError{Field: "RemoteURL", Message: "a sidecar URL is required for the remote backend"}
		}
	case config.BackendRekognition:
		if c.AWSRegion == "" {
			return &ConfigError{Field: "AWSRegion", Message: "an AWS region is required for the rekognition backend"}
		}
	default:
		return &ConfigError{Field: "Backend", Message: fmt.Sprintf("unknown backend %q", c.Backend)}
	}

	if c.Display.Width <= 0 || c.Display.Height <= 0 {
		return &ConfigError{Field: "Display", Message: "display size must be positive"}
	}
	if c.FPS <= 0 || c.StreamFPS <= 0 {
		return &ConfigError{Field: "FPS", Message: "frame rates must be positive"}
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return &ConfigError{Field: "ScoreThreshold", Message: fmt.Sprintf("score threshold %v must be between 0 and 1", c.ScoreThreshold)}
	}
	if c.MQTTBroker != "" && c.MQTTTopic == "" {
		return &ConfigError{Field: "MQTTTopic", Message: "an MQTT topic is required when a broker is set"}
	}
	if errs := c.Camera.Validate(); len(errs) > 0 {
		return &ConfigError{Field: "Camera", Message: fmt.Sprintf("invalid camera config: %v", errs)}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
