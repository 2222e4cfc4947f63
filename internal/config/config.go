// Package config loads facemoji settings from the environment.
// A .env file in the working directory is read first when present.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Detector backends.
const (
	BackendLocal       = "local"       // gocv DNN models on this machine
	BackendRemote      = "remote"      // HTTP inference sidecar
	BackendRekognition = "rekognition" // AWS Rekognition DetectFaces
)

// Config holds environment-provided settings. Flags in cmd/facemoji
// override these after Load.
type Config struct {
	// Server
	Port        string `envconfig:"PORT" default:"8181"`
	Environment string `envconfig:"GO_ENV" default:"development"`
	WebRoot     string `envconfig:"WEB_ROOT" default:"./web"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	LogFile  string `envconfig:"LOG_FILE"`

	// Models and detection
	ModelURI       string        `envconfig:"MODELS" default:"./models"`
	ModelCacheDir  string        `envconfig:"MODEL_CACHE" default:"./models/.cache"`
	Backend        string        `envconfig:"BACKEND" default:"local"`
	RemoteURL      string        `envconfig:"REMOTE_URL" default:"http://localhost:5005"`
	RemoteTimeout  time.Duration `envconfig:"REMOTE_TIMEOUT" default:"10s"`
	ScoreThreshold float64       `envconfig:"SCORE_THRESHOLD" default:"0.1"`
	AWSRegion      string        `envconfig:"AWS_REGION" default:"us-east-1"`

	// Expression events, disabled when MQTTBroker is empty
	MQTTBroker string `envconfig:"MQTT_BROKER"`
	MQTTTopic  string `envconfig:"MQTT_TOPIC" default:"facemoji/expressions"`

	// Camera
	CameraDevice string `envconfig:"CAMERA" default:"0"`

	// Display
	DisplayWidth  int `envconfig:"DISPLAY_WIDTH" default:"960"`
	DisplayHeight int `envconfig:"DISPLAY_HEIGHT" default:"720"`
	FPS           int `envconfig:"FPS" default:"60"`
	StreamFPS     int `envconfig:"STREAM_FPS" default:"15"`
}

// Prefix is the environment variable prefix, e.g. FACEMOJI_PORT.
const Prefix = "FACEMOJI"

// Load reads .env (if any) and the FACEMOJI_* environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendLocal, BackendRemote, BackendRekognition:
	default:
		return fmt.Errorf("invalid backend %q: want %s, %s or %s", c.Backend, BackendLocal, BackendRemote, BackendRekognition)
	}
	if c.ScoreThreshold < 0 || c.ScoreThreshold > 1 {
		return fmt.Errorf("score threshold must be in [0,1], got %v", c.ScoreThreshold)
	}
	if c.DisplayWidth <= 0 || c.DisplayHeight <= 0 {
		return fmt.Errorf("display size must be positive, got %dx%d", c.DisplayWidth, c.DisplayHeight)
	}
	if c.FPS <= 0 || c.StreamFPS <= 0 {
		return errors.New("fps values must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
