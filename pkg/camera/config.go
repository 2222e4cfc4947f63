// Package camera provides the webcam frame source and its runtime-configurable settings.
package camera

import (
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Config holds all camera configuration parameters.
// These can be modified via the camera API at runtime.
type Config struct {
	// Device is a webcam index ("0") or a video file / stream URL.
	Device string `json:"device" validate:"required"`

	// === Resolution ===
	Width     int `json:"width" validate:"min=160,max=3840"`   // Frame width in pixels
	Height    int `json:"height" validate:"min=120,max=2160"`  // Frame height in pixels
	Framerate int `json:"framerate" validate:"min=1,max=120"`  // Requested capture FPS
	Quality   int `json:"quality" validate:"min=1,max=100"`    // JPEG quality 1-100

	// Mirror flips frames horizontally so the preview behaves like a mirror.
	Mirror bool `json:"mirror"`
}

var (
	// ErrUnavailable means the device could not be opened: missing hardware,
	// denied permission, or a device busy elsewhere.
	ErrUnavailable = errors.New("camera unavailable")

	// ErrNoFrame means the device is open but produced no frame.
	ErrNoFrame = errors.New("camera produced no frame")
)

// Source captures frames as JPEG.
type Source interface {
	CaptureJPEG() ([]byte, error)
	Close() error
}

// DefaultConfig returns the overlay's default capture: 640x480 is plenty
// for the tiny face models and keeps detection fast.
func DefaultConfig() Config {
	return Config{
		Device:    "0",
		Width:     640,
		Height:    480,
		Framerate: 30,
		Quality:   80,
		Mirror:    true,
	}
}

// DeviceIndex returns the webcam index when Device is numeric.
func (c *Config) DeviceIndex() (int, bool) {
	i, err := strconv.Atoi(c.Device)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}

// Validate checks if the config values are within valid ranges.
// Returns a list of validation errors, or nil if valid.
func (c *Config) Validate() []string {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fe.Field()+" must not be empty")
		case "min", "max":
			msgs = append(msgs, fmt.Sprintf("%s must be between %s", fe.Field(), bounds[fe.Field()]))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
		}
	}
	return msgs
}

var bounds = map[string]string{
	"width":     "160 and 3840",
	"height":    "120 and 2160",
	"framerate": "1 and 120",
	"quality":   "1 and 100",
}

var validate = newValidator()

// newValidator reports fields by their JSON names, matching the camera API.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}
