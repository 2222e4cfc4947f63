// Package detection provides face detection results and backends.
//
// A Result carries everything the overlay needs for one face in one frame:
// the bounding box, 68 landmarks and expression scores. Backends implement
// Detector; pkg/detection/dnn runs models locally, Remote calls a sidecar.
package detection

import (
	"context"
	"math"

	"github.com/teslashibe/facemoji/pkg/expression"
)

// Point is a pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns p - q.
func (p Point) Sub(q Point) Point {
	return Point{X: p.X - q.X, Y: p.Y - q.Y}
}

// Angle returns the direction of p as a vector, in radians.
// Screen coordinates: y grows downward, so (0,-1) is -π/2.
func (p Point) Angle() float64 {
	return math.Atan2(p.Y, p.X)
}

// Box is a bounding box in pixels, top-left origin.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Center returns the center point of the box
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Area returns the area of the bounding box
func (b Box) Area() float64 {
	return b.Width * b.Height
}

// Size is an image size in pixels.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Result is one detected face.
type Result struct {
	Box         Box               `json:"box"`
	Score       float64           `json:"score"`
	Landmarks   Landmarks         `json:"landmarks"`
	Expressions expression.Scores `json:"expressions"`

	// Frame is the coordinate space of Box and Landmarks.
	Frame Size `json:"frame"`
}

// Detector is the interface for face detection backends
type Detector interface {
	// Detect finds faces in a JPEG frame. No faces is an empty slice, not an error.
	Detect(ctx context.Context, jpeg []byte) ([]Result, error)

	// Close releases resources
	Close() error
}

// Config holds detector configuration shared by all backends.
type Config struct {
	ScoreThreshold float64 // Minimum face confidence (0-1)
	MaxFaces       int     // 0 means unlimited
}

// DefaultConfig returns the overlay defaults. The threshold is low on purpose:
// a missed frame makes the emoji blink out.
func DefaultConfig() Config {
	return Config{
		ScoreThreshold: 0.1,
	}
}

// Filter drops results below the threshold and trims to MaxFaces,
// keeping detector order.
func (c Config) Filter(results []Result) []Result {
	out := results[:0:0]
	for _, r := range results {
		if r.Score < c.ScoreThreshold {
			continue
		}
		out = append(out, r)
		if c.MaxFaces > 0 && len(out) == c.MaxFaces {
			break
		}
	}
	return out
}
