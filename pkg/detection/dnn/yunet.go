package dnn

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facemoji/pkg/detection"
)

// Face is a raw YuNet hit in pixel coordinates.
type Face struct {
	Rect  image.Rectangle
	Box   detection.Box
	Score float64
}

// YuNet wraps OpenCV's FaceDetectorYN. Not safe for concurrent use;
// Pipeline serializes access.
type YuNet struct {
	detector gocv.FaceDetectorYN
	config   YuNetConfig
}

// YuNetConfig holds face detector configuration
type YuNetConfig struct {
	ModelPath      string  // Path to ONNX model
	ScoreThreshold float64 // Minimum confidence
	NMSThreshold   float64
	TopK           int
	InputWidth     int // Initial model input size, replaced per frame
	InputHeight    int
}

// DefaultYuNetConfig returns production defaults for YuNet
func DefaultYuNetConfig() YuNetConfig {
	return YuNetConfig{
		ModelPath:      "models/face_detection_yunet.onnx",
		ScoreThreshold: 0.1,
		NMSThreshold:   0.3,
		TopK:           5000,
		InputWidth:     320,
		InputHeight:    320,
	}
}

// NewYuNet creates a new YuNet face detector using GoCV's built-in FaceDetectorYN
func NewYuNet(cfg YuNetConfig) (*YuNet, error) {
	if _, err := os.Stat(cfg.ModelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", cfg.ModelPath)
	}

	detector := gocv.NewFaceDetectorYNWithParams(
		cfg.ModelPath,
		"", // No config file needed for ONNX
		image.Pt(cfg.InputWidth, cfg.InputHeight),
		float32(cfg.ScoreThreshold),
		float32(cfg.NMSThreshold),
		cfg.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	return &YuNet{
		detector: detector,
		config:   cfg,
	}, nil
}

// Detect finds faces in a decoded BGR image.
func (y *YuNet) Detect(img gocv.Mat) []Face {
	y.detector.SetInputSize(image.Pt(img.Cols(), img.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()

	y.detector.Detect(img, &faces)

	bounds := image.Rect(0, 0, img.Cols(), img.Rows())
	out := make([]Face, 0, faces.Rows())
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		x := float64(faces.GetFloatAt(r, 0))
		yy := float64(faces.GetFloatAt(r, 1))
		w := float64(faces.GetFloatAt(r, 2))
		h := float64(faces.GetFloatAt(r, 3))
		score := float64(faces.GetFloatAt(r, 14))

		rect := image.Rect(int(x), int(yy), int(x+w), int(yy+h)).Intersect(bounds)
		if rect.Empty() {
			continue
		}

		out = append(out, Face{
			Rect:  rect,
			Box:   detection.Box{X: x, Y: yy, Width: w, Height: h},
			Score: score,
		})
	}

	return out
}

// Close releases the detector resources
func (y *YuNet) Close() error {
	y.detector.Close()
	return nil
}
