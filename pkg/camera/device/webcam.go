// Package device opens a webcam (or video file) with OpenCV.
package device

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facemoji/internal/log"
	"github.com/teslashibe/facemoji/pkg/camera"
)

// Webcam is a camera.Source backed by gocv.VideoCapture.
type Webcam struct {
	mu     sync.Mutex
	vc     *gocv.VideoCapture
	frame  gocv.Mat
	config camera.Config
}

// Open opens the configured device. A missing or refused device
// returns an error wrapping camera.ErrUnavailable.
func Open(cfg camera.Config) (*Webcam, error) {
	vc, err := openCapture(cfg)
	if err != nil {
		return nil, err
	}

	return &Webcam{
		vc:     vc,
		frame:  gocv.NewMat(),
		config: cfg,
	}, nil
}

func openCapture(cfg camera.Config) (*gocv.VideoCapture, error) {
	var device interface{} = cfg.Device
	if idx, ok := cfg.DeviceIndex(); ok {
		device = idx
	}

	vc, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", camera.ErrUnavailable, cfg.Device, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %s", camera.ErrUnavailable, cfg.Device)
	}

	vc.Set(gocv.VideoCaptureFrameWidth, float64(cfg.Width))
	vc.Set(gocv.VideoCaptureFrameHeight, float64(cfg.Height))
	vc.Set(gocv.VideoCaptureFPS, float64(cfg.Framerate))

	log.Info("camera opened",
		"device", cfg.Device,
		"width", int(vc.Get(gocv.VideoCaptureFrameWidth)),
		"height", int(vc.Get(gocv.VideoCaptureFrameHeight)))

	return vc, nil
}

// CaptureJPEG implements camera.Source.
func (w *Webcam) CaptureJPEG() ([]byte, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.vc == nil {
		return nil, camera.ErrUnavailable
	}
	if ok := w.vc.Read(&w.frame); !ok || w.frame.Empty() {
		return nil, camera.ErrNoFrame
	}

	if w.config.Mirror {
		gocv.Flip(w.frame, &w.frame, 1)
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, w.frame,
		[]int{gocv.IMWriteJpegQuality, w.config.Quality})
	if err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	// The native buffer is freed on Close, so copy out
	src := buf.GetBytes()
	out := make([]byte, len(src))
	copy(out, src)
	return out, nil
}

// Apply reopens the device with a new configuration. It is meant to be
// used as camera.Manager.OnConfigChange.
func (w *Webcam) Apply(cfg camera.Config) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	// Most webcams refuse a second open, so release the current handle first
	if w.vc != nil {
		w.vc.Close()
		w.vc = nil
	}

	vc, err := openCapture(cfg)
	if err != nil {
		// Fall back to the previous settings so the feed survives a bad request
		if prev, perr := openCapture(w.config); perr == nil {
			w.vc = prev
		}
		return err
	}

	w.vc = vc
	w.config = cfg
	return nil
}

// Close implements camera.Source.
func (w *Webcam) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.vc != nil {
		err = w.vc.Close()
		w.vc = nil
	}
	w.frame.Close()
	return err
}
