package dnn

import (
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facemoji/pkg/detection"
)

// LandmarkNet regresses 68 landmarks from a face crop (PFLD-style ONNX:
// 112x112 RGB in, 136 floats normalized to the crop out).
type LandmarkNet struct {
	net       gocv.Net
	inputSize int
	padding   float64
}

// NewLandmarkNet loads the landmark model.
func NewLandmarkNet(modelPath string) (*LandmarkNet, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load landmark model from %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &LandmarkNet{
		net:       net,
		inputSize: 112,
		padding:   1.2,
	}, nil
}

// Detect returns the landmarks of the face in img, in img coordinates.
func (l *LandmarkNet) Detect(img gocv.Mat, face Face) (detection.Landmarks, error) {
	var out detection.Landmarks

	crop := squareCrop(face.Rect, l.padding, image.Rect(0, 0, img.Cols(), img.Rows()))
	if crop.Empty() {
		return out, fmt.Errorf("face crop outside frame")
	}

	roi := img.Region(crop)
	defer roi.Close()

	blob := gocv.BlobFromImage(roi, 1.0/255.0, image.Pt(l.inputSize, l.inputSize),
		gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	l.net.SetInput(blob, "")
	output := l.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return out, fmt.Errorf("read landmark output: %w", err)
	}
	if len(data) < detection.NumLandmarks*2 {
		return out, fmt.Errorf("landmark output has %d values", len(data))
	}

	w := float64(crop.Dx())
	h := float64(crop.Dy())
	for i := 0; i < detection.NumLandmarks; i++ {
		out[i] = detection.Point{
			X: float64(crop.Min.X) + float64(data[i*2])*w,
			Y: float64(crop.Min.Y) + float64(data[i*2+1])*h,
		}
	}
	return out, nil
}

// Close releases the network.
func (l *LandmarkNet) Close() error {
	return l.net.Close()
}

// squareCrop grows r into a square of side max(w,h)*pad around its center,
// clipped to bounds.
func squareCrop(r image.Rectangle, pad float64, bounds image.Rectangle) image.Rectangle {
	side := r.Dx()
	if r.Dy() > side {
		side = r.Dy()
	}
	half := int(float64(side) * pad / 2)
	cx := (r.Min.X + r.Max.X) / 2
	cy := (r.Min.Y + r.Max.Y) / 2
	return image.Rect(cx-half, cy-half, cx+half, cy+half).Intersect(bounds)
}
