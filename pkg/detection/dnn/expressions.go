package dnn

import (
	"fmt"
	"image"
	"math"
	"os"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facemoji/pkg/expression"
)

// ferPlusLabels is the output order of the FER+ emotion model.
// An empty entry is a class with no overlay expression (contempt).
var ferPlusLabels = [8]string{
	expression.Neutral,
	expression.Happy,
	expression.Surprised,
	expression.Sad,
	expression.Angry,
	expression.Disgusted,
	expression.Fearful,
	"",
}

// ExpressionNet scores facial expressions with the FER+ ONNX model
// (64x64 grayscale in, 8 logits out).
type ExpressionNet struct {
	net       gocv.Net
	inputSize int
}

// NewExpressionNet loads the expression model.
func NewExpressionNet(modelPath string) (*ExpressionNet, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load expression model from %s", modelPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	return &ExpressionNet{net: net, inputSize: 64}, nil
}

// Score returns a probability per known expression for the face in img.
func (e *ExpressionNet) Score(img gocv.Mat, face Face) (expression.Scores, error) {
	roi := img.Region(face.Rect)
	defer roi.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	// FER+ expects raw 0-255 intensities
	blob := gocv.BlobFromImage(gray, 1.0, image.Pt(e.inputSize, e.inputSize),
		gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.net.SetInput(blob, "")
	output := e.net.Forward("")
	defer output.Close()

	data, err := output.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("read expression output: %w", err)
	}
	if len(data) < len(ferPlusLabels) {
		return nil, fmt.Errorf("expression output has %d values", len(data))
	}

	return labelScores(softmax(data[:len(ferPlusLabels)])), nil
}

// Close releases the network.
func (e *ExpressionNet) Close() error {
	return e.net.Close()
}

func softmax(logits []float32) []float64 {
	maxLogit := math.Inf(-1)
	for _, v := range logits {
		maxLogit = math.Max(maxLogit, float64(v))
	}

	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxLogit)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func labelScores(probs []float64) expression.Scores {
	scores := make(expression.Scores, len(ferPlusLabels))
	for i, label := range ferPlusLabels {
		if label == "" || i >= len(probs) {
			continue
		}
		scores[label] = probs[i]
	}
	return scores
}
