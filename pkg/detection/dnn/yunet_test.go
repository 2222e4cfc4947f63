package dnn

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"testing"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facemoji/pkg/detection"
	"github.com/teslashibe/facemoji/pkg/models"
)

// TestYuNetNewInvalidPath tests error handling for missing model
func TestYuNetNewInvalidPath(t *testing.T) {
	cfg := DefaultYuNetConfig()
	cfg.ModelPath = "/nonexistent/path/model.onnx"

	_, err := NewYuNet(cfg)
	if err == nil {
		t.Error("Expected error for invalid model path")
	}
}

// TestYuNetDetect_SolidImage tests detection on solid color image (no faces)
func TestYuNetDetect_SolidImage(t *testing.T) {
	modelPath := findModel(models.FaceFile)
	if modelPath == "" {
		t.Skip("YuNet model not found, skipping test")
	}

	cfg := DefaultYuNetConfig()
	cfg.ModelPath = modelPath
	cfg.ScoreThreshold = 0.5

	detector, err := NewYuNet(cfg)
	if err != nil {
		t.Fatalf("NewYuNet failed: %v", err)
	}
	defer detector.Close()

	img, err := gocv.IMDecode(createSolidJPEG(320, 240, color.RGBA{0, 0, 255, 255}), gocv.IMReadColor)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	defer img.Close()

	if faces := detector.Detect(img); len(faces) > 0 {
		t.Errorf("Expected no detections in solid color image, got %d", len(faces))
	}
}

func TestNewPipeline_MissingModels(t *testing.T) {
	_, err := NewPipeline(models.Paths{
		Face:       "/nonexistent/face.onnx",
		Landmarks:  "/nonexistent/landmarks.onnx",
		Expression: "/nonexistent/expression.onnx",
	}, detection.DefaultConfig())
	if err == nil {
		t.Fatal("Expected error for missing models")
	}
}

func TestPipelineDetect(t *testing.T) {
	paths := models.Paths{
		Face:       findModel(models.FaceFile),
		Landmarks:  findModel(models.LandmarksFile),
		Expression: findModel(models.ExpressionFile),
	}
	if paths.Face == "" || paths.Landmarks == "" || paths.Expression == "" {
		t.Skip("models not found, skipping test")
	}

	p, err := NewPipeline(paths, detection.DefaultConfig())
	if err != nil {
		t.Fatalf("NewPipeline failed: %v", err)
	}
	defer p.Close()

	if _, err := p.Detect(context.Background(), []byte{}); err == nil {
		t.Error("Expected error for empty image")
	}
	if _, err := p.Detect(context.Background(), []byte("not a jpeg")); err == nil {
		t.Error("Expected error for invalid JPEG")
	}

	results, err := p.Detect(context.Background(), createSolidJPEG(320, 240, color.RGBA{100, 100, 100, 255}))
	if err != nil {
		t.Fatalf("Detect failed: %v", err)
	}
	if len(results) > 0 {
		t.Errorf("Expected no faces in solid image, got %d", len(results))
	}
}

func TestSquareCrop(t *testing.T) {
	bounds := image.Rect(0, 0, 640, 480)

	tests := []struct {
		name string
		in   image.Rectangle
		want image.Rectangle
	}{
		{
			name: "tall face becomes square",
			in:   image.Rect(100, 100, 200, 300),
			want: image.Rect(30, 80, 270, 320),
		},
		{
			name: "clipped at the frame edge",
			in:   image.Rect(0, 0, 100, 100),
			want: image.Rect(0, 0, 110, 110),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := squareCrop(tc.in, 1.2, bounds)
			if got != tc.want {
				t.Errorf("squareCrop: got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestSoftmax(t *testing.T) {
	probs := softmax([]float32{1, 1, 1, 1})
	for i, p := range probs {
		if p < 0.2499 || p > 0.2501 {
			t.Errorf("probs[%d] = %f, want 0.25", i, p)
		}
	}

	// Large logits must not overflow
	probs = softmax([]float32{1000, 0})
	if probs[0] < 0.999 {
		t.Errorf("expected dominant class, got %f", probs[0])
	}
}

func TestLabelScores_DropsContempt(t *testing.T) {
	scores := labelScores([]float64{0.1, 0.5, 0, 0, 0, 0, 0, 0.4})

	if len(scores) != 7 {
		t.Fatalf("expected 7 expressions, got %d", len(scores))
	}
	if scores["happy"] != 0.5 {
		t.Errorf("happy: got %f, want 0.5", scores["happy"])
	}
	if _, ok := scores["contempt"]; ok {
		t.Error("contempt should not be reported")
	}
}

// Helper functions

func findModel(name string) string {
	if cwd, err := os.Getwd(); err == nil {
		// Walk up to find models directory
		for dir := cwd; dir != "/"; dir = filepath.Dir(dir) {
			modelPath := filepath.Join(dir, "models", name)
			if _, err := os.Stat(modelPath); err == nil {
				return modelPath
			}
		}
	}
	return ""
}

func createSolidJPEG(width, height int, c color.Color) []byte {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, c)
		}
	}

	var buf bytes.Buffer
	jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

// TestPipelineDetect_AfterClose tests that a closed pipeline refuses work
func TestPipelineDetect_AfterClose(t *testing.T) {
	p := &Pipeline{closed: true}

	_, err := p.Detect(context.Background(), []byte{0xff, 0xd8})
	if !errors.Is(err, detection.ErrDetectorClosed) {
		t.Errorf("Expected ErrDetectorClosed, got %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
}
