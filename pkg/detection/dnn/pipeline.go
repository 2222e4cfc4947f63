// Package dnn runs the three overlay models locally with OpenCV:
// YuNet for faces, a 68-point landmark regressor and the FER+ expression net.
package dnn

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/facemoji/pkg/debug"
	"github.com/teslashibe/facemoji/pkg/detection"
	"github.com/teslashibe/facemoji/pkg/models"
)

// Pipeline detects faces, then landmarks and expressions for each face.
// It implements detection.Detector.
type Pipeline struct {
	faces       *YuNet
	landmarks   *LandmarkNet
	expressions *ExpressionNet
	config      detection.Config
	mu          sync.Mutex // Protects inference and closed
	closed      bool
}

// NewPipeline loads all three models.
func NewPipeline(paths models.Paths, cfg detection.Config) (*Pipeline, error) {
	ycfg := DefaultYuNetConfig()
	ycfg.ModelPath = paths.Face
	ycfg.ScoreThreshold = cfg.ScoreThreshold

	faces, err := NewYuNet(ycfg)
	if err != nil {
		return nil, fmt.Errorf("face model: %w", err)
	}

	landmarks, err := NewLandmarkNet(paths.Landmarks)
	if err != nil {
		faces.Close()
		return nil, fmt.Errorf("landmark model: %w", err)
	}

	expressions, err := NewExpressionNet(paths.Expression)
	if err != nil {
		faces.Close()
		landmarks.Close()
		return nil, fmt.Errorf("expression model: %w", err)
	}

	return &Pipeline{
		faces:       faces,
		landmarks:   landmarks,
		expressions: expressions,
		config:      cfg,
	}, nil
}

// Detect implements detection.Detector.
func (p *Pipeline) Detect(ctx context.Context, jpeg []byte) ([]detection.Result, error) {
	if len(jpeg) == 0 {
		return nil, detection.ErrEmptyFrame
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, detection.ErrDetectorClosed
	}

	img, err := gocv.IMDecode(jpeg, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	defer img.Close()

	if img.Empty() {
		return nil, detection.ErrEmptyFrame
	}

	frame := detection.Size{Width: img.Cols(), Height: img.Rows()}
	faces := p.faces.Detect(img)

	results := make([]detection.Result, 0, len(faces))
	for _, face := range faces {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		landmarks, err := p.landmarks.Detect(img, face)
		if err != nil {
			debug.FrameLog("landmarks skipped: %v\n", err)
			continue
		}
		scores, err := p.expressions.Score(img, face)
		if err != nil {
			debug.FrameLog("expressions skipped: %v\n", err)
			continue
		}

		results = append(results, detection.Result{
			Box:         face.Box,
			Score:       face.Score,
			Landmarks:   landmarks,
			Expressions: scores,
			Frame:       frame,
		})
	}

	if len(results) > 0 {
		debug.FrameLog("🙂 found %d face(s)\n", len(results))
	}

	return p.config.Filter(results), nil
}

// Close releases all three models.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.faces.Close(), p.landmarks.Close(), p.expressions.Close())
}
