// Package rekognition runs face detection on AWS Rekognition DetectFaces.
//
// Rekognition reports a sparse landmark set and its own emotion labels.
// Both are mapped onto the 68-point scheme and the overlay's expression
// names; points Rekognition does not return stay at zero.
package rekognition

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // DecodeConfig for frame size

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"

	"github.com/teslashibe/facemoji/pkg/detection"
	"github.com/teslashibe/facemoji/pkg/expression"
)

const (
	errCodeAccessDenied     = "AccessDeniedException"
	errCodeInvalidImage     = "InvalidImageFormatException"
	errCodeImageTooLarge    = "ImageTooLargeException"
	errCodeThroughput       = "ProvisionedThroughputExceededException"
	errCodeThrottling       = "ThrottlingException"
	errCodeInvalidParameter = "InvalidParameterException"

	// Rekognition rejects images over 5MB.
	maxImageSize = 5 * 1024 * 1024
)

// API is the subset of the Rekognition client used here.
type API interface {
	DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error)
}

// Config configures the backend.
type Config struct {
	Region   string
	Detector detection.Config
}

// DefaultConfig returns us-east-1 with the default detector settings.
func DefaultConfig() Config {
	return Config{
		Region:   "us-east-1",
		Detector: detection.DefaultConfig(),
	}
}

// Detector implements detection.Detector.
type Detector struct {
	api    API
	config Config
}

var _ detection.Detector = (*Detector)(nil)

// New creates a detector using the AWS default credential chain.
func New(ctx context.Context, cfg Config) (*Detector, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}
	return NewWithAPI(rekognition.NewFromConfig(awsCfg), cfg), nil
}

// NewWithAPI creates a detector on an existing client.
func NewWithAPI(api API, cfg Config) *Detector {
	return &Detector{api: api, config: cfg}
}

// Detect implements detection.Detector.
func (d *Detector) Detect(ctx context.Context, jpeg []byte) ([]detection.Result, error) {
	if len(jpeg) == 0 {
		return nil, detection.ErrEmptyFrame
	}
	if len(jpeg) > maxImageSize {
		return nil, fmt.Errorf("%w: frame is %d bytes", detection.ErrInvalidResponse, len(jpeg))
	}

	frame, _, err := image.DecodeConfig(bytes.NewReader(jpeg))
	if err != nil {
		return nil, fmt.Errorf("decode frame header: %w", err)
	}
	size := detection.Size{Width: frame.Width, Height: frame.Height}

	out, err := d.api.DetectFaces(ctx, &rekognition.DetectFacesInput{
		Image:      &types.Image{Bytes: jpeg},
		Attributes: []types.Attribute{types.AttributeAll},
	})
	if err != nil {
		return nil, classify(err)
	}

	results := make([]detection.Result, 0, len(out.FaceDetails))
	for _, fd := range out.FaceDetails {
		results = append(results, convert(fd, size))
	}
	return d.config.Detector.Filter(results), nil
}

// Close implements detection.Detector.
func (d *Detector) Close() error {
	return nil
}

func classify(err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case errCodeAccessDenied, errCodeThroughput, errCodeThrottling:
			return fmt.Errorf("%w: %s", detection.ErrInferenceUnavailable, apiErr.ErrorMessage())
		case errCodeInvalidImage, errCodeImageTooLarge, errCodeInvalidParameter:
			return fmt.Errorf("%w: %s", detection.ErrInvalidResponse, apiErr.ErrorMessage())
		}
	}
	return fmt.Errorf("detect faces: %w", err)
}

// emotions maps Rekognition emotion types onto expression names.
// CONFUSED has no counterpart and is dropped.
var emotions = map[types.EmotionName]string{
	types.EmotionNameHappy:     expression.Happy,
	types.EmotionNameSad:       expression.Sad,
	types.EmotionNameAngry:     expression.Angry,
	types.EmotionNameDisgusted: expression.Disgusted,
	types.EmotionNameSurprised: expression.Surprised,
	types.EmotionNameCalm:      expression.Neutral,
	types.EmotionNameFear:      expression.Fearful,
}

// landmarkIndex places Rekognition landmarks on the 68-point scheme.
var landmarkIndex = map[types.LandmarkType]int{
	types.LandmarkTypeChinBottom:        8,
	types.LandmarkTypeLeftEyeBrowLeft:   17,
	types.LandmarkTypeLeftEyeBrowUp:     19,
	types.LandmarkTypeLeftEyeBrowRight:  21,
	types.LandmarkTypeRightEyeBrowLeft:  22,
	types.LandmarkTypeRightEyeBrowUp:    24,
	types.LandmarkTypeRightEyeBrowRight: 26,
	types.LandmarkTypeNose:              30,
	types.LandmarkTypeNoseLeft:          31,
	types.LandmarkTypeNoseRight:         35,
	types.LandmarkTypeLeftEyeLeft:       36,
	types.LandmarkTypeLeftEyeRight:      39,
	types.LandmarkTypeRightEyeLeft:      42,
	types.LandmarkTypeRightEyeRight:     45,
	types.LandmarkTypeMouthLeft:         48,
	types.LandmarkTypeMouthUp:           51,
	types.LandmarkTypeMouthRight:        54,
	types.LandmarkTypeMouthDown:         57,
	types.LandmarkTypeUpperJawlineLeft:  1,
	types.LandmarkTypeMidJawlineLeft:    4,
	types.LandmarkTypeMidJawlineRight:   12,
	types.LandmarkTypeUpperJawlineRight: 15,
}

func convert(fd types.FaceDetail, size detection.Size) detection.Result {
	w, h := float64(size.Width), float64(size.Height)
	r := detection.Result{
		Expressions: make(expression.Scores, len(emotions)),
		Frame:       size,
	}

	if bb := fd.BoundingBox; bb != nil {
		r.Box = detection.Box{
			X:      float64(aws.ToFloat32(bb.Left)) * w,
			Y:      float64(aws.ToFloat32(bb.Top)) * h,
			Width:  float64(aws.ToFloat32(bb.Width)) * w,
			Height: float64(aws.ToFloat32(bb.Height)) * h,
		}
	}
	r.Score = float64(aws.ToFloat32(fd.Confidence)) / 100

	var eyeLeft, eyeRight *detection.Point
	for _, lm := range fd.Landmarks {
		p := detection.Point{
			X: float64(aws.ToFloat32(lm.X)) * w,
			Y: float64(aws.ToFloat32(lm.Y)) * h,
		}
		switch lm.Type {
		case types.LandmarkTypeEyeLeft:
			eyeLeft = &p
		case types.LandmarkTypeEyeRight:
			eyeRight = &p
		}
		if i, ok := landmarkIndex[lm.Type]; ok {
			r.Landmarks[i] = p
		}
	}

	// The nose bridge (27-29) runs from between the eyes down to the tip.
	// Without both eyes it collapses onto the tip.
	tip := r.Landmarks[30]
	top := tip
	if eyeLeft != nil && eyeRight != nil {
		top = detection.Point{X: (eyeLeft.X + eyeRight.X) / 2, Y: (eyeLeft.Y + eyeRight.Y) / 2}
	}
	for i := 0; i < 3; i++ {
		t := float64(i) / 3
		r.Landmarks[detection.NoseStart+i] = detection.Point{
			X: top.X + (tip.X-top.X)*t,
			Y: top.Y + (tip.Y-top.Y)*t,
		}
	}

	for _, e := range fd.Emotions {
		if name, ok := emotions[e.Type]; ok {
			r.Expressions[name] = float64(aws.ToFloat32(e.Confidence)) / 100
		}
	}
	return r
}
