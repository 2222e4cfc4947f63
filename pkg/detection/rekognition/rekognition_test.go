package rekognition

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"math"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	"github.com/aws/aws-sdk-go-v2/service/rekognition/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/facemoji/pkg/detection"
	"github.com/teslashibe/facemoji/pkg/expression"
)

type mockAPI struct {
	detectFacesFunc func(ctx context.Context, params *rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error)
}

func (m *mockAPI) DetectFaces(ctx context.Context, params *rekognition.DetectFacesInput, _ ...func(*rekognition.Options)) (*rekognition.DetectFacesOutput, error) {
	if m.detectFacesFunc != nil {
		return m.detectFacesFunc(ctx, params)
	}
	return &rekognition.DetectFacesOutput{}, nil
}

func frame(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h)), nil))
	return buf.Bytes()
}

func landmark(kind types.LandmarkType, x, y float32) types.Landmark {
	return types.Landmark{Type: kind, X: aws.Float32(x), Y: aws.Float32(y)}
}

func uprightFace(confidence float32) types.FaceDetail {
	return types.FaceDetail{
		BoundingBox: &types.BoundingBox{
			Left: aws.Float32(0.25), Top: aws.Float32(0.25),
			Width: aws.Float32(0.5), Height: aws.Float32(0.5),
		},
		Confidence: aws.Float32(confidence),
		Landmarks: []types.Landmark{
			landmark(types.LandmarkTypeEyeLeft, 0.4, 0.4),
			landmark(types.LandmarkTypeEyeRight, 0.6, 0.4),
			landmark(types.LandmarkTypeNose, 0.5, 0.55),
			landmark(types.LandmarkTypeMouthUp, 0.5, 0.65),
			landmark(types.LandmarkTypeChinBottom, 0.5, 0.75),
		},
		Emotions: []types.Emotion{
			{Type: types.EmotionNameHappy, Confidence: aws.Float32(91)},
			{Type: types.EmotionNameCalm, Confidence: aws.Float32(6)},
			{Type: types.EmotionNameConfused, Confidence: aws.Float32(3)},
		},
	}
}

func TestDetect(t *testing.T) {
	var got *rekognition.DetectFacesInput
	api := &mockAPI{detectFacesFunc: func(_ context.Context, in *rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error) {
		got = in
		return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{uprightFace(99.5)}}, nil
	}}
	d := NewWithAPI(api, DefaultConfig())

	img := frame(t, 400, 200)
	results, err := d.Detect(context.Background(), img)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NotNil(t, got)
	assert.Equal(t, img, got.Image.Bytes)
	assert.Equal(t, []types.Attribute{types.AttributeAll}, got.Attributes)

	r := results[0]
	assert.Equal(t, detection.Size{Width: 400, Height: 200}, r.Frame)
	assert.InDelta(t, 100, r.Box.X, 1e-3)
	assert.InDelta(t, 50, r.Box.Y, 1e-3)
	assert.InDelta(t, 200, r.Box.Width, 1e-3)
	assert.InDelta(t, 0.995, r.Score, 1e-6)

	// Confused is dropped, calm becomes neutral
	assert.InDelta(t, 0.91, r.Expressions[expression.Happy], 1e-6)
	assert.InDelta(t, 0.06, r.Expressions[expression.Neutral], 1e-6)
	assert.Len(t, r.Expressions, 2)
	name, _ := expression.Best(r.Expressions)
	assert.Equal(t, expression.Happy, name)

	// Mouth and nose land on their 68-point slots
	assert.InDelta(t, 200, r.Landmarks[detection.MouthAnchor].X, 1e-3)
	assert.InDelta(t, 130, r.Landmarks[detection.MouthAnchor].Y, 1e-3)
	assert.InDelta(t, 110, r.Landmarks[30].Y, 1e-3)

	// Bridge point a third of the way from the eye line (y=80) to the tip (y=110)
	assert.InDelta(t, 200, r.Landmarks[detection.NoseAnchor].X, 1e-3)
	assert.InDelta(t, 90, r.Landmarks[detection.NoseAnchor].Y, 1e-3)

	// Upright face tilts straight up
	assert.InDelta(t, -math.Pi/2, r.Landmarks.Tilt(), 1e-6)
}

func TestDetect_FiltersLowConfidence(t *testing.T) {
	api := &mockAPI{detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error) {
		return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{uprightFace(95), uprightFace(5)}}, nil
	}}
	d := NewWithAPI(api, DefaultConfig())

	results, err := d.Detect(context.Background(), frame(t, 64, 64))
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestDetect_NoFaces(t *testing.T) {
	d := NewWithAPI(&mockAPI{}, DefaultConfig())

	results, err := d.Detect(context.Background(), frame(t, 64, 64))
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDetect_BadInput(t *testing.T) {
	d := NewWithAPI(&mockAPI{}, DefaultConfig())

	_, err := d.Detect(context.Background(), nil)
	assert.ErrorIs(t, err, detection.ErrEmptyFrame)

	_, err = d.Detect(context.Background(), []byte("not a jpeg"))
	assert.ErrorContains(t, err, "decode frame header")
}

func TestDetect_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{errCodeAccessDenied, detection.ErrInferenceUnavailable},
		{errCodeThrottling, detection.ErrInferenceUnavailable},
		{errCodeInvalidImage, detection.ErrInvalidResponse},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			api := &mockAPI{detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error) {
				return nil, &smithy.GenericAPIError{Code: tc.code, Message: "nope"}
			}}
			d := NewWithAPI(api, DefaultConfig())

			_, err := d.Detect(context.Background(), frame(t, 64, 64))
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestDetect_MissingEyesAnchorsOnNoseTip(t *testing.T) {
	fd := uprightFace(99)
	var kept []types.Landmark
	for _, lm := range fd.Landmarks {
		if lm.Type != types.LandmarkTypeEyeLeft && lm.Type != types.LandmarkTypeEyeRight {
			kept = append(kept, lm)
		}
	}
	fd.Landmarks = kept

	api := &mockAPI{detectFacesFunc: func(context.Context, *rekognition.DetectFacesInput) (*rekognition.DetectFacesOutput, error) {
		return &rekognition.DetectFacesOutput{FaceDetails: []types.FaceDetail{fd}}, nil
	}}
	d := NewWithAPI(api, DefaultConfig())

	results, err := d.Detect(context.Background(), frame(t, 400, 200))
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	tip := r.Landmarks[30]
	assert.InDelta(t, 200, tip.X, 1e-3)
	assert.InDelta(t, 110, tip.Y, 1e-3)
	for i := detection.NoseStart; i < detection.NoseStart+3; i++ {
		assert.Equal(t, tip, r.Landmarks[i], "landmark %d", i)
	}
	assert.Equal(t, tip, r.Landmarks[detection.NoseAnchor])

	// Still points up, from the mouth to the tip
	assert.InDelta(t, -math.Pi/2, r.Landmarks.Tilt(), 1e-6)
}
