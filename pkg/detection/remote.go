package detection

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/facemoji/internal/httpc"
	"github.com/teslashibe/facemoji/pkg/expression"
)

// RemoteConfig configures the HTTP inference sidecar client.
type RemoteConfig struct {
	BaseURL    string
	Timeout    time.Duration
	RetryCount int
	Detector   Config
}

// DefaultRemoteConfig returns a RemoteConfig with sensible defaults
func DefaultRemoteConfig() RemoteConfig {
	return RemoteConfig{
		BaseURL:    "http://localhost:5005",
		Timeout:    10 * time.Second,
		RetryCount: 2,
		Detector:   DefaultConfig(),
	}
}

// detectRequest is the body of POST /detect.
type detectRequest struct {
	Image          string  `json:"image"`
	ScoreThreshold float64 `json:"score_threshold"`
}

type remoteFace struct {
	Box         Box                `json:"box"`
	Score       float64            `json:"score"`
	Landmarks   [][2]float64       `json:"landmarks"`
	Expressions map[string]float64 `json:"expressions"`
}

type detectResponse struct {
	Width  int          `json:"width"`
	Height int          `json:"height"`
	Faces  []remoteFace `json:"faces"`
}

// Remote runs detection on an HTTP inference sidecar that bundles the
// face, landmark and expression models.
type Remote struct {
	httpClient *http.Client
	config     RemoteConfig
}

// NewRemote creates a new sidecar client
func NewRemote(config RemoteConfig) *Remote {
	return &Remote{
		httpClient: httpc.New(config.Timeout),
		config:     config,
	}
}

// Detect implements Detector.
func (r *Remote) Detect(ctx context.Context, jpeg []byte) ([]Result, error) {
	if len(jpeg) == 0 {
		return nil, ErrEmptyFrame
	}

	req := detectRequest{
		Image:          base64.StdEncoding.EncodeToString(jpeg),
		ScoreThreshold: r.config.Detector.ScoreThreshold,
	}

	var resp detectResponse
	if err := r.doRequestWithRetry(ctx, "/detect", req, &resp); err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(resp.Faces))
	for i, f := range resp.Faces {
		if len(f.Landmarks) != NumLandmarks {
			return nil, fmt.Errorf("%w: face %d has %d landmarks", ErrInvalidResponse, i, len(f.Landmarks))
		}
		res := Result{
			Box:         f.Box,
			Score:       f.Score,
			Expressions: expression.Scores(f.Expressions),
			Frame:       Size{Width: resp.Width, Height: resp.Height},
		}
		for j, p := range f.Landmarks {
			res.Landmarks[j] = Point{X: p[0], Y: p[1]}
		}
		results = append(results, res)
	}

	return r.config.Detector.Filter(results), nil
}

// Close implements Detector.
func (r *Remote) Close() error {
	r.httpClient.CloseIdleConnections()
	return nil
}

const maxBackoff = 4 * time.Second

// backoff returns 250ms, 500ms, 1s... capped at maxBackoff.
func backoff(attempt int) time.Duration {
	d := 250 * time.Millisecond
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxBackoff {
			return maxBackoff
		}
	}
	return d
}

// statusError is a non-2xx reply.
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("inference returned status %d: %s", e.code, e.body)
}

func (r *Remote) doRequestWithRetry(ctx context.Context, path string, body, result any) error {
	var lastErr error

	for attempt := 0; attempt <= r.config.RetryCount; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(attempt)):
			}
		}

		lastErr = r.doRequest(ctx, path, body, result)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Only 5xx and transport errors are worth retrying
		var se *statusError
		if errors.As(lastErr, &se) && se.code < 500 {
			return lastErr
		}
		if errors.Is(lastErr, ErrInvalidResponse) {
			return lastErr
		}
	}

	return fmt.Errorf("%w: %v", ErrInferenceUnavailable, lastErr)
}

func (r *Remote) doRequest(ctx context.Context, path string, body, result any) error {
	payload, err := jsoniter.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.config.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return &statusError{code: resp.StatusCode, body: string(respBody)}
	}

	if err := jsoniter.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
