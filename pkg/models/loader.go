// Package models fetches the overlay's three pretrained models and
// tracks whether they are ready.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/facemoji/internal/httpc"
	"github.com/teslashibe/facemoji/internal/log"
)

// Model file names, relative to the model URI.
const (
	FaceFile       = "face_detection_yunet.onnx"
	LandmarksFile  = "face_landmarks_68.onnx"
	ExpressionFile = "emotion_ferplus.onnx"
)

// Paths locates the three model files on disk.
type Paths struct {
	Face       string
	Landmarks  string
	Expression string
}

var (
	ErrModelMissing = errors.New("model file missing")
	ErrDownload     = errors.New("model download failed")
)

// Loader resolves a model URI to local files. A URI is either a directory
// or an http(s) base URL; remote files are downloaded into CacheDir once.
type Loader struct {
	CacheDir   string
	HTTPClient *http.Client
}

// NewLoader creates a loader caching downloads in cacheDir.
func NewLoader(cacheDir string) *Loader {
	return &Loader{
		CacheDir:   cacheDir,
		HTTPClient: httpc.New(2 * time.Minute),
	}
}

// Load makes all three models available locally, fetching them concurrently.
func (l *Loader) Load(ctx context.Context, uri string) (Paths, error) {
	files := []string{FaceFile, LandmarksFile, ExpressionFile}
	resolved := make([]string, len(files))

	remote := isRemote(uri)
	g, gctx := errgroup.WithContext(ctx)
	for i, name := range files {
		g.Go(func() error {
			var err error
			if remote {
				resolved[i], err = l.fetch(gctx, uri, name)
			} else {
				resolved[i], err = local(uri, name)
			}
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return Paths{}, err
	}

	return Paths{
		Face:       resolved[0],
		Landmarks:  resolved[1],
		Expression: resolved[2],
	}, nil
}

func isRemote(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

func local(dir, name string) (string, error) {
	path := filepath.Join(dir, name)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrModelMissing, path)
	}
	return path, nil
}

// fetch downloads base/name unless it is already cached.
func (l *Loader) fetch(ctx context.Context, base, name string) (string, error) {
	dst := filepath.Join(l.CacheDir, name)
	if info, err := os.Stat(dst); err == nil && info.Size() > 0 {
		return dst, nil
	}

	src, err := url.JoinPath(base, name)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}

	if err := os.MkdirAll(l.CacheDir, 0o755); err != nil {
		return "", fmt.Errorf("create cache dir: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}

	start := time.Now()
	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s: status %d", ErrDownload, name, resp.StatusCode)
	}

	// Write to a temp file so a cancelled download never leaves a partial model
	tmp, err := os.CreateTemp(l.CacheDir, name+".*.part")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	n, err := io.Copy(tmp, resp.Body)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrDownload, name, err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", fmt.Errorf("store %s: %w", name, err)
	}

	log.Info("model downloaded", "model", name, "bytes", n, "took", time.Since(start))
	return dst, nil
}
