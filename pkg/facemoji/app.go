package facemoji

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/teslashibe/facemoji/internal/config"
	"github.com/teslashibe/facemoji/internal/log"
	"github.com/teslashibe/facemoji/pkg/camera"
	"github.com/teslashibe/facemoji/pkg/camera/device"
	"github.com/teslashibe/facemoji/pkg/debug"
	"github.com/teslashibe/facemoji/pkg/detection"
	"github.com/teslashibe/facemoji/pkg/detection/dnn"
	"github.com/teslashibe/facemoji/pkg/detection/rekognition"
	"github.com/teslashibe/facemoji/pkg/events"
	"github.com/teslashibe/facemoji/pkg/models"
	"github.com/teslashibe/facemoji/pkg/presenter"
	"github.com/teslashibe/facemoji/pkg/scene"
	"github.com/teslashibe/facemoji/pkg/web"
)

// Banner messages.
const (
	CameraFailedMessage = "📷 Camera unavailable"
	ModelsFailedMessage = "🧠 Models failed to load"
)

// CameraOpener opens the camera source.
type CameraOpener func(camera.Config) (camera.Source, error)

// DetectorLoader loads the models and returns a ready detector.
type DetectorLoader func(ctx context.Context) (detection.Detector, error)

// Option customises an App.
type Option func(*App)

// WithCameraOpener replaces the gocv webcam.
func WithCameraOpener(open CameraOpener) Option {
	return func(a *App) { a.openCamera = open }
}

// WithDetectorLoader replaces the configured detector backend.
func WithDetectorLoader(load DetectorLoader) Option {
	return func(a *App) { a.loadDetector = load }
}

// WithPublisher replaces the MQTT expression events.
func WithPublisher(p events.Publisher) Option {
	return func(a *App) { a.events = p }
}

// applier is implemented by sources that can reopen with a new config.
type applier interface {
	Apply(camera.Config) error
}

// pass is the outcome of one detection call.
type pass struct {
	results []detection.Result
	err     error
}

// App is the main FaceMoji application orchestrator.
// It manages all components and their lifecycle.
type App struct {
	config Config
	ctx    context.Context
	cancel context.CancelFunc

	// Background work Shutdown must wait for: model loading, detection
	// passes and the camera stream
	wg sync.WaitGroup

	openCamera   CameraOpener
	loadDetector DetectorLoader

	// Render surface, touched only from the scene loop after Init
	scene     *scene.Scene
	presenter *presenter.Presenter
	spinner   *presenter.Spinner
	banner    *presenter.Banner

	// Camera
	source        camera.Source
	cameraManager *camera.Manager

	// Detection
	readiness *models.Readiness
	detector  detection.Detector
	settled   bool

	// At most one pass in flight; its result is applied on a later tick
	inFlight atomic.Bool
	results  chan pass
	passes   atomic.Uint64
	skipped  atomic.Uint64
	detects  atomic.Uint64

	errLimiter *rate.Limiter

	webServer *web.Server
	events    events.Publisher
	mqtt      *events.MQTT

	lastFaces       int
	lastExpressions []string
}

// New creates a new FaceMoji application with the given configuration.
func New(cfg Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	debug.Enabled = cfg.Debug
	debug.Frames = cfg.DebugFrames

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		readiness:  models.NewReadiness(),
		results:    make(chan pass, 1),
		errLimiter: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
	a.openCamera = a.openWebcam
	a.loadDetector = a.defaultDetector

	for _, opt := range opts {
		opt(a)
	}
	if a.events == nil {
		if cfg.MQTTBroker != "" {
			mcfg := events.DefaultConfig()
			mcfg.Broker = cfg.MQTTBroker
			mcfg.Topic = cfg.MQTTTopic
			a.mqtt = events.NewMQTT(mcfg)
			a.events = a.mqtt
		} else {
			a.events = events.Nop{}
		}
	}
	return a, nil
}

// Init builds the scene and opens the camera.
// Call this after New() and before Run(). A missing camera is not an
// error: the page shows a banner instead.
func (a *App) Init() error {
	fmt.Println("😀 FaceMoji")
	fmt.Println("==========")
	if debug.Enabled {
		fmt.Println("🐛 Debug mode enabled")
	}

	a.scene = scene.New(scene.Config{
		Width:  a.config.Display.Width,
		Height: a.config.Display.Height,
		FPS:    a.config.FPS,
	})
	a.presenter = presenter.New(a.scene)
	a.spinner = presenter.NewSpinner(a.scene)
	a.banner = presenter.NewBanner(a.scene)

	fmt.Print("📹 Opening camera... ")
	src, err := a.openCamera(a.config.Camera)
	if err != nil {
		fmt.Println("❌")
		log.Error("camera unavailable", "device", a.config.Camera.Device, "error", err)
		a.banner.Show(CameraFailedMessage)
	} else {
		fmt.Println("✅")
		a.source = src
		a.cameraManager = camera.NewManager(a.config.Camera)
		if ap, ok := src.(applier); ok {
			a.cameraManager.OnConfigChange = ap.Apply
		}
	}

	a.webServer = web.NewServer(web.Config{
		Port:    a.config.Port,
		WebRoot: a.config.WebRoot,
	}, a.cameraManager)
	a.scene.SetRenderer(a.webServer)
	a.scene.On(scene.EventDraw, a.onFrame)

	a.webServer.UpdateState(func(s *web.State) {
		s.Backend = a.config.Backend
		s.Camera = err == nil
		if err != nil {
			s.CameraError = err.Error()
		}
		s.DisplayW = a.config.Display.Width
		s.DisplayH = a.config.Display.Height
	})

	return nil
}

// Run starts the model load, the web server and the scene loop.
// Blocks until context is cancelled.
func (a *App) Run(ctx context.Context) error {
	ctx, a.cancel = context.WithCancel(ctx)
	a.ctx = ctx

	a.goBackground(func() { a.loadModels(ctx) })

	if a.config.Port != "" {
		a.webServer.StartAsync(ctx)
	} else {
		a.webServer.StartHubs(ctx)
	}
	a.goBackground(func() { a.streamCameraToWeb(ctx) })
	if a.mqtt != nil {
		go a.runEvents(ctx)
	}

	fmt.Println("\n🎭 FaceMoji is running! Open the page and make a face...")
	fmt.Println("   (Ctrl+C to exit)")

	if err := a.scene.StartLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Shutdown stops background work, waits for it, then releases the camera,
// the detector and the web server.
func (a *App) Shutdown() {
	fmt.Println("\n👋 Goodbye!")

	a.cancel()
	a.wg.Wait()

	if a.source != nil {
		if err := a.source.Close(); err != nil {
			log.Warn("camera close failed", "error", err)
		}
	}
	// Only touch the detector once loading has finished
	if a.readiness.IsReady() && a.detector != nil {
		if err := a.detector.Close(); err != nil {
			log.Warn("detector close failed", "error", err)
		}
	}
	if a.webServer != nil {
		a.webServer.Shutdown()
	}
}

// loadModels resolves the readiness signal. The detector is stored before
// Resolve so readers that see IsReady also see the detector.
func (a *App) loadModels(ctx context.Context) {
	start := time.Now()
	log.Info("loading models", "backend", a.config.Backend, "uri", a.config.ModelURI)

	det, err := a.loadDetector(ctx)
	if err != nil {
		log.Error("model load failed", "error", err)
		a.readiness.Resolve(err)
		return
	}

	a.detector = det
	a.readiness.Resolve(nil)
	log.Info("models ready", "elapsed", time.Since(start).Round(time.Millisecond))
}

// onFrame is the draw handler. It runs on the scene loop.
func (a *App) onFrame(tick scene.Tick) {
	if !a.readiness.IsReady() {
		if a.readiness.Failed() {
			a.settleFailed()
			return
		}
		a.spinner.Step()
		return
	}

	if !a.settled {
		a.settled = true
		a.spinner.Finish()
		a.webServer.UpdateState(func(s *web.State) { s.Models = web.ModelsReady })
	}

	select {
	case p := <-a.results:
		a.apply(p)
	default:
	}

	if a.source == nil {
		return
	}

	if !a.inFlight.CompareAndSwap(false, true) {
		a.skipped.Add(1)
		debug.FrameLog("⏭️  Tick %d skipped, detection still running\n", tick.Frame)
		return
	}
	ctx := a.ctx
	a.goBackground(func() { a.detect(ctx) })
}

func (a *App) settleFailed() {
	if a.settled {
		return
	}
	a.settled = true
	a.spinner.Finish()
	a.banner.Show(ModelsFailedMessage)

	err := a.readiness.Err()
	a.webServer.UpdateState(func(s *web.State) {
		s.Models = web.ModelsFailed
		s.ModelsError = err.Error()
	})
}

// detect runs one pass off the loop goroutine.
func (a *App) detect(ctx context.Context) {
	defer a.inFlight.Store(false)
	a.detects.Add(1)

	var p pass
	jpeg, err := a.source.CaptureJPEG()
	if err != nil {
		p.err = fmt.Errorf("capture: %w", err)
	} else {
		results, err := a.detector.Detect(ctx, jpeg)
		if err != nil {
			p.err = fmt.Errorf("detect: %w", err)
		} else {
			p.results = detection.ResizeAll(results, a.config.Display)
		}
	}

	select {
	case a.results <- p:
	case <-ctx.Done():
	}
}

// apply hands a finished pass to the presenter. Errors count as zero faces.
func (a *App) apply(p pass) {
	if p.err != nil {
		if a.errLimiter.Allow() {
			log.Warn("detection failed", "error", p.err)
		}
		p.results = nil
	}

	a.presenter.Present(p.results)
	n := a.passes.Add(1)

	expressions := make([]string, 0, len(p.results))
	for _, slot := range a.presenter.Slots()[:len(p.results)] {
		expressions = append(expressions, slot.Expression)
	}
	debug.FrameLog("🙂 Pass %d: %d face(s) %v\n", n, len(p.results), expressions)

	if len(p.results) == a.lastFaces && equal(expressions, a.lastExpressions) && n%30 != 0 {
		return
	}
	if len(p.results) != a.lastFaces || !equal(expressions, a.lastExpressions) {
		a.events.Publish(events.Expressions{
			Faces:       len(p.results),
			Expressions: expressions,
			Time:        time.Now(),
		})
	}
	a.lastFaces = len(p.results)
	a.lastExpressions = expressions

	a.webServer.UpdateState(func(s *web.State) {
		s.Faces = len(p.results)
		s.Expressions = expressions
		s.Passes = n
		s.Skipped = a.skipped.Load()
	})
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// streamCameraToWeb streams camera frames to page viewers at StreamFPS.
func (a *App) streamCameraToWeb(ctx context.Context) {
	if a.source == nil {
		log.Warn("camera stream disabled: no camera")
		return
	}

	limiter := rate.NewLimiter(rate.Limit(a.config.StreamFPS), 1)
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		if a.webServer.Viewers() == 0 {
			continue
		}

		jpeg, err := a.source.CaptureJPEG()
		if err != nil {
			if a.errLimiter.Allow() {
				log.Warn("camera capture failed", "error", err)
			}
			continue
		}
		a.webServer.SendCameraFrame(jpeg)
	}
}

func (a *App) goBackground(fn func()) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		fn()
	}()
}

// runEvents connects to the broker and publishes until ctx is done.
// A broker that cannot be reached only disables events.
func (a *App) runEvents(ctx context.Context) {
	if err := a.mqtt.Connect(); err != nil {
		log.Error("expression events disabled", "error", err)
		return
	}
	a.mqtt.Run(ctx)
}

func (a *App) openWebcam(cfg camera.Config) (camera.Source, error) {
	return device.Open(cfg)
}

func (a *App) defaultDetector(ctx context.Context) (detection.Detector, error) {
	dcfg := detection.DefaultConfig()
	dcfg.ScoreThreshold = a.config.ScoreThreshold

	switch a.config.Backend {
	case config.BackendRemote:
		rc := detection.DefaultRemoteConfig()
		rc.BaseURL = a.config.RemoteURL
		rc.Timeout = a.config.RemoteTimeout
		rc.Detector = dcfg
		return detection.NewRemote(rc), nil
	case config.BackendRekognition:
		return rekognition.New(ctx, rekognition.Config{
			Region:   a.config.AWSRegion,
			Detector: dcfg,
		})
	}

	paths, err := models.NewLoader(a.config.ModelCacheDir).Load(ctx, a.config.ModelURI)
	if err != nil {
		return nil, err
	}
	return dnn.NewPipeline(paths, dcfg)
}

// Stats reports detection counters.
type Stats struct {
	Passes   uint64
	Skipped  uint64
	Detects  uint64
	InFlight bool
}

// Stats returns the current counters. Safe from any goroutine.
func (a *App) Stats() Stats {
	return Stats{
		Passes:   a.passes.Load(),
		Skipped:  a.skipped.Load(),
		Detects:  a.detects.Load(),
		InFlight: a.inFlight.Load(),
	}
}
