// Package web serves the FaceMoji page, its JSON API and the websocket feeds
// the page paints from.
package web

import (
	"context"
	"fmt"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"

	"github.com/teslashibe/facemoji/internal/log"
	"github.com/teslashibe/facemoji/pkg/camera"
	"github.com/teslashibe/facemoji/pkg/hub"
	"github.com/teslashibe/facemoji/pkg/scene"
)

// Model loading states reported in State.Models.
const (
	ModelsLoading = "loading"
	ModelsReady   = "ready"
	ModelsFailed  = "failed"
)

// State is what the page shows outside the canvas.
type State struct {
	Models      string   `json:"models"`
	ModelsError string   `json:"models_error,omitempty"`
	Camera      bool     `json:"camera_connected"`
	CameraError string   `json:"camera_error,omitempty"`
	Backend     string   `json:"backend"`
	Faces       int      `json:"faces"`
	Expressions []string `json:"expressions"`
	Passes      uint64   `json:"detection_passes"`
	Skipped     uint64   `json:"skipped_ticks"`
	DisplayW    int      `json:"display_width"`
	DisplayH    int      `json:"display_height"`
}

// Config configures the server.
type Config struct {
	Port    string
	WebRoot string
}

// Server is the HTTP and websocket front end.
type Server struct {
	app    *fiber.App
	config Config

	state   State
	stateMu sync.RWMutex

	statusHub *hub.Hub
	sceneHub  *hub.Hub
	cameraHub *hub.Hub

	camera *camera.Manager
}

// NewServer builds the routes. cam may be nil when no camera could be opened.
func NewServer(cfg Config, cam *camera.Manager) *Server {
	s := &Server{
		config:    cfg,
		state:     State{Models: ModelsLoading, Expressions: []string{}},
		statusHub: hub.New("status", hub.WithReplay()),
		sceneHub:  hub.New("scene", hub.WithReplay()),
		cameraHub: hub.New("camera"),
		camera:    cam,
	}

	app := fiber.New(fiber.Config{
		AppName:               "FaceMoji",
		DisableStartupMessage: true,
		JSONEncoder:           jsoniter.Marshal,
		JSONDecoder:           jsoniter.Unmarshal,
	})

	app.Use(cors.New())

	if cfg.WebRoot != "" {
		app.Static("/", cfg.WebRoot)
	}

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/expressions", s.handleExpressions)
	api.Get("/camera", s.handleGetCamera)
	api.Post("/camera", s.handleSetCamera)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/camera", websocket.New(s.serveHub(s.cameraHub)))
	app.Get("/ws/scene", websocket.New(s.serveHub(s.sceneHub)))
	app.Get("/ws/status", websocket.New(s.serveHub(s.statusHub)))

	s.app = app
	return s
}

// Start runs the hubs and listens until Shutdown. Hubs stop with ctx.
func (s *Server) Start(ctx context.Context) error {
	s.StartHubs(ctx)
	log.Info("web server listening", "url", fmt.Sprintf("http://localhost:%s", s.config.Port))
	return s.app.Listen(":" + s.config.Port)
}

// StartHubs runs the broadcast hubs without listening. Start calls it.
func (s *Server) StartHubs(ctx context.Context) {
	go s.statusHub.Run(ctx)
	go s.sceneHub.Run(ctx)
	go s.cameraHub.Run(ctx)
	s.statusHub.BroadcastJSON(s.State())
}

// StartAsync runs Start in a goroutine and logs its error.
func (s *Server) StartAsync(ctx context.Context) {
	go func() {
		if err := s.Start(ctx); err != nil {
			log.Error("web server stopped", "error", err)
		}
	}()
}

// UpdateState applies update and pushes the new state to status clients.
func (s *Server) UpdateState(update func(*State)) {
	s.stateMu.Lock()
	update(&s.state)
	state := s.state
	state.Expressions = append([]string(nil), s.state.Expressions...)
	s.stateMu.Unlock()

	if err := s.statusHub.BroadcastJSON(state); err != nil {
		log.Warn("status broadcast failed", "error", err)
	}
}

// State returns a copy of the current state.
func (s *Server) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	state := s.state
	state.Expressions = append([]string(nil), s.state.Expressions...)
	return state
}

// SendCameraFrame pushes a JPEG frame to camera clients.
func (s *Server) SendCameraFrame(jpeg []byte) {
	s.cameraHub.BroadcastBinary(jpeg)
}

// Render implements scene.Renderer by pushing the snapshot to scene clients.
func (s *Server) Render(snap scene.Snapshot) {
	if s.sceneHub.ClientCount() == 0 {
		return
	}
	if err := s.sceneHub.BroadcastJSON(snap); err != nil {
		log.Warn("scene broadcast failed", "error", err)
	}
}

// Viewers returns the number of clients watching the camera feed.
func (s *Server) Viewers() int {
	return s.cameraHub.ClientCount()
}

// App exposes the fiber app, mainly for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// Shutdown stops the listener.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

func (s *Server) serveHub(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		hub.NewClient(h, conn).Run()
	}
}
