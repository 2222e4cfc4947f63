package scene

import (
	"context"
	"sync/atomic"
	"time"
)

// Event names a scene lifecycle hook.
type Event string

const (
	// EventDraw fires once per loop tick, before the snapshot is rendered.
	EventDraw Event = "draw"
	// EventStop fires once when the loop exits.
	EventStop Event = "stop"
)

// Tick describes one loop iteration.
type Tick struct {
	Frame uint64
	Time  time.Time
	Delta time.Duration
}

// Handler reacts to a scene event.
type Handler func(Tick)

// Snapshot is a value copy of the scene after a tick.
type Snapshot struct {
	Frame  uint64 `json:"frame"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Nodes  []Node `json:"nodes"`
}

// Renderer paints snapshots. Render runs on the loop goroutine and must not block.
type Renderer interface {
	Render(Snapshot)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(Snapshot)

// Render implements Renderer.
func (f RendererFunc) Render(s Snapshot) { f(s) }

// Config sizes the scene and its loop.
type Config struct {
	Width  int
	Height int
	FPS    int
}

// DefaultConfig returns a 960x720 scene refreshed at 60 FPS.
func DefaultConfig() Config {
	return Config{Width: 960, Height: 720, FPS: 60}
}

// Scene holds drawables in paint order.
type Scene struct {
	config   Config
	items    []Drawable
	handlers map[Event][]Handler
	renderer Renderer

	frame   uint64
	last    time.Time
	latest  atomic.Pointer[Snapshot]
	running atomic.Bool
}

// New creates an empty scene.
func New(cfg Config) *Scene {
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultConfig().FPS
	}
	return &Scene{
		config:   cfg,
		handlers: make(map[Event][]Handler),
	}
}

// Size returns the display size.
func (s *Scene) Size() (width, height int) {
	return s.config.Width, s.config.Height
}

// Add appends drawables on top of the existing ones.
func (s *Scene) Add(items ...Drawable) *Scene {
	s.items = append(s.items, items...)
	return s
}

// Remove drops a drawable. It reports whether it was present.
func (s *Scene) Remove(d Drawable) bool {
	for i, item := range s.items {
		if item.ID() == d.ID() {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of drawables, hidden ones included.
func (s *Scene) Len() int {
	return len(s.items)
}

// On registers a handler. Handlers must be registered before StartLoop.
func (s *Scene) On(event Event, fn Handler) *Scene {
	s.handlers[event] = append(s.handlers[event], fn)
	return s
}

// SetRenderer sets where snapshots go after each tick.
func (s *Scene) SetRenderer(r Renderer) *Scene {
	s.renderer = r
	return s
}

// Running reports whether the loop is active.
func (s *Scene) Running() bool {
	return s.running.Load()
}

// StartLoop ticks at the configured FPS until ctx is done.
// A slow tick delays the next one; ticks never overlap.
func (s *Scene) StartLoop(ctx context.Context) error {
	s.running.Store(true)
	defer s.running.Store(false)

	ticker := time.NewTicker(time.Second / time.Duration(s.config.FPS))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.emit(EventStop, Tick{Frame: s.frame, Time: time.Now()})
			return ctx.Err()
		case now := <-ticker.C:
			s.Step(now)
		}
	}
}

// Step runs one tick: draw handlers, then snapshot and render.
func (s *Scene) Step(now time.Time) Snapshot {
	s.frame++
	tick := Tick{Frame: s.frame, Time: now}
	if !s.last.IsZero() {
		tick.Delta = now.Sub(s.last)
	}
	s.last = now

	s.emit(EventDraw, tick)

	snap := s.Snapshot()
	s.latest.Store(&snap)
	if s.renderer != nil {
		s.renderer.Render(snap)
	}
	return snap
}

// Snapshot copies the current scene. Call it from the loop goroutine;
// other goroutines should use Latest.
func (s *Scene) Snapshot() Snapshot {
	nodes := make([]Node, len(s.items))
	for i, item := range s.items {
		nodes[i] = item.Node()
	}
	return Snapshot{
		Frame:  s.frame,
		Width:  s.config.Width,
		Height: s.config.Height,
		Nodes:  nodes,
	}
}

// Latest returns the last rendered snapshot. Safe from any goroutine.
func (s *Scene) Latest() (Snapshot, bool) {
	p := s.latest.Load()
	if p == nil {
		return Snapshot{}, false
	}
	return *p, true
}

func (s *Scene) emit(event Event, tick Tick) {
	for _, fn := range s.handlers[event] {
		fn(tick)
	}
}
