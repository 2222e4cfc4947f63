package scene

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScene_AddRemove(t *testing.T) {
	s := New(DefaultConfig())
	a := NewText(Vec{X: 1, Y: 2}, "a", AlignCenter)
	b := NewArc(Vec{}, 10, 0, 1)

	s.Add(a, b)
	assert.Equal(t, 2, s.Len())
	assert.NotEqual(t, a.ID(), b.ID())

	assert.True(t, s.Remove(a))
	assert.False(t, s.Remove(a))
	assert.Equal(t, 1, s.Len())
}

func TestScene_StepOrder(t *testing.T) {
	s := New(DefaultConfig())
	txt := NewText(Vec{}, "", AlignCenter)
	s.Add(txt)

	s.On(EventDraw, func(tick Tick) {
		txt.Text = "drawn"
	})

	var rendered []Snapshot
	s.SetRenderer(RendererFunc(func(snap Snapshot) {
		rendered = append(rendered, snap)
	}))

	now := time.Now()
	s.Step(now)
	s.Step(now.Add(16 * time.Millisecond))

	require.Len(t, rendered, 2)
	assert.Equal(t, uint64(1), rendered[0].Frame)
	assert.Equal(t, uint64(2), rendered[1].Frame)
	// Draw handlers run before the snapshot is taken
	assert.Equal(t, "drawn", rendered[0].Nodes[0].Text)

	latest, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, uint64(2), latest.Frame)
}

func TestScene_TickDelta(t *testing.T) {
	s := New(DefaultConfig())
	var deltas []time.Duration
	s.On(EventDraw, func(tick Tick) { deltas = append(deltas, tick.Delta) })

	now := time.Now()
	s.Step(now)
	s.Step(now.Add(20 * time.Millisecond))

	assert.Equal(t, []time.Duration{0, 20 * time.Millisecond}, deltas)
}

func TestScene_SnapshotIsCopy(t *testing.T) {
	s := New(DefaultConfig())
	txt := NewText(Vec{X: 5, Y: 5}, "x", AlignCenter)
	s.Add(txt)

	snap := s.Snapshot()
	txt.Position = Vec{X: 99, Y: 99}
	txt.Hide()

	assert.Equal(t, Vec{X: 5, Y: 5}, snap.Nodes[0].Position)
	assert.True(t, snap.Nodes[0].Visible)
	assert.False(t, s.Snapshot().Nodes[0].Visible)
}

func TestScene_LatestBeforeFirstTick(t *testing.T) {
	_, ok := New(DefaultConfig()).Latest()
	assert.False(t, ok)
}

func TestScene_StartLoop(t *testing.T) {
	s := New(Config{Width: 100, Height: 100, FPS: 200})

	var draws atomic.Int32
	var stopped atomic.Bool
	s.On(EventDraw, func(Tick) { draws.Add(1) })
	s.On(EventStop, func(Tick) { stopped.Store(true) })

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	err := s.StartLoop(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Greater(t, draws.Load(), int32(3))
	assert.True(t, stopped.Load())
	assert.False(t, s.Running())
}

func TestNode_JSON(t *testing.T) {
	txt := NewText(Vec{X: 10, Y: 20}, "😀", AlignCenter)
	txt.FontSize = 64
	txt.Origin = Vec{Y: -32}
	txt.Rotation = -1.5

	data, err := json.Marshal(txt.Node())
	require.NoError(t, err)

	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "text", m["kind"])
	assert.Equal(t, "😀", m["text"])
	assert.EqualValues(t, 64, m["font_size"])
	assert.NotContains(t, m, "radius")
}

func TestDefaultConfig(t *testing.T) {
	s := New(Config{Width: 960, Height: 720})
	w, h := s.Size()
	assert.Equal(t, 960, w)
	assert.Equal(t, 720, h)
	assert.Equal(t, 60, s.config.FPS)
}
