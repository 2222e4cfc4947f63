// Package presenter turns detection results into emoji glyphs on a scene.
//
// Faces are tracked by position in the result list only: slot i always
// shows detection i. Two faces that swap order between frames swap glyphs.
package presenter

import (
	"math"

	"github.com/teslashibe/facemoji/pkg/debug"
	"github.com/teslashibe/facemoji/pkg/detection"
	"github.com/teslashibe/facemoji/pkg/expression"
	"github.com/teslashibe/facemoji/pkg/scene"
)

// TrackingSlot is the glyph bound to one detection index.
type TrackingSlot struct {
	Index      int
	Glyph      *scene.Text
	Expression string

	// Heading is the raw mouth-to-nose angle; -π/2 for an upright face.
	Heading float64
}

// Presenter owns the slot pool. It is not safe for concurrent use;
// call Present from the scene loop.
type Presenter struct {
	scene *scene.Scene
	slots []*TrackingSlot
}

// New creates a presenter drawing on s.
func New(s *scene.Scene) *Presenter {
	return &Presenter{scene: s}
}

// Present updates one glyph per result and hides the rest.
// A nil or empty slice hides every glyph.
func (p *Presenter) Present(results []detection.Result) {
	for i := range results {
		slot := p.slot(i)
		slot.Glyph.Show()
		p.update(slot, &results[i])
	}

	for _, slot := range p.slots[min(len(results), len(p.slots)):] {
		slot.Glyph.Hide()
	}
}

// slot returns slot i, creating it and its glyph on first use.
func (p *Presenter) slot(i int) *TrackingSlot {
	for len(p.slots) <= i {
		glyph := scene.NewText(scene.Vec{}, "", scene.AlignCenter)
		p.scene.Add(glyph)
		p.slots = append(p.slots, &TrackingSlot{Index: len(p.slots), Glyph: glyph})
		debug.Log("🙂 Created glyph for slot %d\n", len(p.slots)-1)
	}
	return p.slots[i]
}

func (p *Presenter) update(slot *TrackingSlot, r *detection.Result) {
	name, _ := expression.Best(r.Expressions)
	text, ok := expression.Emoji(name)
	if !ok {
		debug.FrameLog("❓ Slot %d: no emoji for expression %q\n", slot.Index, name)
	}
	slot.Expression = name

	g := slot.Glyph
	g.Text = text
	g.FontSize = math.Max(r.Box.Width, r.Box.Height)
	g.Origin = scene.Vec{X: 0, Y: -g.FontSize / 2}

	nose := r.Landmarks[detection.NoseAnchor]
	g.Position = scene.Vec{X: nose.X, Y: nose.Y}
	// Glyphs are drawn upright at rotation 0, so turn by the heading's offset from straight up
	slot.Heading = r.Landmarks.Tilt()
	g.Rotation = slot.Heading + math.Pi/2
}

// Slots returns the slot pool, including hidden slots.
func (p *Presenter) Slots() []*TrackingSlot {
	return p.slots
}

// Visible returns how many glyphs are currently shown.
func (p *Presenter) Visible() int {
	n := 0
	for _, slot := range p.slots {
		if slot.Glyph.Visible() {
			n++
		}
	}
	return n
}
