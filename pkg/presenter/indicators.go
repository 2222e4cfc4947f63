package presenter

import (
	"math"

	"github.com/teslashibe/facemoji/pkg/scene"
)

const fullTurn = 2 * math.Pi

// Spinner is the loading indicator: an arc that turns while its sweep grows.
type Spinner struct {
	Arc *scene.Arc

	// Per-tick increments, in radians.
	RotateStep float64
	SweepStep  float64

	finished bool
}

// NewSpinner adds a spinner centered on the scene.
func NewSpinner(s *scene.Scene) *Spinner {
	w, h := s.Size()
	arc := scene.NewArc(scene.Vec{X: float64(w) / 2, Y: float64(h) / 2}, 40, 0, 0)
	arc.Color = "#ffffff"
	s.Add(arc)

	return &Spinner{
		Arc:        arc,
		RotateStep: 0.1,
		SweepStep:  0.05,
	}
}

// Step advances the animation by one tick. It does nothing once finished.
func (sp *Spinner) Step() {
	if sp.finished {
		return
	}
	sp.Arc.Rotation = math.Mod(sp.Arc.Rotation+sp.RotateStep, fullTurn)
	sp.Arc.EndAngle += sp.SweepStep
	if sp.Arc.EndAngle > fullTurn {
		sp.Arc.EndAngle -= fullTurn
	}
}

// Finish hides the spinner for good.
func (sp *Spinner) Finish() {
	sp.finished = true
	sp.Arc.Hide()
}

// Finished reports whether Finish was called.
func (sp *Spinner) Finished() bool {
	return sp.finished
}

// Banner is a centered message shown when the overlay cannot run.
type Banner struct {
	Text *scene.Text
}

// NewBanner adds a hidden banner centered on the scene.
func NewBanner(s *scene.Scene) *Banner {
	w, h := s.Size()
	txt := scene.NewText(scene.Vec{X: float64(w) / 2, Y: float64(h) / 2}, "", scene.AlignCenter)
	txt.FontSize = 28
	txt.Color = "#ff5555"
	txt.Hide()
	s.Add(txt)
	return &Banner{Text: txt}
}

// Show displays msg. The banner stays up until Hide.
func (b *Banner) Show(msg string) {
	b.Text.Text = msg
	b.Text.Show()
}

// Hide removes the message from view.
func (b *Banner) Hide() {
	b.Text.Hide()
}

// Visible reports whether a message is shown.
func (b *Banner) Visible() bool {
	return b.Text.Visible()
}
