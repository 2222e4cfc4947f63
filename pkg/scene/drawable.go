// Package scene is a small 2D scene graph: drawables with a position,
// origin and rotation, a refresh loop with a draw event, and value
// snapshots handed to a renderer after every tick.
//
// Drawables are not locked. Mutate them only from draw handlers, which
// all run on the loop goroutine.
package scene

import "github.com/google/uuid"

// Vec is a 2D vector in display pixels.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Kind tells renderers how to paint a node.
type Kind string

const (
	KindText Kind = "text"
	KindArc  Kind = "arc"
)

// Align is horizontal text alignment around the position.
type Align string

const (
	AlignLeft   Align = "left"
	AlignCenter Align = "center"
	AlignRight  Align = "right"
)

// Drawable is anything the scene can hold.
type Drawable interface {
	ID() string
	Node() Node
}

// Node is the serialisable state of one drawable.
type Node struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"kind"`
	Position Vec     `json:"position"`
	Origin   Vec     `json:"origin"`
	Rotation float64 `json:"rotation"`
	Visible  bool    `json:"visible"`
	Color    string  `json:"color,omitempty"`

	// Text
	Text     string  `json:"text,omitempty"`
	FontSize float64 `json:"font_size,omitempty"`
	Align    Align   `json:"align,omitempty"`

	// Arc
	Radius     float64 `json:"radius,omitempty"`
	StartAngle float64 `json:"start_angle,omitempty"`
	EndAngle   float64 `json:"end_angle,omitempty"`
	LineWidth  float64 `json:"line_width,omitempty"`
}

// Shape holds the transform shared by all drawables.
// Rotation is in radians around Position + Origin.
type Shape struct {
	id       string
	Position Vec
	Origin   Vec
	Rotation float64
	Color    string
	visible  bool
}

func newShape() Shape {
	return Shape{id: uuid.NewString(), visible: true}
}

// ID returns the drawable's unique ID.
func (s *Shape) ID() string { return s.id }

// Show makes the drawable visible.
func (s *Shape) Show() { s.visible = true }

// Hide keeps the drawable in the scene but stops it from painting.
func (s *Shape) Hide() { s.visible = false }

// Visible reports whether the drawable paints.
func (s *Shape) Visible() bool { return s.visible }

func (s *Shape) node(kind Kind) Node {
	return Node{
		ID:       s.id,
		Kind:     kind,
		Position: s.Position,
		Origin:   s.Origin,
		Rotation: s.Rotation,
		Visible:  s.visible,
		Color:    s.Color,
	}
}

// Text is a single line of text, such as an emoji.
type Text struct {
	Shape
	Text     string
	FontSize float64
	Align    Align
}

// NewText creates visible text at pos.
func NewText(pos Vec, text string, align Align) *Text {
	t := &Text{
		Shape:    newShape(),
		Text:     text,
		FontSize: 10,
		Align:    align,
	}
	t.Position = pos
	return t
}

// Node implements Drawable.
func (t *Text) Node() Node {
	n := t.node(KindText)
	n.Text = t.Text
	n.FontSize = t.FontSize
	n.Align = t.Align
	return n
}

// Arc is a circle segment stroked from StartAngle to EndAngle.
type Arc struct {
	Shape
	Radius     float64
	StartAngle float64
	EndAngle   float64
	LineWidth  float64
}

// NewArc creates a visible arc centered at pos.
func NewArc(pos Vec, radius, start, end float64) *Arc {
	a := &Arc{
		Shape:      newShape(),
		Radius:     radius,
		StartAngle: start,
		EndAngle:   end,
		LineWidth:  4,
	}
	a.Position = pos
	return a
}

// Node implements Drawable.
func (a *Arc) Node() Node {
	n := a.node(KindArc)
	n.Radius = a.Radius
	n.StartAngle = a.StartAngle
	n.EndAngle = a.EndAngle
	n.LineWidth = a.LineWidth
	return n
}
