package detection

// NumLandmarks is the size of the iBUG 68-point face markup.
const NumLandmarks = 68

// Landmark index ranges in the 68-point scheme.
const (
	JawStart      = 0
	EyebrowsStart = 17
	NoseStart     = 27
	EyesStart     = 36
	MouthStart    = 48
)

// Anchor landmarks used to place the emoji.
const (
	// NoseAnchor is the second nose point (upper bridge, between the eyes).
	NoseAnchor = NoseStart + 1
	// MouthAnchor is the fourth mouth point (center of the upper lip contour).
	MouthAnchor = MouthStart + 3
)

// Landmarks holds the 68 points of one face.
type Landmarks [NumLandmarks]Point

// Nose returns points 27-35.
func (l *Landmarks) Nose() []Point {
	return l[NoseStart:EyesStart]
}

// Mouth returns points 48-67.
func (l *Landmarks) Mouth() []Point {
	return l[MouthStart:]
}

// Jaw returns points 0-16.
func (l *Landmarks) Jaw() []Point {
	return l[JawStart:EyebrowsStart]
}

// Tilt returns the angle of the vector from the mouth anchor to the nose anchor.
// An upright face gives -π/2.
func (l *Landmarks) Tilt() float64 {
	return l[NoseAnchor].Sub(l[MouthAnchor]).Angle()
}
