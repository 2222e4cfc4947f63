package detection

// Resize maps a result from its frame coordinates into a display of the given size.
// Expression scores are shared, not copied.
func Resize(r Result, to Size) Result {
	if r.Frame.Width <= 0 || r.Frame.Height <= 0 || r.Frame == to {
		r.Frame = to
		return r
	}

	sx := float64(to.Width) / float64(r.Frame.Width)
	sy := float64(to.Height) / float64(r.Frame.Height)

	out := r
	out.Box = Box{
		X:      r.Box.X * sx,
		Y:      r.Box.Y * sy,
		Width:  r.Box.Width * sx,
		Height: r.Box.Height * sy,
	}
	for i, p := range r.Landmarks {
		out.Landmarks[i] = Point{X: p.X * sx, Y: p.Y * sy}
	}
	out.Frame = to
	return out
}

// ResizeAll resizes every result into a new slice.
func ResizeAll(results []Result, to Size) []Result {
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = Resize(r, to)
	}
	return out
}
