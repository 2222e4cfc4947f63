package detection

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBox_CenterAndArea(t *testing.T) {
	tests := []struct {
		name       string
		box        Box
		wantCenter Point
		wantArea   float64
	}{
		{"origin box", Box{X: 0, Y: 0, Width: 100, Height: 50}, Point{50, 25}, 5000},
		{"offset box", Box{X: 200, Y: 100, Width: 40, Height: 60}, Point{220, 130}, 2400},
		{"empty box", Box{X: 10, Y: 10}, Point{10, 10}, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.wantCenter, tc.box.Center())
			assert.InDelta(t, tc.wantArea, tc.box.Area(), 1e-9)
		})
	}
}

func TestPoint_Angle(t *testing.T) {
	tests := []struct {
		name string
		p    Point
		want float64
	}{
		{"right", Point{1, 0}, 0},
		{"down", Point{0, 1}, math.Pi / 2},
		{"up", Point{0, -20}, -math.Pi / 2},
		{"left", Point{-1, 0}, math.Pi},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.want, tc.p.Angle(), 1e-9)
		})
	}
}

func TestLandmarks_Tilt(t *testing.T) {
	var l Landmarks
	l[NoseAnchor] = Point{100, 100}
	l[MouthAnchor] = Point{100, 120}

	// Nose straight above the mouth: pointing up.
	assert.InDelta(t, -math.Pi/2, l.Tilt(), 1e-9)

	// Head tilted so the nose sits up and to the right of the mouth.
	l[NoseAnchor] = Point{120, 100}
	assert.InDelta(t, -math.Pi/4, l.Tilt(), 1e-9)
}

func TestLandmarks_Groups(t *testing.T) {
	var l Landmarks
	for i := range l {
		l[i] = Point{X: float64(i)}
	}

	assert.Len(t, l.Jaw(), 17)
	assert.Len(t, l.Nose(), 9)
	assert.Len(t, l.Mouth(), 20)
	assert.Equal(t, float64(NoseAnchor), l.Nose()[1].X)
	assert.Equal(t, float64(MouthAnchor), l.Mouth()[3].X)
}

func TestConfig_Filter(t *testing.T) {
	results := []Result{
		{Score: 0.9},
		{Score: 0.05},
		{Score: 0.3},
		{Score: 0.5},
	}

	t.Run("threshold only", func(t *testing.T) {
		got := Config{ScoreThreshold: 0.1}.Filter(results)
		assert.Len(t, got, 3)
		assert.Equal(t, 0.9, got[0].Score)
		assert.Equal(t, 0.3, got[1].Score)
	})

	t.Run("max faces keeps detector order", func(t *testing.T) {
		got := Config{ScoreThreshold: 0.1, MaxFaces: 2}.Filter(results)
		assert.Len(t, got, 2)
		assert.Equal(t, 0.3, got[1].Score)
	})

	t.Run("nil input", func(t *testing.T) {
		assert.Empty(t, DefaultConfig().Filter(nil))
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.1, cfg.ScoreThreshold)
	assert.Zero(t, cfg.MaxFaces)
}
