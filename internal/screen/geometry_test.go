package screen

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGeometry(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		w, h      int
		direction Direction
		side      int
		starts    []image.Point
	}{
		{
			name: "wide 1920x1080", w: 1920, h: 1080,
			direction: DirectionVertical, side: 1080,
			starts: []image.Point{{0, 0}, {540, 0}, {840, 0}},
		},
		{
			name: "tall 1080x1920", w: 1080, h: 1920,
			direction: DirectionHorizontal, side: 1080,
			starts: []image.Point{{0, 0}, {0, 540}, {0, 840}},
		},
		{
			name: "square 768x768", w: 768, h: 768,
			direction: DirectionHorizontal, side: 768,
			starts: []image.Point{{0, 0}},
		},
		{
			// The final start lands exactly on a step boundary, so no
			// capping start is added.
			name: "wide 2304x768", w: 2304, h: 768,
			direction: DirectionVertical, side: 768,
			starts: []image.Point{{0, 0}, {384, 0}, {768, 0}, {1152, 0}, {1536, 0}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			geo, err := NewGeometry(tc.w, tc.h)
			require.NoError(t, err)
			assert.Equal(t, tc.direction, geo.Direction)
			assert.Equal(t, tc.side, geo.Side)
			assert.Equal(t, tc.starts, geo.Starts)
		})
	}

	t.Run("invalid resolution", func(t *testing.T) {
		t.Parallel()
		_, err := NewGeometry(0, 1080)
		assert.Error(t, err)
	})
}

func TestGeometryStartInvariants(t *testing.T) {
	t.Parallel()

	// Every wide geometry: first start at origin, each step is
	// round(side*0.5), every tile fits, and the last start is flush with the
	// right edge whenever a capping start was added.
	for _, w := range []int{1280, 1920, 2560, 3440, 5120} {
		geo, err := NewGeometry(w, 720)
		require.NoError(t, err)
		require.NotEmpty(t, geo.Starts)
		assert.Equal(t, image.Point{0, 0}, geo.Starts[0])
		for _, p := range geo.Starts {
			assert.LessOrEqual(t, p.X+geo.Side, w, "width %d", w)
			assert.Zero(t, p.Y)
		}
		last := geo.Starts[len(geo.Starts)-1]
		assert.Equal(t, w, last.X+geo.Side, "last tile must reach the edge for width %d", w)
	}
}

func TestToScreenCoord(t *testing.T) {
	t.Parallel()
	geo, err := NewGeometry(768, 768)
	require.NoError(t, err)

	t.Run("floors the box center", func(t *testing.T) {
		t.Parallel()
		// Box [100,100,200,200] on a 768 tile: center 150 maps to
		// floor(150*768/1000) = 115.
		pt, err := geo.ToScreenCoord(0, Box{100, 100, 200, 200})
		require.NoError(t, err)
		assert.Equal(t, image.Point{115, 115}, pt)
	})

	t.Run("center matches floored rect midpoint", func(t *testing.T) {
		t.Parallel()
		boxes := []Box{{0, 0, 1000, 1000}, {10, 10, 5 + 10, 20}, {333, 111, 777, 999}, {1, 3, 998, 997}}
		for _, b := range boxes {
			pt, err := geo.ToScreenCoord(0, b)
			require.NoError(t, err)
			rect, err := geo.DenormRect(0, b)
			require.NoError(t, err)
			// The de-normalized center never drifts more than a pixel from
			// the rendered rectangle's midpoint (rounding vs flooring).
			mid := midpoint(rect)
			assert.InDelta(t, mid.X, pt.X, 1)
			assert.InDelta(t, mid.Y, pt.Y, 1)
		}
	})

	t.Run("offset tile", func(t *testing.T) {
		t.Parallel()
		wide, err := NewGeometry(1920, 1080)
		require.NoError(t, err)
		pt, err := wide.ToScreenCoord(1, Box{0, 0, 1000, 1000})
		require.NoError(t, err)
		assert.Equal(t, image.Point{540 + 540, 540}, pt)
	})

	t.Run("out of range", func(t *testing.T) {
		t.Parallel()
		_, err := geo.ToScreenCoord(5, Box{0, 0, 10, 10})
		assert.Error(t, err)
	})
}

func TestDenormPoint(t *testing.T) {
	t.Parallel()
	geo, err := NewGeometry(1920, 1080)
	require.NoError(t, err)

	pt, err := geo.DenormPoint(0, 500, 500)
	require.NoError(t, err)
	assert.Equal(t, image.Point{540, 540}, pt)

	pt, err = geo.DenormPoint(2, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, image.Point{840, 0}, pt)
}
