// Package screen computes the deterministic tiling of a captured screenshot
// into overlapping square tiles and maps normalized grounding-box coordinates
// back to absolute screen coordinates.
package screen

import (
	"fmt"
	"image"
	"math"
)

// TileSize is the side length every tile is resampled to before it is sent
// to the model.
const TileSize = 768

// NormalizedMax is the upper bound of the model's box coordinate space.
const NormalizedMax = 1000

// Direction indicates the axis along which tile starting points advance.
type Direction string

const (
	// DirectionVertical means the image is wider than tall: square tiles
	// step along the x axis.
	DirectionVertical Direction = "vertical"
	// DirectionHorizontal means the image is at least as tall as wide:
	// tiles step along the y axis.
	DirectionHorizontal Direction = "horizontal"
)

// Box is a normalized bounding box [ymin, xmin, ymax, xmax] with each
// coordinate in [0, NormalizedMax].
type Box [4]int

func (b Box) YMin() int { return b[0] }
func (b Box) XMin() int { return b[1] }
func (b Box) YMax() int { return b[2] }
func (b Box) XMax() int { return b[3] }

// Geometry describes the tiling of one screenshot. It is constructed fresh
// for every captured frame and never shared across turns.
type Geometry struct {
	Width     int
	Height    int
	Side      int
	Direction Direction
	Starts    []image.Point
}

// NewGeometry computes the tiling for an image of the given resolution.
// The tile side is min(w, h); starting points begin at the origin and step
// by round(side*0.5) along the long axis, with one extra start at
// (long_axis - side) when that lies strictly past the last stepped start.
func NewGeometry(width, height int) (*Geometry, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid screenshot resolution %dx%d", width, height)
	}

	side := width
	if height < side {
		side = height
	}
	direction := DirectionHorizontal
	if width > height {
		direction = DirectionVertical
	}

	step := int(math.Round(float64(side) * 0.5))
	starts := []image.Point{{X: 0, Y: 0}}

	if direction == DirectionVertical {
		for x := step; x+side <= width; x += step {
			starts = append(starts, image.Point{X: x, Y: 0})
		}
		if final := width - side; final > starts[len(starts)-1].X {
			starts = append(starts, image.Point{X: final, Y: 0})
		}
	} else {
		for y := step; y+side <= height; y += step {
			starts = append(starts, image.Point{X: 0, Y: y})
		}
		if final := height - side; final > starts[len(starts)-1].Y {
			starts = append(starts, image.Point{X: 0, Y: final})
		}
	}

	return &Geometry{
		Width:     width,
		Height:    height,
		Side:      side,
		Direction: direction,
		Starts:    starts,
	}, nil
}

// NumTiles returns the tile count, always >= 1.
func (g *Geometry) NumTiles() int { return len(g.Starts) }

// TileRect returns the source-image rectangle of tile i.
func (g *Geometry) TileRect(i int) (image.Rectangle, error) {
	if i < 0 || i >= len(g.Starts) {
		return image.Rectangle{}, fmt.Errorf("tile index %d out of range [0, %d)", i, len(g.Starts))
	}
	start := g.Starts[i]
	return image.Rect(start.X, start.Y, start.X+g.Side, start.Y+g.Side), nil
}

// DenormPoint maps a normalized point (cx, cy) inside tile i to an absolute
// screen coordinate: (x0 + round(cx*side/1000), y0 + round(cy*side/1000)).
func (g *Geometry) DenormPoint(i int, cx, cy float64) (image.Point, error) {
	if i < 0 || i >= len(g.Starts) {
		return image.Point{}, fmt.Errorf("tile index %d out of range [0, %d)", i, len(g.Starts))
	}
	start := g.Starts[i]
	return image.Point{
		X: start.X + int(math.Round(cx*float64(g.Side)/NormalizedMax)),
		Y: start.Y + int(math.Round(cy*float64(g.Side)/NormalizedMax)),
	}, nil
}

// DenormRect maps a normalized box inside tile i to an absolute screen
// rectangle.
func (g *Geometry) DenormRect(i int, box Box) (image.Rectangle, error) {
	if i < 0 || i >= len(g.Starts) {
		return image.Rectangle{}, fmt.Errorf("tile index %d out of range [0, %d)", i, len(g.Starts))
	}
	start := g.Starts[i]
	scale := func(v int) int {
		return int(math.Round(float64(v) * float64(g.Side) / NormalizedMax))
	}
	return image.Rect(
		start.X+scale(box.XMin()),
		start.Y+scale(box.YMin()),
		start.X+scale(box.XMax()),
		start.Y+scale(box.YMax()),
	), nil
}

// ToScreenCoord maps a normalized box inside tile i to the integer-floor of
// its de-normalized center.
func (g *Geometry) ToScreenCoord(i int, box Box) (image.Point, error) {
	if i < 0 || i >= len(g.Starts) {
		return image.Point{}, fmt.Errorf("tile index %d out of range [0, %d)", i, len(g.Starts))
	}
	start := g.Starts[i]
	cx := float64(box.XMin()+box.XMax()) / 2
	cy := float64(box.YMin()+box.YMax()) / 2
	return image.Point{
		X: start.X + int(math.Floor(cx*float64(g.Side)/NormalizedMax)),
		Y: start.Y + int(math.Floor(cy*float64(g.Side)/NormalizedMax)),
	}, nil
}
