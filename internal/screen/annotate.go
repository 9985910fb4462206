package screen

import (
	"image"
	"image/color"
	"image/draw"
	"math"
)

// Annotation styling defaults. The vignette is black at 50% opacity.
var (
	shade        = color.RGBA{A: 128}
	DefaultColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	DefaultWidth = 3
)

// HighlightBox returns a copy of the screenshot with a vignette outside the
// de-normalized rectangle of (tile, box) and a stroked border around it. The
// output has the same resolution as the input.
func (t *Tiler) HighlightBox(tile int, box Box, stroke color.Color, width int) (image.Image, error) {
	rect, err := t.geo.DenormRect(tile, box)
	if err != nil {
		return nil, err
	}
	out := cloneRGBA(t.src)
	vignette(out, t.src, rect)
	strokeRect(out, rect, stroke, width)
	return out, nil
}

// ArrowEnd names one endpoint of a highlight arrow.
type ArrowEnd struct {
	Tile int
	Box  Box
}

// HighlightArrow returns a copy of the screenshot with the vignette exposing
// both rectangles, stroked borders around each, and a line with an arrowhead
// from the center of the start rectangle to the center of the end rectangle.
func (t *Tiler) HighlightArrow(start, end ArrowEnd, stroke color.Color, width int) (image.Image, error) {
	startRect, err := t.geo.DenormRect(start.Tile, start.Box)
	if err != nil {
		return nil, err
	}
	endRect, err := t.geo.DenormRect(end.Tile, end.Box)
	if err != nil {
		return nil, err
	}

	out := cloneRGBA(t.src)
	vignette(out, t.src, startRect, endRect)
	strokeRect(out, startRect, stroke, width)
	strokeRect(out, endRect, stroke, width)

	from := midpoint(startRect)
	to := midpoint(endRect)
	drawLine(out, from, to, stroke, width)
	drawArrowhead(out, from, to, stroke, width)
	return out, nil
}

func cloneRGBA(src image.Image) *image.RGBA {
	b := src.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), src, b.Min, draw.Src)
	return out
}

// vignette darkens the whole image, then restores the original pixels inside
// the exposed rectangles.
func vignette(out *image.RGBA, src image.Image, exposed ...image.Rectangle) {
	draw.Draw(out, out.Bounds(), image.NewUniform(shade), image.Point{}, draw.Over)
	srcMin := src.Bounds().Min
	for _, rect := range exposed {
		clipped := rect.Intersect(out.Bounds())
		draw.Draw(out, clipped, src, srcMin.Add(clipped.Min), draw.Src)
	}
}

func strokeRect(out *image.RGBA, rect image.Rectangle, c color.Color, width int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if c == nil {
		c = DefaultColor
	}
	edges := []image.Rectangle{
		image.Rect(rect.Min.X-width, rect.Min.Y-width, rect.Max.X+width, rect.Min.Y), // top
		image.Rect(rect.Min.X-width, rect.Max.Y, rect.Max.X+width, rect.Max.Y+width), // bottom
		image.Rect(rect.Min.X-width, rect.Min.Y, rect.Min.X, rect.Max.Y),             // left
		image.Rect(rect.Max.X, rect.Min.Y, rect.Max.X+width, rect.Max.Y),             // right
	}
	for _, e := range edges {
		draw.Draw(out, e.Intersect(out.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func midpoint(r image.Rectangle) image.Point {
	return image.Point{X: (r.Min.X + r.Max.X) / 2, Y: (r.Min.Y + r.Max.Y) / 2}
}

// drawLine rasterizes a straight segment by stamping a width x width square
// at every integer step along the longer axis.
func drawLine(out *image.RGBA, from, to image.Point, c color.Color, width int) {
	if width <= 0 {
		width = DefaultWidth
	}
	if c == nil {
		c = DefaultColor
	}
	dx := float64(to.X - from.X)
	dy := float64(to.Y - from.Y)
	steps := int(math.Max(math.Abs(dx), math.Abs(dy)))
	if steps == 0 {
		steps = 1
	}
	for i := 0; i <= steps; i++ {
		x := from.X + int(math.Round(dx*float64(i)/float64(steps)))
		y := from.Y + int(math.Round(dy*float64(i)/float64(steps)))
		stamp := image.Rect(x-width/2, y-width/2, x+width/2+1, y+width/2+1)
		draw.Draw(out, stamp.Intersect(out.Bounds()), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

// drawArrowhead adds two wings at the destination of a segment.
func drawArrowhead(out *image.RGBA, from, to image.Point, c color.Color, width int) {
	angle := math.Atan2(float64(to.Y-from.Y), float64(to.X-from.X))
	const wingLen = 14.0
	const wingAngle = math.Pi / 6
	for _, a := range []float64{angle + math.Pi - wingAngle, angle + math.Pi + wingAngle} {
		tip := image.Point{
			X: to.X + int(math.Round(wingLen*math.Cos(a))),
			Y: to.Y + int(math.Round(wingLen*math.Sin(a))),
		}
		drawLine(out, to, tip, c, width)
	}
}
