package screen

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// Tiler crops a screenshot into the overlapping square tiles described by a
// Geometry and resamples each to TileSize x TileSize. A Tiler is built per
// screenshot and discarded with the turn.
type Tiler struct {
	geo *Geometry
	src image.Image
}

// NewTiler binds a decoded screenshot to its geometry. The image resolution
// must match the geometry exactly.
func NewTiler(src image.Image, geo *Geometry) (*Tiler, error) {
	b := src.Bounds()
	if b.Dx() != geo.Width || b.Dy() != geo.Height {
		return nil, fmt.Errorf("image resolution %dx%d does not match geometry %dx%d",
			b.Dx(), b.Dy(), geo.Width, geo.Height)
	}
	return &Tiler{geo: geo, src: src}, nil
}

// Geometry returns the tiling this Tiler was built from.
func (t *Tiler) Geometry() *Geometry { return t.geo }

// Tiles returns the ordered PNG-encoded tiles. The count is always >= 1.
func (t *Tiler) Tiles() ([][]byte, error) {
	tiles := make([][]byte, 0, t.geo.NumTiles())
	for i := 0; i < t.geo.NumTiles(); i++ {
		tile, err := t.Tile(i)
		if err != nil {
			return nil, err
		}
		tiles = append(tiles, tile)
	}
	return tiles, nil
}

// Tile crops, resamples, and PNG-encodes tile i.
func (t *Tiler) Tile(i int) ([]byte, error) {
	rect, err := t.geo.TileRect(i)
	if err != nil {
		return nil, err
	}
	scaled := image.NewRGBA(image.Rect(0, 0, TileSize, TileSize))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), t.src, rect, xdraw.Src, nil)
	return EncodePNG(scaled)
}

// ToScreenCoord maps a normalized box inside tile i to a screen coordinate.
func (t *Tiler) ToScreenCoord(i int, box Box) (image.Point, error) {
	return t.geo.ToScreenCoord(i, box)
}

// EncodePNG serializes an image as PNG.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodePNG parses PNG bytes.
func DecodePNG(data []byte) (image.Image, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode png: %w", err)
	}
	return img, nil
}
