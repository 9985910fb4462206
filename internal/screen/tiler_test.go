package screen

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testImage builds a horizontal gradient so resampling artifacts are visible
// if cropping is off by a region.
func testImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / w), G: uint8(y * 255 / h), B: 64, A: 255})
		}
	}
	return img
}

func TestTilerTiles(t *testing.T) {
	t.Parallel()
	src := testImage(1920, 1080)
	geo, err := NewGeometry(1920, 1080)
	require.NoError(t, err)
	tiler, err := NewTiler(src, geo)
	require.NoError(t, err)

	tiles, err := tiler.Tiles()
	require.NoError(t, err)
	require.Len(t, tiles, 3)

	for i, data := range tiles {
		img, err := DecodePNG(data)
		require.NoError(t, err, "tile %d", i)
		assert.Equal(t, TileSize, img.Bounds().Dx())
		assert.Equal(t, TileSize, img.Bounds().Dy())
	}
}

func TestTilerSingleTile(t *testing.T) {
	t.Parallel()
	src := testImage(500, 500)
	geo, err := NewGeometry(500, 500)
	require.NoError(t, err)
	tiler, err := NewTiler(src, geo)
	require.NoError(t, err)

	tiles, err := tiler.Tiles()
	require.NoError(t, err)
	require.Len(t, tiles, 1)
}

func TestTilerResolutionMismatch(t *testing.T) {
	t.Parallel()
	geo, err := NewGeometry(1920, 1080)
	require.NoError(t, err)
	_, err = NewTiler(testImage(1280, 720), geo)
	assert.Error(t, err)
}

func TestHighlightBoxPreservesResolution(t *testing.T) {
	t.Parallel()
	src := testImage(1920, 1080)
	geo, err := NewGeometry(1920, 1080)
	require.NoError(t, err)
	tiler, err := NewTiler(src, geo)
	require.NoError(t, err)

	out, err := tiler.HighlightBox(0, Box{100, 100, 200, 200}, nil, 0)
	require.NoError(t, err)
	assert.Equal(t, 1920, out.Bounds().Dx())
	assert.Equal(t, 1080, out.Bounds().Dy())

	// Outside the highlighted rectangle the image is darkened; inside it the
	// original pixel survives untouched.
	inside := out.At(115, 115)
	assert.Equal(t, src.At(115, 115), inside)
	or, og, ob, _ := out.At(1900, 1000).RGBA()
	sr, sg, sb, _ := src.At(1900, 1000).RGBA()
	assert.Less(t, or, sr)
	assert.Less(t, og, sg)
	assert.Less(t, ob, sb)

	// The output still encodes as PNG.
	data, err := EncodePNG(out)
	require.NoError(t, err)
	decoded, err := DecodePNG(data)
	require.NoError(t, err)
	assert.Equal(t, out.Bounds(), decoded.Bounds())
}

func TestHighlightBoxBadTile(t *testing.T) {
	t.Parallel()
	src := testImage(800, 600)
	geo, err := NewGeometry(800, 600)
	require.NoError(t, err)
	tiler, err := NewTiler(src, geo)
	require.NoError(t, err)

	_, err = tiler.HighlightBox(9, Box{0, 0, 10, 10}, nil, 0)
	assert.Error(t, err)
}

func TestHighlightArrow(t *testing.T) {
	t.Parallel()
	src := testImage(1920, 1080)
	geo, err := NewGeometry(1920, 1080)
	require.NoError(t, err)
	tiler, err := NewTiler(src, geo)
	require.NoError(t, err)

	out, err := tiler.HighlightArrow(
		ArrowEnd{Tile: 0, Box: Box{100, 100, 200, 200}},
		ArrowEnd{Tile: 2, Box: Box{500, 500, 700, 700}},
		nil, 0,
	)
	require.NoError(t, err)
	assert.Equal(t, src.Bounds().Dx(), out.Bounds().Dx())
	assert.Equal(t, src.Bounds().Dy(), out.Bounds().Dy())

	// Both exposed rectangles keep their original pixels (sampled away from
	// the connecting line and the borders).
	assert.Equal(t, src.At(115, 115), out.At(115, 115))
	endRect, err := geo.DenormRect(2, Box{500, 500, 700, 700})
	require.NoError(t, err)
	probe := image.Point{X: endRect.Min.X + 5, Y: endRect.Max.Y - 10}
	assert.Equal(t, src.At(probe.X, probe.Y), out.At(probe.X, probe.Y))
}
