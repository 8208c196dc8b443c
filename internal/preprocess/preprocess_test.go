package preprocess

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/Brownie44l1/phonedetect/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func writePNG(t *testing.T, path string, img image.Image) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestLoadImage(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	path := filepath.Join(dir, "red.png")
	writePNG(t, path, solidImage(8, 6, color.RGBA{R: 255, A: 255}))

	img, format, err := LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 6, img.Bounds().Dy())
}

func TestLoadImageErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	_, _, err := LoadImage(filepath.Join(dir, "missing.jpg"))
	assert.Error(t, err)

	corrupt := filepath.Join(dir, "corrupt.jpg")
	require.NoError(t, os.WriteFile(corrupt, []byte("definitely not a jpeg"), 0o644))
	_, _, err = LoadImage(corrupt)
	assert.ErrorContains(t, err, "failed to decode")
}

func TestToTensorNCHW(t *testing.T) {
	t.Parallel()

	spec := model.Metadata{ImageSize: 4}.InputSpec()
	data := ToTensor(solidImage(10, 7, color.RGBA{R: 255, A: 255}), spec)

	plane := 4 * 4
	require.Len(t, data, 3*plane)
	for i := 0; i < plane; i++ {
		assert.InDelta(t, 1.0, data[i], 1e-2, "red plane")
		assert.InDelta(t, -1.0, data[plane+i], 1e-2, "green plane")
		assert.InDelta(t, -1.0, data[2*plane+i], 1e-2, "blue plane")
	}
}

func TestToTensorNHWC(t *testing.T) {
	t.Parallel()

	spec := model.InputSpec{
		ImageSize:     2,
		Layout:        model.LayoutNHWC,
		Mean:          [3]float32{0, 0, 0},
		Std:           [3]float32{1, 1, 1},
		Interpolation: "nearest",
	}
	data := ToTensor(solidImage(5, 5, color.RGBA{B: 255, A: 255}), spec)

	require.Len(t, data, 2*2*3)
	for px := 0; px < 4; px++ {
		assert.InDelta(t, 0.0, data[px*3], 1e-3)
		assert.InDelta(t, 0.0, data[px*3+1], 1e-3)
		assert.InDelta(t, 1.0, data[px*3+2], 1e-3)
	}
}

func TestToTensorOffsetBounds(t *testing.T) {
	t.Parallel()

	// A sub-image keeps its parent's coordinates.
	parent := solidImage(20, 20, color.RGBA{G: 255, A: 255})
	sub := parent.SubImage(image.Rect(5, 5, 15, 15))

	spec := model.Metadata{ImageSize: 3}.InputSpec()
	data := ToTensor(sub, spec)
	require.Len(t, data, 27)
	assert.InDelta(t, 1.0, data[9], 1e-2)
}

func TestInterpolation(t *testing.T) {
	t.Parallel()

	assert.NotNil(t, Interpolation("Lanczos3"))
	assert.NotNil(t, Interpolation("unknown"))
}

func TestToTensorIgnoresAlpha(t *testing.T) {
	t.Parallel()

	// Fully transparent white keeps its stored colour.
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 255, G: 255, B: 255, A: 0})
		}
	}

	data := ToTensor(img, model.Metadata{ImageSize: 2}.InputSpec())
	require.Len(t, data, 12)
	for i, v := range data {
		assert.InDelta(t, 1.0, v, 1e-2, "value %d", i)
	}
}

func TestFlatten(t *testing.T) {
	t.Parallel()

	opaque := solidImage(3, 3, color.RGBA{R: 10, A: 255})
	assert.Same(t, opaque, Flatten(opaque))

	img := image.NewNRGBA(image.Rect(2, 2, 4, 4))
	img.SetNRGBA(2, 2, color.NRGBA{R: 200, G: 100, B: 50, A: 128})
	flat := Flatten(img)

	assert.Equal(t, image.Rect(0, 0, 2, 2), flat.Bounds())
	r, g, b, a := flat.At(0, 0).RGBA()
	assert.Equal(t, []uint32{200, 100, 50, 255}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})
}
