package preprocess

import (
	"image"
	"image/color"
	"strings"

	"github.com/Brownie44l1/phonedetect/internal/model"
	"github.com/nfnt/resize"
)

var interpolations = map[string]resize.InterpolationFunction{
	"nearest":  resize.NearestNeighbor,
	"bilinear": resize.Bilinear,
	"bicubic":  resize.Bicubic,
	"mitchell": resize.MitchellNetravali,
	"lanczos2": resize.Lanczos2,
	"lanczos3": resize.Lanczos3,
}

// Interpolation looks up a resize kernel by name, defaulting to bilinear.
func Interpolation(name string) resize.InterpolationFunction {
	if fn, ok := interpolations[strings.ToLower(name)]; ok {
		return fn
	}
	return resize.Bilinear
}

// Flatten drops the alpha channel and keeps the stored colour, so transparent
// pixels carry their RGB values instead of turning black.
func Flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	bounds := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			px := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			out.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{R: px.R, G: px.G, B: px.B, A: 255})
		}
	}
	return out
}

// ToTensor flattens img to opaque RGB, resizes it to the model's square
// input, scales every channel to [0,1], applies (x - mean) / std and lays the
// result out as a batch of one.
func ToTensor(img image.Image, spec model.InputSpec) []float32 {
	size := uint(spec.ImageSize)
	resized := resize.Resize(size, size, Flatten(img), Interpolation(spec.Interpolation))

	bounds := resized.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	plane := width * height

	const channels = 3
	inputData := make([]float32, channels*plane)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			rgb := [channels]float32{
				float32(r) / 65535.0,
				float32(g) / 65535.0,
				float32(b) / 65535.0,
			}

			pixelIndex := y*width + x
			for c := 0; c < channels; c++ {
				v := (rgb[c] - spec.Mean[c]) / spec.Std[c]
				if spec.Layout == model.LayoutNHWC {
					inputData[pixelIndex*channels+c] = v
				} else {
					inputData[c*plane+pixelIndex] = v
				}
			}
		}
	}

	return inputData
}
