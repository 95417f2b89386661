package preprocess

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func solid(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// at returns the tensor value for channel c at crop coordinates (x, y).
func at(data []float32, c, x, y int) float32 {
	return data[c*CropSize*CropSize+y*CropSize+x]
}

func TestImageShapeForVariousSizes(t *testing.T) {
	sizes := [][2]int{{500, 375}, {375, 500}, {224, 224}, {256, 256}, {1024, 300}, {64, 48}}
	for _, s := range sizes {
		raw := encodePNG(t, solid(s[0], s[1], color.NRGBA{10, 20, 30, 255}))

		tensor, err := Image(raw, 0)
		require.NoError(t, err, s)
		assert.Equal(t, []int64{1, 3, 224, 224}, tensor.Shape, s)
		assert.Len(t, tensor.Data, 3*224*224, s)
	}
}

func TestImageNormalizesSolidColour(t *testing.T) {
	raw := encodePNG(t, solid(400, 300, color.NRGBA{255, 128, 0, 255}))

	tensor, err := Image(raw, 0)
	require.NoError(t, err)

	want := [3]float32{
		(1.0 - 0.485) / 0.229,
		(128.0/255 - 0.456) / 0.224,
		(0.0 - 0.406) / 0.225,
	}
	for c := 0; c < 3; c++ {
		for _, p := range [][2]int{{0, 0}, {111, 111}, {223, 223}, {0, 223}} {
			assert.InDelta(t, want[c], at(tensor.Data, c, p[0], p[1]), 0.03, "channel %d at %v", c, p)
		}
	}
}

func TestImageCenterCropWithoutResize(t *testing.T) {
	// Shorter edge already 256: only the crop applies. The crop top is
	// round(77/2) = 38 with half-to-even rounding; left is 16.
	img := image.NewNRGBA(image.Rect(0, 0, 256, 301))
	for y := 0; y < 301; y++ {
		for x := 0; x < 256; x++ {
			img.Set(x, y, color.NRGBA{uint8(x), uint8(y % 256), 0, 255})
		}
	}

	tensor := ImageTensor(img)

	red := func(x, y int) float32 { return at(tensor.Data, 0, x, y) }
	green := func(x, y int) float32 { return at(tensor.Data, 1, x, y) }
	assert.InDelta(t, normalize(16, 0), red(0, 0), 1e-6)
	assert.InDelta(t, normalize(38, 1), green(0, 0), 1e-6)
	assert.InDelta(t, normalize(239, 0), red(223, 223), 1e-6)
	assert.InDelta(t, normalize(uint8((38+223)%256), 1), green(223, 223), 1e-6)
}

func TestImageDropsAlpha(t *testing.T) {
	raw := encodePNG(t, solid(256, 256, color.NRGBA{200, 100, 50, 128}))

	tensor, err := Image(raw, 0)
	require.NoError(t, err)
	assert.InDelta(t, normalize(200, 0), at(tensor.Data, 0, 5, 5), 0.02)
	assert.InDelta(t, normalize(100, 1), at(tensor.Data, 1, 5, 5), 0.02)
	assert.InDelta(t, normalize(50, 2), at(tensor.Data, 2, 5, 5), 0.02)
}

func TestImageGrayscaleExpandsToThreeChannels(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 256, 256))
	for i := range gray.Pix {
		gray.Pix[i] = 128
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, gray, &jpeg.Options{Quality: 100}))

	tensor, err := Image(buf.Bytes(), 0)
	require.NoError(t, err)
	for c := 0; c < 3; c++ {
		assert.InDelta(t, normalize(128, c), at(tensor.Data, c, 100, 100), 0.03)
	}
}

func TestImageIsDeterministic(t *testing.T) {
	raw := encodePNG(t, solid(640, 480, color.NRGBA{1, 2, 3, 255}))

	a, err := Image(raw, 0)
	require.NoError(t, err)
	b, err := Image(raw, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestImageDecodeError(t *testing.T) {
	_, err := Image([]byte("definitely not an image"), 0)
	assert.ErrorIs(t, err, ErrDecode)

	_, err = Image(nil, 0)
	assert.ErrorIs(t, err, ErrDecode)
}

func TestResizedDims(t *testing.T) {
	tests := []struct {
		w, h, wantW, wantH int
	}{
		{500, 375, 341, 256},
		{375, 500, 256, 341},
		{256, 256, 256, 256},
		{100, 100, 256, 256},
		{1000, 257, 996, 256},
	}
	for _, tt := range tests {
		w, h := resizedDims(tt.w, tt.h)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}

func TestCropOffset(t *testing.T) {
	assert.Equal(t, 16, cropOffset(256, 224))
	assert.Equal(t, 38, cropOffset(301, 224))
	assert.Equal(t, 40, cropOffset(305, 224))
	assert.Equal(t, 0, cropOffset(224, 224))
}

func TestTabular(t *testing.T) {
	features := []float64{0.00632, 18, 2.31, 0, 0.538, 6.575, 65.2, 4.09, 1, 296, 15.3, 396.9, 4.98}

	tensor, err := Tabular(features)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 13}, tensor.Shape)
	require.Len(t, tensor.Data, 13)
	assert.InDelta(t, 396.9, tensor.Data[11], 1e-4)
}

func TestTabularShapeError(t *testing.T) {
	for _, n := range []int{0, 1, 12, 14, 26} {
		_, err := Tabular(make([]float64, n))
		assert.ErrorIs(t, err, ErrShape, "len %d", n)
	}
}

func TestImageRejectsExtremeAspectRatio(t *testing.T) {
	// 1x3000 is a tiny file but would resize to 256x768000.
	raw := encodePNG(t, image.NewGray(image.Rect(0, 0, 1, 3000)))

	_, err := Image(raw, 0)
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorContains(t, err, "256x768000")
}

func TestImageRejectsTooManySourcePixels(t *testing.T) {
	raw := encodePNG(t, image.NewGray(image.Rect(0, 0, 300, 300)))

	_, err := Image(raw, 80_000)
	assert.ErrorIs(t, err, ErrDecode)

	tensor, err := Image(raw, 90_000)
	require.NoError(t, err)
	assert.Equal(t, ImageShape, tensor.Shape)
}

func TestImageRejectsTooManyResizedPixels(t *testing.T) {
	// 200x200 fits a 50000 pixel budget but upsamples to 256x256.
	raw := encodePNG(t, image.NewGray(image.Rect(0, 0, 200, 200)))

	_, err := Image(raw, 50_000)
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorContains(t, err, "256x256")
}

func TestCheckPixels(t *testing.T) {
	assert.NoError(t, checkPixels(640, 480, DefaultMaxPixels))
	assert.NoError(t, checkPixels(4000, 3000, DefaultMaxPixels))
	assert.ErrorIs(t, checkPixels(1, 30000, DefaultMaxPixels), ErrDecode)
	assert.ErrorIs(t, checkPixels(8000, 8000, DefaultMaxPixels), ErrDecode)
}
