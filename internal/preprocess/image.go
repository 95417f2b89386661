package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"

	"github.com/Brownie44l1/inference-api/internal/model"
	"github.com/nfnt/resize"
)

const (
	ResizeSize = 256
	CropSize   = 224

	// DefaultMaxPixels bounds both the decoded and the resized image.
	DefaultMaxPixels int64 = 40_000_000
)

var (
	// ErrDecode is returned for bytes that are not a supported image.
	ErrDecode = errors.New("image decode failed")

	Mean = [3]float32{0.485, 0.456, 0.406}
	Std  = [3]float32{0.229, 0.224, 0.225}

	ImageShape = []int64{1, 3, CropSize, CropSize}
)

// DecodeImage decodes JPEG, PNG or GIF bytes. The header is checked first so
// images whose source or resized pixel count exceeds maxPixels are rejected
// before any pixel buffer is allocated. A non-positive maxPixels means
// DefaultMaxPixels.
func DecodeImage(raw []byte, maxPixels int64) (image.Image, string, error) {
	if maxPixels <= 0 {
		maxPixels = DefaultMaxPixels
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	if err := checkPixels(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, "", err
	}

	img, format, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if img.Bounds().Empty() {
		return nil, "", fmt.Errorf("%w: image has no pixels", ErrDecode)
	}
	return img, format, nil
}

func checkPixels(w, h int, maxPixels int64) error {
	if int64(w)*int64(h) > maxPixels {
		return fmt.Errorf("%w: %dx%d image exceeds %d pixels", ErrDecode, w, h, maxPixels)
	}
	rw, rh := resizedDims(w, h)
	if int64(rw)*int64(rh) > maxPixels {
		return fmt.Errorf("%w: %dx%d image resizes to %dx%d, exceeding %d pixels", ErrDecode, w, h, rw, rh, maxPixels)
	}
	return nil
}

// Image decodes raw bytes and converts them to a [1,3,224,224] tensor.
func Image(raw []byte, maxPixels int64) (model.Tensor, error) {
	img, _, err := DecodeImage(raw, maxPixels)
	if err != nil {
		return model.Tensor{}, err
	}
	return ImageTensor(img), nil
}

// ImageTensor resizes img so its shorter edge is 256, center-crops 224x224,
// scales pixels to [0,1] and normalizes each channel with Mean and Std. The
// result is laid out channel-first with a leading batch dimension.
func ImageTensor(img image.Image) model.Tensor {
	b := img.Bounds()
	w, h := resizedDims(b.Dx(), b.Dy())
	if w != b.Dx() || h != b.Dy() {
		img = resize.Resize(uint(w), uint(h), img, resize.Bilinear)
		b = img.Bounds()
	}

	left := b.Min.X + cropOffset(w, CropSize)
	top := b.Min.Y + cropOffset(h, CropSize)

	plane := CropSize * CropSize
	data := make([]float32, 3*plane)
	for y := 0; y < CropSize; y++ {
		for x := 0; x < CropSize; x++ {
			c := color.NRGBAModel.Convert(img.At(left+x, top+y)).(color.NRGBA)
			i := y*CropSize + x
			data[i] = normalize(c.R, 0)
			data[plane+i] = normalize(c.G, 1)
			data[2*plane+i] = normalize(c.B, 2)
		}
	}

	return model.Tensor{
		Shape: append([]int64(nil), ImageShape...),
		Data:  data,
	}
}

// resizedDims scales (w, h) so the shorter edge equals ResizeSize. The longer
// edge is truncated, not rounded.
func resizedDims(w, h int) (int, int) {
	if w <= h {
		return ResizeSize, int(int64(ResizeSize) * int64(h) / int64(w))
	}
	return int(int64(ResizeSize) * int64(w) / int64(h)), ResizeSize
}

// cropOffset centers a crop of size within length, rounding half to even.
func cropOffset(length, size int) int {
	return int(math.RoundToEven(float64(length-size) / 2))
}

func normalize(v uint8, channel int) float32 {
	return (float32(v)/255 - Mean[channel]) / Std[channel]
}
