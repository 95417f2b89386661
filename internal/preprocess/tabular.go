package preprocess

import (
	"errors"
	"fmt"

	"github.com/Brownie44l1/inference-api/internal/model"
)

const TabularFeatures = 13

var (
	// ErrShape is returned when a feature vector has the wrong length.
	ErrShape = errors.New("input shape mismatch")

	TabularShape = []int64{1, TabularFeatures}
)

// Tabular reshapes a feature vector into a [1,13] tensor.
func Tabular(features []float64) (model.Tensor, error) {
	if len(features) != TabularFeatures {
		return model.Tensor{}, fmt.Errorf("%w: expected %d values, got %d", ErrShape, TabularFeatures, len(features))
	}

	data := make([]float32, len(features))
	for i, v := range features {
		data[i] = float32(v)
	}
	return model.Tensor{
		Shape: append([]int64(nil), TabularShape...),
		Data:  data,
	}, nil
}
