package model

import "errors"

var (
	// ErrConfig marks a model or label file that cannot be loaded at startup.
	ErrConfig = errors.New("model configuration error")
	// ErrInference marks a failed model invocation.
	ErrInference = errors.New("inference failed")
)

// Metadata describes the serialized model's input and output contract.
type Metadata struct {
	InputName   string   `json:"input_name"`
	OutputName  string   `json:"output_name"`
	InputShape  []int64  `json:"input_shape"`
	OutputShape []int64  `json:"output_shape"`
	Classes     []string `json:"classes,omitempty"`
}

// Tensor is a dense float32 array in row-major order.
type Tensor struct {
	Shape []int64
	Data  []float32
}

// NumElements returns the product of the shape's dimensions.
func NumElements(shape []int64) int64 {
	if len(shape) == 0 {
		return 0
	}
	n := int64(1)
	for _, d := range shape {
		n *= d
	}
	return n
}

func SameShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Predictor runs a loaded model as a pure function. Implementations must not
// mutate the input and must return a freshly allocated output.
type Predictor interface {
	Predict(input Tensor) ([]float32, error)
}
