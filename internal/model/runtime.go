package model

import "fmt"

// Runtime is the process-wide state built once at cold start: the loaded model
// and its label table. It is never mutated after construction.
type Runtime struct {
	predictor  Predictor
	inputShape []int64
	labels     []string
}

// NewRuntime checks that the model metadata honours inputShape and that the
// model emits one score per label, or a single value when labels is nil.
func NewRuntime(predictor Predictor, metadata Metadata, inputShape []int64, labels []string) (*Runtime, error) {
	if predictor == nil {
		return nil, fmt.Errorf("%w: no predictor", ErrConfig)
	}
	if !SameShape(metadata.InputShape, inputShape) {
		return nil, fmt.Errorf("%w: model input shape %v, want %v", ErrConfig, metadata.InputShape, inputShape)
	}
	outputs := NumElements(metadata.OutputShape)
	if labels != nil {
		if outputs != int64(len(labels)) {
			return nil, fmt.Errorf("%w: model emits %d scores for %d labels", ErrConfig, outputs, len(labels))
		}
	} else if outputs != 1 {
		return nil, fmt.Errorf("%w: regression model emits %d values, want 1", ErrConfig, outputs)
	}

	return &Runtime{
		predictor:  predictor,
		inputShape: append([]int64(nil), inputShape...),
		labels:     append([]string(nil), labels...),
	}, nil
}

func (r *Runtime) Predictor() Predictor {
	return r.predictor
}

// Labels returns the shared label table. Callers must not modify it.
func (r *Runtime) Labels() []string {
	return r.labels
}

func (r *Runtime) InputShape() []int64 {
	return append([]int64(nil), r.inputShape...)
}
