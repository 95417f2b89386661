package model

import (
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

// Session runs an ONNX model with fixed input and output shapes.
type Session struct {
	mu           sync.Mutex
	session      *ort.AdvancedSession
	metadata     Metadata
	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
}

// NewSession initializes the ONNX runtime environment and loads the model at
// modelPath. libraryPath overrides the onnxruntime shared library location.
func NewSession(modelPath, libraryPath string, metadata Metadata) (*Session, error) {
	if libraryPath != "" {
		ort.SetSharedLibraryPath(libraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize ONNX environment: %v", ErrConfig, err)
	}

	inputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.InputShape...))
	if err != nil {
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("%w: failed to create input tensor: %v", ErrConfig, err)
	}

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(metadata.OutputShape...))
	if err != nil {
		inputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("%w: failed to create output tensor: %v", ErrConfig, err)
	}

	session, err := ort.NewAdvancedSession(modelPath,
		[]string{metadata.InputName}, []string{metadata.OutputName},
		[]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor},
		nil)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		ort.DestroyEnvironment()
		return nil, fmt.Errorf("%w: failed to create ONNX session for %s: %v", ErrConfig, modelPath, err)
	}

	log.Info().Str("model", modelPath).
		Ints64("inputShape", metadata.InputShape).
		Ints64("outputShape", metadata.OutputShape).
		Msg("ONNX session created")

	return &Session{
		session:      session,
		metadata:     metadata,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

// Predict copies input into the bound input tensor, runs the session and
// returns a copy of the output. The bound tensors are shared, so runs are
// serialized.
func (s *Session) Predict(input Tensor) ([]float32, error) {
	if !SameShape(input.Shape, s.metadata.InputShape) {
		return nil, fmt.Errorf("%w: input shape %v does not match model shape %v",
			ErrInference, input.Shape, s.metadata.InputShape)
	}
	if int64(len(input.Data)) != NumElements(input.Shape) {
		return nil, fmt.Errorf("%w: input has %d values for shape %v", ErrInference, len(input.Data), input.Shape)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy(s.inputTensor.GetData(), input.Data)
	if err := s.session.Run(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInference, err)
	}

	outputData := s.outputTensor.GetData()
	output := make([]float32, len(outputData))
	for i, v := range outputData {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, fmt.Errorf("%w: output contains non-finite value %v at index %d", ErrInference, v, i)
		}
		output[i] = v
	}
	return output, nil
}

func (s *Session) Close() {
	if s.inputTensor != nil {
		s.inputTensor.Destroy()
	}
	if s.outputTensor != nil {
		s.outputTensor.Destroy()
	}
	if s.session != nil {
		s.session.Destroy()
	}
	ort.DestroyEnvironment()
}
