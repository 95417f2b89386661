package ranker

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
)

var (
	// ErrTopN is returned when the requested count is negative or exceeds the label count.
	ErrTopN = errors.New("invalid number of predictions")
	// ErrOutput is returned when the model output does not fit the expected form.
	ErrOutput = errors.New("unexpected model output")
)

// Prediction is a label and its probability in percent. It serializes as a
// two element JSON array: ["label", 12.5].
type Prediction struct {
	Label       string
	Probability float64
}

func (p Prediction) MarshalJSON() ([]byte, error) {
	return json.Marshal([]interface{}{p.Label, p.Probability})
}

// UnmarshalJSON reads the ["label", probability] pair written by MarshalJSON,
// so clients of this package can decode ranked responses.
func (p *Prediction) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("prediction must have 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &p.Label); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &p.Probability)
}

// Softmax returns exp(s_i) / sum(exp(s)) scaled to percent.
func Softmax(scores []float32) []float64 {
	if len(scores) == 0 {
		return nil
	}
	maxScore := math.Inf(-1)
	for _, s := range scores {
		maxScore = math.Max(maxScore, float64(s))
	}

	out := make([]float64, len(scores))
	var sum float64
	for i, s := range scores {
		out[i] = math.Exp(float64(s) - maxScore)
		sum += out[i]
	}
	for i := range out {
		out[i] = out[i] / sum * 100
	}
	return out
}

// Rank orders classes by descending raw score and reports the softmax
// percentage of the first topN. Equal scores keep their original index order.
func Rank(raw []float32, labels []string, topN int) ([]Prediction, error) {
	if len(raw) != len(labels) {
		return nil, fmt.Errorf("%w: %d scores for %d labels", ErrOutput, len(raw), len(labels))
	}
	if topN < 0 || topN > len(labels) {
		return nil, fmt.Errorf("%w: %d requested, %d labels available", ErrTopN, topN, len(labels))
	}
	if err := checkFinite(raw); err != nil {
		return nil, err
	}

	percentage := Softmax(raw)

	indices := make([]int, len(raw))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return raw[indices[a]] > raw[indices[b]]
	})

	result := make([]Prediction, 0, topN)
	for _, idx := range indices[:topN] {
		result = append(result, Prediction{Label: labels[idx], Probability: percentage[idx]})
	}
	return result, nil
}

// Scalar extracts the single value of a regression output.
func Scalar(raw []float32) (float64, error) {
	if len(raw) != 1 {
		return 0, fmt.Errorf("%w: expected 1 value, got %d", ErrOutput, len(raw))
	}
	if err := checkFinite(raw); err != nil {
		return 0, err
	}
	return float64(raw[0]), nil
}

func checkFinite(raw []float32) error {
	for i, v := range raw {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: non-finite score %v at index %d", ErrOutput, v, i)
		}
	}
	return nil
}
