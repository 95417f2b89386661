package ranker

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func softmaxPercent(scores []float64, i int) float64 {
	var sum float64
	for _, s := range scores {
		sum += math.Exp(s)
	}
	return math.Exp(scores[i]) / sum * 100
}

func TestRankOrdersByRawScore(t *testing.T) {
	got, err := Rank([]float32{2.0, 5.0, 1.0}, []string{"cat", "dog", "bird"}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)

	scores := []float64{2, 5, 1}
	assert.Equal(t, "dog", got[0].Label)
	assert.InDelta(t, softmaxPercent(scores, 1), got[0].Probability, 1e-9)
	assert.Equal(t, "cat", got[1].Label)
	assert.InDelta(t, softmaxPercent(scores, 0), got[1].Probability, 1e-9)
}

func TestRankTiesKeepIndexOrder(t *testing.T) {
	got, err := Rank([]float32{1, 3, 3, 0, 3}, []string{"a", "b", "c", "d", "e"}, 5)
	require.NoError(t, err)

	labels := make([]string, len(got))
	for i, p := range got {
		labels[i] = p.Label
	}
	assert.Equal(t, []string{"b", "c", "e", "a", "d"}, labels)
}

func TestRankZeroPredictions(t *testing.T) {
	got, err := Rank([]float32{1, 2}, []string{"a", "b"}, 0)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	body, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `[]`, string(body))
}

func TestRankInvalidTopN(t *testing.T) {
	_, err := Rank([]float32{1, 2}, []string{"a", "b"}, 3)
	assert.ErrorIs(t, err, ErrTopN)

	_, err = Rank([]float32{1, 2}, []string{"a", "b"}, -1)
	assert.ErrorIs(t, err, ErrTopN)
}

func TestRankOutputLabelMismatch(t *testing.T) {
	_, err := Rank([]float32{1, 2, 3}, []string{"a", "b"}, 1)
	assert.ErrorIs(t, err, ErrOutput)
}

func TestRankIsIdempotent(t *testing.T) {
	raw := []float32{0.3, -1.2, 4.4, 4.4, 2.0, 0}
	labels := []string{"a", "b", "c", "d", "e", "f"}

	first, err := Rank(raw, labels, 4)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Rank(raw, labels, 4)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	assert.Equal(t, []float32{0.3, -1.2, 4.4, 4.4, 2.0, 0}, raw)
}

func TestRankProbabilitiesBounded(t *testing.T) {
	vectors := [][]float32{
		{0, 0, 0, 0},
		{1000, -1000, 3, 999},
		{-50, -51, -52, -53},
		{1e-7, 2e-7, 3e-7, 4e-7},
	}
	labels := []string{"a", "b", "c", "d"}
	for _, raw := range vectors {
		for n := 0; n <= len(labels); n++ {
			got, err := Rank(raw, labels, n)
			require.NoError(t, err)

			var sum float64
			for _, p := range got {
				assert.GreaterOrEqual(t, p.Probability, 0.0)
				assert.LessOrEqual(t, p.Probability, 100.0)
				sum += p.Probability
			}
			assert.LessOrEqual(t, sum, 100.0+1e-9)
		}
	}
}

func TestSoftmaxSumsToHundred(t *testing.T) {
	out := Softmax([]float32{2, 5, 1, -3, 0.5})
	var sum float64
	for _, v := range out {
		sum += v
	}
	assert.InDelta(t, 100, sum, 1e-9)
	assert.Nil(t, Softmax(nil))
}

func TestPredictionJSON(t *testing.T) {
	body, err := json.Marshal([]Prediction{{Label: "dog", Probability: 93.5}, {Label: "cat", Probability: 4.25}})
	require.NoError(t, err)
	assert.JSONEq(t, `[["dog", 93.5], ["cat", 4.25]]`, string(body))

	var decoded []Prediction
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, "cat", decoded[1].Label)
	assert.Equal(t, 4.25, decoded[1].Probability)
}

func TestRankRejectsNonFiniteScores(t *testing.T) {
	labels := []string{"a", "b", "c"}
	for _, raw := range [][]float32{
		{float32(math.Inf(1)), 1, 0},
		{0, float32(math.Inf(-1)), 1},
		{0, 1, float32(math.NaN())},
	} {
		_, err := Rank(raw, labels, 2)
		assert.ErrorIs(t, err, ErrOutput, "%v", raw)
	}
}

func TestScalarRejectsNonFinite(t *testing.T) {
	_, err := Scalar([]float32{float32(math.Inf(1))})
	assert.ErrorIs(t, err, ErrOutput)
	_, err = Scalar([]float32{float32(math.NaN())})
	assert.ErrorIs(t, err, ErrOutput)
}

func TestPredictionUnmarshalRejectsWrongArity(t *testing.T) {
	var p Prediction
	assert.Error(t, json.Unmarshal([]byte(`["dog"]`), &p))
	assert.Error(t, json.Unmarshal([]byte(`{"label": "dog"}`), &p))
}

func TestScalar(t *testing.T) {
	v, err := Scalar([]float32{24.5})
	require.NoError(t, err)
	assert.Equal(t, 24.5, v)

	_, err = Scalar(nil)
	assert.ErrorIs(t, err, ErrOutput)
	_, err = Scalar([]float32{1, 2})
	assert.ErrorIs(t, err, ErrOutput)
}
