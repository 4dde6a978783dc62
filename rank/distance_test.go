package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

func TestDistance(t *testing.T) {
	mean := []float32{1, 2, 3}
	variance := []float32{1, 2, 0.5}
	target := []float32{0, 0, 4}

	// (1)²/1 + (2)²/2 + (-1)²/0.5
	d, err := Distance(mean, variance, target)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, d, 1e-9)
}

func TestDistanceUnitVarianceIsSquaredL2(t *testing.T) {
	d, err := Distance([]float32{0, 0}, []float32{1, 1}, []float32{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 25.0, d)
}

func TestDistanceRejectsBadVariance(t *testing.T) {
	for _, v := range []float32{0, -1, float32(math.NaN())} {
		_, err := Distance([]float32{1, 1}, []float32{1, v}, []float32{0, 0})
		assert.ErrorIs(t, err, crossmodal.ErrInvalidVariance, "variance %v", v)
	}
}

func TestDistanceDimensionMismatch(t *testing.T) {
	_, err := Distance([]float32{1, 2}, []float32{1, 1}, []float32{1})
	assert.ErrorIs(t, err, crossmodal.ErrShapeMismatch)
}

func TestParseMetric(t *testing.T) {
	for name, want := range map[string]Metric{
		"":            Mahalanobis,
		"maharanobis": Mahalanobis,
		"Mahalanobis": Mahalanobis,
		"euclidean":   Euclidean,
	} {
		got, err := ParseMetric(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}

	_, err := ParseMetric("cosine")
	assert.Error(t, err)
	assert.True(t, Mahalanobis.Probabilistic())
	assert.False(t, Euclidean.Probabilistic())
}
