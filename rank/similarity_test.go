package rank

import (
	"context"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

func randomRows(r *rand.Rand, n, dim int, positive bool) [][]float32 {
	rows := make([][]float32, n)
	for i := range rows {
		rows[i] = make([]float32, dim)
		for d := range rows[i] {
			if positive {
				rows[i][d] = 0.05 + r.Float32()
			} else {
				rows[i][d] = r.Float32()*2 - 1
			}
		}
	}
	return rows
}

func TestSimilarityMatrixMatchesKernel(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	means := randomRows(r, 7, 5, false)
	vars := randomRows(r, 7, 5, true)
	targets := randomRows(r, 4, 5, false)

	m, err := SimilarityMatrix(context.Background(), means, vars, targets, Options{BatchSize: 3})
	require.NoError(t, err)
	require.Equal(t, 7, m.Rows)
	require.Equal(t, 4, m.Cols)

	for i := range means {
		for j := range targets {
			want, err := Distance(means[i], vars[i], targets[j])
			require.NoError(t, err)
			assert.InDelta(t, want, float64(m.At(i, j)), 1e-5, "cell (%d,%d)", i, j)
		}
	}
}

func TestSimilarityMatrixBatchInvariance(t *testing.T) {
	r := rand.New(rand.NewSource(42))
	means := randomRows(r, 23, 8, false)
	vars := randomRows(r, 23, 8, true)
	targets := randomRows(r, 11, 8, false)
	ctx := context.Background()

	single, err := SimilarityMatrix(ctx, means, vars, targets, Options{BatchSize: 1})
	require.NoError(t, err)
	whole, err := SimilarityMatrix(ctx, means, vars, targets, Options{BatchSize: len(means)})
	require.NoError(t, err)
	parallel, err := SimilarityMatrix(ctx, means, vars, targets, Options{BatchSize: 4, Workers: 3})
	require.NoError(t, err)

	require.Len(t, whole.Data, len(single.Data))
	for idx := range single.Data {
		assert.InDelta(t, single.Data[idx], whole.Data[idx], 1e-5)
		assert.InDelta(t, single.Data[idx], parallel.Data[idx], 1e-5)
	}
}

func TestSimilarityMatrixVarianceGuardBeforeAnyRow(t *testing.T) {
	means := [][]float32{{0, 0}, {1, 1}, {2, 2}}
	vars := [][]float32{{1, 1}, {1, 1}, {1, 0}}
	targets := [][]float32{{0, 0}}

	rows := 0
	m, err := SimilarityMatrix(context.Background(), means, vars, targets, Options{BatchSize: 1})
	if m != nil {
		rows = m.Rows
	}
	assert.ErrorIs(t, err, crossmodal.ErrInvalidVariance)
	assert.Contains(t, err.Error(), "caption row 2")
	assert.Zero(t, rows)
}

func TestSimilarityMatrixShapeMismatch(t *testing.T) {
	ctx := context.Background()

	_, err := SimilarityMatrix(ctx, [][]float32{{0}}, nil, [][]float32{{0}}, Options{})
	assert.ErrorIs(t, err, crossmodal.ErrShapeMismatch)

	_, err = SimilarityMatrix(ctx, [][]float32{{0, 1}}, [][]float32{{1, 1}}, [][]float32{{0}}, Options{})
	assert.ErrorIs(t, err, crossmodal.ErrShapeMismatch)
}

func TestSimilarityMatrixCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := SimilarityMatrix(ctx, [][]float32{{0}}, [][]float32{{1}}, [][]float32{{0}}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScoreTargetsAndCaptionsAgreeWithMatrix(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	means := randomRows(r, 5, 3, false)
	vars := randomRows(r, 5, 3, true)
	targets := randomRows(r, 6, 3, false)

	m, err := SimilarityMatrix(context.Background(), means, vars, targets, Options{})
	require.NoError(t, err)

	row, err := ScoreTargets(means[2], vars[2], targets)
	require.NoError(t, err)
	for j := range targets {
		assert.InDelta(t, float64(m.At(2, j)), row[j], 1e-5)
	}

	col, err := ScoreCaptions(means, vars, targets[4])
	require.NoError(t, err)
	for i := range means {
		assert.InDelta(t, float64(m.At(i, 4)), col[i], 1e-5)
	}
}

func TestMatrixFromRows(t *testing.T) {
	m, err := MatrixFromRows([][]float32{{1, 2}, {3, 4}, {5, 6}})
	require.NoError(t, err)
	assert.Equal(t, float32(4), m.At(1, 1))
	assert.Equal(t, []float64{2, 4, 6}, m.ColumnInto(1, nil))

	_, err = MatrixFromRows([][]float32{{1, 2}, {3}})
	assert.ErrorIs(t, err, crossmodal.ErrShapeMismatch)
}
