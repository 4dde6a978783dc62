package vecstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestEmbeddingRoundTrip(t *testing.T) {
	vec := []float32{0, -1.5, 3.25, 1e-7}
	got, err := DecodeEmbedding(EncodeEmbedding(vec))
	require.NoError(t, err)
	assert.Equal(t, vec, got)

	assert.Len(t, EncodeEmbedding(vec), 16)

	_, err = DecodeEmbedding([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestImageVectors(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.PutImageVectors(ctx, []int64{7, 9}, [][]float32{{1, 2}, {3, 4}}))
	require.NoError(t, s.PutImageVectors(ctx, []int64{9}, [][]float32{{5, 6}}))

	all, err := s.ImageVectors(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int64][]float32{7: {1, 2}, 9: {5, 6}}, all)

	vec, err := s.ImageVector(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vec)

	_, err = s.ImageVector(ctx, 42)
	assert.ErrorIs(t, err, crossmodal.ErrUnknownID)

	err = s.PutImageVectors(ctx, []int64{1}, nil)
	assert.ErrorIs(t, err, crossmodal.ErrShapeMismatch)
}

func TestCandidateSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	set := &crossmodal.CandidateSet{
		Means:           [][]float32{{1, 0}, {0, 1}, {1, 1}},
		Variances:       [][]float32{{1, 1}, {.5, .5}, {2, 2}},
		CaptionIDs:      []int64{30, 10, 20},
		CaptionImageIDs: []int64{3, 1, 3},
		Vectors:         [][]float32{{1, 0}, {0, 1}},
		ImageIDs:        []int64{3, 1},
	}
	require.NoError(t, s.SaveCandidates(ctx, "run-1", set))

	got, err := s.LoadCandidates(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, set, got)

	// same run id cannot be written twice
	assert.Error(t, s.SaveCandidates(ctx, "run-1", set))
}

func TestLoadCandidatesNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.LoadCandidates(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSnapshotNotFound)
}

func TestSaveCandidatesRejectsInvalidSet(t *testing.T) {
	s := openTestStore(t)
	bad := &crossmodal.CandidateSet{
		Means:      [][]float32{{1}},
		Variances:  [][]float32{{1}},
		CaptionIDs: []int64{1},
	}
	assert.Error(t, s.SaveCandidates(context.Background(), "bad", bad))
	assert.Error(t, s.SaveCandidates(context.Background(), "", &crossmodal.CandidateSet{}))
}
