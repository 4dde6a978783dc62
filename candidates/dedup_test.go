package candidates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

// fiveCaptions mimics a COCO stream: captions 100..104, images 1,1,2,1,3
func fiveCaptions() *crossmodal.CandidateSet {
	imageIDs := []int64{1, 1, 2, 1, 3}
	set := &crossmodal.CandidateSet{}
	for i, id := range imageIDs {
		set.Means = append(set.Means, []float32{float32(i), 0})
		set.Variances = append(set.Variances, []float32{1, 1})
		set.CaptionIDs = append(set.CaptionIDs, int64(100+i))
		set.CaptionImageIDs = append(set.CaptionImageIDs, id)
		set.Vectors = append(set.Vectors, []float32{float32(id), float32(id)})
		set.ImageIDs = append(set.ImageIDs, id)
	}
	return set
}

func TestDedupMaskKeepsFirstOccurrence(t *testing.T) {
	assert.Equal(t, []bool{true, false, true, false, true}, DedupMask([]int64{1, 1, 2, 1, 3}))
}

func TestDedupMaskUniqueIDsAllKept(t *testing.T) {
	ids := []int64{9, 4, 7, 1}
	assert.Equal(t, []bool{true, true, true, true}, DedupMask(ids))
	assert.Empty(t, DedupMask(nil))
}

func TestDedupUniqueIDsPreservesOrder(t *testing.T) {
	set := &crossmodal.CandidateSet{
		Means:           [][]float32{{1}, {2}, {3}},
		Variances:       [][]float32{{1}, {1}, {1}},
		CaptionIDs:      []int64{30, 10, 20},
		CaptionImageIDs: []int64{9, 4, 7},
		Vectors:         [][]float32{{9}, {4}, {7}},
		ImageIDs:        []int64{9, 4, 7},
	}

	out, err := Dedup(set, false)
	require.NoError(t, err)
	assert.Equal(t, set.ImageIDs, out.ImageIDs)
	assert.Equal(t, set.Vectors, out.Vectors)
	assert.Equal(t, set.CaptionIDs, out.CaptionIDs)
	assert.Equal(t, set.Means, out.Means)
}

func TestDedupKeepsCaptions(t *testing.T) {
	set := fiveCaptions()

	out, err := Dedup(set, false)
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, out.ImageIDs)
	assert.Equal(t, [][]float32{{1, 1}, {2, 2}, {3, 3}}, out.Vectors)
	assert.Equal(t, set.CaptionIDs, out.CaptionIDs)
	assert.Equal(t, set.CaptionImageIDs, out.CaptionImageIDs)
	assert.Len(t, out.Means, 5)
	// input untouched
	assert.Len(t, set.ImageIDs, 5)
}

func TestDedupIdempotent(t *testing.T) {
	once, err := Dedup(fiveCaptions(), false)
	require.NoError(t, err)
	twice, err := Dedup(once, false)
	require.NoError(t, err)

	assert.Equal(t, once.ImageIDs, twice.ImageIDs)
	assert.Equal(t, once.Vectors, twice.Vectors)
	for _, keep := range DedupMask(once.ImageIDs) {
		assert.True(t, keep)
	}
}

func TestDedupPaired(t *testing.T) {
	out, err := Dedup(fiveCaptions(), true)
	require.NoError(t, err)

	assert.Equal(t, []int64{100, 102, 104}, out.CaptionIDs)
	assert.Equal(t, out.ImageIDs, out.CaptionImageIDs)
	require.NoError(t, out.Validate())
}

func TestDedupPairedNeedsAlignedSides(t *testing.T) {
	once, err := Dedup(fiveCaptions(), false)
	require.NoError(t, err)

	_, err = Dedup(once, true)
	assert.ErrorIs(t, err, crossmodal.ErrShapeMismatch)
}

func TestDedupRejectsMisalignedSet(t *testing.T) {
	set := fiveCaptions()
	set.ImageIDs = set.ImageIDs[:4]

	_, err := Dedup(set, false)
	assert.ErrorIs(t, err, crossmodal.ErrShapeMismatch)
}
