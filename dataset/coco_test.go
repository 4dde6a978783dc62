package dataset

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

const captionsJSON = `{
  "images": [{"id": 1}, {"id": 2}],
  "annotations": [
    {"id": 10, "image_id": 1, "caption": "A dog on a couch. "},
    {"id": 11, "image_id": 2, "caption": "two cats"},
    {"id": 12, "image_id": 1, "caption": "a sleepy dog"}
  ]
}`

// lengthTokenizer encodes each text as a single token: its byte length
type lengthTokenizer struct {
	err error
}

func (l lengthTokenizer) EncodeBatch(texts []string) ([][]int64, [][]int64, error) {
	if l.err != nil {
		return nil, nil, l.err
	}
	tokens := make([][]int64, len(texts))
	positions := make([][]int64, len(texts))
	for i, t := range texts {
		tokens[i] = []int64{int64(len(t))}
		positions[i] = []int64{1}
	}
	return tokens, positions, nil
}

type mapVectors map[int64][]float32

func (m mapVectors) ImageVectors(context.Context) (map[int64][]float32, error) {
	return m, nil
}

func testVectors() mapVectors {
	return mapVectors{1: {1, 0}, 2: {0, 1}}
}

func TestParseAnnotations(t *testing.T) {
	anns, err := ParseAnnotations([]byte(captionsJSON))
	require.NoError(t, err)
	assert.Equal(t, []Annotation{
		{ID: 10, ImageID: 1, Caption: "A dog on a couch."},
		{ID: 11, ImageID: 2, Caption: "two cats"},
		{ID: 12, ImageID: 1, Caption: "a sleepy dog"},
	}, anns)
}

func TestParseAnnotationsErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"invalid json", `{"annotations": [`},
		{"missing annotations", `{"images": []}`},
		{"annotations not array", `{"annotations": {}}`},
		{"missing caption", `{"annotations": [{"id": 1, "image_id": 2}]}`},
		{"string id", `{"annotations": [{"id": "1", "image_id": 2, "caption": "x"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseAnnotations([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestCOCOBatches(t *testing.T) {
	ctx := context.Background()
	anns, err := ParseAnnotations([]byte(captionsJSON))
	require.NoError(t, err)

	src, err := NewCOCO(anns, testVectors(), lengthTokenizer{}, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, src.NumBatches())

	first, err := src.Next(ctx)
	require.NoError(t, err)
	require.NoError(t, first.Validate())
	assert.Equal(t, []int64{10, 11}, first.CaptionIDs)
	assert.Equal(t, []int64{1, 2}, first.ImageIDs)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, first.Images)
	assert.Equal(t, [][]int64{{17}, {8}}, first.Tokens)

	second, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{12}, second.CaptionIDs)

	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)

	src.Reset()
	again, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.CaptionIDs, again.CaptionIDs)
}

func TestCOCOMissingImageVector(t *testing.T) {
	anns := []Annotation{{ID: 1, ImageID: 99, Caption: "x"}}
	_, err := NewCOCO(anns, testVectors(), lengthTokenizer{}, 0)
	assert.ErrorIs(t, err, crossmodal.ErrUnknownID)
}

func TestCOCOTokenizerError(t *testing.T) {
	anns := []Annotation{{ID: 1, ImageID: 1, Caption: "x"}}
	src, err := NewCOCO(anns, testVectors(), lengthTokenizer{err: errors.New("bad vocab")}, 0)
	require.NoError(t, err)
	_, err = src.Next(context.Background())
	assert.ErrorContains(t, err, "bad vocab")
}

func TestCOCOCaption(t *testing.T) {
	anns := []Annotation{{ID: 7, ImageID: 2, Caption: "two cats"}}
	src, err := NewCOCO(anns, testVectors(), lengthTokenizer{}, 0)
	require.NoError(t, err)

	text, ok := src.Caption(7)
	assert.True(t, ok)
	assert.Equal(t, "two cats", text)

	_, ok = src.Caption(8)
	assert.False(t, ok)
}

func TestLoadCOCO(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions_val.json")
	require.NoError(t, os.WriteFile(path, []byte(captionsJSON), 0o600))

	src, err := LoadCOCO(context.Background(), path, testVectors(), lengthTokenizer{}, 128)
	require.NoError(t, err)
	assert.Equal(t, 1, src.NumBatches())

	var _ crossmodal.SizedSource = src

	_, err = LoadCOCO(context.Background(), filepath.Join(t.TempDir(), "nope.json"), testVectors(), lengthTokenizer{}, 1)
	assert.Error(t, err)
}

func TestReadAnnotationsAndIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "captions_val.json")
	require.NoError(t, os.WriteFile(path, []byte(captionsJSON), 0o600))

	anns, err := ReadAnnotations(path)
	require.NoError(t, err)
	idx := NewCaptionIndex(anns)
	assert.Len(t, idx, 3)

	text, ok := idx.Caption(12)
	assert.True(t, ok)
	assert.Equal(t, "a sleepy dog", text)
}
