package crossmodal

import (
	"context"
	"fmt"
	"io"
)

// Batch is one step of a DataSource. All five slices are co-indexed:
// row i pairs the image Images[i] (id ImageIDs[i]) with the caption
// Tokens[i]/Positions[i] (id CaptionIDs[i]).
type Batch struct {
	Images     [][]float32
	Tokens     [][]int64
	Positions  [][]int64
	ImageIDs   []int64
	CaptionIDs []int64
}

// Len returns the number of rows in the batch
func (b *Batch) Len() int {
	return len(b.CaptionIDs)
}

// Validate checks that every slice of the batch has the same length
func (b *Batch) Validate() error {
	n := len(b.CaptionIDs)
	if len(b.Images) != n || len(b.Tokens) != n || len(b.Positions) != n || len(b.ImageIDs) != n {
		return fmt.Errorf("%w: batch lengths images=%d tokens=%d positions=%d image_ids=%d caption_ids=%d",
			ErrShapeMismatch, len(b.Images), len(b.Tokens), len(b.Positions), len(b.ImageIDs), n)
	}
	return nil
}

// Encoder maps a batch of token sequences to per-row Gaussian parameters.
// Implementations must not update any model state.
type Encoder interface {
	// Encode returns one mean row and one variance row per input row
	Encode(ctx context.Context, tokens [][]int64, positions [][]int64) (means [][]float32, variances [][]float32, err error)
}

// EncoderFunc adapts a plain function to the Encoder interface
type EncoderFunc func(ctx context.Context, tokens [][]int64, positions [][]int64) ([][]float32, [][]float32, error)

// Encode calls f
func (f EncoderFunc) Encode(ctx context.Context, tokens [][]int64, positions [][]int64) ([][]float32, [][]float32, error) {
	return f(ctx, tokens, positions)
}

// DataSource yields evaluation batches in dataset order. Next returns
// io.EOF once the source is exhausted.
type DataSource interface {
	Next(ctx context.Context) (*Batch, error)
}

// SizedSource is a DataSource that knows how many batches it will yield
type SizedSource interface {
	DataSource
	NumBatches() int
}

// SliceSource serves a fixed list of batches
type SliceSource struct {
	batches []*Batch
	pos     int
}

// NewSliceSource creates a DataSource over the given batches
func NewSliceSource(batches ...*Batch) *SliceSource {
	return &SliceSource{batches: batches}
}

// Next returns the next batch or io.EOF
func (s *SliceSource) Next(ctx context.Context) (*Batch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.batches) {
		return nil, io.EOF
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

// NumBatches returns the total number of batches
func (s *SliceSource) NumBatches() int {
	return len(s.batches)
}

// Hit is a single ranked result of an id lookup
type Hit struct {
	ID    int64
	Score float64
}
