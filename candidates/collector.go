package candidates

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/utils"
)

// CollectOptions configures Collect
type CollectOptions struct {
	// Logger receives progress entries; nil disables logging
	Logger logrus.FieldLogger
}

// Collect drains src, encoding every batch's captions with enc, and
// returns the flat candidate set in arrival order.
func Collect(
	ctx context.Context,
	enc crossmodal.Encoder,
	src crossmodal.DataSource,
	opts CollectOptions,
) (*crossmodal.CandidateSet, error) {
	var progress *utils.ProgressBar
	if sized, ok := src.(crossmodal.SizedSource); ok && opts.Logger != nil {
		progress = utils.NewProgressBar(sized.NumBatches(), "encoding candidates", opts.Logger)
	}

	set := &crossmodal.CandidateSet{}
	for n := 0; ; n++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		batch, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read batch %d: %w", n, err)
		}

		if err := appendBatch(ctx, set, enc, batch); err != nil {
			return nil, fmt.Errorf("batch %d: %w", n, err)
		}
		if progress != nil {
			progress.Increment()
		}
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

func appendBatch(ctx context.Context, set *crossmodal.CandidateSet, enc crossmodal.Encoder, batch *crossmodal.Batch) error {
	if err := batch.Validate(); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}

	means, variances, err := enc.Encode(ctx, batch.Tokens, batch.Positions)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if len(means) != batch.Len() || len(variances) != batch.Len() {
		return fmt.Errorf("%w: encoder returned %d means and %d variances for %d rows",
			crossmodal.ErrShapeMismatch, len(means), len(variances), batch.Len())
	}

	set.Means = append(set.Means, means...)
	set.Variances = append(set.Variances, variances...)
	set.CaptionIDs = append(set.CaptionIDs, batch.CaptionIDs...)
	set.CaptionImageIDs = append(set.CaptionImageIDs, batch.ImageIDs...)
	set.Vectors = append(set.Vectors, batch.Images...)
	set.ImageIDs = append(set.ImageIDs, batch.ImageIDs...)
	return nil
}
