package candidates

import (
	"fmt"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

// DedupMask keeps the first occurrence of every image id and drops the rest
func DedupMask(imageIDs []int64) []bool {
	seen := make(map[int64]struct{}, len(imageIDs))
	mask := make([]bool, len(imageIDs))
	for i, id := range imageIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		mask[i] = true
	}
	return mask
}

// Dedup removes repeated images from set. Captions are kept unless
// pairCaptions is set, in which case the same mask is applied to the
// caption rows too, leaving one caption per image. Pairing requires the
// row-per-caption layout produced by Collect.
func Dedup(set *crossmodal.CandidateSet, pairCaptions bool) (*crossmodal.CandidateSet, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}

	mask := DedupMask(set.ImageIDs)
	out, err := set.FilterImages(mask)
	if err != nil {
		return nil, err
	}
	if !pairCaptions {
		return out, nil
	}

	if set.NumCaptions() != set.NumImages() {
		return nil, fmt.Errorf("%w: paired dedup needs one image row per caption, got %d captions and %d images",
			crossmodal.ErrShapeMismatch, set.NumCaptions(), set.NumImages())
	}
	return out.FilterCaptions(mask)
}
