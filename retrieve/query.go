package retrieve

import (
	"fmt"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/rank"
)

// DefaultTopN is the number of hits returned when the caller passes n <= 0
const DefaultTopN = 9

// QueryEngine ranks one modality against a single id of the other, using
// the same distance as the batch evaluation.
type QueryEngine struct {
	set *crossmodal.CandidateSet
}

// NewQueryEngine creates a query engine over a deduplicated candidate set
func NewQueryEngine(set *crossmodal.CandidateSet) (*QueryEngine, error) {
	if err := set.Validate(); err != nil {
		return nil, err
	}
	return &QueryEngine{set: set}, nil
}

// RankImages returns the n images closest to the caption with the given id
func (q *QueryEngine) RankImages(captionID int64, n int) ([]crossmodal.Hit, error) {
	rows := indicesOf(q.set.CaptionIDs, captionID)
	if len(rows) == 0 {
		return nil, fmt.Errorf("caption id %d: %w", captionID, crossmodal.ErrUnknownID)
	}

	var best []float64
	for _, i := range rows {
		scores, err := rank.ScoreTargets(q.set.Means[i], q.set.Variances[i], q.set.Vectors)
		if err != nil {
			return nil, fmt.Errorf("caption id %d: %w", captionID, err)
		}
		best = keepMin(best, scores)
	}
	return topHits(best, q.set.ImageIDs, n), nil
}

// RankCaptions returns the n captions closest to the image with the given id
func (q *QueryEngine) RankCaptions(imageID int64, n int) ([]crossmodal.Hit, error) {
	cols := indicesOf(q.set.ImageIDs, imageID)
	if len(cols) == 0 {
		return nil, fmt.Errorf("image id %d: %w", imageID, crossmodal.ErrUnknownID)
	}

	var best []float64
	for _, j := range cols {
		scores, err := rank.ScoreCaptions(q.set.Means, q.set.Variances, q.set.Vectors[j])
		if err != nil {
			return nil, fmt.Errorf("image id %d: %w", imageID, err)
		}
		best = keepMin(best, scores)
	}
	return topHits(best, q.set.CaptionIDs, n), nil
}

func indicesOf(ids []int64, id int64) []int {
	var out []int
	for i, v := range ids {
		if v == id {
			out = append(out, i)
		}
	}
	return out
}

// keepMin folds scores into best element-wise, keeping the smaller value
func keepMin(best, scores []float64) []float64 {
	if best == nil {
		return scores
	}
	for i, s := range scores {
		if s < best[i] {
			best[i] = s
		}
	}
	return best
}

func topHits(scores []float64, ids []int64, n int) []crossmodal.Hit {
	if n <= 0 {
		n = DefaultTopN
	}
	ordered := rank.ArgSortAscending(scores)
	if n > len(ordered) {
		n = len(ordered)
	}
	hits := make([]crossmodal.Hit, n)
	for i := 0; i < n; i++ {
		idx := ordered[i]
		hits[i] = crossmodal.Hit{ID: ids[idx], Score: scores[idx]}
	}
	return hits
}
