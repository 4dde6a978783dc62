package rank

import (
	"fmt"
	"slices"
	"sort"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/utils"
)

// DefaultKs are the cut-offs reported by a standard evaluation
var DefaultKs = []int{5, 10, 20}

// Metrics maps a cut-off k to a percentage in [0, 100]
type Metrics map[int]float64

// Scores holds recall in both retrieval directions
type Scores struct {
	CaptionToImage Metrics
	ImageToCaption Metrics
}

// GroundTruth lists, for every matrix row, the columns that are correct
// answers, and for every column the rows that are correct answers.
type GroundTruth struct {
	RowTargets [][]int
	ColTargets [][]int
}

// PositionalTruth pairs caption i with image i
func PositionalTruth(n int) GroundTruth {
	gt := GroundTruth{
		RowTargets: make([][]int, n),
		ColTargets: make([][]int, n),
	}
	for i := 0; i < n; i++ {
		gt.RowTargets[i] = []int{i}
		gt.ColTargets[i] = []int{i}
	}
	return gt
}

// TruthFromIDs derives the ground truth from the image id each caption was
// paired with. Every caption's image id must be present in imageIDs.
func TruthFromIDs(captionImageIDs, imageIDs []int64) (GroundTruth, error) {
	column := make(map[int64]int, len(imageIDs))
	for j, id := range imageIDs {
		if _, dup := column[id]; dup {
			return GroundTruth{}, fmt.Errorf("%w: image id %d appears more than once; deduplicate first",
				crossmodal.ErrShapeMismatch, id)
		}
		column[id] = j
	}

	gt := GroundTruth{
		RowTargets: make([][]int, len(captionImageIDs)),
		ColTargets: make([][]int, len(imageIDs)),
	}
	for i, id := range captionImageIDs {
		j, ok := column[id]
		if !ok {
			return GroundTruth{}, fmt.Errorf("%w: caption row %d refers to image id %d which has no vector",
				crossmodal.ErrShapeMismatch, i, id)
		}
		gt.RowTargets[i] = []int{j}
		gt.ColTargets[j] = append(gt.ColTargets[j], i)
	}
	return gt, nil
}

// ArgSortAscending ranks candidates by ascending score, ties by index
func ArgSortAscending(scores []float64) []int {
	return utils.ArgSort(scores, false)
}

// RecallAtK is the number of truth entries found in ordered[:k] divided by
// the number found anywhere in ordered. It is 0 when none occur.
func RecallAtK(truth []int, ordered []int, k int) float64 {
	total := countIn(truth, ordered)
	if total == 0 {
		return 0
	}
	return float64(countIn(truth, head(ordered, k))) / float64(total)
}

// PrecisionAtK is the number of truth entries in ordered[:k] divided by k
func PrecisionAtK(truth []int, ordered []int, k int) float64 {
	if k <= 0 {
		return 0
	}
	return float64(countIn(truth, head(ordered, k))) / float64(k)
}

func head(ordered []int, k int) []int {
	if k < 0 {
		k = 0
	}
	if k > len(ordered) {
		k = len(ordered)
	}
	return ordered[:k]
}

func countIn(truth []int, ordered []int) int {
	if len(truth) == 1 {
		n := 0
		for _, idx := range ordered {
			if idx == truth[0] {
				n++
			}
		}
		return n
	}
	set := make(map[int]struct{}, len(truth))
	for _, t := range truth {
		set[t] = struct{}{}
	}
	n := 0
	for _, idx := range ordered {
		if _, ok := set[idx]; ok {
			n++
		}
	}
	return n
}

// RecallScores computes recall@k in both directions assuming caption i's
// answer is image i. The matrix must be square.
func RecallScores(m *Matrix, ks []int) (Scores, error) {
	if m.Rows != m.Cols {
		return Scores{}, fmt.Errorf("%w: positional scoring needs a square matrix, got %dx%d",
			crossmodal.ErrShapeMismatch, m.Rows, m.Cols)
	}
	return RecallScoresWithTruth(m, PositionalTruth(m.Rows), ks)
}

// RecallScoresWithTruth computes recall@k in both directions: rows ranked
// over columns for caption→image, columns ranked over rows for
// image→caption. Each value is the mean per-query recall × 100.
func RecallScoresWithTruth(m *Matrix, truth GroundTruth, ks []int) (Scores, error) {
	if len(truth.RowTargets) != m.Rows || len(truth.ColTargets) != m.Cols {
		return Scores{}, fmt.Errorf("%w: ground truth covers %d rows and %d columns, matrix is %dx%d",
			crossmodal.ErrShapeMismatch, len(truth.RowTargets), len(truth.ColTargets), m.Rows, m.Cols)
	}
	ks = NormalizeKs(ks)

	var buf []float64
	s2i := make(Metrics, len(ks))
	for i := 0; i < m.Rows; i++ {
		buf = m.RowInto(i, buf)
		ordered := ArgSortAscending(buf)
		for _, k := range ks {
			s2i[k] += RecallAtK(truth.RowTargets[i], ordered, k)
		}
	}

	i2s := make(Metrics, len(ks))
	for j := 0; j < m.Cols; j++ {
		buf = m.ColumnInto(j, buf)
		ordered := ArgSortAscending(buf)
		for _, k := range ks {
			i2s[k] += RecallAtK(truth.ColTargets[j], ordered, k)
		}
	}

	for _, k := range ks {
		s2i[k] = percent(s2i[k], m.Rows)
		i2s[k] = percent(i2s[k], m.Cols)
	}
	return Scores{CaptionToImage: s2i, ImageToCaption: i2s}, nil
}

// NormalizeKs returns the distinct cut-offs in ascending order, or
// DefaultKs when ks is empty
func NormalizeKs(ks []int) []int {
	if len(ks) == 0 {
		return append([]int(nil), DefaultKs...)
	}
	out := append([]int(nil), ks...)
	sort.Ints(out)
	return slices.Compact(out)
}

func percent(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n) * 100
}
