package rank

import (
	"context"
	"fmt"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
	"github.com/Mineru98/crossmodal-retrieval-go/utils"
)

// DefaultBatchSize is the number of caption rows scored per batch
const DefaultBatchSize = 10

// Matrix is a dense row-major caption × image score grid
type Matrix struct {
	Rows int
	Cols int
	Data []float32
}

// NewMatrix allocates a zeroed rows × cols matrix
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float32, rows*cols)}
}

// MatrixFromRows copies a rectangular [][]float32 into a Matrix
func MatrixFromRows(rows [][]float32) (*Matrix, error) {
	if len(rows) == 0 {
		return NewMatrix(0, 0), nil
	}
	m := NewMatrix(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.Cols {
			return nil, fmt.Errorf("%w: row %d has %d columns, want %d", crossmodal.ErrShapeMismatch, i, len(row), m.Cols)
		}
		copy(m.Row(i), row)
	}
	return m, nil
}

// At returns the score of caption i against image j
func (m *Matrix) At(i, j int) float32 {
	return m.Data[i*m.Cols+j]
}

// Row returns caption i's scores; the slice aliases the matrix
func (m *Matrix) Row(i int) []float32 {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// RowInto widens row i into dst, reallocating if dst is too short
func (m *Matrix) RowInto(i int, dst []float64) []float64 {
	dst = grow(dst, m.Cols)
	for j, v := range m.Row(i) {
		dst[j] = float64(v)
	}
	return dst
}

// ColumnInto gathers column j into dst, reallocating if dst is too short
func (m *Matrix) ColumnInto(j int, dst []float64) []float64 {
	dst = grow(dst, m.Rows)
	for i := 0; i < m.Rows; i++ {
		dst[i] = float64(m.Data[i*m.Cols+j])
	}
	return dst
}

func grow(dst []float64, n int) []float64 {
	if cap(dst) < n {
		return make([]float64, n)
	}
	return dst[:n]
}

// Options controls how SimilarityMatrix splits its work
type Options struct {
	// BatchSize is the number of caption rows per batch (default 10)
	BatchSize int
	// Workers is the number of batches scored concurrently (default 1)
	Workers int
}

// SimilarityMatrix scores every caption distribution against every image
// vector. Rows follow caption order and columns follow target order. All
// variances are validated before any row is computed.
func SimilarityMatrix(ctx context.Context, means, variances, targets [][]float32, opts Options) (*Matrix, error) {
	if len(means) != len(variances) {
		return nil, fmt.Errorf("%w: %d means, %d variances", crossmodal.ErrShapeMismatch, len(means), len(variances))
	}
	if err := checkDims(means, variances, targets); err != nil {
		return nil, err
	}
	for i, v := range variances {
		if err := ValidateVariance(v); err != nil {
			return nil, fmt.Errorf("caption row %d: %w", i, err)
		}
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	out := NewMatrix(len(means), len(targets))
	err := utils.ForEachRange(ctx, len(means), batchSize, opts.Workers, func(_ context.Context, r utils.Range) error {
		for i := r.Start; i < r.End; i++ {
			row := out.Row(i)
			for j, t := range targets {
				row[j] = float32(distance(means[i], variances[i], t))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ScoreTargets scores one caption distribution against every target
func ScoreTargets(mean, variance []float32, targets [][]float32) ([]float64, error) {
	if err := checkDims([][]float32{mean}, [][]float32{variance}, targets); err != nil {
		return nil, err
	}
	if err := ValidateVariance(variance); err != nil {
		return nil, err
	}
	scores := make([]float64, len(targets))
	for j, t := range targets {
		scores[j] = distance(mean, variance, t)
	}
	return scores, nil
}

// ScoreCaptions scores every caption distribution against one target
func ScoreCaptions(means, variances [][]float32, target []float32) ([]float64, error) {
	if len(means) != len(variances) {
		return nil, fmt.Errorf("%w: %d means, %d variances", crossmodal.ErrShapeMismatch, len(means), len(variances))
	}
	if err := checkDims(means, variances, [][]float32{target}); err != nil {
		return nil, err
	}
	scores := make([]float64, len(means))
	for i := range means {
		if err := ValidateVariance(variances[i]); err != nil {
			return nil, fmt.Errorf("caption row %d: %w", i, err)
		}
		scores[i] = distance(means[i], variances[i], target)
	}
	return scores, nil
}

func checkDims(means, variances, targets [][]float32) error {
	dim := -1
	check := func(kind string, rows [][]float32) error {
		for i, row := range rows {
			if dim < 0 {
				dim = len(row)
				continue
			}
			if len(row) != dim {
				return fmt.Errorf("%w: %s row %d has dim %d, want %d", crossmodal.ErrShapeMismatch, kind, i, len(row), dim)
			}
		}
		return nil
	}
	if err := check("mean", means); err != nil {
		return err
	}
	if err := check("variance", variances); err != nil {
		return err
	}
	return check("target", targets)
}
