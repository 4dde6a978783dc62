package rank

import (
	"fmt"
	"strings"

	crossmodal "github.com/Mineru98/crossmodal-retrieval-go"
)

// Metric names the distance used to compare sentence distributions with image vectors
type Metric string

const (
	// Mahalanobis scores with the caption variance: Σ (m-t)² / v
	Mahalanobis Metric = "mahalanobis"

	// Euclidean ignores the variance head; the encoder emits unit variance
	Euclidean Metric = "euclidean"
)

// ParseMetric resolves a configured metric name. The misspelling used by
// older training configs ("maharanobis") is accepted.
func ParseMetric(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "mahalanobis", "maharanobis", "probabilistic":
		return Mahalanobis, nil
	case "euclidean", "l2":
		return Euclidean, nil
	default:
		return "", fmt.Errorf("rank: unknown metric %q", name)
	}
}

// Probabilistic reports whether the metric uses the encoder's variance output
func (m Metric) Probabilistic() bool {
	return m == Mahalanobis
}

// Distance returns the variance-normalised squared distance between a
// caption distribution (mean, variance) and an image vector:
//
//	Σ_d (mean[d] - target[d])² / variance[d]
//
// Lower is more similar.
func Distance(mean, variance, target []float32) (float64, error) {
	if len(mean) != len(variance) || len(mean) != len(target) {
		return 0, fmt.Errorf("%w: mean dim %d, variance dim %d, target dim %d",
			crossmodal.ErrShapeMismatch, len(mean), len(variance), len(target))
	}
	if err := ValidateVariance(variance); err != nil {
		return 0, err
	}
	return distance(mean, variance, target), nil
}

// ValidateVariance rejects zero, negative and NaN entries
func ValidateVariance(variance []float32) error {
	for d, v := range variance {
		// !(v > 0) also catches NaN
		if !(v > 0) {
			return fmt.Errorf("%w: dimension %d has variance %g", crossmodal.ErrInvalidVariance, d, v)
		}
	}
	return nil
}

// distance is the unchecked kernel shared by the matrix and query paths
func distance(mean, variance, target []float32) float64 {
	var sum float64
	for d := range mean {
		diff := float64(mean[d]) - float64(target[d])
		sum += diff * diff / float64(variance[d])
	}
	return sum
}
