package utils

import "sort"

// ArgSort returns the indices that would sort the slice. The sort is
// stable, so equal scores keep ascending index order.
func ArgSort(scores []float64, descending bool) []int {
	indices := make([]int, len(scores))
	for i := range indices {
		indices[i] = i
	}

	sort.SliceStable(indices, func(a, b int) bool {
		if descending {
			return scores[indices[a]] > scores[indices[b]]
		}
		return scores[indices[a]] < scores[indices[b]]
	})

	return indices
}
