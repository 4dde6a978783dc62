package utils

import "testing"

func TestArgSortAscendingStable(t *testing.T) {
	scores := []float64{0.5, 0.1, 0.5, 0.0, 0.1}

	got := ArgSort(scores, false)

	want := []int{3, 1, 4, 0, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("ArgSort ascending = %v, want %v", got, want)
		}
	}
}

func TestArgSortDescending(t *testing.T) {
	scores := []float64{0.1, 0.5, 0.3, 0.9, 0.2}

	got := ArgSort(scores, true)

	if got[0] != 3 {
		t.Errorf("Expected index of maximum (3) first, got %d", got[0])
	}
	for i := 0; i < len(got)-1; i++ {
		if scores[got[i]] < scores[got[i+1]] {
			t.Errorf("Values not in descending order: %v", got)
		}
	}
}
