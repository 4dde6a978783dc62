package crossmodal

import "fmt"

// CandidateSet holds the flat, order-preserving collections produced by
// encoding an evaluation split. Caption-side slices are index-aligned with
// each other, as are image-side slices.
type CandidateSet struct {
	Means           [][]float32
	Variances       [][]float32
	CaptionIDs      []int64
	CaptionImageIDs []int64 // image id each caption was paired with

	Vectors  [][]float32
	ImageIDs []int64
}

// NumCaptions returns the number of caption rows
func (s *CandidateSet) NumCaptions() int {
	return len(s.CaptionIDs)
}

// NumImages returns the number of image rows
func (s *CandidateSet) NumImages() int {
	return len(s.ImageIDs)
}

// Dim returns the embedding dimensionality, or 0 for an empty set
func (s *CandidateSet) Dim() int {
	if len(s.Means) > 0 {
		return len(s.Means[0])
	}
	if len(s.Vectors) > 0 {
		return len(s.Vectors[0])
	}
	return 0
}

// Validate checks the alignment invariants of the set
func (s *CandidateSet) Validate() error {
	n := len(s.CaptionIDs)
	if len(s.Means) != n || len(s.Variances) != n || len(s.CaptionImageIDs) != n {
		return fmt.Errorf("%w: caption side means=%d variances=%d caption_ids=%d caption_image_ids=%d",
			ErrShapeMismatch, len(s.Means), len(s.Variances), n, len(s.CaptionImageIDs))
	}
	if len(s.Vectors) != len(s.ImageIDs) {
		return fmt.Errorf("%w: image side vectors=%d image_ids=%d",
			ErrShapeMismatch, len(s.Vectors), len(s.ImageIDs))
	}

	dim := s.Dim()
	for i := range s.Means {
		if len(s.Means[i]) != dim || len(s.Variances[i]) != dim {
			return fmt.Errorf("%w: caption row %d has mean dim %d, variance dim %d, want %d",
				ErrShapeMismatch, i, len(s.Means[i]), len(s.Variances[i]), dim)
		}
	}
	for j, v := range s.Vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: image row %d has dim %d, want %d", ErrShapeMismatch, j, len(v), dim)
		}
	}
	return nil
}

// FilterImages returns a copy of the set keeping only image rows whose
// mask entry is true. Caption rows are shared, not copied.
func (s *CandidateSet) FilterImages(mask []bool) (*CandidateSet, error) {
	if len(mask) != len(s.ImageIDs) {
		return nil, fmt.Errorf("%w: image mask length %d, image rows %d", ErrShapeMismatch, len(mask), len(s.ImageIDs))
	}
	out := &CandidateSet{
		Means:           s.Means,
		Variances:       s.Variances,
		CaptionIDs:      s.CaptionIDs,
		CaptionImageIDs: s.CaptionImageIDs,
	}
	for j, keep := range mask {
		if keep {
			out.Vectors = append(out.Vectors, s.Vectors[j])
			out.ImageIDs = append(out.ImageIDs, s.ImageIDs[j])
		}
	}
	return out, nil
}

// FilterCaptions returns a copy of the set keeping only caption rows whose
// mask entry is true. Image rows are shared, not copied.
func (s *CandidateSet) FilterCaptions(mask []bool) (*CandidateSet, error) {
	if len(mask) != len(s.CaptionIDs) {
		return nil, fmt.Errorf("%w: caption mask length %d, caption rows %d", ErrShapeMismatch, len(mask), len(s.CaptionIDs))
	}
	out := &CandidateSet{
		Vectors:  s.Vectors,
		ImageIDs: s.ImageIDs,
	}
	for i, keep := range mask {
		if keep {
			out.Means = append(out.Means, s.Means[i])
			out.Variances = append(out.Variances, s.Variances[i])
			out.CaptionIDs = append(out.CaptionIDs, s.CaptionIDs[i])
			out.CaptionImageIDs = append(out.CaptionImageIDs, s.CaptionImageIDs[i])
		}
	}
	return out, nil
}
