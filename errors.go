package crossmodal

import "errors"

var (
	// ErrInvalidVariance is returned when a variance entry is zero, negative or NaN
	ErrInvalidVariance = errors.New("invalid variance")

	// ErrShapeMismatch is returned when co-indexed collections disagree in length or dimension
	ErrShapeMismatch = errors.New("shape mismatch")

	// ErrUnknownID is returned by id lookups that match nothing
	ErrUnknownID = errors.New("not found")
)
