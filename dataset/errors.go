package dataset

import "errors"

var (
	// ErrIndexOutOfRange is returned for an index outside [-Len, Len).
	ErrIndexOutOfRange = errors.New("dataset: index out of range")
	// ErrImageNotFound is returned when no image root holds the named file.
	ErrImageNotFound = errors.New("dataset: image not found")
	// ErrVocabularyMismatch is returned when composed documents were built
	// with different vocabularies.
	ErrVocabularyMismatch = errors.New("dataset: documents use different vocabularies")
	// ErrSizeMismatch is returned when an image's size differs from the size
	// recorded in its annotation.
	ErrSizeMismatch = errors.New("dataset: image size differs from annotation")
)
