package numdiff

import "errors"

var (
	// ErrInvalidSpec is returned when the differentiation spec is inconsistent.
	ErrInvalidSpec = errors.New("numdiff: invalid spec")
	// ErrOutOfBounds is returned when the evaluation point violates the bounds.
	ErrOutOfBounds = errors.New("numdiff: point out of bounds")
)
