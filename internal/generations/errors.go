package generations

import "errors"

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("generation not found")
	ErrForbidden    = errors.New("you do not have access to this generation")
	// ErrPersistence marks a result that was generated but could not be stored.
	ErrPersistence = errors.New("failed to save generated result")
)
