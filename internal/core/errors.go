package core

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks every input rejection so callers can classify
	// without listing each cause.
	ErrValidation = errors.New("invalid input")

	ErrInvalidType   = errors.New("type must be income or expense")
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidDate   = errors.New("invalid date, expected YYYY-MM-DD")
	ErrInvalidMonth  = errors.New("invalid month, expected YYYY-MM")
	ErrEmptyCategory = errors.New("empty category")
	ErrEmptyName     = errors.New("empty category name")
	ErrNameTooLong   = errors.New("category name too long (max 100 characters)")

	ErrNotFound = errors.New("not found")

	// ErrDuplicateCategory carries the message shown to the user as is.
	ErrDuplicateCategory = errors.New("هذا التصنيف موجود بالفعل.")
)

func invalid(cause error) error {
	return fmt.Errorf("%w: %w", ErrValidation, cause)
}
