package distro

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidWeight     = errors.New("distro: invalid weight")
	ErrLengthMismatch    = errors.New("distro: ids and shares length mismatch")
	ErrDuplicateAsset    = errors.New("distro: duplicate asset id")
	ErrNegativeThreshold = errors.New("distro: negative threshold")
	ErrInvalidShare      = errors.New("distro: negative share")
)

// WeightError reports a weight that is negative, NaN or infinite.
type WeightError struct {
	Index int
	Value float64
}

func (e *WeightError) Error() string {
	return fmt.Sprintf("distro: invalid weight %v at index %d", e.Value, e.Index)
}

func (e *WeightError) Unwrap() error { return ErrInvalidWeight }
