package types

import (
	"errors"
	"fmt"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrPrecondition        = errors.New("precondition failed")
	ErrStorage             = errors.New("storage error")
	ErrEngine              = errors.New("analysis engine error")
	ErrUnknownAnalysisType = errors.New("unknown analysis type")
)

func wrapf(kind error, format string, args ...any) error {
	return fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))
}

func ValidationErrorf(format string, args ...any) error {
	return wrapf(ErrValidation, format, args...)
}

func NotFoundErrorf(format string, args ...any) error {
	return wrapf(ErrNotFound, format, args...)
}

func ConflictErrorf(format string, args ...any) error {
	return wrapf(ErrConflict, format, args...)
}

func PreconditionErrorf(format string, args ...any) error {
	return wrapf(ErrPrecondition, format, args...)
}

// StorageError keeps the underlying driver error in the chain so callers can
// still inspect it with errors.As.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

func EngineError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrEngine, op, err)
}
