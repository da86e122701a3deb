package domain

import (
	"errors"
	"fmt"
)

var (
	ErrApplicationNotFound = errors.New("application not found")
	ErrEmailRecordNotFound = errors.New("email record not found")
	ErrReviewEntryNotFound = errors.New("review entry not found")
	ErrRunNotFound         = errors.New("pipeline run not found")
	ErrInvalidInput        = errors.New("invalid input")
	ErrConflict            = errors.New("conflicting concurrent update")
	ErrTemporary           = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
