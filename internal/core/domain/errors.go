package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorized         = errors.New("unauthorized project scope")
	ErrInvalidInput         = errors.New("invalid input")
	ErrInsufficientEvidence = errors.New("insufficient verified evidence")
	ErrGroundingFailed      = errors.New("answer grounding failed")
	ErrRateLimited          = errors.New("generation service rate limited")
	ErrQuotaExhausted       = errors.New("generation service quota exhausted")
	ErrTemporary            = errors.New("temporary failure")
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
