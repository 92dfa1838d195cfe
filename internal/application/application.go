package application

import (
	"context"
	"errors"
	"fmt"
)

type UseCase[C any, R any] interface {
	Execute(ctx context.Context, cmd C) (R, error)
}

var (
	ErrValidation = errors.New("validation")
	ErrRepository = errors.New("repository failure")
)

// NewValidation reports malformed input; it matches ErrValidation.
func NewValidation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// WrapRepository passes domain sentinels through and tags everything else as a
// repository failure.
func WrapRepository(err error, passthrough ...error) error {
	if err == nil {
		return nil
	}
	for _, target := range passthrough {
		if errors.Is(err, target) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", ErrRepository, err)
}

// IDGenerator hands out new entity identifiers.
type IDGenerator interface {
	NewID() string
}
