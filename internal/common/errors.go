package common

import (
	"errors"
	"fmt"

	"github.com/purpleteam-labs/campaign-orchestrator/pkg/pipeline"
)

var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrInvalidTransition = errors.New("invalid transition")
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrStorageFailure    = errors.New("storage failure")
	ErrDeliveryFailure   = errors.New("delivery failure")
)

func NewInvalidArgumentError(reason string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(reason, args...))
}

func NewNotFoundError(kind string, id string) error {
	return fmt.Errorf("%w: %s %q", ErrNotFound, kind, id)
}

func NewStorageError(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageFailure, err)
}

func NewErrProcessingError(err error, category string, inputs []pipeline.Input, reason string, args ...interface{}) pipeline.ErrProcessingError {
	cause := fmt.Sprintf(reason, args...)
	dErr := fmt.Errorf("%s: %w", cause, err)

	return pipeline.NewErrProcessingError(dErr, category, inputs)
}

func NewRetryableErrProcessingError(err error, category string, inputs []pipeline.Input, reason string, args ...interface{}) pipeline.ErrProcessingError {
	return NewErrProcessingError(pipeline.NewErrRetryableError(err), category, inputs, reason, args...)
}
