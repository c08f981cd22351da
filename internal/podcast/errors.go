package podcast

import (
	"errors"
	"fmt"

	"podcastr/internal/quota"
)

var (
	ErrUnauthenticated = errors.New("user not authenticated")
	ErrNotFound        = errors.New("not found")
	ErrForbidden       = errors.New("not the podcast owner")
	ErrQuotaExceeded   = quota.ErrExceeded
	ErrInvalidArgument = errors.New("invalid argument")
	ErrOperationFailed = errors.New("operation failed")
)

func opFailed(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrOperationFailed, op, err)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
