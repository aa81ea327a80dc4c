package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound           = errors.New("ledger: event not found")
	ErrInvalidEvent       = errors.New("ledger: invalid event")
	ErrInvalidFilter      = errors.New("ledger: invalid filter")
	ErrInvalidCursor      = errors.New("ledger: invalid cursor")
	ErrStorageUnavailable = errors.New("ledger: storage unavailable")
)

// unavailable tags a storage-layer failure so callers can treat it as
// retryable while keeping the driver error for logs.
func unavailable(err error) error {
	return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
}
