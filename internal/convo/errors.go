package convo

import (
	"errors"
	"fmt"
)

var (
	// ErrExtractionIncomplete marks a matched command that still lacks slots.
	ErrExtractionIncomplete = errors.New("extraction incomplete")
	// ErrDuplicateEntity marks a create request that hit an existing record.
	ErrDuplicateEntity = errors.New("duplicate entity")
	// ErrLookupFailure wraps failures of directory, catalog, task or quotation calls.
	ErrLookupFailure = errors.New("lookup failure")
	// ErrInvalidTransition is returned by Transition for events the current state does not accept.
	ErrInvalidTransition = errors.New("invalid state transition")
)

func lookupFailure(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrLookupFailure, err))
}
