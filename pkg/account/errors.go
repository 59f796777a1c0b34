package account

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("account not found")
	ErrNothingToUpdate  = errors.New("nothing to update")
	ErrPersist          = errors.New("failed to persist accounts snapshot")
	ErrInvalidRecord    = errors.New("invalid account record")
	ErrPersisterMissing = errors.New("no persister configured")
)

// RecordError reports why the record at Index of a batch was rejected.
type RecordError struct {
	Index int
	Err   error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *RecordError) Unwrap() error {
	return e.Err
}
