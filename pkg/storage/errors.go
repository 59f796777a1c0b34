package storage

import "errors"

var (
	ErrInvalidPath     = errors.New("storage path must not be empty")
	ErrReadFailed      = errors.New("failed to read accounts file")
	ErrWriteFailed     = errors.New("failed to write accounts file")
	ErrInvalidSnapshot = errors.New("accounts file contains an invalid record")
	ErrWatchFailed     = errors.New("failed to watch accounts file")
)
