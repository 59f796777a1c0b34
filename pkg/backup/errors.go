package backup

import "errors"

var (
	ErrInvalidFormat      = errors.New("not a valid backup document")
	ErrUnsupportedVersion = errors.New("unsupported backup version")
	ErrUnknownStrategy    = errors.New("unknown merge strategy")
	ErrImportAborted      = errors.New("import aborted, store left unchanged")
	ErrInvalidAlgorithm   = errors.New("invalid algorithm in record")
)
