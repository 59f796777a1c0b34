package secret

import "errors"

var (
	ErrInvalidSecretFormat = errors.New("invalid secret format")
	ErrFailedToGenerate    = errors.New("failed to generate secret")
)
