package otpkeeper

import "errors"

var (
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrReadFile      = errors.New("failed to read file")
)
