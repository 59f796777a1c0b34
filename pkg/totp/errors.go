package totp

import "errors"

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported hmac algorithm")
	ErrInvalidDigits        = errors.New("invalid number of digits, must be 6, 7 or 8")
	ErrInvalidPeriod        = errors.New("invalid period, must be greater than zero")
	ErrEmptyKey             = errors.New("empty secret key")
	ErrInvalidOTP           = errors.New("invalid OTP format")
)
