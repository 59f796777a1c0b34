package otpauth

import "errors"

var (
	ErrInvalidURI        = errors.New("invalid otpauth URI")
	ErrUnsupportedScheme = errors.New("unsupported URI scheme, expected otpauth")
	ErrUnsupportedHOTP   = errors.New("counter-based HOTP accounts are not supported")
	ErrMissingSecret     = errors.New("otpauth URI has no secret")
)
