package qrcode

import "errors"

var (
	// ErrEmptyContent is returned when content string is empty or only whitespace
	ErrEmptyContent = errors.New("content cannot be empty")
	// ErrFailedToGenerate is returned when the QR code generation fails.
	ErrFailedToGenerate = errors.New("failed to generate QR code")
	// ErrDecodeFailed wraps errors reported by a Decoder.
	ErrDecodeFailed = errors.New("failed to decode QR code image")
	// ErrNoDecoder is returned by Scan when no decoder was supplied.
	ErrNoDecoder = errors.New("no QR decoder configured")
)
