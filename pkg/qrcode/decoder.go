package qrcode

import (
	"context"
	"errors"

	"github.com/dmitrymomot/otpkeeper/pkg/otpauth"
)

// Decoder turns an image into the text payload of the QR code it contains.
// Image loading and pixel decoding live in the host; the core only sees the
// resulting string.
type Decoder interface {
	Decode(ctx context.Context, image []byte) (string, error)
}

// DecoderFunc adapts a function to Decoder.
type DecoderFunc func(ctx context.Context, image []byte) (string, error)

func (f DecoderFunc) Decode(ctx context.Context, image []byte) (string, error) {
	return f(ctx, image)
}

// Scan decodes image and parses the payload as an otpauth URI. Decoder
// failures wrap ErrDecodeFailed; bad payloads return the otpauth errors.
func Scan(ctx context.Context, dec Decoder, image []byte) (otpauth.Key, error) {
	if dec == nil {
		return otpauth.Key{}, ErrNoDecoder
	}
	if err := ctx.Err(); err != nil {
		return otpauth.Key{}, err
	}
	payload, err := dec.Decode(ctx, image)
	if err != nil {
		return otpauth.Key{}, errors.Join(ErrDecodeFailed, err)
	}
	return otpauth.Parse(payload)
}
