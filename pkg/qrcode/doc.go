// Package qrcode connects otpkeeper to QR codes in both directions.
//
// Reading: the core never decodes pixels. The host supplies a Decoder (a
// camera library, a clipboard grabber, a test fake) and Scan turns its payload
// into an otpauth.Key:
//
//	key, err := qrcode.Scan(ctx, qrcode.DecoderFunc(zbarDecode), img)
//	if errors.Is(err, otpauth.ErrUnsupportedHOTP) {
//		// tell the user counter based codes are not supported
//	}
//
// Writing: Generate renders content, typically an account's otpauth URI, as a
// PNG using github.com/skip2/go-qrcode so the account can be moved to another
// device. GenerateBase64Image returns a data URI and Terminal returns text
// suitable for printing in a terminal.
package qrcode
