// Package otpauth parses and formats otpauth:// key URIs, the payload encoded
// in the QR codes services show when enabling two-factor authentication.
//
// Parse accepts the Key URI format popularised by Google Authenticator:
//
//	otpauth://totp/Example:alice@example.com?secret=JBSWY3DPEHPK3PXP&issuer=Example
//
// The label is percent-decoded and may carry an "issuer:" prefix; when the
// issuer query parameter is present it wins over the prefix. secret is
// required, algorithm, digits and period fall back to SHA1, 6 and 30.
// Unknown query parameters are ignored.
//
// Counter-based hotp URIs are recognised and rejected with ErrUnsupportedHOTP.
// Other schemes, including otpauth-migration:// batch exports, fail with
// ErrUnsupportedScheme. Anything that is not a well-formed URI, including empty
// or non-UTF-8 payloads handed over by a QR decoder, fails with ErrInvalidURI.
//
// The secret is returned verbatim. Decoding and range checks of digits and
// period belong to account creation, so a bad secret surfaces there as
// secret.ErrInvalidSecretFormat.
//
// Key.URI formats a key back into a URI, which is how an account is moved to
// another authenticator through a freshly rendered QR code.
package otpauth
