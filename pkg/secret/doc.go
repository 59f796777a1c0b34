// Package secret implements the textual representation of TOTP shared secrets.
//
// Authenticator secrets travel as RFC 4648 base32 text: inside otpauth:// URIs,
// on "can't scan the code?" setup pages, and in backup files. Users retype
// them by hand, so decoding is forgiving about presentation and strict about
// content. Decode accepts lower case, spaces, hyphen separators, optional
// padding and full-width characters produced by some input methods, and
// rejects any character outside the base32 alphabet or padding in the wrong
// place.
//
// Encode always produces the canonical form: upper case with "=" padding to a
// multiple of eight characters. Normalize converts any accepted input to that
// canonical form and is what the account store persists.
//
// # Usage
//
//	key, err := secret.Decode("jbsw y3dp ehpk 3pxp")
//	if errors.Is(err, secret.ErrInvalidSecretFormat) {
//		// ask the user to re-check the key
//	}
//
//	text := secret.Encode(key) // "JBSWY3DPEHPK3PXP"
//
// Generate creates a fresh random secret, which is handy for tests and for
// provisioning a key on another device.
package secret
