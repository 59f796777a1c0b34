// Package totp generates time-based one-time passwords as defined by RFC 6238
// on top of the HOTP truncation of RFC 4226.
//
// The package is a pure computation layer. It never reads the wall clock and
// never schedules anything: callers pass the instant they want a code for and
// receive the code together with the window it belongs to. A display loop can
// sleep until Code.ValidTo instead of polling every second.
//
// # Algorithms
//
// Algorithm is a closed set of the three hash functions authenticator apps
// support: SHA1 (the default), SHA256 and SHA512. ParseAlgorithm accepts the
// spellings found in otpauth:// URIs and backup files and fails with
// ErrUnsupportedAlgorithm for anything else. Algorithm implements
// encoding.TextMarshaler so it serializes as its name.
//
// # Usage
//
//	key, _ := secret.Decode("JBSWY3DPEHPK3PXP")
//	code, err := totp.GenerateCode(key, totp.Params{
//		Digits:    6,
//		Period:    30,
//		Algorithm: totp.SHA1,
//	}, time.Now())
//	if err != nil {
//		return err
//	}
//	fmt.Println(code.Value, "valid for", code.Remaining(time.Now()))
//
// Params.WithDefaults fills zero fields with 6 digits, 30 seconds and SHA1.
// Params.Validate enforces digits in {6,7,8}, a positive period and a known
// algorithm, returning ErrInvalidDigits, ErrInvalidPeriod or
// ErrUnsupportedAlgorithm.
//
// Verify checks a code typed by the user against a window of steps around the
// given instant, which is useful to confirm that a newly added account is in
// sync with the service that issued it.
//
// # See Also
//
//   - RFC 4226 – HMAC-Based One-Time Password (HOTP) Algorithm
//   - RFC 6238 – Time-Based One-Time Password (TOTP) Algorithm
package totp
