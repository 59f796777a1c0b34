// Package otpkeeper is a local authenticator core: it stores TOTP secrets and
// computes the codes an authenticator app displays.
//
// Keeper ties the building blocks together for a host application:
//
//   - pkg/secret decodes and validates base32 secrets
//   - pkg/totp computes RFC 6238 codes and their validity window
//   - pkg/otpauth parses otpauth:// URIs from QR codes
//   - pkg/account keeps the ordered account list
//   - pkg/backup exports and imports portable documents
//   - pkg/storage persists the list to a local file
//   - pkg/qrcode reads QR payloads through a host supplied Decoder and renders
//     accounts back to QR codes
//
// A typical host:
//
//	cfg, err := otpkeeper.LoadConfig()
//	...
//	k, err := otpkeeper.Open(ctx, cfg, otpkeeper.WithLogger(log))
//	...
//	added, err := k.AddURI(ctx, "otpauth://totp/GitHub:octocat?secret=JBSWY3DPEHPK3PXP&issuer=GitHub")
//	...
//	for _, e := range k.Codes() {
//		fmt.Println(e.Account.DisplayName(), e.Code.Value, e.Code.Remaining(time.Now()))
//	}
//
// The host owns the refresh loop: it calls Codes or Code again once the
// returned Code.ValidTo has passed. Keeper never starts goroutines or timers
// of its own; WatchFile blocks on the caller's goroutine and reloads the
// accounts whenever another process rewrites the snapshot file.
package otpkeeper
