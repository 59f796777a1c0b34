// Package account keeps the collection of TOTP accounts an authenticator
// displays.
//
// Store is an explicit value owned by the host application: there is no
// package level state. It preserves insertion order, which is also the display
// and export order, and guarantees that ids are unique and that every stored
// account has a secret that decodes.
//
// # Lifecycle
//
// A store starts empty or is restored with Load from a snapshot read at
// startup. After that it changes only through Add, Rename, Update, Remove,
// Insert and Replace. When a Persister is configured each of those writes a
// full snapshot before the change becomes visible; a failed write returns an
// error wrapping ErrPersist and leaves the store unchanged. WithAutoPersist(false)
// defers writing to explicit Flush calls.
//
// # Codes
//
// CurrentCode and Codes compute codes for the instant passed in. The store
// never reads the clock for codes and never schedules refreshes; the host
// polls, typically sleeping until the returned Code.ValidTo.
//
// # Duplicates
//
// Adding an account whose issuer, label and secret match an existing one is
// allowed. FindDuplicate lets a user interface warn before calling Add.
//
// # Concurrency
//
// Store is safe for concurrent use: reads share a read lock and mutations are
// serialized behind the write lock.
package account
