package account

import (
	"bytes"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/otpkeeper/pkg/otpauth"
	"github.com/dmitrymomot/otpkeeper/pkg/secret"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"
)

// ID identifies an account for its whole lifetime.
type ID string

// NewID returns a random UUIDv4 based identifier.
func NewID() ID {
	return ID(uuid.NewString())
}

func (id ID) String() string {
	return string(id)
}

// Params is the input for creating an account, either typed in by the user or
// taken from a scanned otpauth:// URI. Zero Digits, Period and Algorithm mean
// the RFC 6238 defaults.
type Params struct {
	Issuer    string
	Label     string
	Secret    string // base32 text
	Digits    int
	Period    int
	Algorithm totp.Algorithm
}

// ParamsFromKey converts a parsed otpauth key.
func ParamsFromKey(k otpauth.Key) Params {
	return Params{
		Issuer:    k.Issuer,
		Label:     k.Label,
		Secret:    k.Secret,
		Digits:    k.Digits,
		Period:    k.Period,
		Algorithm: k.Algorithm,
	}
}

func (p Params) otp() totp.Params {
	return totp.Params{Digits: p.Digits, Period: p.Period, Algorithm: p.Algorithm}.WithDefaults()
}

// Account is a stored TOTP account. The decoded secret is kept unexported and
// only leaves the package as canonical base32 text.
type Account struct {
	ID        ID
	Issuer    string
	Label     string
	Digits    int
	Period    int
	Algorithm totp.Algorithm
	AddedAt   time.Time

	key []byte
}

// build validates p and creates an account. Secret decoding is the gate: an
// account with an undecodable secret is never constructed.
func build(id ID, p Params, addedAt time.Time) (*Account, error) {
	key, err := secret.Decode(p.Secret)
	if err != nil {
		return nil, err
	}
	otp := p.otp()
	if err := otp.Validate(); err != nil {
		return nil, err
	}
	return &Account{
		ID:        id,
		Issuer:    strings.TrimSpace(p.Issuer),
		Label:     strings.TrimSpace(p.Label),
		Digits:    otp.Digits,
		Period:    otp.Period,
		Algorithm: otp.Algorithm,
		AddedAt:   addedAt,
		key:       key,
	}, nil
}

// Secret returns the shared secret as canonical base32 text.
func (a Account) Secret() string {
	return secret.Encode(a.key)
}

// Params returns the code parameters of the account.
func (a Account) Params() totp.Params {
	return totp.Params{Digits: a.Digits, Period: a.Period, Algorithm: a.Algorithm}
}

// Code computes the code valid at now.
func (a Account) Code(now time.Time) (totp.Code, error) {
	return totp.GenerateCode(a.key, a.Params(), now)
}

// Verify checks a code against the account, allowing skew steps of drift.
func (a Account) Verify(code string, now time.Time, skew uint) (bool, error) {
	return totp.Verify(a.key, code, a.Params(), now, skew)
}

// Key returns the account as an otpauth key, ready to be rendered as a URI.
func (a Account) Key() otpauth.Key {
	return otpauth.Key{
		Issuer:    a.Issuer,
		Label:     a.Label,
		Secret:    a.Secret(),
		Algorithm: a.Algorithm,
		Digits:    a.Digits,
		Period:    a.Period,
	}
}

// DisplayName joins issuer and label the way authenticator apps show them.
func (a Account) DisplayName() string {
	switch {
	case a.Issuer == "":
		return a.Label
	case a.Label == "":
		return a.Issuer
	}
	return a.Issuer + " (" + a.Label + ")"
}

// Record returns the portable form of the account.
func (a Account) Record() Record {
	return Record{
		ID:        a.ID,
		Issuer:    a.Issuer,
		Label:     a.Label,
		Secret:    a.Secret(),
		Digits:    a.Digits,
		Period:    a.Period,
		Algorithm: a.Algorithm,
		AddedAt:   a.AddedAt,
	}
}

// same reports whether the account tracks the same issuer, label and secret.
func (a *Account) same(issuer, label string, key []byte) bool {
	return a.Issuer == strings.TrimSpace(issuer) &&
		a.Label == strings.TrimSpace(label) &&
		bytes.Equal(a.key, key)
}

// Record is the portable form of an account exchanged with snapshots and
// backups. Only Secret is required: an empty ID is assigned on insert and zero
// code parameters take the RFC 6238 defaults.
type Record struct {
	ID        ID
	Issuer    string
	Label     string
	Secret    string
	Digits    int
	Period    int
	Algorithm totp.Algorithm
	AddedAt   time.Time
}

// Params returns the creation parameters carried by the record.
func (r Record) Params() Params {
	return Params{
		Issuer:    r.Issuer,
		Label:     r.Label,
		Secret:    r.Secret,
		Digits:    r.Digits,
		Period:    r.Period,
		Algorithm: r.Algorithm,
	}
}

// Validate runs the same checks as Store.Add without touching a store.
func (r Record) Validate() error {
	_, err := build(r.ID, r.Params(), r.AddedAt)
	return err
}
