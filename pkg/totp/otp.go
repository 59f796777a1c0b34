package totp

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultDigits = 6  // Standard 6-digit TOTP codes
	DefaultPeriod = 30 // 30-second validity window (RFC 6238 standard)
)

// pow10 covers every supported digit count.
var pow10 = [...]uint32{6: 1_000_000, 7: 10_000_000, 8: 100_000_000}

// Params holds the code shape shared by every account.
type Params struct {
	Digits    int       // Number of digits in generated codes: 6, 7 or 8
	Period    int       // Code validity period in seconds
	Algorithm Algorithm // HMAC algorithm
}

// WithDefaults returns a copy with RFC 6238 defaults applied to zero-valued fields.
func (p Params) WithDefaults() Params {
	if p.Algorithm == 0 {
		p.Algorithm = DefaultAlgorithm
	}
	if p.Digits == 0 {
		p.Digits = DefaultDigits
	}
	if p.Period == 0 {
		p.Period = DefaultPeriod
	}
	return p
}

// Validate checks the parameters without applying defaults.
func (p Params) Validate() error {
	if !p.Algorithm.Valid() {
		return errors.Join(ErrUnsupportedAlgorithm, fmt.Errorf("got %s", p.Algorithm))
	}
	if p.Digits < 6 || p.Digits > 8 {
		return errors.Join(ErrInvalidDigits, fmt.Errorf("got %d", p.Digits))
	}
	if p.Period <= 0 {
		return errors.Join(ErrInvalidPeriod, fmt.Errorf("got %d", p.Period))
	}
	return nil
}

// Code is a generated one-time password together with the window it is valid in.
type Code struct {
	Value     string
	ValidFrom time.Time
	ValidTo   time.Time
}

func (c Code) String() string {
	return c.Value
}

// Remaining returns how long the code stays valid after now, never negative.
func (c Code) Remaining(now time.Time) time.Duration {
	if d := c.ValidTo.Sub(now); d > 0 {
		return d
	}
	return 0
}

// Counter returns the RFC 6238 time-step counter for t.
func Counter(t time.Time, period int) uint64 {
	return uint64(floorDiv(t.Unix(), int64(period)))
}

// GenerateCode computes the TOTP code valid at now. It never reads the wall clock.
func GenerateCode(key []byte, p Params, now time.Time) (Code, error) {
	if err := p.Validate(); err != nil {
		return Code{}, err
	}
	if len(key) == 0 {
		return Code{}, ErrEmptyKey
	}

	period := int64(p.Period)
	step := floorDiv(now.Unix(), period)

	// Window bounds stay in unix seconds; a time.Duration overflows for
	// periods beyond ~292 years.
	return Code{
		Value:     GenerateHOTP(key, uint64(step), p.Digits, p.Algorithm),
		ValidFrom: time.Unix(step*period, 0).UTC(),
		ValidTo:   time.Unix((step+1)*period, 0).UTC(),
	}, nil
}

// GenerateHOTP implements RFC 4226 HMAC-based One-Time Password algorithm.
// digits must be 6, 7 or 8 and alg one of the supported algorithms; callers
// validate through Params first.
func GenerateHOTP(key []byte, counter uint64, digits int, alg Algorithm) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(alg.hash(), key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	// Dynamic truncation: low nibble of the last byte selects a 4-byte window,
	// the top bit is masked so the value is a positive 31-bit integer.
	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	return fmt.Sprintf("%0*d", digits, value%pow10[digits])
}

// Verify reports whether otp matches the code at now or within skew steps on
// either side, tolerating clock drift between devices.
func Verify(key []byte, otp string, p Params, now time.Time, skew uint) (bool, error) {
	if err := p.Validate(); err != nil {
		return false, err
	}
	if len(key) == 0 {
		return false, ErrEmptyKey
	}

	otp = strings.TrimSpace(otp)
	if len(otp) != p.Digits || strings.IndexFunc(otp, notDigit) >= 0 {
		return false, ErrInvalidOTP
	}

	step := floorDiv(now.Unix(), int64(p.Period))
	ok := false
	for i := -int64(skew); i <= int64(skew); i++ {
		if step+i < 0 {
			continue
		}
		code := GenerateHOTP(key, uint64(step+i), p.Digits, p.Algorithm)
		// Keep scanning after a match so timing does not leak which step matched.
		if subtle.ConstantTimeCompare([]byte(code), []byte(otp)) == 1 {
			ok = true
		}
	}
	return ok, nil
}

func notDigit(r rune) bool {
	return r < '0' || r > '9'
}

// floorDiv rounds toward negative infinity so instants before the epoch land
// in the correct step.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
