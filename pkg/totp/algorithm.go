package totp

import (
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"
	"strings"
)

// Algorithm selects the HMAC hash function. The set is closed: only the three
// algorithms named by RFC 6238 exist, and the zero value means "not set".
type Algorithm uint8

const (
	SHA1 Algorithm = iota + 1
	SHA256
	SHA512
)

// DefaultAlgorithm is what authenticator apps assume when the URI omits it.
const DefaultAlgorithm = SHA1

// ParseAlgorithm matches name case-insensitively. Both "SHA256" and
// "HMAC-SHA256" spellings are accepted.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := strings.ToUpper(strings.TrimSpace(name))
	n = strings.TrimPrefix(n, "HMAC-")
	n = strings.ReplaceAll(n, "-", "")
	switch n {
	case "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "SHA512":
		return SHA512, nil
	}
	return 0, errors.Join(ErrUnsupportedAlgorithm, fmt.Errorf("unknown algorithm %q", name))
}

// Valid reports whether a is one of the supported algorithms.
func (a Algorithm) Valid() bool {
	return a >= SHA1 && a <= SHA512
}

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "SHA1"
	case SHA256:
		return "SHA256"
	case SHA512:
		return "SHA512"
	}
	return fmt.Sprintf("Algorithm(%d)", uint8(a))
}

// MarshalText renders the algorithm name so it serializes as a string in JSON and YAML.
func (a Algorithm) MarshalText() ([]byte, error) {
	if !a.Valid() {
		return nil, errors.Join(ErrUnsupportedAlgorithm, fmt.Errorf("cannot marshal %s", a))
	}
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	parsed, err := ParseAlgorithm(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func (a Algorithm) hash() func() hash.Hash {
	switch a {
	case SHA256:
		return sha256.New
	case SHA512:
		return sha512.New
	default:
		return sha1.New
	}
}
