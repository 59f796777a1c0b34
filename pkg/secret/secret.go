package secret

import (
	"crypto/rand"
	"encoding/base32"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/width"
)

// DefaultSize is the secret length in bytes used by Generate when no size is given.
// 160 bits matches the HMAC-SHA1 block recommendation of RFC 4226.
const DefaultSize = 20

var (
	padded   = base32.StdEncoding
	unpadded = base32.StdEncoding.WithPadding(base32.NoPadding)
)

// padCount maps the length of an unpadded base32 string modulo 8 to the number
// of "=" characters required to complete the final quantum. Missing keys are
// lengths no byte sequence can encode to.
var padCount = map[int]int{0: 0, 2: 6, 4: 4, 5: 3, 7: 1}

// Encode returns the canonical base32 text for key.
func Encode(key []byte) string {
	return padded.EncodeToString(key)
}

// Decode parses base32 text into raw secret bytes.
func Decode(s string) ([]byte, error) {
	body, err := clean(s)
	if err != nil {
		return nil, err
	}
	key, err := unpadded.DecodeString(body)
	if err != nil {
		return nil, errors.Join(ErrInvalidSecretFormat, err)
	}
	return key, nil
}

// Normalize returns the canonical form of s.
func Normalize(s string) (string, error) {
	key, err := Decode(s)
	if err != nil {
		return "", err
	}
	return Encode(key), nil
}

// Valid reports whether s decodes.
func Valid(s string) bool {
	_, err := clean(s)
	return err == nil
}

// Generate returns a random secret of size bytes in canonical text form.
func Generate(size int) (string, error) {
	if size <= 0 {
		size = DefaultSize
	}
	key := make([]byte, size)
	if _, err := rand.Read(key); err != nil {
		return "", errors.Join(ErrFailedToGenerate, err)
	}
	return Encode(key), nil
}

// clean folds, upper-cases and strips separators and padding, returning the
// unpadded body ready for decoding.
func clean(s string) (string, error) {
	s = width.Fold.String(s)

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) || r == '-' {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	text := b.String()

	body := strings.TrimRight(text, "=")
	pad := len(text) - len(body)

	if body == "" {
		return "", errors.Join(ErrInvalidSecretFormat, errors.New("empty secret"))
	}
	for i, r := range body {
		if !isAlphabet(r) {
			return "", errors.Join(ErrInvalidSecretFormat,
				fmt.Errorf("illegal character %q at position %d", r, i))
		}
	}

	want, ok := padCount[len(body)%8]
	if !ok {
		return "", errors.Join(ErrInvalidSecretFormat,
			fmt.Errorf("impossible base32 length %d", len(body)))
	}
	if pad != 0 && pad != want {
		return "", errors.Join(ErrInvalidSecretFormat,
			fmt.Errorf("expected %d padding characters, got %d", want, pad))
	}

	return body, nil
}

func isAlphabet(r rune) bool {
	return (r >= 'A' && r <= 'Z') || (r >= '2' && r <= '7')
}
