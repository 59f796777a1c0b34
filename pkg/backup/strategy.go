package backup

import (
	"errors"
	"fmt"
	"strings"
)

// Strategy decides how imported accounts merge with the existing ones.
type Strategy uint8

const (
	// Replace swaps the whole store for the document, only if every record
	// is valid.
	Replace Strategy = iota + 1
	// Append keeps existing accounts and adds every valid record, giving
	// colliding ids fresh values.
	Append
	// SkipDuplicates behaves like Append but skips records whose issuer,
	// label and secret match an account already present, including ones
	// added earlier from the same document.
	SkipDuplicates
)

// ParseStrategy accepts "replace", "append" and "skip-duplicates"
// (also "skip" and "skip_duplicates"), ignoring case.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "replace":
		return Replace, nil
	case "append":
		return Append, nil
	case "skip-duplicates", "skip_duplicates", "skipduplicates", "skip":
		return SkipDuplicates, nil
	}
	return 0, errors.Join(ErrUnknownStrategy, fmt.Errorf("got %q", s))
}

func (s Strategy) String() string {
	switch s {
	case Replace:
		return "replace"
	case Append:
		return "append"
	case SkipDuplicates:
		return "skip-duplicates"
	}
	return fmt.Sprintf("Strategy(%d)", uint8(s))
}

func (s Strategy) MarshalText() ([]byte, error) {
	if s < Replace || s > SkipDuplicates {
		return nil, errors.Join(ErrUnknownStrategy, fmt.Errorf("got %d", uint8(s)))
	}
	return []byte(s.String()), nil
}

func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
