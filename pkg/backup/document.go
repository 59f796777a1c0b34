package backup

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"
)

const (
	// Version is written by Export. Any 2.x document is read.
	Version = "2.0"
	// LegacyVersion is the keyed-by-name export of the previous desktop app.
	LegacyVersion = "1.0"
)

// Document is a self-describing list of accounts, used both for the on-disk
// snapshot and for export files.
type Document struct {
	Version    string    `json:"version" yaml:"version"`
	ExportedAt time.Time `json:"exported_at,omitzero" yaml:"exported_at,omitempty"`
	Accounts   []Record  `json:"accounts" yaml:"accounts"`
}

// Record is an account on the wire. Only Secret is required; backups written
// by hand may leave out ids and code parameters.
type Record struct {
	ID        string    `json:"id,omitempty" yaml:"id,omitempty"`
	Issuer    string    `json:"issuer" yaml:"issuer"`
	Label     string    `json:"label" yaml:"label"`
	Secret    string    `json:"secret" yaml:"secret"`
	Digits    int       `json:"digits,omitempty" yaml:"digits,omitempty"`
	Period    int       `json:"period,omitempty" yaml:"period,omitempty"`
	Algorithm string    `json:"algorithm,omitempty" yaml:"algorithm,omitempty"`
	AddedAt   time.Time `json:"added_at,omitzero" yaml:"added_at,omitempty"`
}

// NewDocument builds a current-version document from store records.
func NewDocument(recs []account.Record, now time.Time) Document {
	return Document{
		Version:    Version,
		ExportedAt: now.UTC(),
		Accounts:   lo.Map(recs, func(r account.Record, _ int) Record { return FromAccount(r) }),
	}
}

// FromAccount converts a store record to its wire form.
func FromAccount(r account.Record) Record {
	return Record{
		ID:        r.ID.String(),
		Issuer:    r.Issuer,
		Label:     r.Label,
		Secret:    r.Secret,
		Digits:    r.Digits,
		Period:    r.Period,
		Algorithm: r.Algorithm.String(),
		AddedAt:   r.AddedAt,
	}
}

// Account converts the wire record for the store. An empty algorithm means
// the default; an unknown one is an error.
func (r Record) Account() (account.Record, error) {
	var alg totp.Algorithm
	if r.Algorithm != "" {
		var err error
		if alg, err = totp.ParseAlgorithm(r.Algorithm); err != nil {
			return account.Record{}, errors.Join(ErrInvalidAlgorithm, err)
		}
	}
	return account.Record{
		ID:        account.ID(r.ID),
		Issuer:    r.Issuer,
		Label:     r.Label,
		Secret:    r.Secret,
		Digits:    r.Digits,
		Period:    r.Period,
		Algorithm: alg,
		AddedAt:   r.AddedAt,
	}, nil
}

type unmarshalFunc func(data []byte, v any) error

// decode reads any supported document version with the given format
// decoder. Unknown fields are ignored.
func decode(data []byte, unmarshal unmarshalFunc) (Document, error) {
	var head struct {
		Version any `json:"version" yaml:"version"`
	}
	if err := unmarshal(data, &head); err != nil {
		return Document{}, errors.Join(ErrInvalidFormat, err)
	}

	version, ok := versionString(head.Version)
	if !ok {
		return Document{}, errors.Join(ErrInvalidFormat, errors.New("missing version"))
	}

	switch {
	case version == LegacyVersion:
		return decodeLegacy(data, unmarshal)
	case version == Version || strings.HasPrefix(version, "2."):
		var doc Document
		if err := unmarshal(data, &doc); err != nil {
			return Document{}, errors.Join(ErrInvalidFormat, err)
		}
		doc.Version = version
		return doc, nil
	}
	return Document{}, errors.Join(ErrUnsupportedVersion, fmt.Errorf("got %q", version))
}

// versionString accepts quoted versions and the bare numbers hand-edited
// YAML produces.
func versionString(v any) (string, bool) {
	switch v := v.(type) {
	case string:
		v = strings.TrimSpace(v)
		return v, v != ""
	case int:
		return strconv.Itoa(v) + ".0", true
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatFloat(v, 'f', 1, 64), true
		}
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

// decodeLegacy reads a 1.0 export: accounts keyed by display name, each value
// an object with secret, account, issuer and a unix "added" timestamp, or
// just the secret text. Records are ordered by added time, then by key.
func decodeLegacy(data []byte, unmarshal unmarshalFunc) (Document, error) {
	var raw struct {
		ExportedAt any            `json:"exported_at" yaml:"exported_at"`
		Accounts   map[string]any `json:"accounts" yaml:"accounts"`
	}
	if err := unmarshal(data, &raw); err != nil {
		return Document{}, errors.Join(ErrInvalidFormat, err)
	}

	type keyed struct {
		key string
		rec Record
	}
	entries := make([]keyed, 0, len(raw.Accounts))
	for key, v := range raw.Accounts {
		rec := Record{Label: key}
		switch v := v.(type) {
		case string:
			rec.Secret = v
		case map[string]any:
			rec.Secret, _ = v["secret"].(string)
			if label, _ := v["account"].(string); label != "" {
				rec.Label = label
			}
			rec.Issuer, _ = v["issuer"].(string)
			rec.AddedAt = unixTime(v["added"])
		}
		entries = append(entries, keyed{key: key, rec: rec})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.rec.AddedAt.Equal(b.rec.AddedAt) {
			return a.rec.AddedAt.Before(b.rec.AddedAt)
		}
		return a.key < b.key
	})

	return Document{
		Version:    LegacyVersion,
		ExportedAt: unixTime(raw.ExportedAt),
		Accounts:   lo.Map(entries, func(e keyed, _ int) Record { return e.rec }),
	}, nil
}

// unixTime converts fractional unix seconds. Zero and non-numeric values give
// the zero time.
func unixTime(v any) time.Time {
	var f float64
	switch v := v.(type) {
	case float64:
		f = v
	case int:
		f = float64(v)
	default:
		return time.Time{}
	}
	if f <= 0 {
		return time.Time{}
	}
	sec, frac := math.Modf(f)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC().Truncate(time.Microsecond)
}
