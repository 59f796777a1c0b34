package otpauth

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"

	"github.com/dmitrymomot/otpkeeper/pkg/totp"
)

const (
	Scheme   = "otpauth"
	TypeTOTP = "totp"
	TypeHOTP = "hotp"
)

// Key holds the account parameters carried by an otpauth:// URI.
// Secret is the base32 text exactly as found in the URI; it is not decoded here.
type Key struct {
	Issuer    string
	Label     string
	Secret    string
	Algorithm totp.Algorithm
	Digits    int
	Period    int
}

// Parse reads a payload of the form
//
//	otpauth://totp/Issuer:label?secret=BASE32&issuer=Issuer&algorithm=SHA1&digits=6&period=30
//
// The issuer query parameter takes precedence over the label prefix.
// Unknown parameters are ignored. Digits and period are parsed but not range
// checked; that happens when the account is created.
func Parse(payload string) (Key, error) {
	if !utf8.ValidString(payload) {
		return Key{}, errors.Join(ErrInvalidURI, errors.New("payload is not valid UTF-8"))
	}
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return Key{}, errors.Join(ErrInvalidURI, errors.New("empty payload"))
	}

	u, err := url.Parse(payload)
	if err != nil {
		return Key{}, errors.Join(ErrInvalidURI, err)
	}
	if u.Scheme == "" {
		return Key{}, errors.Join(ErrInvalidURI, errors.New("missing scheme"))
	}
	if !strings.EqualFold(u.Scheme, Scheme) {
		return Key{}, errors.Join(ErrUnsupportedScheme, fmt.Errorf("got %q", u.Scheme))
	}

	switch strings.ToLower(u.Host) {
	case TypeTOTP:
	case TypeHOTP:
		return Key{}, ErrUnsupportedHOTP
	default:
		return Key{}, errors.Join(ErrInvalidURI, fmt.Errorf("unknown OTP type %q", u.Host))
	}

	query, err := url.ParseQuery(u.RawQuery)
	if err != nil {
		return Key{}, errors.Join(ErrInvalidURI, err)
	}

	prefix, label := splitLabel(strings.TrimPrefix(u.Path, "/"))
	if label == "" {
		return Key{}, errors.Join(ErrInvalidURI, errors.New("missing account label"))
	}

	key := Key{
		Issuer:    prefix,
		Label:     label,
		Secret:    strings.TrimSpace(query.Get("secret")),
		Algorithm: totp.DefaultAlgorithm,
		Digits:    totp.DefaultDigits,
		Period:    totp.DefaultPeriod,
	}
	if key.Secret == "" {
		return Key{}, ErrMissingSecret
	}
	if issuer := clean(query.Get("issuer")); issuer != "" {
		key.Issuer = issuer
	}

	if v := query.Get("algorithm"); v != "" {
		if key.Algorithm, err = totp.ParseAlgorithm(v); err != nil {
			return Key{}, err
		}
	}
	if key.Digits, err = intParam(query, "digits", key.Digits); err != nil {
		return Key{}, err
	}
	if key.Period, err = intParam(query, "period", key.Period); err != nil {
		return Key{}, err
	}

	return key, nil
}

// URI formats the key as an otpauth://totp URI understood by authenticator apps.
func (k Key) URI() string {
	var label string
	switch {
	case k.Issuer != "" && !strings.Contains(k.Issuer, ":"):
		label = escapeSegment(k.Issuer) + ":" + escapeSegment(k.Label)
	case strings.Contains(k.Label, ":"):
		// An empty prefix keeps the colon inside the label.
		label = ":" + escapeSegment(k.Label)
	default:
		label = escapeSegment(k.Label)
	}

	p := totp.Params{Digits: k.Digits, Period: k.Period, Algorithm: k.Algorithm}.WithDefaults()

	query := url.Values{}
	query.Set("secret", k.Secret)
	if k.Issuer != "" {
		query.Set("issuer", k.Issuer)
	}
	query.Set("algorithm", p.Algorithm.String())
	query.Set("digits", strconv.Itoa(p.Digits))
	query.Set("period", strconv.Itoa(p.Period))

	return fmt.Sprintf("%s://%s/%s?%s", Scheme, TypeTOTP, label, query.Encode())
}

// splitLabel separates an optional "issuer:" prefix from the account name.
// url.Parse has already percent-decoded the path, so "%3A" separates too.
func splitLabel(path string) (issuer, label string) {
	before, after, found := strings.Cut(path, ":")
	if !found {
		return "", clean(path)
	}
	return clean(before), clean(after)
}

func clean(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

func escapeSegment(s string) string {
	return strings.ReplaceAll(url.PathEscape(s), ":", "%3A")
}

func intParam(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Join(ErrInvalidURI, fmt.Errorf("%s: %w", name, err))
	}
	return n, nil
}
