package totp_test

import (
	"strings"
	"testing"
	"time"

	"github.com/dmitrymomot/otpkeeper/pkg/secret"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"

	"github.com/pquerna/otp"
	pqtotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RFC 6238 Appendix B seeds.
var (
	seedSHA1   = []byte("12345678901234567890")
	seedSHA256 = []byte("12345678901234567890123456789012")
	seedSHA512 = []byte("1234567890123456789012345678901234567890123456789012345678901234")
)

func TestGenerateCodeRFC6238(t *testing.T) {
	t.Parallel()
	tests := []struct {
		unix int64
		alg  totp.Algorithm
		key  []byte
		want string
	}{
		{59, totp.SHA1, seedSHA1, "94287082"},
		{59, totp.SHA256, seedSHA256, "46119246"},
		{59, totp.SHA512, seedSHA512, "90693936"},
		{1111111109, totp.SHA1, seedSHA1, "07081804"},
		{1111111109, totp.SHA256, seedSHA256, "68084774"},
		{1111111109, totp.SHA512, seedSHA512, "25091201"},
		{1111111111, totp.SHA1, seedSHA1, "14050471"},
		{1111111111, totp.SHA256, seedSHA256, "67062674"},
		{1111111111, totp.SHA512, seedSHA512, "99943326"},
		{1234567890, totp.SHA1, seedSHA1, "89005924"},
		{1234567890, totp.SHA256, seedSHA256, "91819424"},
		{1234567890, totp.SHA512, seedSHA512, "93441116"},
		{2000000000, totp.SHA1, seedSHA1, "69279037"},
		{2000000000, totp.SHA256, seedSHA256, "90698825"},
		{2000000000, totp.SHA512, seedSHA512, "38618901"},
		{20000000000, totp.SHA1, seedSHA1, "65353130"},
		{20000000000, totp.SHA256, seedSHA256, "77737706"},
		{20000000000, totp.SHA512, seedSHA512, "47863826"},
	}

	for _, tt := range tests {
		t.Run(tt.alg.String()+"/"+time.Unix(tt.unix, 0).UTC().Format(time.RFC3339), func(t *testing.T) {
			t.Parallel()
			code, err := totp.GenerateCode(tt.key, totp.Params{
				Digits:    8,
				Period:    30,
				Algorithm: tt.alg,
			}, time.Unix(tt.unix, 0))
			require.NoError(t, err)
			assert.Equal(t, tt.want, code.Value)
		})
	}
}

func TestGenerateCodeFromBase32Secret(t *testing.T) {
	t.Parallel()
	key, err := secret.Decode("GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ")
	require.NoError(t, err)

	p := totp.Params{Digits: 8, Period: 30, Algorithm: totp.SHA1}

	code, err := totp.GenerateCode(key, p, time.Unix(59, 0))
	require.NoError(t, err)
	assert.Equal(t, "94287082", code.Value)

	code, err = totp.GenerateCode(key, p, time.Unix(1111111109, 0))
	require.NoError(t, err)
	assert.Equal(t, "07081804", code.Value)
}

func TestGenerateHOTPRFC4226(t *testing.T) {
	t.Parallel()
	want := []string{
		"755224", "287082", "359152", "969429", "338314",
		"254676", "287922", "162583", "399871", "520489",
	}
	for counter, code := range want {
		assert.Equal(t, code, totp.GenerateHOTP(seedSHA1, uint64(counter), 6, totp.SHA1), "counter %d", counter)
	}
}

func TestGenerateCodeWindow(t *testing.T) {
	t.Parallel()
	p := totp.Params{Digits: 6, Period: 30, Algorithm: totp.SHA1}
	now := time.Unix(1111111109, 0)

	code, err := totp.GenerateCode(seedSHA1, p, now)
	require.NoError(t, err)

	assert.Equal(t, time.Unix(1111111080, 0).UTC(), code.ValidFrom)
	assert.Equal(t, time.Unix(1111111110, 0).UTC(), code.ValidTo)
	assert.Equal(t, time.Second, code.Remaining(now))
	assert.Zero(t, code.Remaining(now.Add(time.Hour)))
	assert.Equal(t, uint64(37037036), totp.Counter(now, 30))

	t.Run("same instant is pure", func(t *testing.T) {
		t.Parallel()
		again, err := totp.GenerateCode(seedSHA1, p, now)
		require.NoError(t, err)
		assert.Equal(t, code, again)
	})

	t.Run("same window shares the code", func(t *testing.T) {
		t.Parallel()
		start, err := totp.GenerateCode(seedSHA1, p, code.ValidFrom)
		require.NoError(t, err)
		assert.Equal(t, code.Value, start.Value)
	})

	t.Run("next period uses the next counter", func(t *testing.T) {
		t.Parallel()
		next, err := totp.GenerateCode(seedSHA1, p, now.Add(30*time.Second))
		require.NoError(t, err)
		assert.Equal(t, code.ValidTo, next.ValidFrom)
		assert.NotEqual(t, code.Value, next.Value)
	})

	t.Run("custom period", func(t *testing.T) {
		t.Parallel()
		long, err := totp.GenerateCode(seedSHA1, totp.Params{Digits: 7, Period: 60, Algorithm: totp.SHA256}, now)
		require.NoError(t, err)
		assert.Len(t, long.Value, 7)
		assert.Equal(t, time.Minute, long.ValidTo.Sub(long.ValidFrom))
	})

	t.Run("period longer than a duration can hold", func(t *testing.T) {
		t.Parallel()
		huge, err := totp.GenerateCode(seedSHA1, totp.Params{Digits: 6, Period: 10_000_000_000, Algorithm: totp.SHA1}, now)
		require.NoError(t, err)
		assert.Equal(t, time.Unix(0, 0).UTC(), huge.ValidFrom)
		assert.Equal(t, time.Unix(10_000_000_000, 0).UTC(), huge.ValidTo)
		assert.True(t, huge.ValidTo.After(huge.ValidFrom))
		assert.True(t, huge.Remaining(now) > 0)
	})
}

func TestGenerateCodeMatchesPquerna(t *testing.T) {
	t.Parallel()
	algs := map[totp.Algorithm]otp.Algorithm{
		totp.SHA1:   otp.AlgorithmSHA1,
		totp.SHA256: otp.AlgorithmSHA256,
		totp.SHA512: otp.AlgorithmSHA512,
	}

	text, err := secret.Generate(20)
	require.NoError(t, err)
	key, err := secret.Decode(text)
	require.NoError(t, err)

	for alg, pqAlg := range algs {
		for _, digits := range []int{6, 7, 8} {
			for _, period := range []int{15, 30, 60} {
				at := time.Unix(1700000000+int64(digits*period), 0)

				got, err := totp.GenerateCode(key, totp.Params{Digits: digits, Period: period, Algorithm: alg}, at)
				require.NoError(t, err)

				want, err := pqtotp.GenerateCodeCustom(text, at, pqtotp.ValidateOpts{
					Period:    uint(period),
					Digits:    otp.Digits(digits),
					Algorithm: pqAlg,
				})
				require.NoError(t, err)
				assert.Equal(t, want, got.Value, "%s/%d/%d", alg, digits, period)
			}
		}
	}
}

func TestGenerateCodeErrors(t *testing.T) {
	t.Parallel()
	now := time.Unix(59, 0)
	tests := []struct {
		name   string
		key    []byte
		params totp.Params
		want   error
	}{
		{"zero algorithm", seedSHA1, totp.Params{Digits: 6, Period: 30}, totp.ErrUnsupportedAlgorithm},
		{"unknown algorithm", seedSHA1, totp.Params{Digits: 6, Period: 30, Algorithm: totp.Algorithm(9)}, totp.ErrUnsupportedAlgorithm},
		{"five digits", seedSHA1, totp.Params{Digits: 5, Period: 30, Algorithm: totp.SHA1}, totp.ErrInvalidDigits},
		{"nine digits", seedSHA1, totp.Params{Digits: 9, Period: 30, Algorithm: totp.SHA1}, totp.ErrInvalidDigits},
		{"zero period", seedSHA1, totp.Params{Digits: 6, Period: 0, Algorithm: totp.SHA1}, totp.ErrInvalidPeriod},
		{"negative period", seedSHA1, totp.Params{Digits: 6, Period: -30, Algorithm: totp.SHA1}, totp.ErrInvalidPeriod},
		{"empty key", nil, totp.Params{Digits: 6, Period: 30, Algorithm: totp.SHA1}, totp.ErrEmptyKey},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, err := totp.GenerateCode(tt.key, tt.params, now)
			assert.ErrorIs(t, err, tt.want)
			assert.Zero(t, code)
		})
	}
}

func TestParamsWithDefaults(t *testing.T) {
	t.Parallel()
	p := totp.Params{}.WithDefaults()
	assert.Equal(t, totp.Params{Digits: 6, Period: 30, Algorithm: totp.SHA1}, p)
	require.NoError(t, p.Validate())

	custom := totp.Params{Digits: 8, Period: 60, Algorithm: totp.SHA512}
	assert.Equal(t, custom, custom.WithDefaults())
}

func TestVerify(t *testing.T) {
	t.Parallel()
	p := totp.Params{Digits: 6, Period: 30, Algorithm: totp.SHA1}
	now := time.Unix(1111111109, 0)

	current, err := totp.GenerateCode(seedSHA1, p, now)
	require.NoError(t, err)
	previous, err := totp.GenerateCode(seedSHA1, p, now.Add(-30*time.Second))
	require.NoError(t, err)
	stale, err := totp.GenerateCode(seedSHA1, p, now.Add(-90*time.Second))
	require.NoError(t, err)

	tests := []struct {
		name    string
		otp     string
		skew    uint
		want    bool
		wantErr error
	}{
		{name: "current", otp: current.Value, want: true},
		{name: "current with spaces", otp: " " + current.Value + " ", want: true},
		{name: "previous without skew", otp: previous.Value, want: false},
		{name: "previous with skew", otp: previous.Value, skew: 1, want: true},
		{name: "stale with skew", otp: stale.Value, skew: 1, want: false},
		{name: "wrong length", otp: "12345", wantErr: totp.ErrInvalidOTP},
		{name: "letters", otp: "12345a", wantErr: totp.ErrInvalidOTP},
		{name: "empty", otp: "", wantErr: totp.ErrInvalidOTP},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ok, err := totp.Verify(seedSHA1, tt.otp, p, now, tt.skew)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, ok)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestParseAlgorithm(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in      string
		want    totp.Algorithm
		wantErr bool
	}{
		{in: "SHA1", want: totp.SHA1},
		{in: "sha1", want: totp.SHA1},
		{in: "Sha256", want: totp.SHA256},
		{in: "SHA-512", want: totp.SHA512},
		{in: "HMAC-SHA256", want: totp.SHA256},
		{in: " sha512 ", want: totp.SHA512},
		{in: "MD5", wantErr: true},
		{in: "SHA384", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, err := totp.ParseAlgorithm(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, totp.ErrUnsupportedAlgorithm)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAlgorithmText(t *testing.T) {
	t.Parallel()
	for _, alg := range []totp.Algorithm{totp.SHA1, totp.SHA256, totp.SHA512} {
		text, err := alg.MarshalText()
		require.NoError(t, err)

		var back totp.Algorithm
		require.NoError(t, back.UnmarshalText([]byte(strings.ToLower(string(text)))))
		assert.Equal(t, alg, back)
	}

	_, err := totp.Algorithm(0).MarshalText()
	assert.ErrorIs(t, err, totp.ErrUnsupportedAlgorithm)

	var a totp.Algorithm
	assert.ErrorIs(t, a.UnmarshalText([]byte("whirlpool")), totp.ErrUnsupportedAlgorithm)
	assert.Equal(t, "Algorithm(0)", a.String())
}
