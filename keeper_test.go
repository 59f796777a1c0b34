package otpkeeper_test

import (
	"bytes"
	"context"
	"errors"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dmitrymomot/otpkeeper"
	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/clock"
	"github.com/dmitrymomot/otpkeeper/pkg/otpauth"
	"github.com/dmitrymomot/otpkeeper/pkg/qrcode"
	"github.com/dmitrymomot/otpkeeper/pkg/secret"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const githubURI = "otpauth://totp/GitHub:octocat?secret=JBSWY3DPEHPK3PXP&issuer=GitHub"

func testConfig(t *testing.T) otpkeeper.Config {
	t.Helper()
	return otpkeeper.Config{
		StoragePath:    filepath.Join(t.TempDir(), "accounts.json"),
		AutoPersist:    true,
		QRSize:         200,
		ImportStrategy: backup.SkipDuplicates,
	}
}

func open(t *testing.T, cfg otpkeeper.Config, opts ...otpkeeper.Option) *otpkeeper.Keeper {
	t.Helper()
	k, err := otpkeeper.Open(context.Background(), cfg, opts...)
	require.NoError(t, err)
	return k
}

func TestOpenAndPersist(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig(t)

	k := open(t, cfg)
	assert.Empty(t, k.List())

	added, err := k.AddURI(ctx, githubURI)
	require.NoError(t, err)
	assert.False(t, added.Duplicate())

	_, err = k.AddManual(ctx, "Example", "alice", "gezd gnbv gy3t qojq")
	require.NoError(t, err)

	reopened := open(t, cfg)
	list := reopened.List()
	require.Len(t, list, 2)
	assert.Equal(t, added.ID, list[0].ID)
	assert.Equal(t, "GitHub", list[0].Issuer)
	assert.Equal(t, "alice", list[1].Label)
	assert.Equal(t, "GEZDGNBVGY3TQOJQ", list[1].Secret())
}

func TestOpenInvalidConfig(t *testing.T) {
	t.Parallel()
	_, err := otpkeeper.Open(context.Background(), otpkeeper.Config{})
	assert.ErrorIs(t, err, otpkeeper.ErrInvalidConfig)
}

func TestAddRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	k := open(t, testConfig(t))

	_, err := k.AddURI(ctx, "otpauth://hotp/Example:alice?secret=JBSWY3DPEHPK3PXP&counter=0")
	assert.ErrorIs(t, err, otpauth.ErrUnsupportedHOTP)

	_, err = k.AddURI(ctx, "otpauth://totp/Example:alice?issuer=Example")
	assert.ErrorIs(t, err, otpauth.ErrMissingSecret)

	_, err = k.AddURI(ctx, "otpauth://totp/Example:alice?secret=JBSWY3DPEHPK3PXP&digits=10")
	assert.ErrorIs(t, err, totp.ErrInvalidDigits)

	_, err = k.AddManual(ctx, "Example", "alice", "JBSWY3DPEHPK3PX1")
	assert.ErrorIs(t, err, secret.ErrInvalidSecretFormat)

	assert.Empty(t, k.List())
}

func TestAddDuplicateWarns(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	k := open(t, testConfig(t))

	first, err := k.AddURI(ctx, githubURI)
	require.NoError(t, err)

	second, err := k.AddManual(ctx, "GitHub", "octocat", "jbswy3dpehpk3pxp")
	require.NoError(t, err)
	assert.True(t, second.Duplicate())
	assert.Equal(t, first.ID, second.DuplicateOf)
	assert.Len(t, k.List(), 2)
}

func TestAddDuplicateConcurrent(t *testing.T) {
	t.Parallel()
	k := open(t, testConfig(t))

	const n = 16
	results := make(chan otpkeeper.Added, n)
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			added, err := k.AddURI(context.Background(), githubURI)
			assert.NoError(t, err)
			results <- added
		}()
	}
	wg.Wait()
	close(results)

	originals := 0
	for added := range results {
		if !added.Duplicate() {
			originals++
		}
	}
	assert.Equal(t, 1, originals)
	assert.Len(t, k.List(), n)
}

func TestAddImage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	dec := qrcode.DecoderFunc(func(_ context.Context, img []byte) (string, error) {
		if len(img) == 0 {
			return "", errors.New("no code in image")
		}
		return githubURI, nil
	})
	k := open(t, testConfig(t), otpkeeper.WithDecoder(dec))

	added, err := k.AddImage(ctx, []byte("image"))
	require.NoError(t, err)
	acc, err := k.Store().Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "octocat", acc.Label)

	_, err = k.AddImage(ctx, nil)
	assert.ErrorIs(t, err, qrcode.ErrDecodeFailed)

	withoutDecoder := open(t, testConfig(t))
	_, err = withoutDecoder.AddImage(ctx, []byte("image"))
	assert.ErrorIs(t, err, qrcode.ErrNoDecoder)
}

func TestCodeUsesClock(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	clk := clock.NewFixed(time.Unix(59, 0))
	k := open(t, testConfig(t), otpkeeper.WithClock(clk))

	added, err := k.AddURI(ctx, "otpauth://totp/RFC:6238?secret=GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ&digits=8")
	require.NoError(t, err)

	code, err := k.Code(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "94287082", code.Value)
	assert.Equal(t, time.Unix(60, 0).UTC(), code.ValidTo)
	assert.Equal(t, time.Second, code.Remaining(k.Now()))

	ok, err := k.Verify(added.ID, "94287082")
	require.NoError(t, err)
	assert.True(t, ok)

	clk.Set(time.Unix(1111111109, 0))
	entries := k.Codes()
	require.Len(t, entries, 1)
	assert.Equal(t, "07081804", entries[0].Code.Value)

	_, err = k.Code("missing")
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestRenameUpdateRemove(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig(t)
	k := open(t, cfg)

	added, err := k.AddURI(ctx, githubURI)
	require.NoError(t, err)

	label := "hubot"
	require.NoError(t, k.Rename(ctx, added.ID, nil, &label))
	require.NoError(t, k.Update(ctx, added.ID, account.Settings{Digits: 8, Algorithm: totp.SHA256}))

	acc, err := open(t, cfg).Store().Get(added.ID)
	require.NoError(t, err)
	assert.Equal(t, "hubot", acc.Label)
	assert.Equal(t, 8, acc.Digits)
	assert.Equal(t, totp.SHA256, acc.Algorithm)

	assert.ErrorIs(t, k.Remove(ctx, "nonexistent"), account.ErrNotFound)
	assert.Len(t, k.List(), 1)

	require.NoError(t, k.Remove(ctx, added.ID))
	assert.Empty(t, open(t, cfg).List())
}

func TestGenerate(t *testing.T) {
	t.Parallel()
	k := open(t, testConfig(t))

	added, err := k.Generate(context.Background(), "Self", "service", totp.Params{Period: 60})
	require.NoError(t, err)

	acc, err := k.Store().Get(added.ID)
	require.NoError(t, err)
	assert.Len(t, acc.Secret(), 32)
	assert.Equal(t, 60, acc.Period)
	assert.Equal(t, 6, acc.Digits)
}

func TestQRCode(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	k := open(t, testConfig(t))

	added, err := k.AddURI(ctx, githubURI)
	require.NoError(t, err)

	uri, err := k.URI(added.ID)
	require.NoError(t, err)
	key, err := otpauth.Parse(uri)
	require.NoError(t, err)
	assert.Equal(t, "GitHub", key.Issuer)
	assert.Equal(t, "octocat", key.Label)

	data, err := k.QRCode(added.ID, 0)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 200, img.Bounds().Dx())

	_, err = k.QRCode("missing", 0)
	assert.ErrorIs(t, err, account.ErrNotFound)
}

func TestExportImport(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := open(t, testConfig(t))
	for _, uri := range []string{
		githubURI,
		"otpauth://totp/Example:alice@example.com?secret=GEZDGNBVGY3TQOJQ&issuer=Example&algorithm=SHA512&digits=7&period=45",
	} {
		_, err := src.AddURI(ctx, uri)
		require.NoError(t, err)
	}

	data, err := src.Export(backup.JSONCodec{})
	require.NoError(t, err)

	dst := open(t, testConfig(t))
	res, err := dst.Import(ctx, data, backup.JSONCodec{}, backup.Replace)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Equal(t, src.Store().Records(), dst.Store().Records())

	// The configured default strategy skips what is already there.
	res, err = dst.Import(ctx, data, backup.JSONCodec{}, 0)
	require.NoError(t, err)
	assert.Zero(t, res.Added)
	assert.Equal(t, 2, res.Skipped)

	res, err = dst.Import(ctx, data, backup.JSONCodec{}, backup.Append)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Added)
	assert.Len(t, dst.List(), 4)

	_, err = dst.Import(ctx, []byte(`{"version":"5.0","accounts":[]}`), backup.JSONCodec{}, backup.Replace)
	assert.ErrorIs(t, err, backup.ErrUnsupportedVersion)
	assert.Len(t, dst.List(), 4)
}

func TestExportFileImportFile(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	src := open(t, testConfig(t))
	_, err := src.AddURI(ctx, githubURI)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "backup.yaml")
	require.NoError(t, src.ExportFile(ctx, path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `version: "2.0"`)

	dst := open(t, testConfig(t))
	res, err := dst.ImportFile(ctx, path, backup.Append)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, src.Store().Records(), dst.Store().Records())

	_, err = dst.ImportFile(ctx, filepath.Join(t.TempDir(), "missing.json"), backup.Append)
	assert.ErrorIs(t, err, otpkeeper.ErrReadFile)
}

func TestAutoPersistDisabled(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.AutoPersist = false

	k := open(t, cfg)
	_, err := k.AddURI(ctx, githubURI)
	require.NoError(t, err)

	_, err = os.Stat(cfg.StoragePath)
	assert.ErrorIs(t, err, os.ErrNotExist)

	require.NoError(t, k.Close(ctx))
	assert.Len(t, open(t, cfg).List(), 1)
}

func TestReloadAndWatchFile(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)

	viewer := open(t, cfg)
	editor := open(t, cfg)

	_, err := editor.AddURI(context.Background(), githubURI)
	require.NoError(t, err)

	assert.Empty(t, viewer.List())
	require.NoError(t, viewer.Reload(context.Background()))
	require.Len(t, viewer.List(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	reloaded := make(chan error, 16)
	go func() {
		_ = viewer.WatchFile(ctx, func(err error) {
			select {
			case reloaded <- err:
			default:
			}
		})
	}()

	assert.Eventually(t, func() bool {
		_, err := editor.AddManual(context.Background(), "Example", "alice", "GEZDGNBVGY3TQOJQ")
		assert.NoError(t, err)
		select {
		case err := <-reloaded:
			return err == nil
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.GreaterOrEqual(t, len(viewer.List()), 2)
}
