package storage_test

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/clock"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
	"github.com/dmitrymomot/otpkeeper/pkg/storage"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

func records() []account.Record {
	return []account.Record{
		{ID: "a", Issuer: "GitHub", Label: "octocat", Secret: "JBSWY3DPEHPK3PXP", Digits: 6, Period: 30, Algorithm: totp.SHA1, AddedAt: now},
		{ID: "b", Label: "bob", Secret: "GEZDGNBVGY3TQOJQ", Digits: 8, Period: 60, Algorithm: totp.SHA256, AddedAt: now},
	}
}

func TestNewFileStore(t *testing.T) {
	t.Parallel()

	_, err := storage.NewFileStore("")
	assert.ErrorIs(t, err, storage.ErrInvalidPath)

	fs, err := storage.NewFileStore("relative/accounts.json")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(fs.Path()))
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"accounts.json", "accounts.yaml"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "nested", name)

			fs, err := storage.NewFileStore(path, storage.WithClock(clock.NewFixed(now)))
			require.NoError(t, err)

			require.NoError(t, fs.Save(ctx, records()))

			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

			dirInfo, err := os.Stat(filepath.Dir(path))
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o700), dirInfo.Mode().Perm())

			got, err := fs.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, records(), got)

			entries, err := os.ReadDir(filepath.Dir(path))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary files must not be left behind")
		})
	}
}

func TestFileStoreLoadMissing(t *testing.T) {
	t.Parallel()
	fs, err := storage.NewFileStore(filepath.Join(t.TempDir(), "none.json"))
	require.NoError(t, err)

	got, err := fs.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFileStoreLoadErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"not a document", `["JBSWY3DPEHPK3PXP"]`, backup.ErrInvalidFormat},
		{"unknown version", `{"version":"7.0","accounts":[]}`, backup.ErrUnsupportedVersion},
		{"bad algorithm", `{"version":"2.0","accounts":[{"label":"a","secret":"JBSWY3DPEHPK3PXP","algorithm":"MD5"}]}`, storage.ErrInvalidSnapshot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "accounts.json")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))

			fs, err := storage.NewFileStore(path)
			require.NoError(t, err)
			_, err = fs.Load(context.Background())
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestFileStoreLegacyFiles(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("encrypted layout starts empty", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "accounts.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"salt":"c2FsdA==","data":"Z0FBQUFB"}`), 0o600))

		var buf bytes.Buffer
		log := logger.New(logger.WithOutput(&buf), logger.WithLevel(slog.LevelDebug))
		fs, err := storage.NewFileStore(path, storage.WithLogger(log))
		require.NoError(t, err)

		got, err := fs.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
		assert.Contains(t, buf.String(), "encrypted format")
		assert.Contains(t, buf.String(), `"component":"storage"`)
	})

	t.Run("keyed layout is migrated", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "accounts.json")
		require.NoError(t, os.WriteFile(path, []byte(`{
			"GitHub_octocat": {"secret": "JBSWY3DPEHPK3PXP", "account": "octocat", "issuer": "GitHub", "added": 1700000000},
			"Manual_bob": {"secret": "GEZDGNBVGY3TQOJQ", "account": "bob", "issuer": "Manual", "added": 1600000000}
		}`), 0o600))

		fs, err := storage.NewFileStore(path)
		require.NoError(t, err)

		got, err := fs.Load(ctx)
		require.NoError(t, err)
		require.Len(t, got, 2)
		assert.Equal(t, "bob", got[0].Label)
		assert.Equal(t, "Manual", got[0].Issuer)
		assert.Equal(t, "octocat", got[1].Label)
		assert.Equal(t, time.Unix(1700000000, 0).UTC(), got[1].AddedAt)
	})

	t.Run("empty keyed layout starts empty", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "accounts.json")
		require.NoError(t, os.WriteFile(path, []byte("{}"), 0o600))

		fs, err := storage.NewFileStore(path)
		require.NoError(t, err)

		got, err := fs.Load(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)

		require.NoError(t, fs.Save(ctx, got))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"version": "2.0"`)
	})
}

func TestFileStoreWithAccountStore(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "accounts.json")

	fs, err := storage.NewFileStore(path)
	require.NoError(t, err)

	store := account.NewStore(account.WithPersister(fs))
	id, err := store.Add(ctx, account.Params{Issuer: "GitHub", Label: "octocat", Secret: "jbsw y3dp ehpk 3pxp"})
	require.NoError(t, err)

	reopened, err := storage.NewFileStore(path)
	require.NoError(t, err)
	recs, err := reopened.Load(ctx)
	require.NoError(t, err)

	restored := account.NewStore(account.WithPersister(reopened))
	require.NoError(t, restored.Load(recs))

	acc, err := restored.Get(id)
	require.NoError(t, err)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", acc.Secret())
	assert.Equal(t, store.Records(), restored.Records())

	require.NoError(t, restored.Remove(ctx, id))
	recs, err = fs.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestFileStoreSaveErrors(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	fs, err := storage.NewFileStore(filepath.Join(blocker, "accounts.json"))
	require.NoError(t, err)
	assert.ErrorIs(t, fs.Save(context.Background(), records()), storage.ErrWriteFailed)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, fs.Save(ctx, records()), context.Canceled)
}

func TestFileStoreWatch(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "accounts.json")
	watched, err := storage.NewFileStore(path)
	require.NoError(t, err)
	writer, err := storage.NewFileStore(path)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	changed := make(chan struct{}, 16)
	done := make(chan error, 1)
	go func() {
		done <- watched.Watch(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// The watcher may not be registered yet when the first save lands.
	assert.Eventually(t, func() bool {
		assert.NoError(t, writer.Save(context.Background(), records()))
		select {
		case <-changed:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	// Unrelated files in the same directory are ignored.
	time.Sleep(100 * time.Millisecond)
	for len(changed) > 0 {
		<-changed
	}
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(path), "other.txt"), []byte("x"), 0o600))
	assert.Never(t, func() bool { return len(changed) > 0 }, 200*time.Millisecond, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
