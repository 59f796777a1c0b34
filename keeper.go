package otpkeeper

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/clock"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
	"github.com/dmitrymomot/otpkeeper/pkg/otpauth"
	"github.com/dmitrymomot/otpkeeper/pkg/qrcode"
	"github.com/dmitrymomot/otpkeeper/pkg/secret"
	"github.com/dmitrymomot/otpkeeper/pkg/storage"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"
)

// Keeper is the API a user interface talks to. It owns one account store
// backed by a snapshot file.
type Keeper struct {
	store   *account.Store
	files   *storage.FileStore
	decoder qrcode.Decoder
	clock   clock.Clock
	logger  *slog.Logger

	autoPersist    bool
	qrSize         int
	importStrategy backup.Strategy
}

// Option configures a Keeper.
type Option func(*Keeper)

// WithDecoder supplies the QR image decoder used by AddImage.
func WithDecoder(d qrcode.Decoder) Option {
	return func(k *Keeper) {
		k.decoder = d
	}
}

// WithClock replaces the system clock, for codes and timestamps alike.
func WithClock(c clock.Clock) Option {
	return func(k *Keeper) {
		if c != nil {
			k.clock = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(k *Keeper) {
		if l != nil {
			k.logger = l
		}
	}
}

// Open loads the snapshot at cfg.StoragePath and returns a ready Keeper.
func Open(ctx context.Context, cfg Config, opts ...Option) (*Keeper, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	k := &Keeper{
		clock:          clock.New(),
		logger:         logger.Nop(),
		autoPersist:    cfg.AutoPersist,
		qrSize:         cfg.QRSize,
		importStrategy: cfg.ImportStrategy,
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.importStrategy == 0 {
		k.importStrategy = backup.SkipDuplicates
	}

	files, err := storage.NewFileStore(cfg.StoragePath,
		storage.WithClock(k.clock),
		storage.WithLogger(k.logger),
	)
	if err != nil {
		return nil, err
	}
	recs, err := files.Load(ctx)
	if err != nil {
		return nil, err
	}

	store := account.NewStore(
		account.WithClock(k.clock),
		account.WithPersister(files),
		account.WithAutoPersist(cfg.AutoPersist),
	)
	if err := store.Load(recs); err != nil {
		return nil, err
	}

	k.files = files
	k.store = store
	k.logger.DebugContext(ctx, "keeper opened", logger.Count(store.Len()))
	return k, nil
}

// Store exposes the underlying account store for read access and advanced use.
func (k *Keeper) Store() *account.Store {
	return k.store
}

// Added reports the id of a new account and, when the same issuer, label and
// secret already existed, the id of that earlier account so the UI can warn.
type Added struct {
	ID          account.ID
	DuplicateOf account.ID
}

// Duplicate reports whether the account was already present before.
func (a Added) Duplicate() bool {
	return a.DuplicateOf != ""
}

// Add creates an account from params.
func (k *Keeper) Add(ctx context.Context, p account.Params) (Added, error) {
	id, dup, err := k.store.AddReport(ctx, p)
	if err != nil {
		return Added{}, err
	}
	k.logger.InfoContext(ctx, "account added", logger.AccountID(id.String()))
	return Added{ID: id, DuplicateOf: dup}, nil
}

// AddURI creates an account from an otpauth:// payload.
func (k *Keeper) AddURI(ctx context.Context, uri string) (Added, error) {
	key, err := otpauth.Parse(uri)
	if err != nil {
		return Added{}, err
	}
	return k.Add(ctx, account.ParamsFromKey(key))
}

// AddImage decodes a QR code image with the configured Decoder and adds the
// account it describes.
func (k *Keeper) AddImage(ctx context.Context, image []byte) (Added, error) {
	key, err := qrcode.Scan(ctx, k.decoder, image)
	if err != nil {
		return Added{}, err
	}
	return k.Add(ctx, account.ParamsFromKey(key))
}

// AddManual creates an account from text typed by the user. Spaces, dashes
// and lower case in the secret are accepted; code parameters take defaults.
func (k *Keeper) AddManual(ctx context.Context, issuer, label, secretText string) (Added, error) {
	return k.Add(ctx, account.Params{Issuer: issuer, Label: label, Secret: secretText})
}

// Generate creates an account with a fresh random secret, for setting up a
// service that expects the user to supply one.
func (k *Keeper) Generate(ctx context.Context, issuer, label string, p totp.Params) (Added, error) {
	s, err := secret.Generate(secret.DefaultSize)
	if err != nil {
		return Added{}, err
	}
	return k.Add(ctx, account.Params{
		Issuer:    issuer,
		Label:     label,
		Secret:    s,
		Digits:    p.Digits,
		Period:    p.Period,
		Algorithm: p.Algorithm,
	})
}

// Rename changes issuer and/or label; nil leaves a field as is.
func (k *Keeper) Rename(ctx context.Context, id account.ID, issuer, label *string) error {
	return k.store.Rename(ctx, id, issuer, label)
}

// Update changes digits, period or algorithm.
func (k *Keeper) Update(ctx context.Context, id account.ID, s account.Settings) error {
	return k.store.Update(ctx, id, s)
}

// Remove deletes an account.
func (k *Keeper) Remove(ctx context.Context, id account.ID) error {
	if err := k.store.Remove(ctx, id); err != nil {
		return err
	}
	k.logger.InfoContext(ctx, "account removed", logger.AccountID(id.String()))
	return nil
}

// List returns every account in display order.
func (k *Keeper) List() []account.Account {
	return k.store.List()
}

// Code returns the current code of an account.
func (k *Keeper) Code(id account.ID) (totp.Code, error) {
	return k.store.CurrentCode(id, k.clock.Now())
}

// Codes returns the current code of every account in display order.
func (k *Keeper) Codes() []account.Entry {
	return k.store.Codes(k.clock.Now())
}

// Verify checks a code typed by the user against an account, accepting one
// step of drift either way.
func (k *Keeper) Verify(id account.ID, code string) (bool, error) {
	acc, err := k.store.Get(id)
	if err != nil {
		return false, err
	}
	return acc.Verify(code, k.clock.Now(), 1)
}

// URI returns the otpauth:// URI of an account.
func (k *Keeper) URI(id account.ID) (string, error) {
	acc, err := k.store.Get(id)
	if err != nil {
		return "", err
	}
	return acc.Key().URI(), nil
}

// QRCode renders an account as a PNG QR code for transfer to another
// device. A size of zero uses the configured size.
func (k *Keeper) QRCode(id account.ID, size int) ([]byte, error) {
	uri, err := k.URI(id)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = k.qrSize
	}
	return qrcode.Generate(uri, size)
}

// Export serializes all accounts with codec.
func (k *Keeper) Export(codec backup.Codec) ([]byte, error) {
	return backup.Export(k.store, codec, k.clock.Now())
}

// ExportFile writes all accounts to path; the format follows the extension.
func (k *Keeper) ExportFile(ctx context.Context, path string) error {
	out, err := storage.NewFileStore(path, storage.WithClock(k.clock), storage.WithLogger(k.logger))
	if err != nil {
		return err
	}
	if err := out.Save(ctx, k.store.Records()); err != nil {
		return err
	}
	k.logger.InfoContext(ctx, "accounts exported", logger.Path(out.Path()), logger.Count(k.store.Len()))
	return nil
}

// Import merges a document into the store. A zero strategy uses the
// configured default.
func (k *Keeper) Import(ctx context.Context, data []byte, codec backup.Codec, strategy backup.Strategy) (backup.Result, error) {
	if strategy == 0 {
		strategy = k.importStrategy
	}
	res, err := backup.Import(ctx, k.store, data, codec, strategy)
	k.logImport(ctx, strategy, res, err)
	return res, err
}

// ImportFile reads path and imports it; the format follows the extension.
func (k *Keeper) ImportFile(ctx context.Context, path string, strategy backup.Strategy) (backup.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return backup.Result{}, errors.Join(ErrReadFile, err)
	}
	return k.Import(ctx, data, backup.CodecFor(path), strategy)
}

func (k *Keeper) logImport(ctx context.Context, strategy backup.Strategy, res backup.Result, err error) {
	attrs := []any{
		slog.String("strategy", strategy.String()),
		logger.Group("result",
			slog.Int("added", res.Added),
			slog.Int("skipped", res.Skipped),
			slog.Int("failed", len(res.Failed)),
		),
	}
	if err != nil {
		k.logger.WarnContext(ctx, "import failed", append(attrs, logger.Error(err))...)
		return
	}
	k.logger.InfoContext(ctx, "accounts imported", attrs...)
}

// StoragePath is the absolute path of the snapshot file.
func (k *Keeper) StoragePath() string {
	return k.files.Path()
}

// Reload replaces the in-memory accounts with what the snapshot file holds
// now. Unsaved changes are lost when auto persistence is off.
func (k *Keeper) Reload(ctx context.Context) error {
	recs, err := k.files.Load(ctx)
	if err != nil {
		return err
	}
	if err := k.store.Load(recs); err != nil {
		return err
	}
	k.logger.DebugContext(ctx, "accounts reloaded", logger.Count(k.store.Len()))
	return nil
}

// WatchFile reloads the store whenever the snapshot file changes on disk, for
// example when another process adds an account. onReload receives the result
// of every reload. It blocks until ctx is done.
func (k *Keeper) WatchFile(ctx context.Context, onReload func(error)) error {
	return k.files.Watch(ctx, func() {
		err := k.Reload(ctx)
		if err != nil {
			k.logger.WarnContext(ctx, "failed to reload accounts", logger.Error(err))
		}
		if onReload != nil {
			onReload(err)
		}
	})
}

// Flush writes the snapshot now. Only needed with auto persistence off.
func (k *Keeper) Flush(ctx context.Context) error {
	return k.store.Flush(ctx)
}

// Close flushes pending changes when auto persistence is off.
func (k *Keeper) Close(ctx context.Context) error {
	if k.autoPersist {
		return nil
	}
	return k.Flush(ctx)
}

// Now returns the keeper clock's current time, for hosts that schedule refreshes.
func (k *Keeper) Now() time.Time {
	return k.clock.Now()
}
