package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/clock"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

const (
	fileMode = 0o600
	dirMode  = 0o700
)

// FileStore keeps the account snapshot in a single backup document on disk.
// It implements account.Persister.
type FileStore struct {
	path   string
	codec  backup.Codec
	clock  clock.Clock
	logger *slog.Logger

	mu sync.Mutex // serializes writes to the same path
}

var _ account.Persister = (*FileStore)(nil)

// Option configures a FileStore.
type Option func(*FileStore)

// WithCodec overrides the codec picked from the file extension.
func WithCodec(c backup.Codec) Option {
	return func(s *FileStore) {
		if c != nil {
			s.codec = c
		}
	}
}

// WithClock sets the clock used for the exported_at field.
func WithClock(c clock.Clock) Option {
	return func(s *FileStore) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithLogger sets the logger for load warnings and save diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *FileStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewFileStore creates a store for path. The file and its directory are
// created on the first Save.
func NewFileStore(path string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, ErrInvalidPath
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Join(ErrInvalidPath, err)
	}

	s := &FileStore{
		path:   abs,
		codec:  backup.CodecFor(abs),
		clock:  clock.New(),
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.Component("storage"), logger.Path(abs))
	return s, nil
}

// Path returns the absolute file path.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot. A missing file is an empty store. So is a file
// written by the old encrypted format, which is logged and left in place until
// the next Save overwrites it. Records are converted but not validated; that
// is left to account.Store.Load.
func (s *FileStore) Load(ctx context.Context) ([]account.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.DebugContext(ctx, "accounts file not found, starting empty")
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	if legacy := detectLegacy(data); legacy != legacyNone {
		switch legacy {
		case legacyEncrypted:
			s.logger.WarnContext(ctx, "accounts file uses the unsupported encrypted format, starting empty")
			return nil, nil
		case legacyKeyed:
			s.logger.InfoContext(ctx, "migrating accounts file from the keyed format")
			data = wrapLegacy(data)
		}
	}

	doc, err := s.codec.Unmarshal(data)
	if err != nil {
		return nil, err
	}

	recs := make([]account.Record, 0, len(doc.Accounts))
	var errs []error
	for i, r := range doc.Accounts {
		rec, err := r.Account()
		if err != nil {
			errs = append(errs, fmt.Errorf("record %d: %w", i, err))
			continue
		}
		recs = append(recs, rec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidSnapshot}, errs...)...)
	}

	s.logger.DebugContext(ctx, "accounts loaded", logger.Count(len(recs)))
	return recs, nil
}

// Save writes records atomically: the document goes to a temporary file in the
// same directory which then replaces the previous snapshot.
func (s *FileStore) Save(ctx context.Context, records []account.Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := s.codec.Marshal(backup.NewDocument(records, s.clock.Now()))
	if err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeAtomic(s.path, data); err != nil {
		s.logger.ErrorContext(ctx, "failed to save accounts", logger.Error(err))
		return errors.Join(ErrWriteFailed, err)
	}

	s.logger.DebugContext(ctx, "accounts saved", logger.Count(len(records)))
	return nil
}

// Watch calls onChange whenever the snapshot file is written, replaced or
// removed by anyone, this process included. It blocks until ctx is done. The
// parent directory is watched because Save replaces the file by rename.
func (s *FileStore) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return errors.Join(ErrWatchFailed, err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Join(ErrWatchFailed, err)
	}
	defer w.Close()

	if err := w.Add(dir); err != nil {
		return errors.Join(ErrWatchFailed, err)
	}
	s.logger.DebugContext(ctx, "watching accounts file")

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != s.path || ev.Op == fsnotify.Chmod {
				continue
			}
			onChange()
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.WarnContext(ctx, "accounts file watcher error", logger.Error(err))
		}
	}
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := tmp.Chmod(fileMode); err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

type legacyKind int

const (
	legacyNone legacyKind = iota
	legacyEncrypted
	legacyKeyed
)

// detectLegacy recognizes the two unversioned JSON layouts of the previous
// desktop app: {"salt": ..., "data": ...} and a bare object keyed by account
// name.
func detectLegacy(data []byte) legacyKind {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return legacyNone
	}
	// The old app writes {} once its last account is deleted.
	if len(top) == 0 {
		return legacyKeyed
	}
	if _, ok := top["version"]; ok {
		return legacyNone
	}
	_, salt := top["salt"]
	_, payload := top["data"]
	if salt && payload {
		return legacyEncrypted
	}
	for _, v := range top {
		if v = bytes.TrimSpace(v); len(v) == 0 || (v[0] != '{' && v[0] != '"') {
			return legacyNone
		}
	}
	return legacyKeyed
}

// wrapLegacy turns a keyed accounts file into a 1.0 export document.
func wrapLegacy(data []byte) []byte {
	var buf bytes.Buffer
	buf.WriteString(`{"version":"` + backup.LegacyVersion + `","accounts":`)
	buf.Write(bytes.TrimSpace(data))
	buf.WriteString(`}`)
	return buf.Bytes()
}
