// Package storage persists the account store to a local file.
//
// FileStore implements account.Persister: every mutation of the store hands it
// the full ordered list of accounts, which it writes as a backup document (JSON
// or YAML, chosen by file extension) using a temporary file and a rename, so a
// crash never leaves a half written snapshot behind. Files are created with
// 0600 permissions inside a 0700 directory; secrets are stored in plain base32
// text, like every other authenticator that does not encrypt at rest.
//
// At startup the host reads the snapshot back:
//
//	fs, err := storage.NewFileStore(path, storage.WithLogger(log))
//	...
//	recs, err := fs.Load(ctx)
//	...
//	store := account.NewStore(account.WithPersister(fs))
//	if err := store.Load(recs); err != nil {
//		...
//	}
//
// Load understands the files of the previous desktop application as well: a
// bare object of accounts keyed by name is migrated on the next save, and the
// old encrypted {"salt", "data"} layout, which cannot be read, is reported
// and treated as empty.
//
// Watch reports changes to the file made by other processes, so long-running
// views can reload.
package storage
