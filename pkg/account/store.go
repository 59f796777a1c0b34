package account

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dmitrymomot/otpkeeper/pkg/clock"
	"github.com/dmitrymomot/otpkeeper/pkg/secret"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"
)

// Persister receives a full snapshot of the store after each mutation.
type Persister interface {
	Save(ctx context.Context, records []Record) error
}

// PersisterFunc adapts a function to Persister.
type PersisterFunc func(ctx context.Context, records []Record) error

func (f PersisterFunc) Save(ctx context.Context, records []Record) error {
	return f(ctx, records)
}

// Store is an ordered, in-memory collection of accounts.
//
// Reads may run concurrently; mutations are serialized. Every mutation builds
// the next state aside, hands it to the persister and only then swaps it in,
// so a failed write leaves the store exactly as it was.
type Store struct {
	mu       sync.RWMutex
	accounts []*Account

	clock       clock.Clock
	persister   Persister
	autoPersist bool
	newID       func() ID
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for AddedAt timestamps.
func WithClock(c clock.Clock) Option {
	return func(s *Store) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithPersister sets where snapshots are written.
func WithPersister(p Persister) Option {
	return func(s *Store) {
		s.persister = p
	}
}

// WithAutoPersist toggles writing a snapshot on every mutation. When disabled
// the host calls Flush on its own schedule. Enabled by default.
func WithAutoPersist(enabled bool) Option {
	return func(s *Store) {
		s.autoPersist = enabled
	}
}

// WithIDGenerator replaces the UUID generator, mostly for deterministic tests.
func WithIDGenerator(fn func() ID) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		clock:       clock.New(),
		autoPersist: true,
		newID:       NewID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add validates p and appends a new account. Accounts with the same issuer,
// label and secret as an existing one are allowed; use AddReport to learn
// about them.
func (s *Store) Add(ctx context.Context, p Params) (ID, error) {
	id, _, err := s.AddReport(ctx, p)
	return id, err
}

// AddReport is Add that also returns the id of the first existing account with
// the same issuer, label and secret, or "" when there is none. The lookup and
// the insert happen under one lock.
func (s *Store) AddReport(ctx context.Context, p Params) (id, duplicateOf ID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc, err := build(s.freshID(s.accounts), p, s.clock.Now().UTC())
	if err != nil {
		return "", "", err
	}
	for _, a := range s.accounts {
		if a.same(acc.Issuer, acc.Label, acc.key) {
			duplicateOf = a.ID
			break
		}
	}
	if err := s.commit(ctx, append(slices.Clone(s.accounts), acc)); err != nil {
		return "", "", err
	}
	return acc.ID, duplicateOf, nil
}

// Rename changes the issuer and/or label. A nil pointer leaves the field
// untouched, an empty string clears it.
func (s *Store) Rename(ctx context.Context, id ID, issuer, label *string) error {
	if issuer == nil && label == nil {
		return ErrNothingToUpdate
	}
	return s.modify(ctx, id, func(a *Account) error {
		if issuer != nil {
			a.Issuer = strings.TrimSpace(*issuer)
		}
		if label != nil {
			a.Label = strings.TrimSpace(*label)
		}
		return nil
	})
}

// Settings changes the code shape of an account. Zero fields keep the current value.
type Settings struct {
	Digits    int
	Period    int
	Algorithm totp.Algorithm
}

// Update applies settings after validating the result.
func (s *Store) Update(ctx context.Context, id ID, set Settings) error {
	if set == (Settings{}) {
		return ErrNothingToUpdate
	}
	return s.modify(ctx, id, func(a *Account) error {
		if set.Digits != 0 {
			a.Digits = set.Digits
		}
		if set.Period != 0 {
			a.Period = set.Period
		}
		if set.Algorithm != 0 {
			a.Algorithm = set.Algorithm
		}
		return a.Params().Validate()
	})
}

// Remove deletes the account. Unknown ids fail with ErrNotFound.
func (s *Store) Remove(ctx context.Context, id ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return errors.Join(ErrNotFound, fmt.Errorf("id %q", id))
	}
	return s.commit(ctx, slices.Delete(slices.Clone(s.accounts), i, i+1))
}

// Get returns a copy of the account.
func (s *Store) Get(id ID) (Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i := s.indexOf(id)
	if i < 0 {
		return Account{}, errors.Join(ErrNotFound, fmt.Errorf("id %q", id))
	}
	return *s.accounts[i], nil
}

// List returns copies of all accounts in insertion order.
func (s *Store) List() []Account {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Account, len(s.accounts))
	for i, a := range s.accounts {
		out[i] = *a
	}
	return out
}

// Len returns the number of accounts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts)
}

// CurrentCode computes the code valid at now for the account.
func (s *Store) CurrentCode(id ID, now time.Time) (totp.Code, error) {
	acc, err := s.Get(id)
	if err != nil {
		return totp.Code{}, err
	}
	return acc.Code(now)
}

// Entry pairs an account with its current code for display.
type Entry struct {
	Account Account
	Code    totp.Code
	Err     error
}

// Codes computes the current code of every account in display order.
func (s *Store) Codes(now time.Time) []Entry {
	accounts := s.List()
	out := make([]Entry, len(accounts))
	for i, acc := range accounts {
		code, err := acc.Code(now)
		out[i] = Entry{Account: acc, Code: code, Err: err}
	}
	return out
}

// FindDuplicate returns the first account with the same issuer, label and
// decoded secret as p.
func (s *Store) FindDuplicate(p Params) (Account, bool) {
	key, err := secret.Decode(p.Secret)
	if err != nil {
		return Account{}, false
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, a := range s.accounts {
		if a.same(p.Issuer, p.Label, key) {
			return *a, true
		}
	}
	return Account{}, false
}

// Contains reports whether an account with the same issuer, label and secret
// exists. Undecodable secrets never match.
func (s *Store) Contains(issuer, label, secretText string) bool {
	_, found := s.FindDuplicate(Params{Issuer: issuer, Label: label, Secret: secretText})
	return found
}

// Records returns the portable form of every account in order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return records(s.accounts)
}

// Flush writes a snapshot regardless of the auto persist setting.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.persister == nil {
		return ErrPersisterMissing
	}
	if err := s.persister.Save(ctx, records(s.accounts)); err != nil {
		return errors.Join(ErrPersist, err)
	}
	return nil
}

func (s *Store) modify(ctx context.Context, id ID, fn func(a *Account) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		return errors.Join(ErrNotFound, fmt.Errorf("id %q", id))
	}

	updated := *s.accounts[i]
	if err := fn(&updated); err != nil {
		return err
	}

	next := slices.Clone(s.accounts)
	next[i] = &updated
	return s.commit(ctx, next)
}

// commit persists next when auto persistence is on and swaps it in on success.
// Callers hold the write lock.
func (s *Store) commit(ctx context.Context, next []*Account) error {
	if s.autoPersist && s.persister != nil {
		if err := s.persister.Save(ctx, records(next)); err != nil {
			return errors.Join(ErrPersist, err)
		}
	}
	s.accounts = next
	return nil
}

func (s *Store) indexOf(id ID) int {
	return slices.IndexFunc(s.accounts, func(a *Account) bool { return a.ID == id })
}

// freshID draws an id unused in accounts. A custom generator that keeps
// colliding falls back to UUIDs.
func (s *Store) freshID(accounts []*Account) ID {
	gen := s.newID
	for attempt := 0; ; attempt++ {
		if attempt == 8 {
			gen = NewID
		}
		if id := gen(); id != "" && !hasID(accounts, id) {
			return id
		}
	}
}

func hasID(accounts []*Account, id ID) bool {
	return slices.ContainsFunc(accounts, func(a *Account) bool { return a.ID == id })
}

func records(accounts []*Account) []Record {
	out := make([]Record, len(accounts))
	for i, a := range accounts {
		out[i] = a.Record()
	}
	return out
}
