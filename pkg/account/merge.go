package account

import (
	"context"
	"errors"
	"time"
)

// Load restores a snapshot read at startup. Every record is validated first;
// on failure the store is left untouched. Nothing is written back to the
// persister.
func (s *Store) Load(recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.buildAll(recs)
	if err != nil {
		return err
	}
	s.accounts = next
	return nil
}

// Replace swaps the whole content of the store for recs. It is all or
// nothing: if any record is invalid the store keeps its current accounts and
// the returned error joins a *RecordError per rejected record.
func (s *Store) Replace(ctx context.Context, recs []Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := s.buildAll(recs)
	if err != nil {
		return err
	}
	return s.commit(ctx, next)
}

// Insert appends a record, keeping its id when it is set and not taken and
// assigning a fresh one otherwise.
func (s *Store) Insert(ctx context.Context, r Record) (ID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := r.ID
	if id == "" || hasID(s.accounts, id) {
		id = s.freshID(s.accounts)
	}
	acc, err := build(id, r.Params(), s.addedAt(r.AddedAt))
	if err != nil {
		return "", err
	}
	if err := s.commit(ctx, append(s.cloneAccounts(), acc)); err != nil {
		return "", err
	}
	return acc.ID, nil
}

// buildAll validates every record and resolves ids: a repeated or missing id
// gets a fresh one.
func (s *Store) buildAll(recs []Record) ([]*Account, error) {
	next := make([]*Account, 0, len(recs))
	var errs []error
	for i, r := range recs {
		id := r.ID
		if id == "" || hasID(next, id) {
			id = s.freshID(next)
		}
		acc, err := build(id, r.Params(), s.addedAt(r.AddedAt))
		if err != nil {
			errs = append(errs, &RecordError{Index: i, Err: err})
			continue
		}
		next = append(next, acc)
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidRecord}, errs...)...)
	}
	return next, nil
}

func (s *Store) addedAt(t time.Time) time.Time {
	if t.IsZero() {
		return s.clock.Now().UTC()
	}
	return t
}

func (s *Store) cloneAccounts() []*Account {
	out := make([]*Account, len(s.accounts), len(s.accounts)+1)
	copy(out, s.accounts)
	return out
}
