package backup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/dmitrymomot/otpkeeper/pkg/account"
)

// Source provides the accounts to export. *account.Store implements it.
type Source interface {
	Records() []account.Record
}

// Target receives imported accounts. *account.Store implements it.
type Target interface {
	Replace(ctx context.Context, recs []account.Record) error
	Insert(ctx context.Context, r account.Record) (account.ID, error)
	Contains(issuer, label, secret string) bool
}

// Result summarises an import for the user.
type Result struct {
	Added   int
	Skipped int
	Failed  []Failure
}

// Total is the number of records the document contained.
func (r Result) Total() int {
	return r.Added + r.Skipped + len(r.Failed)
}

// Failure describes a rejected record by its position in the document.
type Failure struct {
	Index  int
	Issuer string
	Label  string
	Err    error
}

func (f Failure) Error() string {
	return fmt.Sprintf("record %d (%s): %v", f.Index, displayName(f.Issuer, f.Label), f.Err)
}

func (f Failure) Unwrap() error {
	return f.Err
}

// Export serializes every account of src in order.
func Export(src Source, codec Codec, now time.Time) ([]byte, error) {
	return codec.Marshal(NewDocument(src.Records(), now))
}

// Import decodes data and merges its accounts into dst.
//
// With Append and SkipDuplicates each record commits on its own: invalid
// records are reported in Result.Failed and the rest still land. A failing
// persister stops the import and the error wraps account.ErrPersist. With
// Replace any invalid record aborts the whole import with ErrImportAborted and
// dst stays untouched; Result.Failed still lists every rejected record.
func Import(ctx context.Context, dst Target, data []byte, codec Codec, strategy Strategy) (Result, error) {
	doc, err := codec.Unmarshal(data)
	if err != nil {
		return Result{}, err
	}
	return Apply(ctx, dst, doc, strategy)
}

// Apply merges an already decoded document into dst. See Import.
func Apply(ctx context.Context, dst Target, doc Document, strategy Strategy) (Result, error) {
	switch strategy {
	case Replace:
		return replace(ctx, dst, doc.Accounts)
	case Append, SkipDuplicates:
		return merge(ctx, dst, doc.Accounts, strategy == SkipDuplicates)
	}
	return Result{}, errors.Join(ErrUnknownStrategy, fmt.Errorf("got %d", uint8(strategy)))
}

func replace(ctx context.Context, dst Target, recs []Record) (Result, error) {
	var res Result
	valid := make([]account.Record, 0, len(recs))
	for i, r := range recs {
		rec, err := r.Account()
		if err == nil {
			err = rec.Validate()
		}
		if err != nil {
			res.Failed = append(res.Failed, failure(i, r, err))
			continue
		}
		valid = append(valid, rec)
	}

	if len(res.Failed) > 0 {
		errs := lo.Map(res.Failed, func(f Failure, _ int) error { return f })
		return res, errors.Join(append([]error{ErrImportAborted}, errs...)...)
	}

	if err := dst.Replace(ctx, valid); err != nil {
		return Result{}, errors.Join(ErrImportAborted, err)
	}
	res.Added = len(valid)
	return res, nil
}

func merge(ctx context.Context, dst Target, recs []Record, skipDuplicates bool) (Result, error) {
	var res Result
	for i, r := range recs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		rec, err := r.Account()
		if err != nil {
			res.Failed = append(res.Failed, failure(i, r, err))
			continue
		}
		if skipDuplicates && dst.Contains(rec.Issuer, rec.Label, rec.Secret) {
			res.Skipped++
			continue
		}
		if _, err := dst.Insert(ctx, rec); err != nil {
			if errors.Is(err, account.ErrPersist) {
				return res, err
			}
			res.Failed = append(res.Failed, failure(i, r, err))
			continue
		}
		res.Added++
	}
	return res, nil
}

func failure(i int, r Record, err error) Failure {
	return Failure{Index: i, Issuer: r.Issuer, Label: r.Label, Err: err}
}

func displayName(issuer, label string) string {
	switch {
	case issuer == "":
		return label
	case label == "":
		return issuer
	}
	return issuer + ":" + label
}
