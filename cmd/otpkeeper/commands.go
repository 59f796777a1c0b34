package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dmitrymomot/otpkeeper"
	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/qrcode"
	"github.com/dmitrymomot/otpkeeper/pkg/totp"
)

var (
	errCodeRejected = errors.New("code rejected")
	errWriteFile    = errors.New("failed to write file")
)

// positional parses fs and requires exactly n arguments after the flags.
func positional(fs *flag.FlagSet, args []string, n int) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	rest := fs.Args()
	if len(rest) != n {
		fs.Usage()
		return nil, errUsage
	}
	return rest, nil
}

func cmdList(_ context.Context, e *env, args []string) error {
	if _, err := positional(e.flags("list"), args, 0); err != nil {
		return err
	}

	now := e.keeper.Now()
	w := tabwriter.NewWriter(e.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tID\tISSUER\tLABEL\tCODE\tEXPIRES")
	for i, entry := range e.keeper.Codes() {
		acc := entry.Account
		code, expires := entry.Code.Value, fmt.Sprintf("%ds", remainingSeconds(entry.Code, now))
		if entry.Err != nil {
			code, expires = "error", entry.Err.Error()
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n", i+1, shortID(acc.ID), acc.Issuer, acc.Label, code, expires)
	}
	return w.Flush()
}

func cmdCode(_ context.Context, e *env, args []string) error {
	rest, err := positional(e.flags("code"), args, 1)
	if err != nil {
		return err
	}
	acc, err := resolve(e.keeper, rest[0])
	if err != nil {
		return err
	}
	code, err := e.keeper.Code(acc.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, code.Value)
	return nil
}

func cmdAdd(ctx context.Context, e *env, args []string) error {
	fs := e.flags("add")
	settings := settingsFlags(fs)
	rest, err := positional(fs, args, 3)
	if err != nil {
		return err
	}
	set, err := settings()
	if err != nil {
		return err
	}
	added, err := e.keeper.Add(ctx, account.Params{
		Issuer:    rest[0],
		Label:     rest[1],
		Secret:    rest[2],
		Digits:    set.Digits,
		Period:    set.Period,
		Algorithm: set.Algorithm,
	})
	if err != nil {
		return err
	}
	e.reportAdded(added)
	return nil
}

func cmdAddURI(ctx context.Context, e *env, args []string) error {
	rest, err := positional(e.flags("add-uri"), args, 1)
	if err != nil {
		return err
	}
	added, err := e.keeper.AddURI(ctx, rest[0])
	if err != nil {
		return err
	}
	e.reportAdded(added)
	return nil
}

func cmdGenerate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("generate")
	settings := settingsFlags(fs)
	rest, err := positional(fs, args, 2)
	if err != nil {
		return err
	}
	set, err := settings()
	if err != nil {
		return err
	}
	added, err := e.keeper.Generate(ctx, rest[0], rest[1], totp.Params{
		Digits:    set.Digits,
		Period:    set.Period,
		Algorithm: set.Algorithm,
	})
	if err != nil {
		return err
	}
	uri, err := e.keeper.URI(added.ID)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.stdout, added.ID)
	fmt.Fprintln(e.stdout, uri)
	return nil
}

func cmdRename(ctx context.Context, e *env, args []string) error {
	fs := e.flags("rename")
	issuer := fs.String("issuer", "", "new issuer")
	label := fs.String("label", "", "new label")
	rest, err := positional(fs, args, 1)
	if err != nil {
		return err
	}

	// Only flags given on the command line are applied, so an issuer can be cleared with -issuer "".
	var newIssuer, newLabel *string
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "issuer":
			newIssuer = issuer
		case "label":
			newLabel = label
		}
	})
	if newIssuer == nil && newLabel == nil {
		fs.Usage()
		return errUsage
	}

	acc, err := resolve(e.keeper, rest[0])
	if err != nil {
		return err
	}
	return e.keeper.Rename(ctx, acc.ID, newIssuer, newLabel)
}

func cmdUpdate(ctx context.Context, e *env, args []string) error {
	fs := e.flags("update")
	settings := settingsFlags(fs)
	rest, err := positional(fs, args, 1)
	if err != nil {
		return err
	}
	set, err := settings()
	if err != nil {
		return err
	}
	acc, err := resolve(e.keeper, rest[0])
	if err != nil {
		return err
	}
	return e.keeper.Update(ctx, acc.ID, set)
}

func cmdRemove(ctx context.Context, e *env, args []string) error {
	rest, err := positional(e.flags("remove"), args, 1)
	if err != nil {
		return err
	}
	acc, err := resolve(e.keeper, rest[0])
	if err != nil {
		return err
	}
	if err := e.keeper.Remove(ctx, acc.ID); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "removed %s\n", acc.DisplayName())
	return nil
}

func cmdVerify(_ context.Context, e *env, args []string) error {
	rest, err := positional(e.flags("verify"), args, 2)
	if err != nil {
		return err
	}
	acc, err := resolve(e.keeper, rest[0])
	if err != nil {
		return err
	}
	ok, err := e.keeper.Verify(acc.ID, rest[1])
	if err != nil {
		return err
	}
	if !ok {
		return errCodeRejected
	}
	fmt.Fprintln(e.stdout, "ok")
	return nil
}

func cmdExport(ctx context.Context, e *env, args []string) error {
	rest, err := positional(e.flags("export"), args, 1)
	if err != nil {
		return err
	}
	if err := e.keeper.ExportFile(ctx, rest[0]); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "exported %d accounts to %s\n", e.keeper.Store().Len(), rest[0])
	return nil
}

func cmdImport(ctx context.Context, e *env, args []string) error {
	fs := e.flags("import")
	strategyName := fs.String("strategy", e.cfg.ImportStrategy.String(), "replace, append or skip-duplicates")
	rest, err := positional(fs, args, 1)
	if err != nil {
		return err
	}
	strategy, err := backup.ParseStrategy(*strategyName)
	if err != nil {
		return err
	}

	res, err := e.keeper.ImportFile(ctx, rest[0], strategy)
	for _, f := range res.Failed {
		fmt.Fprintf(e.stderr, "record %d (%s): %v\n", f.Index, account.Account{Issuer: f.Issuer, Label: f.Label}.DisplayName(), f.Err)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "added %d, skipped %d, failed %d\n", res.Added, res.Skipped, len(res.Failed))
	return nil
}

func cmdQR(_ context.Context, e *env, args []string) error {
	fs := e.flags("qr")
	out := fs.String("out", "", "write a PNG image to this file instead of the terminal")
	size := fs.Int("size", e.cfg.QRSize, "PNG size in pixels")
	rest, err := positional(fs, args, 1)
	if err != nil {
		return err
	}
	acc, err := resolve(e.keeper, rest[0])
	if err != nil {
		return err
	}

	if *out == "" {
		uri, err := e.keeper.URI(acc.ID)
		if err != nil {
			return err
		}
		art, err := qrcode.Terminal(uri)
		if err != nil {
			return err
		}
		fmt.Fprint(e.stdout, art)
		return nil
	}

	png, err := e.keeper.QRCode(acc.ID, *size)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*out, png, 0o600); err != nil {
		return errors.Join(errWriteFile, err)
	}
	fmt.Fprintf(e.stdout, "wrote %s\n", *out)
	return nil
}

func (e *env) reportAdded(a otpkeeper.Added) {
	if a.Duplicate() {
		fmt.Fprintf(e.stderr, "warning: same account already stored as %s\n", shortID(a.DuplicateOf))
	}
	fmt.Fprintln(e.stdout, a.ID)
}

func shortID(id account.ID) string {
	s := id.String()
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

func remainingSeconds(c totp.Code, now time.Time) int {
	return int((c.Remaining(now) + time.Second - 1) / time.Second)
}

// settingsFlags registers -digits, -period and -algorithm on fs. The returned
// func must be called after parsing.
func settingsFlags(fs *flag.FlagSet) func() (account.Settings, error) {
	digits := fs.Int("digits", 0, "code length, 6 to 8 (default 6)")
	period := fs.Int("period", 0, "seconds per code (default 30)")
	alg := fs.String("algorithm", "", "SHA1, SHA256 or SHA512 (default SHA1)")
	return func() (account.Settings, error) {
		set := account.Settings{Digits: *digits, Period: *period}
		if strings.TrimSpace(*alg) != "" {
			a, err := totp.ParseAlgorithm(*alg)
			if err != nil {
				return account.Settings{}, err
			}
			set.Algorithm = a
		}
		return set, nil
	}
}
