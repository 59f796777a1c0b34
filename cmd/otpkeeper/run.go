package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/dmitrymomot/otpkeeper"
	"github.com/dmitrymomot/otpkeeper/pkg/account"
	"github.com/dmitrymomot/otpkeeper/pkg/config"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

var (
	errUsage        = errors.New("usage")
	errUnknownCmd   = errors.New("unknown command")
	errAmbiguousRef = errors.New("account reference matches more than one account")
)

type commandKey struct{}

// env carries what every command needs.
type env struct {
	keeper *otpkeeper.Keeper
	cfg    otpkeeper.Config
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
	usage  string
}

func (e *env) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: otpkeeper %s\n", e.usage)
		fs.PrintDefaults()
	}
	return fs
}

type command struct {
	usage string
	help  string
	run   func(ctx context.Context, e *env, args []string) error
}

var commands = map[string]command{
	"list":     {"list", "show every account with its current code", cmdList},
	"code":     {"code <account>", "print the current code of one account", cmdCode},
	"add":      {"add [-digits n] [-period s] [-algorithm a] <issuer> <label> <secret>", "add an account from a typed secret", cmdAdd},
	"add-uri":  {"add-uri <otpauth-uri>", "add an account from an otpauth:// URI", cmdAddURI},
	"generate": {"generate [-period s] <issuer> <label>", "create an account with a random secret and print its URI", cmdGenerate},
	"rename":   {"rename [-issuer name] [-label name] <account>", "change issuer and/or label", cmdRename},
	"update":   {"update [-digits n] [-period s] [-algorithm a] <account>", "change the code parameters", cmdUpdate},
	"remove":   {"remove <account>", "delete an account", cmdRemove},
	"verify":   {"verify <account> <code>", "check a code against an account", cmdVerify},
	"export":   {"export <path>", "write all accounts to a .json, .2fa, .yaml or .yml file", cmdExport},
	"import":   {"import [-strategy s] <path>", "merge accounts from a backup (replace, append, skip-duplicates)", cmdImport},
	"qr":       {"qr [-out file.png] [-size px] <account>", "show or save an account as a QR code", cmdQR},
	"watch":    {"watch", "interactive view refreshing codes every second", cmdWatch},
}

// run is main without the process exit, so it can be tested.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	global := flag.NewFlagSet("otpkeeper", flag.ContinueOnError)
	global.SetOutput(stderr)
	envFile := global.String("env-file", "", "load environment variables from this file")
	storagePath := global.String("storage", "", "accounts file, overrides OTPKEEPER_STORAGE_PATH")
	global.Usage = func() { usage(stderr) }
	if err := global.Parse(args); err != nil {
		return err
	}

	if *envFile != "" {
		if err := config.LoadEnv(*envFile); err != nil {
			return err
		}
		config.ResetCache()
	}

	rest := global.Args()
	if len(rest) == 0 {
		usage(stderr)
		return errUsage
	}
	name, cmdArgs := rest[0], rest[1:]
	cmd, ok := commands[name]
	if !ok {
		usage(stderr)
		return errors.Join(errUnknownCmd, fmt.Errorf("%q", name))
	}

	cfg, err := otpkeeper.LoadConfig()
	if err != nil {
		return err
	}
	if *storagePath != "" {
		cfg.StoragePath = *storagePath
	}

	log := cfg.Logger(
		logger.WithOutput(stderr),
		logger.WithContextValue("command", commandKey{}),
	)
	ctx = context.WithValue(ctx, commandKey{}, name)

	k, err := otpkeeper.Open(ctx, cfg, otpkeeper.WithLogger(log))
	if err != nil {
		return err
	}

	e := &env{keeper: k, cfg: cfg, log: log, stdout: stdout, stderr: stderr, usage: cmd.usage}
	runErr := cmd.run(ctx, e, cmdArgs)
	if err := k.Close(ctx); err != nil {
		log.ErrorContext(ctx, "failed to flush accounts", logger.Error(err))
		return errors.Join(runErr, err)
	}
	return runErr
}

func usage(w io.Writer) {
	names := lo.Keys(commands)
	sort.Strings(names)

	fmt.Fprintln(w, "Usage: otpkeeper [-env-file path] [-storage path] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Accounts are referenced by id, list position (#) or unique id prefix.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range names {
		c := commands[name]
		fmt.Fprintf(w, "  %-62s %s\n", c.usage, c.help)
	}
}

// resolve finds an account by exact id, 1-based position as printed by list,
// or unique id prefix. A number within the list range is always a position,
// even when some id starts with the same digits.
func resolve(k *otpkeeper.Keeper, ref string) (account.Account, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return account.Account{}, errors.Join(errUsage, errors.New("missing account reference"))
	}
	if acc, err := k.Store().Get(account.ID(ref)); err == nil {
		return acc, nil
	}

	list := k.List()
	if isNumber(ref) {
		if n, err := strconv.Atoi(ref); err == nil && n >= 1 && n <= len(list) {
			return list[n-1], nil
		}
	}

	matches := lo.Filter(list, func(acc account.Account, _ int) bool {
		return strings.HasPrefix(acc.ID.String(), ref)
	})
	switch len(matches) {
	case 0:
		return account.Account{}, errors.Join(account.ErrNotFound, fmt.Errorf("%q", ref))
	case 1:
		return matches[0], nil
	}
	return account.Account{}, errors.Join(errAmbiguousRef, fmt.Errorf("%q", ref))
}

func isNumber(s string) bool {
	return s != "" && strings.Trim(s, "0123456789") == ""
}
