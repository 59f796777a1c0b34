// Package logger builds *slog.Logger values for otpkeeper binaries.
//
// New takes functional options for format, level, output and static
// attributes, and wraps the handler in LogHandlerDecorator so values stored in
// a context.Context (the running command, for example) are added to every
// record logged with that context. WithEnvironment picks the defaults for an
// environment.Environment.
//
// Attribute helpers such as Error, AccountID and Count keep key names
// consistent. Error and Errors return an empty attribute for nil errors, so
//
//	log.Info("snapshot saved", logger.Count(n), logger.Error(err))
//
// needs no nil check.
//
// Usage:
//
//	level, err := logger.ParseLevel(cfg.LogLevel)
//	...
//	log := logger.New(
//	    logger.WithEnvironment(cfg.Env, "otpkeeper"),
//	    logger.WithLevel(level),
//	    logger.WithContextValue("command", commandKey{}),
//	)
//
// The core packages never log; only storage and the command line host take a
// logger.
package logger
