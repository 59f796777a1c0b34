package otpkeeper

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dmitrymomot/otpkeeper/pkg/backup"
	"github.com/dmitrymomot/otpkeeper/pkg/config"
	"github.com/dmitrymomot/otpkeeper/pkg/environment"
	"github.com/dmitrymomot/otpkeeper/pkg/logger"
)

// Config is read from OTPKEEPER_* environment variables and an optional .env file.
type Config struct {
	// StoragePath is the snapshot file. Empty means DefaultStoragePath.
	StoragePath string `env:"OTPKEEPER_STORAGE_PATH"`
	// AutoPersist writes the snapshot after every change. When false the
	// host must call Keeper.Close (or Flush) before exiting.
	AutoPersist bool `env:"OTPKEEPER_AUTO_PERSIST" envDefault:"true"`
	// QRSize is the side of generated QR PNGs in pixels.
	QRSize int `env:"OTPKEEPER_QR_SIZE" envDefault:"256"`
	// ImportStrategy is used when an import does not name one.
	ImportStrategy backup.Strategy `env:"OTPKEEPER_IMPORT_STRATEGY" envDefault:"skip-duplicates"`

	Env       environment.Environment `env:"OTPKEEPER_ENV" envDefault:"development"`
	LogLevel  string                  `env:"OTPKEEPER_LOG_LEVEL"`
	LogFormat string                  `env:"OTPKEEPER_LOG_FORMAT"`
}

// LoadConfig reads the configuration and fills in the default storage path.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := config.Load(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.StoragePath == "" {
		path, err := DefaultStoragePath()
		if err != nil {
			return Config{}, err
		}
		cfg.StoragePath = path
	}
	return cfg, cfg.Validate()
}

// Validate checks the fields Open relies on.
func (c Config) Validate() error {
	if c.StoragePath == "" {
		return errors.Join(ErrInvalidConfig, errors.New("storage path is empty"))
	}
	if c.QRSize < 0 {
		return errors.Join(ErrInvalidConfig, errors.New("qr size must not be negative"))
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return errors.Join(ErrInvalidConfig, err)
	}
	if c.LogFormat != "" {
		if _, err := logger.ParseFormat(c.LogFormat); err != nil {
			return errors.Join(ErrInvalidConfig, err)
		}
	}
	return nil
}

// Logger builds the logger described by the configuration. Explicit level and
// format override the environment defaults.
func (c Config) Logger(opts ...logger.Option) *slog.Logger {
	base := []logger.Option{logger.WithEnvironment(c.Env, "otpkeeper")}
	if c.LogLevel != "" {
		if level, err := logger.ParseLevel(c.LogLevel); err == nil {
			base = append(base, logger.WithLevel(level))
		}
	}
	if format, err := logger.ParseFormat(c.LogFormat); err == nil {
		base = append(base, logger.WithFormat(format))
	}
	return logger.New(append(base, opts...)...)
}

// DefaultStoragePath is accounts.json inside the user configuration directory,
// e.g. ~/.config/otpkeeper on Linux.
func DefaultStoragePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Join(ErrInvalidConfig, err)
	}
	return filepath.Join(dir, "otpkeeper", "accounts.json"), nil
}
