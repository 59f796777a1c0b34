package environment

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEnvironment is returned for names outside the known set.
var ErrUnknownEnvironment = errors.New("unknown environment")

// Environment represents application environment.
type Environment string

const (
	// Development for local runs: verbose text logs.
	Development Environment = "development"
	// Staging behaves like production.
	Staging Environment = "staging"
	// Production for packaged installs: JSON logs at info level.
	Production Environment = "production"
)

// Parse accepts the full names and their short forms (dev, stage, prod),
// ignoring case. An empty string means Development.
func Parse(s string) (Environment, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "development", "dev":
		return Development, nil
	case "staging", "stage":
		return Staging, nil
	case "production", "prod":
		return Production, nil
	}
	return "", errors.Join(ErrUnknownEnvironment, fmt.Errorf("got %q", s))
}

func (e Environment) String() string {
	return string(e)
}

// IsProduction is true for Production and Staging.
func (e Environment) IsProduction() bool {
	return e == Production || e == Staging
}

// UnmarshalText lets config loaders decode the environment from text.
func (e *Environment) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = v
	return nil
}
