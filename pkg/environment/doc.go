// Package environment names the environment the application runs in.
//
// The value is read from configuration (it implements encoding.TextUnmarshaler)
// and selects logging defaults:
//
//	env, err := environment.Parse(os.Getenv("OTPKEEPER_ENV"))
//	log := logger.New(logger.WithEnvironment(env, "otpkeeper"))
package environment
