// Package config loads typed configuration from environment variables.
//
// Load and MustLoad parse a struct with github.com/caarlos0/env/v11 tags.
// A .env file in the working directory is picked up automatically through
// github.com/joho/godotenv; LoadEnv reads additional files on demand, for
// example one named by a command line flag.
//
// Parsed values are cached per type, so the whole program sees one
// configuration. Tests that change the environment call ResetCache.
//
// Fields may use any type env supports, including encoding.TextUnmarshaler
// implementations such as environment.Environment and backup.Strategy.
package config
