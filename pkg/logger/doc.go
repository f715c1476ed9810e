// Package logger builds the application's slog logger: text output for dev and
// staging, JSON for prod, always tagged with the environment name.
package logger
