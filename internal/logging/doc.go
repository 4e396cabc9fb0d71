// Package logging constructs the shared slog logger and provides attribute
// helpers so call sites use consistent field names.
package logging
