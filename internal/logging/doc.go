// Package logging assembles structured slog loggers and formatting helpers used
// across hoard.
//
// It owns the console and JSON handlers, level parsing, the rotating log file,
// and the standard field keys (event_type, error_hint, impact, session_id) so
// every component reports device, mount, and copy events with the same shape.
// The package also provides a no-op logger for tests and wiring code that
// cannot fail.
package logging
