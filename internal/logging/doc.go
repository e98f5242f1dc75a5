// Package logging assembles the structured slog loggers used by embymerge.
//
// It owns the console and JSON handlers, the rotating log file (one file per
// day, a fixed number of days retained), and context helpers that tag lines
// with the pipeline, scan trigger, and request correlation id. A no-op logger
// is provided for tests and for wiring code that cannot fail.
package logging
