// Package logging sets up structured JSON logging for Cantor.
//
// Logs go to a size-rotated file under ~/.cantor/logs/ and, for interactive
// commands, to stderr as well. Library packages never configure logging;
// they write through slog.Default(), which the CLI replaces at startup.
package logging
