// Package logging assembles structured slog loggers and attribute helpers
// shared by the viewer runtime, the transport listener and the CLI.
//
// It owns the console and JSON handlers, resolves the "auto" format from the
// attached terminal, and stamps every record of a viewer run with its session
// ID. WarnWithContext and ErrorWithContext keep warning lines shaped as
// cause + impact + next step. A no-op logger is provided for tests and wiring
// code that cannot fail.
package logging
