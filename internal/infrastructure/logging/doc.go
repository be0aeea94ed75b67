// Package logging builds the service's structured logger on log/slog.
//
// Every record carries service and version attributes. Components derive
// child loggers with With("component", ...). The Logger satisfies the small
// Debug/Info/Warn/Error interfaces the bridge, history and API packages
// accept, so none of them import slog directly.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Device tokens and JWT secrets must never be logged.
package logging
