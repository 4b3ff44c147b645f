// Package logger wraps zap for the controller binaries:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing and runtime level switching,
//   - leveled shortcuts (Infof, WarnKV, ErrorKV, ...).
//
// Components take a context and log through the logger stored in it, so a
// transport or the guard task can scope every line with its own name.
package logger
