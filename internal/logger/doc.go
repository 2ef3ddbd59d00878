// Package logger provides a small wrapper around zap to offer:
//   - a global sugared logger with a console encoder,
//   - context helpers (ToContext/FromContext/WithName/WithKV/WithFields),
//   - level configuration and parsing utilities,
//   - convenience functions (Infof, WarnKV, ErrorKV, etc.).
//
// The daemon, the control CLI and every service take a context and pull the
// logger from it, so a check cycle or a host connection logs under its own scope.
package logger
