// Package logging provides structured logging for graystore.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the store, its change feed and
// its admin API.
//
// # Features
//
//   - JSON output for production (machine-parsable)
//   - Text output for development (human-readable)
//   - Default fields (service, version) on all log entries
//   - Level-based filtering (debug, info, warn, error)
//
// # Configuration
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// # Usage
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	manager.SetLogger(logger.Component("orm"))
//
// Never log database keys or passphrases.
package logging
