// Package logging provides structured logging for Communities Core.
//
// This package wraps Go's standard log/slog package to provide
// consistent, structured logging across the entire application.
//
// Logging is configured via the logging section in config.yaml:
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, "1.0.0")
//	logger.Info("starting service", "port", 8080)
//	logger.Error("failed to open database", "error", err)
//
// # Security
//
// Never log bearer credentials, security token values, passwords, or the
// signing secret. Log token IDs and token types instead.
package logging
