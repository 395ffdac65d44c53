// Package logging provides structured logging for the patient registry.
//
// It wraps log/slog so every component logs with the same handler,
// level filter and default fields.
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
//	logger.Info("patient registered", "patient_id", id)
//
// # Patient data
//
// Never log names, contact details or other record fields. Identifiers
// and outcomes are enough to trace an operation.
package logging
