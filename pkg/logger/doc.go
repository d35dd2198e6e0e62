// Package logger provides the structured logging interface used across apiclient.
//
// It wraps zerolog behind a small interface so that library code can take a
// Logger and stay silent by default (NewNopLogger), while the command line
// tool builds a real one from configuration:
//
//	log, err := logger.New(&cfg.Logging)
//	log.WithField("component", "executor").Info("client ready")
//
//	log.WarnWithFields("retrying request", map[string]interface{}{
//	    "attempt":  2,
//	    "delay_ms": 2000,
//	})
//
// Configuration options:
//   - Level: debug, info, warn, error or disabled
//   - Format: console (default) or json
//   - File: optional path; output is duplicated there
//
// TestLogger captures messages for assertions in tests.
package logger
