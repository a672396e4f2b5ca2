// Package logx configures reviewbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - A "critical" level for startup failures that never calls os.Exit itself
package logx
